package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// Engineer implements one blueprint agent as a runnable code file
type Engineer struct {
	Base
}

// Implementation is the Engineer's structured output
type Implementation struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

// Validate checks the structural invariants of an implementation
func (i *Implementation) Validate() error {
	if i.Filename == "" {
		return fmt.Errorf("implementation has no filename")
	}
	if strings.ContainsAny(i.Filename, "/\\") {
		return fmt.Errorf("filename must not contain path separators: %s", i.Filename)
	}
	if i.Code == "" {
		return fmt.Errorf("implementation has no code")
	}
	return nil
}

// NewEngineer creates the Engineer agent for one run
func NewEngineer(profiles Profiles, gw output.ModelGateway, trace output.TraceWriter, opts Options) *Engineer {
	return &Engineer{Base: NewBase(RoleEngineer, profiles, gw, trace, opts)}
}

// Implement writes the code for one agent definition. feedback carries
// the Auditor's findings from the previous iteration; empty on the
// first pass.
func (e *Engineer) Implement(ctx context.Context, rn *run.Run, workflowContext string, def blueprint.AgentDef, feedback string) (*Implementation, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow context:\n%s\n\n", workflowContext)
	fmt.Fprintf(&sb, "Implement this agent:\n")
	fmt.Fprintf(&sb, "Name: %s\nRole: %s\nGoal: %s\n", def.Name, def.Role, def.Goal)
	writeIODefs(&sb, "Inputs", def.Inputs)
	writeIODefs(&sb, "Outputs", def.Outputs)
	if len(def.Dependencies) > 0 {
		fmt.Fprintf(&sb, "Depends on: %s\n", strings.Join(def.Dependencies, ", "))
	}
	fmt.Fprintf(&sb, "\nInstructions:\n%s\n", def.Instructions)
	if feedback != "" {
		fmt.Fprintf(&sb, "\nThe previous implementation was rejected. Fix all of this:\n%s\n", feedback)
	}

	var impl Implementation
	if err := e.generateJSON(ctx, rn, sb.String(), &impl, impl.Validate); err != nil {
		return nil, err
	}
	return &impl, nil
}

func writeIODefs(sb *strings.Builder, label string, defs []blueprint.IODef) {
	if len(defs) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", label)
	for _, d := range defs {
		fmt.Fprintf(sb, "  - %s (%s): %s\n", d.Name, d.Type, d.Description)
	}
}
