package agent

import (
	"context"
	"fmt"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// Architect designs the multi-agent workflow blueprint for a goal
type Architect struct {
	Base
}

// NewArchitect creates the Architect agent for one run
func NewArchitect(profiles Profiles, gw output.ModelGateway, trace output.TraceWriter, opts Options) *Architect {
	return &Architect{Base: NewBase(RoleArchitect, profiles, gw, trace, opts)}
}

// Design produces a validated blueprint for the run's goal. feedback
// carries the human rejection reason when the run loops back after an
// interactive rejection; empty on the first pass.
func (a *Architect) Design(ctx context.Context, rn *run.Run, feedback string) (*blueprint.Blueprint, error) {
	prompt := fmt.Sprintf("Design a multi-agent workflow for this goal:\n\n%s", rn.Goal)
	if feedback != "" {
		prompt += fmt.Sprintf("\n\nA previous design was rejected with this feedback. Address all of it:\n%s", feedback)
	}

	var bp blueprint.Blueprint
	if err := a.generateJSON(ctx, rn, prompt, &bp, bp.Validate); err != nil {
		return nil, err
	}
	return &bp, nil
}
