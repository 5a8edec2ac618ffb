package agent

import (
	"context"
	"fmt"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/review"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// Auditor reviews one generated implementation against its definition
type Auditor struct {
	Base
}

// NewAuditor creates the Auditor agent for one run
func NewAuditor(profiles Profiles, gw output.ModelGateway, trace output.TraceWriter, opts Options) *Auditor {
	return &Auditor{Base: NewBase(RoleAuditor, profiles, gw, trace, opts)}
}

// Review returns the Auditor's verdict on an implementation
func (a *Auditor) Review(ctx context.Context, rn *run.Run, def blueprint.AgentDef, impl *Implementation) (review.Verdict, error) {
	prompt := fmt.Sprintf(
		"Agent definition:\nName: %s\nGoal: %s\nInstructions:\n%s\n\nImplementation (%s):\n%s",
		def.Name, def.Goal, def.Instructions, impl.Filename, impl.Code,
	)

	var verdict review.Verdict
	validate := func() error {
		if !verdict.Decision.IsValid() || verdict.Decision == review.DecisionPending {
			return fmt.Errorf("decision must be APPROVE or REJECT, got %q", verdict.Decision)
		}
		if verdict.Decision == review.DecisionReject && verdict.Feedback == "" {
			return fmt.Errorf("a REJECT decision requires feedback")
		}
		return nil
	}

	if err := a.generateJSON(ctx, rn, prompt, &verdict, validate); err != nil {
		return review.Verdict{}, err
	}
	return verdict, nil
}
