package pipeline

import (
	"context"
	"time"

	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/application/agent"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/review"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/domain/repository"
)

// ReviewLoop drives the bounded Engineer-then-Auditor cycle for one
// agent definition. The iteration count is checked before each pass;
// exhaustion without approval is a normal outcome, not an error. Every
// iteration is persisted even though only the latest candidate is
// carried forward.
type ReviewLoop struct {
	engineer      *agent.Engineer
	auditor       *agent.Auditor
	reviews       repository.ReviewRepository
	maxIterations int
}

// NewReviewLoop wires the loop controller for one run
func NewReviewLoop(engineer *agent.Engineer, auditor *agent.Auditor, reviews repository.ReviewRepository, maxIterations int) *ReviewLoop {
	if maxIterations <= 0 {
		maxIterations = 3
	}
	return &ReviewLoop{
		engineer:      engineer,
		auditor:       auditor,
		reviews:       reviews,
		maxIterations: maxIterations,
	}
}

// Run executes the loop for one agent definition. Errors are reserved
// for stage failures (budget, retries exhausted, invalid output); a
// rejected-until-exhausted loop returns a non-nil Outcome with
// Approved=false, Exhausted=true.
func (l *ReviewLoop) Run(ctx context.Context, rn *run.Run, workflowContext string, def blueprint.AgentDef) (*review.Outcome, error) {
	outcome := &review.Outcome{AgentName: def.Name}
	feedback := ""

	for seq := 1; seq <= l.maxIterations; seq++ {
		start := time.Now()

		impl, err := l.engineer.Implement(ctx, rn, workflowContext, def, feedback)
		if err != nil {
			return nil, err
		}

		verdict, err := l.auditor.Review(ctx, rn, def, impl)
		if err != nil {
			return nil, err
		}

		it := review.Iteration{
			Seq:       seq,
			AgentName: def.Name,
			Filename:  impl.Filename,
			Code:      impl.Code,
			Verdict:   verdict,
			ElapsedMs: time.Since(start).Milliseconds(),
		}
		outcome.Iterations = append(outcome.Iterations, it)

		// Persisting the iteration is bookkeeping, not control flow
		if err := l.reviews.Append(ctx, rn.ID, it); err != nil {
			app.GetLogger().Warn("persist review iteration %s/%d: %v", def.Name, seq, err)
		}

		if verdict.Approved() {
			outcome.Approved = true
			return outcome, nil
		}
		feedback = verdict.Feedback
	}

	outcome.Exhausted = true
	return outcome, nil
}
