package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelgw "github.com/agentfoundry/agentfactory/internal/adapter/gateway/model"
	"github.com/agentfoundry/agentfactory/internal/application/agent"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/review"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// memReviews is an in-memory ReviewRepository for loop-level tests
type memReviews struct {
	mu   sync.Mutex
	byID map[string][]review.Iteration
}

func newMemReviews() *memReviews {
	return &memReviews{byID: map[string][]review.Iteration{}}
}

func (m *memReviews) Append(ctx context.Context, runID string, it review.Iteration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[runID] = append(m.byID[runID], it)
	return nil
}

func (m *memReviews) ListByRun(ctx context.Context, runID string) ([]review.Iteration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]review.Iteration(nil), m.byID[runID]...), nil
}

func (m *memReviews) CountByRun(ctx context.Context, runID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID[runID]), nil
}

// nopTrace drops trace records
type nopTrace struct{}

func (nopTrace) Record(ctx context.Context, rec *output.TraceRecord) error { return nil }
func (nopTrace) Close() error                                              { return nil }

func loopFixture(t *testing.T, gw *modelgw.MockGateway, maxIterations int) (*ReviewLoop, *memReviews, *run.Run) {
	t.Helper()

	profiles, err := agent.LoadProfiles()
	require.NoError(t, err)

	opts := agent.Options{
		Model:          "mock",
		CallTimeout:    time.Second,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		MaxAPICalls:    100,
	}

	reviews := newMemReviews()
	loop := NewReviewLoop(
		agent.NewEngineer(profiles, gw, nopTrace{}, opts),
		agent.NewAuditor(profiles, gw, nopTrace{}, opts),
		reviews,
		maxIterations,
	)

	rn, err := run.NewRun("build a summarizer", run.ModeAutonomous)
	require.NoError(t, err)
	require.NoError(t, rn.Start())
	require.NoError(t, rn.AdvanceStage())

	return loop, reviews, rn
}

func loopAgentDef() blueprint.AgentDef {
	return blueprint.AgentDef{
		Name:         "summarizer",
		Role:         "writer",
		Goal:         "summarize articles",
		Instructions: "Summarize each article in two sentences.",
	}
}

func TestReviewLoop_ApprovedFirstPass(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("engineer", `{"filename": "summarizer.py", "code": "print('v1')"}`)
	gw.Script("auditor", `{"decision": "APPROVE", "feedback": ""}`)

	loop, reviews, rn := loopFixture(t, gw, 3)

	outcome, err := loop.Run(context.Background(), rn, "ctx", loopAgentDef())
	require.NoError(t, err)

	assert.True(t, outcome.Approved)
	assert.False(t, outcome.Exhausted)
	require.Len(t, outcome.Iterations, 1)
	assert.Equal(t, "summarizer.py", outcome.Candidate().Filename)

	count, err := reviews.CountByRun(context.Background(), rn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReviewLoop_FeedbackFlowsBetweenIterations(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("engineer", `{"filename": "summarizer.py", "code": "print('v1')"}`)
	gw.Script("auditor", `{"decision": "REJECT", "feedback": "no error handling"}`)
	gw.Script("engineer", `{"filename": "summarizer.py", "code": "print('v2')"}`)
	gw.Script("auditor", `{"decision": "APPROVE", "feedback": ""}`)

	loop, _, rn := loopFixture(t, gw, 3)

	outcome, err := loop.Run(context.Background(), rn, "ctx", loopAgentDef())
	require.NoError(t, err)

	assert.True(t, outcome.Approved)
	require.Len(t, outcome.Iterations, 2)
	assert.Equal(t, "print('v2')", outcome.Candidate().Code)

	// The second engineer prompt must carry the auditor's findings
	var engineerPrompts []string
	for _, call := range gw.Calls() {
		if call.Metadata["agent"] == "engineer" {
			engineerPrompts = append(engineerPrompts, call.Prompt)
		}
	}
	require.Len(t, engineerPrompts, 2)
	assert.NotContains(t, engineerPrompts[0], "no error handling")
	assert.Contains(t, engineerPrompts[1], "no error handling")
}

func TestReviewLoop_ExhaustionIsNormalOutcome(t *testing.T) {
	gw := modelgw.NewMockGateway()
	for i := 1; i <= 3; i++ {
		gw.Script("engineer", `{"filename": "summarizer.py", "code": "print('try')"}`)
		gw.Script("auditor", `{"decision": "REJECT", "feedback": "still wrong"}`)
	}

	loop, reviews, rn := loopFixture(t, gw, 3)

	outcome, err := loop.Run(context.Background(), rn, "ctx", loopAgentDef())
	require.NoError(t, err, "exhaustion is an outcome, not an error")

	assert.False(t, outcome.Approved)
	assert.True(t, outcome.Exhausted)
	assert.Len(t, outcome.Iterations, 3)
	assert.Contains(t, outcome.Summary(), "not approved")

	// Every iteration is persisted even though none was approved
	count, err := reviews.CountByRun(context.Background(), rn.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestReviewLoop_StageFailurePropagates(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("engineer", "not json")
	gw.Script("engineer", "still not json")

	loop, _, rn := loopFixture(t, gw, 3)

	_, err := loop.Run(context.Background(), rn, "ctx", loopAgentDef())
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureInvalidOutput, failure.Kind)
}
