package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelgw "github.com/agentfoundry/agentfactory/internal/adapter/gateway/model"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// traceRecorder captures trace records in memory for assertions
type traceRecorder struct {
	mu      sync.Mutex
	records []output.TraceRecord
}

func (t *traceRecorder) Record(ctx context.Context, rec *output.TraceRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, *rec)
	return nil
}

func (t *traceRecorder) Close() error { return nil }

func (t *traceRecorder) kinds() []output.EventKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds := make([]output.EventKind, len(t.records))
	for i, rec := range t.records {
		kinds[i] = rec.Kind
	}
	return kinds
}

func testOptions() Options {
	return Options{
		Model:          "mock",
		CallTimeout:    time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
		MaxAPICalls:    50,
	}
}

func testRun(t *testing.T) *run.Run {
	t.Helper()
	rn, err := run.NewRun("build a summarizer", run.ModeAutonomous)
	require.NoError(t, err)
	require.NoError(t, rn.Start())
	return rn
}

func mustProfiles(t *testing.T) Profiles {
	t.Helper()
	profiles, err := LoadProfiles()
	require.NoError(t, err)
	return profiles
}

func TestLoadProfiles(t *testing.T) {
	profiles := mustProfiles(t)

	for _, role := range []Role{RoleArchitect, RoleEngineer, RoleAuditor, RoleQALead} {
		p := profiles.Get(role)
		assert.NotEmpty(t, p.Name, "role %s", role)
		assert.NotEmpty(t, p.System, "role %s", role)
	}
}

func TestBase_RetriesTransientErrors(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.ScriptError("architect", &output.GatewayError{Kind: output.ErrorKindServerError, Err: errors.New("503")})
	gw.ScriptError("architect", &output.GatewayError{Kind: output.ErrorKindRateLimited, Err: errors.New("429")})
	gw.Script("architect", `{"ok": true}`)

	trace := &traceRecorder{}
	base := NewBase(RoleArchitect, mustProfiles(t), gw, trace, testOptions())
	rn := testRun(t)

	out, err := base.generate(context.Background(), rn, "design something")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
	assert.Len(t, gw.Calls(), 3)
	assert.Equal(t, 1, rn.APICalls, "a retried call consumes one budget slot")
}

func TestBase_TransientRetriesExhausted(t *testing.T) {
	gw := modelgw.NewMockGateway()
	for i := 0; i < 3; i++ {
		gw.ScriptError("architect", &output.GatewayError{Kind: output.ErrorKindServerError, Err: errors.New("503")})
	}

	base := NewBase(RoleArchitect, mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	_, err := base.generate(context.Background(), rn, "design something")
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureTransientExternal, failure.Kind)
}

func TestBase_NonTransientFailsImmediately(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.ScriptError("architect", &output.GatewayError{Kind: output.ErrorKindInvalidRequest, Err: errors.New("400")})

	base := NewBase(RoleArchitect, mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	_, err := base.generate(context.Background(), rn, "design something")
	require.Error(t, err)
	assert.Len(t, gw.Calls(), 1, "invalid-request is not retried")
}

func TestBase_QuotaExceeded(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("architect", `{}`)

	opts := testOptions()
	opts.MaxAPICalls = 1

	base := NewBase(RoleArchitect, mustProfiles(t), gw, &traceRecorder{}, opts)
	rn := testRun(t)

	_, err := base.generate(context.Background(), rn, "first")
	require.NoError(t, err)

	_, err = base.generate(context.Background(), rn, "second")
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureQuotaExceeded, failure.Kind)
	assert.Len(t, gw.Calls(), 1, "the budgeted call never reaches the gateway")
}

func TestArchitect_Design(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("architect", `{
		"end_to_end_context": "single worker",
		"agents": [{"agent_name": "worker", "role": "doer", "goal": "do it", "instructions": "Do the work."}]
	}`)

	trace := &traceRecorder{}
	architect := NewArchitect(mustProfiles(t), gw, trace, testOptions())
	rn := testRun(t)

	bp, err := architect.Design(context.Background(), rn, "")
	require.NoError(t, err)
	require.Len(t, bp.Agents, 1)
	assert.Equal(t, "worker", bp.Agents[0].Name)
	assert.Contains(t, trace.kinds(), output.EventModelCall)
}

func TestArchitect_CorrectiveRetryOnInvalidOutput(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("architect", "this is not json")
	gw.Script("architect", `{
		"end_to_end_context": "single worker",
		"agents": [{"agent_name": "worker", "role": "doer", "goal": "do it", "instructions": "Do the work."}]
	}`)

	architect := NewArchitect(mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	bp, err := architect.Design(context.Background(), rn, "")
	require.NoError(t, err)
	assert.Len(t, bp.Agents, 1)

	calls := gw.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, "previous reply was rejected")
}

func TestArchitect_InvalidAfterCorrectiveRetry(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("architect", "garbage")
	gw.Script("architect", "still garbage")

	architect := NewArchitect(mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	_, err := architect.Design(context.Background(), rn, "")
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureInvalidOutput, failure.Kind)
}

func TestArchitect_FeedbackReachesPrompt(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("architect", `{
		"end_to_end_context": "revised",
		"agents": [{"agent_name": "worker", "role": "doer", "goal": "do it", "instructions": "Do the work."}]
	}`)

	architect := NewArchitect(mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	_, err := architect.Design(context.Background(), rn, "too many agents, use one")
	require.NoError(t, err)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "too many agents, use one")
}

func TestImplementation_Validate(t *testing.T) {
	impl := Implementation{Filename: "worker.py", Code: "print('ok')"}
	assert.NoError(t, impl.Validate())

	assert.Error(t, (&Implementation{Code: "x"}).Validate())
	assert.Error(t, (&Implementation{Filename: "w.py"}).Validate())
	assert.Error(t, (&Implementation{Filename: "../evil.py", Code: "x"}).Validate())
}

func TestAuditor_RejectRequiresFeedback(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("auditor", `{"decision": "REJECT", "feedback": ""}`)
	gw.Script("auditor", `{"decision": "REJECT", "feedback": "handle the empty input case"}`)

	auditor := NewAuditor(mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	verdict, err := auditor.Review(context.Background(), rn, testAgentDef(), &Implementation{Filename: "w.py", Code: "pass"})
	require.NoError(t, err)
	assert.False(t, verdict.Approved())
	assert.Equal(t, "handle the empty input case", verdict.Feedback)
	assert.Len(t, gw.Calls(), 2, "empty feedback on REJECT triggers the corrective retry")
}

func testAgentDef() blueprint.AgentDef {
	return blueprint.AgentDef{
		Name:         "worker",
		Role:         "doer",
		Goal:         "do the work",
		Instructions: "Do the work carefully.",
	}
}

func TestEngineer_Implement(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("engineer", `{"filename": "worker.py", "code": "print('ok')"}`)

	engineer := NewEngineer(mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	impl, err := engineer.Implement(context.Background(), rn, "single worker", testAgentDef(), "")
	require.NoError(t, err)
	assert.Equal(t, "worker.py", impl.Filename)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Do the work carefully.")
}

func TestEngineer_FeedbackReachesPrompt(t *testing.T) {
	gw := modelgw.NewMockGateway()
	gw.Script("engineer", `{"filename": "worker.py", "code": "print('fixed')"}`)

	engineer := NewEngineer(mustProfiles(t), gw, &traceRecorder{}, testOptions())
	rn := testRun(t)

	_, err := engineer.Implement(context.Background(), rn, "ctx", testAgentDef(), "crashes on empty input")
	require.NoError(t, err)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "crashes on empty input")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
