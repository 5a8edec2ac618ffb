package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelgw "github.com/agentfoundry/agentfactory/internal/adapter/gateway/model"
	sandboxgw "github.com/agentfoundry/agentfactory/internal/adapter/gateway/sandbox"
	storagegw "github.com/agentfoundry/agentfactory/internal/adapter/gateway/storage"
	"github.com/agentfoundry/agentfactory/internal/app/config"
	"github.com/agentfoundry/agentfactory/internal/application/agent"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/domain/repository"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/persistence/sqlite"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/trace"
)

// stubRenderer keeps orchestrator tests hermetic: DOT is fixed, PNG
// behaves as if graphviz were absent
type stubRenderer struct{}

func (stubRenderer) RenderDOT(bp *blueprint.Blueprint) []byte { return []byte("digraph workflow {}\n") }
func (stubRenderer) RenderPNG(ctx context.Context, dotPath string) ([]byte, error) {
	return nil, errors.New("graphviz not installed")
}

type harness struct {
	orch       *Orchestrator
	gw         *modelgw.MockGateway
	sandbox    *sandboxgw.MockSandbox
	runs       repository.RunRepository
	reviews    repository.ReviewRepository
	workspaces string

	cfg      config.Config
	db       *sql.DB
	store    *storagegw.LocalStorageGateway
	profiles agent.Profiles
}

func newHarness(t *testing.T, override func(*config.Params)) *harness {
	t.Helper()

	home := t.TempDir()
	params := config.Params{
		Home:                   home,
		ModelBackend:           "mock",
		ModelName:              "mock",
		MaxAPICalls:            100,
		RetryAttempts:          2,
		RetryBaseDelay:         time.Millisecond,
		CallTimeout:            time.Second,
		MaxReviewIterations:    3,
		MaxRearchitectAttempts: 5,
		SandboxTimeout:         time.Second,
	}
	if override != nil {
		override(&params)
	}
	cfg := config.NewAppConfig(params)

	db, err := sql.Open("sqlite3", filepath.Join(home, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.NewMigrator(db).Migrate())

	store, err := storagegw.NewLocalStorageGateway(afero.NewOsFs(), cfg.WorkspacesDir())
	require.NoError(t, err)

	profiles, err := agent.LoadProfiles()
	require.NoError(t, err)

	gw := modelgw.NewMockGateway()
	sb := sandboxgw.NewMockSandbox()
	runs := sqlite.NewRunRepository(db)
	reviews := sqlite.NewReviewRepository(db)

	orch := NewOrchestrator(
		cfg, runs, reviews, gw, sb, store,
		trace.NewFactory(cfg.WorkspacesDir(), nil),
		profiles, stubRenderer{},
	)

	return &harness{
		orch:       orch,
		gw:         gw,
		sandbox:    sb,
		runs:       runs,
		reviews:    reviews,
		workspaces: cfg.WorkspacesDir(),
		cfg:        cfg,
		db:         db,
		store:      store,
		profiles:   profiles,
	}
}

// freshOrchestrator wires a second orchestrator over the same database
// and workspace, as a new process would after a restart
func (h *harness) freshOrchestrator() *Orchestrator {
	return NewOrchestrator(
		h.cfg,
		sqlite.NewRunRepository(h.db), sqlite.NewReviewRepository(h.db),
		h.gw, h.sandbox, h.store,
		trace.NewFactory(h.cfg.WorkspacesDir(), nil),
		h.profiles, stubRenderer{},
	)
}

const workerBlueprint = `{
	"end_to_end_context": "a single worker does everything",
	"agents": [{
		"agent_name": "worker",
		"role": "doer",
		"suggested_model": "mock",
		"goal": "do the work",
		"instructions": "Do the work."
	}]
}`

func (h *harness) scriptHappyBuild() {
	h.gw.Script("engineer", `{"filename": "worker.py", "code": "print('ok')"}`)
	h.gw.Script("auditor", `{"decision": "APPROVE", "feedback": ""}`)
	h.gw.Script("qa_lead", `{"passed": true, "diagnostics": "all agents ran cleanly"}`)
}

func TestOrchestrator_AutonomousSuccess(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)
	h.scriptHappyBuild()

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeAutonomous, false)
	require.NoError(t, err)
	assert.Equal(t, run.StatusSucceeded, rn.Status)
	assert.Equal(t, run.StageDone, rn.Stage)

	// Full artifact bundle in the workspace
	dir := filepath.Join(h.workspaces, rn.Slug)
	for _, name := range []string{"blueprint.json", "workflow.dot", "worker.py", "validation_report.json", "debug.log"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, "missing artifact %s", name)
	}

	// State survives in the repository
	persisted, bp, err := h.runs.Find(context.Background(), rn.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusSucceeded, persisted.Status)
	require.NotNil(t, bp)
	assert.Equal(t, "worker", bp.Agents[0].Name)
}

func TestOrchestrator_InteractivePauseAndApprove(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	require.NoError(t, err)
	assert.Equal(t, run.StatusPaused, rn.Status)
	assert.Equal(t, run.StageArchitect, rn.Stage)

	// The paused state is durable: reload from the repository by slug
	persisted, bp, err := h.runs.FindBySlug(context.Background(), rn.Slug)
	require.NoError(t, err)
	assert.Equal(t, run.StatusPaused, persisted.Status)
	require.NotNil(t, bp)

	h.scriptHappyBuild()
	resumed, err := h.orch.Approve(context.Background(), rn.Slug)
	require.NoError(t, err)
	assert.Equal(t, run.StatusSucceeded, resumed.Status)
}

func TestOrchestrator_ApproveAfterRestart(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	require.NoError(t, err)
	require.Equal(t, run.StatusPaused, rn.Status)

	// A new process resumes the paused run from durable state alone
	h.scriptHappyBuild()
	resumed, err := h.freshOrchestrator().Approve(context.Background(), rn.Slug)
	require.NoError(t, err)
	assert.Equal(t, run.StatusSucceeded, resumed.Status)
	assert.Equal(t, run.StageDone, resumed.Stage)

	persisted, _, err := h.runs.Find(context.Background(), rn.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusSucceeded, persisted.Status)
}

func TestOrchestrator_ApproveRequiresPaused(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)
	h.scriptHappyBuild()

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeAutonomous, false)
	require.NoError(t, err)

	_, err = h.orch.Approve(context.Background(), rn.ID)
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestOrchestrator_RejectLoopsBackToArchitect(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	require.NoError(t, err)
	require.Equal(t, run.StatusPaused, rn.Status)

	// The Architect redesigns and the run pauses again
	h.gw.Script("architect", workerBlueprint)
	rejected, err := h.orch.Reject(context.Background(), rn.Slug, "use fewer agents")
	require.NoError(t, err)
	assert.Equal(t, run.StatusPaused, rejected.Status)
	assert.Equal(t, 1, rejected.RearchitectAttempts)

	// The redesign prompt carries the human's reason
	var architectPrompts []string
	for _, call := range h.gw.Calls() {
		if call.Metadata["agent"] == "architect" {
			architectPrompts = append(architectPrompts, call.Prompt)
		}
	}
	require.Len(t, architectPrompts, 2)
	assert.Contains(t, architectPrompts[1], "use fewer agents")
}

func TestOrchestrator_RejectBudgetExhausted(t *testing.T) {
	h := newHarness(t, func(p *config.Params) { p.MaxRearchitectAttempts = 1 })
	h.gw.Script("architect", workerBlueprint)

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	require.NoError(t, err)

	// A budget of one grants exactly one full re-architecture pass
	h.gw.Script("architect", workerBlueprint)
	redesigned, err := h.orch.Reject(context.Background(), rn.Slug, "wrong approach")
	require.NoError(t, err)
	assert.Equal(t, run.StatusPaused, redesigned.Status)
	assert.Equal(t, 1, redesigned.RearchitectAttempts)

	rejected, err := h.orch.Reject(context.Background(), rn.Slug, "still wrong")
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureRearchitectExhausted, failure.Kind)
	assert.Equal(t, run.StatusFailed, rejected.Status)
}

func TestOrchestrator_ReviewExhaustionFailsRun(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)
	for i := 0; i < 3; i++ {
		h.gw.Script("engineer", `{"filename": "worker.py", "code": "print('try')"}`)
		h.gw.Script("auditor", `{"decision": "REJECT", "feedback": "not good enough"}`)
	}

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeAutonomous, false)
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureReviewExhausted, failure.Kind)
	assert.Contains(t, failure.Reason, "not approved")
	assert.Equal(t, run.StatusFailed, rn.Status)

	// All three iterations were recorded
	count, err := h.reviews.CountByRun(context.Background(), rn.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOrchestrator_QuotaExceededFailsRun(t *testing.T) {
	h := newHarness(t, func(p *config.Params) { p.MaxAPICalls = 1 })
	h.gw.Script("architect", workerBlueprint)

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeAutonomous, false)
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureQuotaExceeded, failure.Kind)
	assert.Equal(t, run.StatusFailed, rn.Status)
}

func TestOrchestrator_ValidationFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)
	h.gw.Script("engineer", `{"filename": "worker.py", "code": "raise SystemExit(1)"}`)
	h.gw.Script("auditor", `{"decision": "APPROVE", "feedback": ""}`)
	h.gw.Script("qa_lead", `{"passed": false, "diagnostics": "worker exited non-zero"}`)
	h.sandbox.ScriptResult(&output.SandboxResult{ExitStatus: 1, ErrorText: "exit status 1"})

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeAutonomous, false)
	var failure *run.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, run.FailureValidationFailed, failure.Kind)
	assert.Equal(t, run.StatusFailed, rn.Status)

	// The report artifact is still written for inspection
	_, statErr := os.Stat(filepath.Join(h.workspaces, rn.Slug, "validation_report.json"))
	assert.NoError(t, statErr)
}

func TestOrchestrator_AbortPausedRun(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	require.NoError(t, err)

	aborted, err := h.orch.Abort(context.Background(), rn.Slug)
	require.NoError(t, err)
	assert.Equal(t, run.StatusAborted, aborted.Status)

	persisted, _, err := h.runs.Find(context.Background(), rn.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusAborted, persisted.Status)

	_, err = h.orch.Abort(context.Background(), rn.Slug)
	assert.Error(t, err, "terminal runs cannot be aborted again")
}

func TestOrchestrator_SlugConflict(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)

	first, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	require.NoError(t, err)

	_, err = h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, false)
	assert.ErrorIs(t, err, ErrSlugConflict)

	// With force the slug gets a numbered suffix
	h.gw.Script("architect", workerBlueprint)
	second, err := h.orch.Start(context.Background(), "build a worker", run.ModeInteractive, true)
	require.NoError(t, err)
	assert.Equal(t, first.Slug+"_2", second.Slug)
}

func TestOrchestrator_GetStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)
	h.scriptHappyBuild()

	rn, err := h.orch.Start(context.Background(), "build a worker", run.ModeAutonomous, false)
	require.NoError(t, err)

	report, err := h.orch.GetStatus(context.Background(), rn.Slug)
	require.NoError(t, err)
	assert.Equal(t, rn.ID, report.Run.ID)
	require.NotNil(t, report.Blueprint)
	assert.Equal(t, 1, report.Iterations)
	assert.NotEmpty(t, report.Artifacts)

	_, err = h.orch.GetStatus(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestOrchestrator_List(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.Script("architect", workerBlueprint)
	h.gw.Script("architect", workerBlueprint)

	_, err := h.orch.Start(context.Background(), "first goal", run.ModeInteractive, false)
	require.NoError(t, err)
	_, err = h.orch.Start(context.Background(), "second goal", run.ModeInteractive, false)
	require.NoError(t, err)

	runs, err := h.orch.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
