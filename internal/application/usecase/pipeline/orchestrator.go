// Package pipeline implements the run orchestrator: one goal in, one
// validated agent workflow out, with a single human approval gate in
// interactive mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/app/config"
	"github.com/agentfoundry/agentfactory/internal/application/agent"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/domain/repository"
)

var (
	// ErrSlugConflict is returned when a workspace already exists for the
	// goal's slug and --force was not given
	ErrSlugConflict = errors.New("workspace slug already in use")

	// ErrNotPaused is returned when approve/reject targets a run that is
	// not awaiting blueprint approval
	ErrNotPaused = errors.New("run is not awaiting approval")
)

// FlowchartRenderer renders the blueprint's dependency graph. PNG
// rendering is best-effort; DOT never fails.
type FlowchartRenderer interface {
	RenderDOT(bp *blueprint.Blueprint) []byte
	RenderPNG(ctx context.Context, dotPath string) ([]byte, error)
}

// Orchestrator drives runs through Architect, Review Loop, and QA Lead.
// Abort requests are honored at stage boundaries, never mid-call; all
// resumable state lives in the run repository.
type Orchestrator struct {
	cfg      config.Config
	runs     repository.RunRepository
	reviews  repository.ReviewRepository
	gw       output.ModelGateway
	sandbox  output.SandboxGateway
	storage  output.StorageGateway
	traces   output.TraceWriterFactory
	profiles agent.Profiles
	renderer FlowchartRenderer
}

// NewOrchestrator wires the pipeline's use case layer
func NewOrchestrator(
	cfg config.Config,
	runs repository.RunRepository,
	reviews repository.ReviewRepository,
	gw output.ModelGateway,
	sandbox output.SandboxGateway,
	storage output.StorageGateway,
	traces output.TraceWriterFactory,
	profiles agent.Profiles,
	renderer FlowchartRenderer,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		runs:     runs,
		reviews:  reviews,
		gw:       gw,
		sandbox:  sandbox,
		storage:  storage,
		traces:   traces,
		profiles: profiles,
		renderer: renderer,
	}
}

// StatusReport is the read model served by GetStatus
type StatusReport struct {
	Run        *run.Run
	Blueprint  *blueprint.Blueprint
	Iterations int
	Artifacts  []*output.ArtifactMetadata
}

// Start creates a run for the goal and drives it until it completes,
// pauses for approval, or fails. With force, a slug collision is
// resolved by suffixing instead of rejected.
func (o *Orchestrator) Start(ctx context.Context, goal string, mode run.Mode, force bool) (*run.Run, error) {
	rn, err := run.NewRun(goal, mode)
	if err != nil {
		return nil, err
	}

	slug, err := o.resolveSlug(ctx, rn.Slug, force)
	if err != nil {
		return nil, err
	}
	rn.Slug = slug

	if err := rn.Start(); err != nil {
		return nil, err
	}
	if err := o.runs.Save(ctx, rn, nil); err != nil {
		return nil, fmt.Errorf("persist new run: %w", err)
	}

	trace := o.traces.ForRun(rn.Slug)
	defer trace.Close()

	o.record(ctx, trace, rn, output.EventRunCreated, fmt.Sprintf("run created for goal: %s", truncateGoal(goal)), nil)

	if err := o.advance(ctx, rn, nil, "", trace); err != nil {
		return rn, err
	}
	return rn, nil
}

// Approve resumes a paused run with the current blueprint accepted.
// ref is a run ID or workspace slug.
func (o *Orchestrator) Approve(ctx context.Context, ref string) (*run.Run, error) {
	rn, bp, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !rn.Status.IsPaused() {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNotPaused, rn.ID, rn.Status)
	}

	trace := o.traces.ForRun(rn.Slug)
	defer trace.Close()

	o.record(ctx, trace, rn, output.EventApproval, "blueprint approved", nil)

	if err := rn.Resume(); err != nil {
		return nil, err
	}
	if err := o.transitionStage(ctx, rn, run.StageReviewLoop, trace); err != nil {
		return nil, err
	}
	if err := o.runs.Save(ctx, rn, bp); err != nil {
		return nil, fmt.Errorf("persist approved run: %w", err)
	}

	if err := o.advance(ctx, rn, bp, "", trace); err != nil {
		return rn, err
	}
	return rn, nil
}

// Reject sends a paused run back to the Architect with the human's
// reason as feedback. The re-architecture budget bounds how many times
// this can happen; spending it fails the run.
func (o *Orchestrator) Reject(ctx context.Context, ref, reason string) (*run.Run, error) {
	rn, _, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !rn.Status.IsPaused() {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNotPaused, rn.ID, rn.Status)
	}

	trace := o.traces.ForRun(rn.Slug)
	defer trace.Close()

	o.record(ctx, trace, rn, output.EventRejection, "blueprint rejected", map[string]interface{}{"reason": reason})

	if err := rn.Resume(); err != nil {
		return nil, err
	}

	if rn.RearchitectAttempts >= o.cfg.MaxRearchitectAttempts() {
		return rn, o.fail(ctx, rn, run.FailureRearchitectExhausted,
			fmt.Sprintf("re-architecture budget of %d spent without an approved blueprint", o.cfg.MaxRearchitectAttempts()), trace)
	}

	if err := rn.ReturnToArchitect(); err != nil {
		return nil, err
	}
	if err := o.runs.Save(ctx, rn, nil); err != nil {
		return nil, fmt.Errorf("persist rejected run: %w", err)
	}

	if err := o.advance(ctx, rn, nil, reason, trace); err != nil {
		return rn, err
	}
	return rn, nil
}

// Abort requests termination of a run. A paused run aborts immediately;
// a running run is flagged and stops at its next stage boundary.
func (o *Orchestrator) Abort(ctx context.Context, ref string) (*run.Run, error) {
	rn, bp, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if rn.Status.IsTerminal() {
		return nil, fmt.Errorf("run %s already terminal: %s", rn.ID, rn.Status)
	}

	if err := rn.RequestAbort(); err != nil {
		return nil, err
	}

	// A paused run has no driver to observe the flag; finish it here
	if rn.Status.IsPaused() {
		trace := o.traces.ForRun(rn.Slug)
		defer trace.Close()

		if err := rn.Abort(); err != nil {
			return nil, err
		}
		o.record(ctx, trace, rn, output.EventRunTerminal, "run aborted while awaiting approval", nil)
	}

	if err := o.runs.Save(ctx, rn, bp); err != nil {
		return nil, fmt.Errorf("persist abort: %w", err)
	}
	return rn, nil
}

// GetStatus reports a run's state, blueprint, and artifact bundle
func (o *Orchestrator) GetStatus(ctx context.Context, ref string) (*StatusReport, error) {
	rn, bp, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	iterations, err := o.reviews.CountByRun(ctx, rn.ID)
	if err != nil {
		return nil, err
	}

	artifacts, err := o.storage.ListArtifacts(ctx, rn.Slug)
	if err != nil {
		app.GetLogger().Warn("list artifacts for %s: %v", rn.Slug, err)
	}

	return &StatusReport{
		Run:        rn,
		Blueprint:  bp,
		Iterations: iterations,
		Artifacts:  artifacts,
	}, nil
}

// List returns all runs, newest first
func (o *Orchestrator) List(ctx context.Context) ([]*run.Run, error) {
	return o.runs.List(ctx)
}

// advance drives the run from its current stage until a terminal
// status or the approval pause. feedback carries the human rejection
// reason into a re-architecture pass.
func (o *Orchestrator) advance(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint, feedback string, trace output.TraceWriter) error {
	for !rn.IsCompleted() {
		aborted, err := o.checkAbort(ctx, rn, trace)
		if err != nil {
			return err
		}
		if aborted {
			return nil
		}

		switch rn.Stage {
		case run.StageArchitect:
			designed, paused, err := o.runArchitect(ctx, rn, feedback, trace)
			if err != nil {
				return err
			}
			if paused {
				return nil
			}
			bp = designed
			feedback = ""

		case run.StageReviewLoop:
			if err := o.runReviewLoop(ctx, rn, bp, trace); err != nil {
				return err
			}

		case run.StageQALead:
			return o.runQALead(ctx, rn, bp, trace)

		default:
			return fmt.Errorf("run %s in unexpected stage %s", rn.ID, rn.Stage)
		}
	}
	return nil
}

// runArchitect produces the blueprint and either pauses for approval
// (interactive) or advances to the review loop (autonomous)
func (o *Orchestrator) runArchitect(ctx context.Context, rn *run.Run, feedback string, trace output.TraceWriter) (*blueprint.Blueprint, bool, error) {
	architect := agent.NewArchitect(o.profiles, o.gw, trace, o.agentOptions())

	bp, err := architect.Design(ctx, rn, feedback)
	if err != nil {
		return nil, false, o.failFromAgentError(ctx, rn, err, trace)
	}

	if err := o.saveBlueprintArtifacts(ctx, rn, bp); err != nil {
		app.GetLogger().Warn("save blueprint artifacts for %s: %v", rn.Slug, err)
	}

	if rn.Mode.IsInteractive() {
		if err := rn.Pause(); err != nil {
			return nil, false, err
		}
		if err := o.runs.Save(ctx, rn, bp); err != nil {
			return nil, false, fmt.Errorf("persist paused run: %w", err)
		}
		o.record(ctx, trace, rn, output.EventApprovalWait, "awaiting blueprint approval", nil)
		return bp, true, nil
	}

	if err := o.transitionStage(ctx, rn, run.StageReviewLoop, trace); err != nil {
		return nil, false, err
	}
	if err := o.runs.Save(ctx, rn, bp); err != nil {
		return nil, false, fmt.Errorf("persist designed run: %w", err)
	}
	return bp, false, nil
}

// runReviewLoop drives the Engineer/Auditor cycle for every agent in
// the blueprint; one exhausted loop fails the whole run
func (o *Orchestrator) runReviewLoop(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint, trace output.TraceWriter) error {
	if bp == nil {
		return fmt.Errorf("run %s reached review loop without a blueprint", rn.ID)
	}

	opts := o.agentOptions()
	engineer := agent.NewEngineer(o.profiles, o.gw, trace, opts)
	auditor := agent.NewAuditor(o.profiles, o.gw, trace, opts)
	loop := NewReviewLoop(engineer, auditor, o.reviews, o.cfg.MaxReviewIterations())

	for _, def := range bp.Agents {
		aborted, err := o.checkAbort(ctx, rn, trace)
		if err != nil {
			return err
		}
		if aborted {
			return nil
		}

		outcome, err := loop.Run(ctx, rn, bp.EndToEndContext, def)
		if err != nil {
			return o.failFromAgentError(ctx, rn, err, trace)
		}

		if !outcome.Approved {
			return o.fail(ctx, rn, run.FailureReviewExhausted,
				fmt.Sprintf("%s: %s", def.Name, outcome.Summary()), trace)
		}

		candidate := outcome.Candidate()
		if _, err := o.storage.SaveArtifact(ctx, output.SaveArtifactRequest{
			Slug:        rn.Slug,
			Name:        candidate.Filename,
			Type:        output.ArtifactTypeCode,
			Content:     []byte(candidate.Code),
			ContentType: "text/x-python",
			Metadata:    map[string]string{"agent": def.Name},
		}); err != nil {
			return fmt.Errorf("save code artifact for %s: %w", def.Name, err)
		}
	}

	if err := o.transitionStage(ctx, rn, run.StageQALead, trace); err != nil {
		return err
	}
	if err := o.runs.Save(ctx, rn, bp); err != nil {
		return fmt.Errorf("persist run after review loop: %w", err)
	}
	return nil
}

// runQALead validates the generated code and settles the run
func (o *Orchestrator) runQALead(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint, trace output.TraceWriter) error {
	if bp == nil {
		return fmt.Errorf("run %s reached QA without a blueprint", rn.ID)
	}

	codePaths, cleanup, err := o.materializeCode(ctx, rn, bp)
	if err != nil {
		return err
	}
	defer cleanup()

	qa := agent.NewQALead(o.profiles, o.gw, o.sandbox, trace, o.agentOptions(), o.cfg.SandboxTimeout())

	report, err := qa.Validate(ctx, rn, bp, codePaths)
	if err != nil {
		return o.failFromAgentError(ctx, rn, err, trace)
	}

	reportJSON, err := report.Marshal()
	if err != nil {
		return fmt.Errorf("encode validation report: %w", err)
	}
	if _, err := o.storage.SaveArtifact(ctx, output.SaveArtifactRequest{
		Slug:        rn.Slug,
		Name:        "validation_report.json",
		Type:        output.ArtifactTypeReport,
		Content:     reportJSON,
		ContentType: "application/json",
	}); err != nil {
		return fmt.Errorf("save validation report: %w", err)
	}

	if !report.Passed {
		return o.fail(ctx, rn, run.FailureValidationFailed, report.Diagnostics, trace)
	}

	if err := rn.Succeed(); err != nil {
		return err
	}
	o.record(ctx, trace, rn, output.EventRunTerminal, "run succeeded", nil)
	if err := o.runs.Save(ctx, rn, bp); err != nil {
		return fmt.Errorf("persist succeeded run: %w", err)
	}
	return nil
}

// materializeCode resolves each agent's code artifact to a local path
// the sandbox can execute, staging through a temp dir when the storage
// backend has no local filesystem
func (o *Orchestrator) materializeCode(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint) (map[string]string, func(), error) {
	iterations, err := o.reviews.ListByRun(ctx, rn.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load review iterations: %w", err)
	}

	// Latest approved candidate per agent
	filenames := make(map[string]string, len(bp.Agents))
	for _, it := range iterations {
		if it.Verdict.Approved() {
			filenames[it.AgentName] = it.Filename
		}
	}

	cleanup := func() {}
	var stagingDir string

	codePaths := make(map[string]string, len(filenames))
	for agentName, filename := range filenames {
		if path := o.storage.ArtifactPath(rn.Slug, filename); path != "" {
			codePaths[agentName] = path
			continue
		}

		if stagingDir == "" {
			stagingDir, err = os.MkdirTemp("", "agentfactory-qa-*")
			if err != nil {
				return nil, nil, fmt.Errorf("create staging directory: %w", err)
			}
			cleanup = func() { os.RemoveAll(stagingDir) }
		}

		content, err := o.storage.LoadArtifact(ctx, rn.Slug, filename)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		staged := filepath.Join(stagingDir, filename)
		if err := os.WriteFile(staged, content, 0o644); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("stage code artifact %s: %w", filename, err)
		}
		codePaths[agentName] = staged
	}

	return codePaths, cleanup, nil
}

// saveBlueprintArtifacts writes blueprint.json plus the flowchart into
// the bundle; these are presentation copies, the blueprint of record
// lives in the run repository
func (o *Orchestrator) saveBlueprintArtifacts(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint) error {
	bpJSON, err := bp.Marshal()
	if err != nil {
		return fmt.Errorf("encode blueprint: %w", err)
	}
	if _, err := o.storage.SaveArtifact(ctx, output.SaveArtifactRequest{
		Slug:        rn.Slug,
		Name:        "blueprint.json",
		Type:        output.ArtifactTypeBlueprint,
		Content:     bpJSON,
		ContentType: "application/json",
	}); err != nil {
		return err
	}

	if o.renderer == nil {
		return nil
	}

	dot := o.renderer.RenderDOT(bp)
	if _, err := o.storage.SaveArtifact(ctx, output.SaveArtifactRequest{
		Slug:        rn.Slug,
		Name:        "workflow.dot",
		Type:        output.ArtifactTypeFlowchart,
		Content:     dot,
		ContentType: "text/vnd.graphviz",
	}); err != nil {
		return err
	}

	// PNG rendering needs graphviz installed; skip quietly when absent
	if dotPath := o.storage.ArtifactPath(rn.Slug, "workflow.dot"); dotPath != "" {
		if png, err := o.renderer.RenderPNG(ctx, dotPath); err == nil {
			if _, err := o.storage.SaveArtifact(ctx, output.SaveArtifactRequest{
				Slug:        rn.Slug,
				Name:        "workflow.png",
				Type:        output.ArtifactTypeFlowchart,
				Content:     png,
				ContentType: "image/png",
			}); err != nil {
				return err
			}
		} else {
			app.GetLogger().Debug("flowchart png render skipped: %v", err)
		}
	}
	return nil
}

// checkAbort reloads the run row and settles the run when another
// process has flagged it for abort
func (o *Orchestrator) checkAbort(ctx context.Context, rn *run.Run, trace output.TraceWriter) (bool, error) {
	fresh, bp, err := o.runs.Find(ctx, rn.ID)
	if err != nil {
		return false, fmt.Errorf("reload run for abort check: %w", err)
	}
	if !fresh.AbortRequested && !rn.AbortRequested {
		return false, nil
	}

	rn.AbortRequested = true
	if err := rn.Abort(); err != nil {
		return false, err
	}
	o.record(ctx, trace, rn, output.EventRunTerminal, "run aborted at stage boundary", nil)
	if err := o.runs.Save(ctx, rn, bp); err != nil {
		return false, fmt.Errorf("persist aborted run: %w", err)
	}
	return true, nil
}

// fail settles the run with a terminal failure
func (o *Orchestrator) fail(ctx context.Context, rn *run.Run, kind run.FailureKind, reason string, trace output.TraceWriter) error {
	if err := rn.Fail(kind, reason); err != nil {
		return err
	}
	o.record(ctx, trace, rn, output.EventRunTerminal,
		fmt.Sprintf("run failed: %s", kind), map[string]interface{}{"reason": reason})
	if err := o.runs.Save(ctx, rn, nil); err != nil {
		return fmt.Errorf("persist failed run: %w", err)
	}
	return rn.Failure
}

// failFromAgentError settles the run from a stage agent failure; any
// non-Failure error is surfaced unchanged
func (o *Orchestrator) failFromAgentError(ctx context.Context, rn *run.Run, err error, trace output.TraceWriter) error {
	var failure *run.Failure
	if errors.As(err, &failure) {
		return o.fail(ctx, rn, failure.Kind, failure.Reason, trace)
	}
	return err
}

func (o *Orchestrator) transitionStage(ctx context.Context, rn *run.Run, next run.Stage, trace output.TraceWriter) error {
	prev := rn.Stage
	if err := rn.AdvanceStage(); err != nil {
		return err
	}
	if rn.Stage != next {
		return fmt.Errorf("expected stage %s after %s, got %s", next, prev, rn.Stage)
	}
	o.record(ctx, trace, rn, output.EventStageTransition,
		fmt.Sprintf("%s -> %s", prev, rn.Stage), nil)
	return nil
}

// resolveSlug settles slug collisions: error without force, numbered
// suffix with force
func (o *Orchestrator) resolveSlug(ctx context.Context, slug string, force bool) (string, error) {
	_, _, err := o.runs.FindBySlug(ctx, slug)
	if errors.Is(err, repository.ErrRunNotFound) {
		return slug, nil
	}
	if err != nil {
		return "", fmt.Errorf("check slug: %w", err)
	}

	if !force {
		return "", fmt.Errorf("%w: %s", ErrSlugConflict, slug)
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", slug, n)
		_, _, err := o.runs.FindBySlug(ctx, candidate)
		if errors.Is(err, repository.ErrRunNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
	}
}

// resolve loads a run by ID first, then by slug
func (o *Orchestrator) resolve(ctx context.Context, ref string) (*run.Run, *blueprint.Blueprint, error) {
	rn, bp, err := o.runs.Find(ctx, ref)
	if err == nil {
		return rn, bp, nil
	}
	if !errors.Is(err, repository.ErrRunNotFound) {
		return nil, nil, err
	}
	return o.runs.FindBySlug(ctx, ref)
}

func (o *Orchestrator) agentOptions() agent.Options {
	return agent.Options{
		Model:          o.cfg.ModelName(),
		CallTimeout:    o.cfg.CallTimeout(),
		RetryAttempts:  o.cfg.RetryAttempts(),
		RetryBaseDelay: o.cfg.RetryBaseDelay(),
		MaxAPICalls:    o.cfg.MaxAPICalls(),
	}
}

func (o *Orchestrator) record(ctx context.Context, trace output.TraceWriter, rn *run.Run, kind output.EventKind, summary string, payload map[string]interface{}) {
	if err := trace.Record(ctx, &output.TraceRecord{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		RunID:   rn.ID,
		Stage:   rn.Stage.String(),
		Kind:    kind,
		Summary: summary,
		Payload: payload,
	}); err != nil {
		app.GetLogger().Warn("trace record failed: %v", err)
	}
}

func truncateGoal(goal string) string {
	if len(goal) <= 120 {
		return goal
	}
	return goal[:120] + "..."
}
