package run

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Run represents one end-to-end pipeline execution for a single goal.
// All state needed to resume a paused run is held here and persisted by
// the RunRepository; nothing resumable lives only in memory.
type Run struct {
	ID                  string
	Goal                string
	Slug                string
	Mode                Mode
	Stage               Stage
	Status              Status
	RearchitectAttempts int // Number of human rejections fed back to the Architect
	APICalls            int // External model/tool calls consumed so far
	AbortRequested      bool
	Failure             *Failure
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

// NewRun creates a new Run in PENDING status at the Architect stage
func NewRun(goal string, mode Mode) (*Run, error) {
	if goal == "" {
		return nil, fmt.Errorf("goal must not be empty")
	}
	slug, err := Slugify(goal)
	if err != nil {
		return nil, fmt.Errorf("derive slug: %w", err)
	}

	now := time.Now()
	return &Run{
		ID:        ulid.Make().String(),
		Goal:      goal,
		Slug:      slug,
		Mode:      mode,
		Stage:     StageArchitect,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start transitions the run from PENDING to RUNNING
func (r *Run) Start() error {
	return r.transition(StatusRunning)
}

// Pause suspends the run awaiting blueprint approval. Only legal at the
// Architect stage; this is the single pause point in the pipeline.
func (r *Run) Pause() error {
	if r.Stage != StageArchitect {
		return fmt.Errorf("can only pause at architect stage, current: %s", r.Stage)
	}
	return r.transition(StatusPaused)
}

// Resume moves a paused run back to RUNNING without changing stage
func (r *Run) Resume() error {
	if r.Status != StatusPaused {
		return fmt.Errorf("can only resume a paused run, current status: %s", r.Status)
	}
	return r.transition(StatusRunning)
}

// AdvanceStage moves the run to the next pipeline stage in order
func (r *Run) AdvanceStage() error {
	next := r.Stage.Next()
	if !r.Stage.CanTransitionTo(next) {
		return fmt.Errorf("invalid stage transition from %s to %s", r.Stage, next)
	}
	r.Stage = next
	r.UpdatedAt = time.Now()
	return nil
}

// ReturnToArchitect sends the run back to the Architect stage after a
// human rejection, counting the attempt against the configured bound
func (r *Run) ReturnToArchitect() error {
	if r.Stage != StageArchitect && !r.Stage.CanTransitionTo(StageArchitect) {
		return fmt.Errorf("invalid stage transition from %s to %s", r.Stage, StageArchitect)
	}
	r.Stage = StageArchitect
	r.RearchitectAttempts++
	r.UpdatedAt = time.Now()
	return nil
}

// Succeed marks the run as successfully completed
func (r *Run) Succeed() error {
	if err := r.transition(StatusSucceeded); err != nil {
		return err
	}
	r.Stage = StageDone
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

// Fail marks the run as failed with the given kind and reason
func (r *Run) Fail(kind FailureKind, reason string) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}
	r.Failure = &Failure{Kind: kind, Reason: reason, Stage: r.Stage}
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

// RequestAbort flags the run for abort; the orchestrator honors it at
// the next stage boundary, never mid-call
func (r *Run) RequestAbort() error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("run %s already terminal: %s", r.ID, r.Status)
	}
	r.AbortRequested = true
	r.UpdatedAt = time.Now()
	return nil
}

// Abort transitions the run to ABORTED
func (r *Run) Abort() error {
	if err := r.transition(StatusAborted); err != nil {
		return err
	}
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

// ConsumeAPICall counts one external call against the run's budget.
// Returns false once the configured ceiling would be exceeded; a limit
// of zero or less means unlimited.
func (r *Run) ConsumeAPICall(limit int) bool {
	if limit > 0 && r.APICalls >= limit {
		return false
	}
	r.APICalls++
	r.UpdatedAt = time.Now()
	return true
}

// IsCompleted returns true if the run reached any terminal status
func (r *Run) IsCompleted() bool {
	return r.Status.IsTerminal()
}

func (r *Run) transition(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid status transition from %s to %s", r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = time.Now()
	return nil
}
