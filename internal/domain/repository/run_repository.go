package repository

import (
	"context"
	"errors"

	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/review"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// ErrRunNotFound is returned when no run exists for the given ID
var ErrRunNotFound = errors.New("run not found")

// RunRepository persists run state. A paused run must survive a process
// restart: everything needed to resume lives here, not in memory.
type RunRepository interface {
	// Save upserts the run and its current blueprint; a nil blueprint
	// leaves any previously stored one unchanged
	Save(ctx context.Context, r *run.Run, bp *blueprint.Blueprint) error

	// Find loads a run by ID; ErrRunNotFound if absent
	Find(ctx context.Context, id string) (*run.Run, *blueprint.Blueprint, error)

	// FindBySlug loads a run by its workspace slug; ErrRunNotFound if absent
	FindBySlug(ctx context.Context, slug string) (*run.Run, *blueprint.Blueprint, error)

	// List returns all runs ordered by creation time descending
	List(ctx context.Context) ([]*run.Run, error)
}

// ReviewRepository persists review iterations in insertion order.
// Every iteration is recorded, even though only the latest candidate is
// carried forward by the loop.
type ReviewRepository interface {
	// Append stores one iteration for a run
	Append(ctx context.Context, runID string, it review.Iteration) error

	// ListByRun returns all iterations for a run ordered by agent and
	// sequence number ascending
	ListByRun(ctx context.Context, runID string) ([]review.Iteration, error)

	// CountByRun returns the number of recorded iterations for a run
	CountByRun(ctx context.Context, runID string) (int, error)
}
