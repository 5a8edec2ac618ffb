package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/domain/repository"
)

// RunRepositoryImpl implements repository.RunRepository with SQLite
type RunRepositoryImpl struct {
	db *sql.DB
}

// NewRunRepository creates a new SQLite-based run repository
func NewRunRepository(db *sql.DB) repository.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Save upserts the run and its current blueprint
func (r *RunRepositoryImpl) Save(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint) error {
	var bpJSON sql.NullString
	if bp != nil {
		data, err := json.Marshal(bp)
		if err != nil {
			return fmt.Errorf("marshal blueprint: %w", err)
		}
		bpJSON = sql.NullString{String: string(data), Valid: true}
	}

	var failureKind, failureReason, failureStage sql.NullString
	if rn.Failure != nil {
		failureKind = sql.NullString{String: rn.Failure.Kind.String(), Valid: true}
		failureReason = sql.NullString{String: rn.Failure.Reason, Valid: true}
		failureStage = sql.NullString{String: rn.Failure.Stage.String(), Valid: true}
	}

	var completedAt sql.NullString
	if rn.CompletedAt != nil {
		completedAt = sql.NullString{String: rn.CompletedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	query := `
		INSERT INTO runs (
			id, goal, slug, mode, stage, status,
			rearchitect_attempts, api_calls, abort_requested,
			failure_kind, failure_reason, failure_stage,
			blueprint, created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage = excluded.stage,
			status = excluded.status,
			rearchitect_attempts = excluded.rearchitect_attempts,
			api_calls = excluded.api_calls,
			abort_requested = excluded.abort_requested,
			failure_kind = excluded.failure_kind,
			failure_reason = excluded.failure_reason,
			failure_stage = excluded.failure_stage,
			blueprint = COALESCE(excluded.blueprint, runs.blueprint),
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rn.ID,
		rn.Goal,
		rn.Slug,
		rn.Mode.String(),
		rn.Stage.String(),
		rn.Status.String(),
		rn.RearchitectAttempts,
		rn.APICalls,
		boolToInt(rn.AbortRequested),
		failureKind,
		failureReason,
		failureStage,
		bpJSON,
		rn.CreatedAt.UTC().Format(time.RFC3339Nano),
		rn.UpdatedAt.UTC().Format(time.RFC3339Nano),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	return nil
}

// Find loads a run by ID
func (r *RunRepositoryImpl) Find(ctx context.Context, id string) (*run.Run, *blueprint.Blueprint, error) {
	return r.findWhere(ctx, "id = ?", id)
}

// FindBySlug loads a run by its workspace slug
func (r *RunRepositoryImpl) FindBySlug(ctx context.Context, slug string) (*run.Run, *blueprint.Blueprint, error) {
	return r.findWhere(ctx, "slug = ?", slug)
}

func (r *RunRepositoryImpl) findWhere(ctx context.Context, where string, arg interface{}) (*run.Run, *blueprint.Blueprint, error) {
	query := `
		SELECT id, goal, slug, mode, stage, status,
			rearchitect_attempts, api_calls, abort_requested,
			failure_kind, failure_reason, failure_stage,
			blueprint, created_at, updated_at, completed_at
		FROM runs
		WHERE ` + where

	row := r.db.QueryRowContext(ctx, query, arg)

	rn, bp, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find run: %w", err)
	}
	return rn, bp, nil
}

// List returns all runs ordered by creation time descending
func (r *RunRepositoryImpl) List(ctx context.Context) ([]*run.Run, error) {
	query := `
		SELECT id, goal, slug, mode, stage, status,
			rearchitect_attempts, api_calls, abort_requested,
			failure_kind, failure_reason, failure_stage,
			blueprint, created_at, updated_at, completed_at
		FROM runs
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*run.Run
	for rows.Next() {
		rn, _, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*run.Run, *blueprint.Blueprint, error) {
	var (
		rn                                       run.Run
		mode, stage, status                      string
		abortRequested                           int
		failureKind, failureReason, failureStage sql.NullString
		bpJSON, completedAt                      sql.NullString
		createdAt, updatedAt                     string
	)

	err := row.Scan(
		&rn.ID, &rn.Goal, &rn.Slug, &mode, &stage, &status,
		&rn.RearchitectAttempts, &rn.APICalls, &abortRequested,
		&failureKind, &failureReason, &failureStage,
		&bpJSON, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	rn.Mode = run.Mode(mode)
	rn.Stage = run.Stage(stage)
	rn.Status = run.Status(status)
	rn.AbortRequested = abortRequested != 0

	if failureKind.Valid {
		rn.Failure = &run.Failure{
			Kind:   run.FailureKind(failureKind.String),
			Reason: failureReason.String,
			Stage:  run.Stage(failureStage.String),
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rn.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rn.UpdatedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			rn.CompletedAt = &t
		}
	}

	var bp *blueprint.Blueprint
	if bpJSON.Valid && bpJSON.String != "" {
		bp = &blueprint.Blueprint{}
		if err := json.Unmarshal([]byte(bpJSON.String), bp); err != nil {
			return nil, nil, fmt.Errorf("decode stored blueprint: %w", err)
		}
	}

	return &rn, bp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
