package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentfoundry/agentfactory/internal/domain/model/review"
	"github.com/agentfoundry/agentfactory/internal/domain/repository"
)

// ReviewRepositoryImpl implements repository.ReviewRepository with SQLite
type ReviewRepositoryImpl struct {
	db *sql.DB
}

// NewReviewRepository creates a new SQLite-based review repository
func NewReviewRepository(db *sql.DB) repository.ReviewRepository {
	return &ReviewRepositoryImpl{db: db}
}

// Append stores one review iteration for a run
func (r *ReviewRepositoryImpl) Append(ctx context.Context, runID string, it review.Iteration) error {
	query := `
		INSERT INTO review_iterations (run_id, agent_name, seq, filename, code, decision, feedback, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		runID,
		it.AgentName,
		it.Seq,
		it.Filename,
		it.Code,
		string(it.Verdict.Decision),
		it.Verdict.Feedback,
		it.ElapsedMs,
	)
	if err != nil {
		return fmt.Errorf("append review iteration: %w", err)
	}

	return nil
}

// ListByRun returns all iterations for a run ordered by agent and seq
func (r *ReviewRepositoryImpl) ListByRun(ctx context.Context, runID string) ([]review.Iteration, error) {
	query := `
		SELECT agent_name, seq, filename, code, decision, feedback, elapsed_ms
		FROM review_iterations
		WHERE run_id = ?
		ORDER BY agent_name ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query review iterations: %w", err)
	}
	defer rows.Close()

	var its []review.Iteration
	for rows.Next() {
		var it review.Iteration
		var decision string
		var feedback sql.NullString

		if err := rows.Scan(&it.AgentName, &it.Seq, &it.Filename, &it.Code, &decision, &feedback, &it.ElapsedMs); err != nil {
			return nil, fmt.Errorf("scan review iteration: %w", err)
		}

		it.Verdict.Decision = review.Decision(decision)
		if feedback.Valid {
			it.Verdict.Feedback = feedback.String
		}
		its = append(its, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review iterations: %w", err)
	}

	return its, nil
}

// CountByRun returns the number of recorded iterations for a run
func (r *ReviewRepositoryImpl) CountByRun(ctx context.Context, runID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM review_iterations WHERE run_id = ?", runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count review iterations: %w", err)
	}
	return count, nil
}
