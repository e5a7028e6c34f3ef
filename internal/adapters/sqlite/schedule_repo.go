package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ScheduleRepository implements secondary.ScheduleRepository over the
// schedule columns of the contests table.
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new SQLite schedule repository.
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Claim pushes next_attempt_time forward for a whole batch in one
// transaction before fetching begins, so an overlapping scheduler run does
// not pick the same contests.
func (r *ScheduleRepository) Claim(ctx context.Context, ids []int64, next time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	query := "UPDATE contests SET next_attempt_time = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?" +
		strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]any, 0, len(ids)+1)
	args = append(args, next)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to claim schedule batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit claim transaction: %w", err)
	}
	return nil
}

// Write records one attempt outcome. The schedule write happens-after the
// fetch outcome is known and is never skipped, even on failure.
func (r *ScheduleRepository) Write(ctx context.Context, id int64, next time.Time, success bool, at time.Time) error {
	var err error
	if success {
		_, err = r.db.ExecContext(ctx,
			`UPDATE contests SET next_attempt_time = ?, last_success_time = ?, consecutive_errors = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			next, at, id)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE contests SET next_attempt_time = ?, consecutive_errors = consecutive_errors + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			next, id)
	}
	if err != nil {
		return fmt.Errorf("failed to write schedule: %w", err)
	}
	return nil
}
