package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/podium/internal/ports/secondary"
)

// ContestRepository implements secondary.ContestRepository with SQLite.
type ContestRepository struct {
	db *sql.DB
}

// NewContestRepository creates a new SQLite contest repository.
func NewContestRepository(db *sql.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

const contestSelectCols = "id, source, key, title, url, start_time, end_time, rated, invisible, calculate_time, stage, info_json, fields_json, problems_json, next_attempt_time, last_success_time, consecutive_errors, created_at, updated_at"

// scanContest scans a contest row into a ContestRecord.
func scanContest(scanner interface {
	Scan(dest ...any) error
}) (*secondary.ContestRecord, error) {
	var (
		infoJSON     string
		fieldsJSON   string
		problemsJSON string
		nextAttempt  sql.NullTime
		lastSuccess  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	record := &secondary.ContestRecord{}
	err := scanner.Scan(
		&record.ID, &record.Source, &record.Key, &record.Title, &record.URL,
		&record.Start, &record.End,
		&record.Rated, &record.Invisible, &record.CalculateTime, &record.Stage,
		&infoJSON, &fieldsJSON, &problemsJSON,
		&nextAttempt, &lastSuccess, &record.ConsecutiveErrors,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if record.Info, err = unmarshalMap(infoJSON); err != nil {
		return nil, err
	}
	if record.Fields, err = unmarshalStrings(fieldsJSON); err != nil {
		return nil, err
	}
	if record.Problems, err = unmarshalMaps(problemsJSON); err != nil {
		return nil, err
	}
	record.NextAttempt = timePtr(nextAttempt)
	record.LastSuccess = timePtr(lastSuccess)
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)

	return record, nil
}

// GetByID retrieves a contest by its ID.
func (r *ContestRepository) GetByID(ctx context.Context, id int64) (*secondary.ContestRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+contestSelectCols+" FROM contests WHERE id = ?", id)

	record, err := scanContest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contest %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	return record, nil
}

// List retrieves contests matching the given filters.
func (r *ContestRepository) List(ctx context.Context, filters secondary.ContestFilters) ([]*secondary.ContestRecord, error) {
	query := "SELECT " + contestSelectCols + " FROM contests WHERE stage = ?"
	args := []any{filters.Stages}

	if filters.SourcePattern != "" {
		query += " AND source LIKE ?"
		args = append(args, filters.SourcePattern)
	}
	if len(filters.IDs) > 0 {
		query += " AND id IN (?" + strings.Repeat(",?", len(filters.IDs)-1) + ")"
		for _, id := range filters.IDs {
			args = append(args, id)
		}
	}
	if filters.OnlyNeverParsed {
		query += " AND last_success_time IS NULL"
	}
	query += " ORDER BY end_time, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ContestRecord
	for rows.Next() {
		record, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Create persists a new contest.
func (r *ContestRepository) Create(ctx context.Context, contest *secondary.ContestRecord) error {
	info := contest.Info
	if info == nil {
		info = map[string]any{}
	}
	fields := contest.Fields
	if fields == nil {
		fields = []string{}
	}
	problems := contest.Problems
	if problems == nil {
		problems = []map[string]any{}
	}

	infoJSON, err := marshalJSON(info)
	if err != nil {
		return err
	}
	fieldsJSON, err := marshalJSON(fields)
	if err != nil {
		return err
	}
	problemsJSON, err := marshalJSON(problems)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO contests (source, key, title, url, start_time, end_time, rated, invisible, calculate_time, stage, info_json, fields_json, problems_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contest.Source, contest.Key, contest.Title, contest.URL,
		contest.Start, contest.End,
		contest.Rated, contest.Invisible, contest.CalculateTime, contest.Stage,
		infoJSON, fieldsJSON, problemsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create contest: %w", err)
	}
	contest.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get contest id: %w", err)
	}
	return nil
}

// Delete removes a contest; statistics and aggregates cascade.
func (r *ContestRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM contests WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete contest: %w", err)
	}
	return nil
}

// StagesContaining lists stage contests of a source whose time window
// contains the given window.
func (r *ContestRepository) StagesContaining(ctx context.Context, source string, start, end time.Time) ([]*secondary.ContestRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+contestSelectCols+" FROM contests WHERE stage = 1 AND source = ? AND start_time <= ? AND end_time >= ? ORDER BY start_time, id",
		source, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ContestRecord
	for rows.Next() {
		record, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MembersWithin lists the non-stage contests of a source inside the given
// window, in start order.
func (r *ContestRepository) MembersWithin(ctx context.Context, source string, start, end time.Time) ([]*secondary.ContestRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+contestSelectCols+" FROM contests WHERE stage = 0 AND source = ? AND start_time >= ? AND end_time <= ? ORDER BY start_time, id",
		source, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage members: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ContestRecord
	for rows.Next() {
		record, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage member: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
