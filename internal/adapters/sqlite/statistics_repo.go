package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/podium/internal/ports/secondary"
)

// StatisticsRepository implements secondary.StatisticsRepository with
// SQLite. Contest-scoped mutations run in one transaction each: partial
// writes for one contest are never observable.
type StatisticsRepository struct {
	db *sql.DB
}

// NewStatisticsRepository creates a new SQLite statistics repository.
func NewStatisticsRepository(db *sql.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// ListByContest retrieves all statistics of a contest keyed by account key.
func (r *StatisticsRepository) ListByContest(ctx context.Context, contestID int64) (map[string]*secondary.StatisticsRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.contest_id, s.account_id, a.key, s.place, s.place_as_int, s.solving,
		        s.addition_json, s.skip_in_stats, s.new_rating, s.rating_change, s.updated_at
		 FROM statistics s JOIN accounts a ON a.id = s.account_id
		 WHERE s.contest_id = ?`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statistics: %w", err)
	}
	defer rows.Close()

	records := map[string]*secondary.StatisticsRecord{}
	for rows.Next() {
		var (
			additionJSON string
			newRating    sql.NullInt64
			ratingChange sql.NullInt64
			updatedAt    time.Time
		)
		record := &secondary.StatisticsRecord{}
		err := rows.Scan(&record.ID, &record.ContestID, &record.AccountID, &record.AccountKey,
			&record.Place, &record.PlaceAsInt, &record.Solving,
			&additionJSON, &record.SkipInStats, &newRating, &ratingChange, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statistic: %w", err)
		}
		if record.Addition, err = unmarshalMap(additionJSON); err != nil {
			return nil, err
		}
		record.NewRating = intPtr(newRating)
		record.RatingChange = intPtr(ratingChange)
		record.Modified = updatedAt.Format(time.RFC3339)
		records[record.AccountKey] = record
	}
	return records, rows.Err()
}

// CountByContest returns the number of statistics rows for a contest.
func (r *StatisticsRepository) CountByContest(ctx context.Context, contestID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM statistics WHERE contest_id = ?", contestID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count statistics: %w", err)
	}
	return count, nil
}

// Apply executes one reconciliation change set in one transaction and
// reports what it wrote.
func (r *StatisticsRepository) Apply(ctx context.Context, cs *secondary.StandingsChangeSet) (secondary.WriteCounts, error) {
	var counts secondary.WriteCounts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("failed to begin reconciliation transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range cs.Upserts {
		additionJSON, err := marshalJSON(rec.Addition)
		if err != nil {
			return counts, err
		}
		if rec.ID == 0 {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO statistics (contest_id, account_id, place, place_as_int, solving, addition_json, skip_in_stats)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				cs.ContestID, rec.AccountID, rec.Place, rec.PlaceAsInt, rec.Solving, additionJSON, rec.SkipInStats)
			if err != nil {
				return counts, fmt.Errorf("failed to create statistic: %w", err)
			}
			if rec.ID, err = res.LastInsertId(); err != nil {
				return counts, fmt.Errorf("failed to get statistic id: %w", err)
			}
			counts.Created++
		} else {
			_, err := tx.ExecContext(ctx,
				`UPDATE statistics SET place = ?, place_as_int = ?, solving = ?, addition_json = ?, skip_in_stats = ?, updated_at = CURRENT_TIMESTAMP
				 WHERE id = ?`,
				rec.Place, rec.PlaceAsInt, rec.Solving, additionJSON, rec.SkipInStats, rec.ID)
			if err != nil {
				return counts, fmt.Errorf("failed to update statistic: %w", err)
			}
			counts.Updated++
		}
	}

	if len(cs.DeleteIDs) > 0 {
		query := "DELETE FROM statistics WHERE id IN (?" + strings.Repeat(",?", len(cs.DeleteIDs)-1) + ")"
		args := make([]any, len(cs.DeleteIDs))
		for i, id := range cs.DeleteIDs {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return counts, fmt.Errorf("failed to delete statistics: %w", err)
		}
		counts.Deleted = len(cs.DeleteIDs)
	}

	if cs.Tallies != nil {
		if err := replaceTallies(ctx, tx, cs.ContestID, cs.Tallies); err != nil {
			return counts, err
		}
	}

	if cs.Meta != nil {
		if err := applyContestMeta(ctx, tx, cs.ContestID, cs.Meta); err != nil {
			return counts, err
		}
	}

	if err := tx.Commit(); err != nil {
		return counts, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return counts, nil
}

func replaceTallies(ctx context.Context, tx *sql.Tx, contestID int64, tallies map[string]secondary.ProblemTally) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM problem_aggregates WHERE contest_id = ?", contestID); err != nil {
		return fmt.Errorf("failed to clear problem aggregates: %w", err)
	}

	shorts := make([]string, 0, len(tallies))
	for short := range tallies {
		shorts = append(shorts, short)
	}
	sort.Strings(shorts)

	for _, short := range shorts {
		tally := tallies[short]
		_, err := tx.ExecContext(ctx,
			"INSERT INTO problem_aggregates (contest_id, short, n_attempts, n_accepted) VALUES (?, ?, ?, ?)",
			contestID, short, tally.Attempts, tally.Accepted)
		if err != nil {
			return fmt.Errorf("failed to write problem aggregate: %w", err)
		}
	}
	return nil
}

func applyContestMeta(ctx context.Context, tx *sql.Tx, contestID int64, meta *secondary.ContestMetaUpdate) error {
	var sets []string
	var args []any

	if meta.Fields != nil {
		fieldsJSON, err := marshalJSON(meta.Fields)
		if err != nil {
			return err
		}
		sets = append(sets, "fields_json = ?")
		args = append(args, fieldsJSON)
	}
	if meta.Problems != nil {
		problemsJSON, err := marshalJSON(meta.Problems)
		if err != nil {
			return err
		}
		sets = append(sets, "problems_json = ?")
		args = append(args, problemsJSON)
	}
	if meta.Info != nil {
		infoJSON, err := marshalJSON(meta.Info)
		if err != nil {
			return err
		}
		sets = append(sets, "info_json = ?")
		args = append(args, infoJSON)
	}
	if meta.CalculateTime != nil {
		sets = append(sets, "calculate_time = ?")
		args = append(args, *meta.CalculateTime)
	}
	if meta.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, *meta.URL)
	}
	if meta.Invisible != nil {
		sets = append(sets, "invisible = ?")
		args = append(args, *meta.Invisible)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, contestID)
	_, err := tx.ExecContext(ctx,
		"UPDATE contests SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update contest metadata: %w", err)
	}
	return nil
}

// RatingHash returns the content hash of the last successful rating
// computation for a contest, or "" when none ran yet.
func (r *StatisticsRepository) RatingHash(ctx context.Context, contestID int64) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		"SELECT content_hash FROM rating_runs WHERE contest_id = ?", contestID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get rating hash: %w", err)
	}
	return hash, nil
}

// ApplyRating executes one contest's rating change set in one transaction.
// Account contest counters are recomputed from rated statistics, so a
// forced recomputation never double-counts.
func (r *StatisticsRepository) ApplyRating(ctx context.Context, cs *secondary.RatingChangeSet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rating transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range cs.Writes {
		_, err := tx.ExecContext(ctx,
			"UPDATE statistics SET new_rating = ?, rating_change = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			w.NewRating, w.RatingChange, w.StatisticID)
		if err != nil {
			return fmt.Errorf("failed to write statistic rating: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET rating = ?,
			        n_contests = (SELECT COUNT(*) FROM statistics WHERE account_id = ? AND rating_change IS NOT NULL),
			        updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			w.NewRating, w.AccountID, w.AccountID)
		if err != nil {
			return fmt.Errorf("failed to write account rating: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rating_runs (contest_id, content_hash, computed_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(contest_id) DO UPDATE SET content_hash = excluded.content_hash, computed_at = CURRENT_TIMESTAMP`,
		cs.ContestID, cs.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to record rating run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rating write: %w", err)
	}
	return nil
}
