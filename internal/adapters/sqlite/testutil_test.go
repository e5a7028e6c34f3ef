// Package sqlite_test contains integration tests for SQLite repositories.
//
// This file is the single point where the database schema is loaded for
// tests. All test setup uses db.GetSchemaSQL() so tests always run against
// the authoritative schema; do not hardcode CREATE TABLE statements here.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/podium/internal/adapters/sqlite"
	"github.com/example/podium/internal/db"
	"github.com/example/podium/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})
	return testDB
}

// seedContest inserts a test contest and returns its record.
func seedContest(t *testing.T, database *sql.DB, source, key string, start, end time.Time) *secondary.ContestRecord {
	t.Helper()

	repo := sqlite.NewContestRepository(database)
	record := &secondary.ContestRecord{
		Source: source,
		Key:    key,
		Title:  "Test Contest " + key,
		Start:  start,
		End:    end,
	}
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("failed to seed contest: %v", err)
	}
	return record
}

// seedAccount inserts a test account and returns its record.
func seedAccount(t *testing.T, database *sql.DB, source, key string) *secondary.AccountRecord {
	t.Helper()

	repo := sqlite.NewAccountRepository(database)
	record, err := repo.GetOrCreate(context.Background(), source, key)
	if err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return record
}

// seedStatistic inserts one statistics row via a change set and returns it.
func seedStatistic(t *testing.T, database *sql.DB, contestID, accountID int64, place string, solving float64) *secondary.StatisticsRecord {
	t.Helper()

	repo := sqlite.NewStatisticsRepository(database)
	rec := &secondary.StatisticsRecord{
		ContestID: contestID,
		AccountID: accountID,
		Place:     place,
		Solving:   solving,
		Addition:  map[string]any{},
	}
	_, err := repo.Apply(context.Background(), &secondary.StandingsChangeSet{
		ContestID: contestID,
		Upserts:   []*secondary.StatisticsRecord{rec},
	})
	if err != nil {
		t.Fatalf("failed to seed statistic: %v", err)
	}
	return rec
}
