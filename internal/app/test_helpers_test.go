package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/podium/internal/adapters/sqlite"
	"github.com/example/podium/internal/config"
	"github.com/example/podium/internal/db"
	"github.com/example/podium/internal/ports/secondary"
)

// testNow is the fixed clock all service tests run against.
var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeAdapter is a canned SourceAdapter for service tests.
type fakeAdapter struct {
	result *secondary.StandingsResult
	err    error
	calls  int
}

func (f *fakeAdapter) FetchStandings(ctx context.Context, contest *secondary.ContestRecord, known map[string]*secondary.StatisticsRecord) (*secondary.StandingsResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// testEnv bundles the repositories and services under test, backed by one
// in-memory database.
type testEnv struct {
	db       *sql.DB
	contests *sqlite.ContestRepository
	accounts *sqlite.AccountRepository
	stats    *sqlite.StatisticsRepository
	adapter  *fakeAdapter
	parse    *ParseServiceImpl
	rating   *RatingServiceImpl
	stages   *StageServiceImpl
}

func setupEnv(t *testing.T) *testEnv {
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
	t.Cleanup(func() { testDB.Close() })

	env := &testEnv{
		db:       testDB,
		contests: sqlite.NewContestRepository(testDB),
		accounts: sqlite.NewAccountRepository(testDB),
		stats:    sqlite.NewStatisticsRepository(testDB),
		adapter:  &fakeAdapter{},
	}

	sources := config.NewSourceRegistry([]config.Source{
		{Name: "test", Adapter: "fake", Rated: true},
	})
	resolve := func(name string, settings map[string]any) (secondary.SourceAdapter, error) {
		return env.adapter, nil
	}

	env.stages = NewStageService(env.contests, env.accounts, env.stats)
	env.parse = NewParseService(
		env.contests, sqlite.NewScheduleRepository(testDB), env.accounts, env.stats,
		sources, env.stages, resolve,
		&config.Config{Workers: 1, FetchTimeoutSeconds: 5})
	env.parse.now = func() time.Time { return testNow }
	env.rating = NewRatingService(env.contests, env.accounts, env.stats)
	env.rating.now = func() time.Time { return testNow }

	return env
}

// seedContest inserts a finished test contest on the "test" source.
func (env *testEnv) seedContest(t *testing.T, key string, mutate func(*secondary.ContestRecord)) *secondary.ContestRecord {
	t.Helper()

	record := &secondary.ContestRecord{
		Source: "test",
		Key:    key,
		Title:  "Test Contest " + key,
		Start:  testNow.Add(-3 * time.Hour),
		End:    testNow.Add(-1 * time.Hour),
	}
	if mutate != nil {
		mutate(record)
	}
	if err := env.contests.Create(context.Background(), record); err != nil {
		t.Fatalf("failed to seed contest: %v", err)
	}
	return record
}

// row builds one fetched standings row with per-problem results.
func row(place string, solving float64, problems map[string]any) secondary.StandingsRow {
	addition := map[string]any{}
	if problems != nil {
		addition["problems"] = problems
	}
	return secondary.StandingsRow{
		Place:    place,
		Solving:  solving,
		Addition: addition,
	}
}

func problem(result string) map[string]any {
	return map[string]any{"result": result}
}
