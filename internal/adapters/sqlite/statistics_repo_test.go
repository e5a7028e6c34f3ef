package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/podium/internal/adapters/sqlite"
	"github.com/example/podium/internal/ports/secondary"
)

func TestStatisticsRepository_ApplyRoundTrip(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewStatisticsRepository(database)
	ctx := context.Background()

	contest := seedContest(t, database, "judge.example.com", "c1", testStart, testStart.Add(time.Hour))
	alice := seedAccount(t, database, "judge.example.com", "alice")
	bob := seedAccount(t, database, "judge.example.com", "bob")

	counts, err := repo.Apply(ctx, &secondary.StandingsChangeSet{
		ContestID: contest.ID,
		Upserts: []*secondary.StatisticsRecord{
			{ContestID: contest.ID, AccountID: alice.ID, Place: "1", PlaceAsInt: 1, Solving: 4,
				Addition: map[string]any{"penalty": 77}},
			{ContestID: contest.ID, AccountID: bob.ID, Place: "2", PlaceAsInt: 2, Solving: 3,
				Addition: map[string]any{"penalty": 90}},
		},
		Tallies: map[string]secondary.ProblemTally{
			"A": {Attempts: 2, Accepted: 2},
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if counts.Created != 2 || counts.Updated != 0 || counts.Deleted != 0 {
		t.Errorf("counts = %+v, want 2 creates", counts)
	}

	records, err := repo.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	got := records["alice"]
	if got == nil || got.Place != "1" || got.Solving != 4 {
		t.Fatalf("alice record = %+v", got)
	}
	if got.Addition["penalty"] != float64(77) {
		t.Errorf("penalty = %v, want 77", got.Addition["penalty"])
	}

	var attempts, accepted int
	err = database.QueryRow(
		"SELECT n_attempts, n_accepted FROM problem_aggregates WHERE contest_id = ? AND short = 'A'",
		contest.ID).Scan(&attempts, &accepted)
	if err != nil {
		t.Fatalf("problem aggregate: %v", err)
	}
	if attempts != 2 || accepted != 2 {
		t.Errorf("aggregate = %d/%d, want 2/2", attempts, accepted)
	}
}

func TestStatisticsRepository_ApplyUpdateAndDelete(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewStatisticsRepository(database)
	ctx := context.Background()

	contest := seedContest(t, database, "judge.example.com", "c1", testStart, testStart.Add(time.Hour))
	alice := seedAccount(t, database, "judge.example.com", "alice")
	bob := seedAccount(t, database, "judge.example.com", "bob")
	aliceRec := seedStatistic(t, database, contest.ID, alice.ID, "1", 4)
	bobRec := seedStatistic(t, database, contest.ID, bob.ID, "2", 3)

	counts, err := repo.Apply(ctx, &secondary.StandingsChangeSet{
		ContestID: contest.ID,
		Upserts: []*secondary.StatisticsRecord{
			{ID: aliceRec.ID, ContestID: contest.ID, AccountID: alice.ID, Place: "1", PlaceAsInt: 1, Solving: 5,
				Addition: map[string]any{}},
		},
		DeleteIDs: []int64{bobRec.ID},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if counts.Created != 0 || counts.Updated != 1 || counts.Deleted != 1 {
		t.Errorf("counts = %+v, want 1 update 1 delete", counts)
	}

	records, err := repo.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 after delete", len(records))
	}
	if records["alice"].Solving != 5 {
		t.Errorf("alice solving = %v, want updated 5", records["alice"].Solving)
	}
}

func TestStatisticsRepository_ApplyContestMeta(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewStatisticsRepository(database)
	contestRepo := sqlite.NewContestRepository(database)
	ctx := context.Background()

	contest := seedContest(t, database, "judge.example.com", "c1", testStart, testStart.Add(time.Hour))

	calcTime := true
	url := "https://judge.example.com/standings/c1"
	_, err := repo.Apply(ctx, &secondary.StandingsChangeSet{
		ContestID: contest.ID,
		Meta: &secondary.ContestMetaUpdate{
			Fields:        []string{"penalty", "rank"},
			Problems:      []map[string]any{{"short": "A"}, {"short": "B"}},
			CalculateTime: &calcTime,
			URL:           &url,
		},
	})
	if err != nil {
		t.Fatalf("Apply meta: %v", err)
	}

	got, err := contestRepo.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Fields) != 2 || got.Fields[0] != "penalty" {
		t.Errorf("fields = %v", got.Fields)
	}
	if len(got.Problems) != 2 {
		t.Errorf("problems = %v", got.Problems)
	}
	if !got.CalculateTime {
		t.Error("calculate_time not persisted")
	}
	if got.URL != url {
		t.Errorf("url = %q, want %q", got.URL, url)
	}
}

func TestStatisticsRepository_ApplyRating(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewStatisticsRepository(database)
	accountRepo := sqlite.NewAccountRepository(database)
	ctx := context.Background()

	contest := seedContest(t, database, "judge.example.com", "c1", testStart, testStart.Add(time.Hour))
	alice := seedAccount(t, database, "judge.example.com", "alice")
	rec := seedStatistic(t, database, contest.ID, alice.ID, "1", 4)

	cs := &secondary.RatingChangeSet{
		ContestID:   contest.ID,
		ContentHash: "abc123",
		Writes: []secondary.RatingWrite{
			{StatisticID: rec.ID, AccountID: alice.ID, NewRating: 1715, RatingChange: 215},
		},
	}
	if err := repo.ApplyRating(ctx, cs); err != nil {
		t.Fatalf("ApplyRating: %v", err)
	}

	hash, err := repo.RatingHash(ctx, contest.ID)
	if err != nil {
		t.Fatalf("RatingHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("hash = %q, want abc123", hash)
	}

	account, err := accountRepo.GetOrCreate(ctx, "judge.example.com", "alice")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if account.Rating == nil || *account.Rating != 1715 {
		t.Errorf("account rating = %v, want 1715", account.Rating)
	}
	if account.NContests != 1 {
		t.Errorf("n_contests = %d, want 1", account.NContests)
	}

	// Re-applying (a forced recomputation) must not double-count.
	if err := repo.ApplyRating(ctx, cs); err != nil {
		t.Fatalf("ApplyRating again: %v", err)
	}
	account, _ = accountRepo.GetOrCreate(ctx, "judge.example.com", "alice")
	if account.NContests != 1 {
		t.Errorf("n_contests after rerun = %d, want 1", account.NContests)
	}

	records, err := repo.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest: %v", err)
	}
	got := records["alice"]
	if got.NewRating == nil || *got.NewRating != 1715 {
		t.Errorf("statistic new_rating = %v, want 1715", got.NewRating)
	}
	if got.RatingChange == nil || *got.RatingChange != 215 {
		t.Errorf("statistic rating_change = %v, want 215", got.RatingChange)
	}
}

func TestStatisticsRepository_RatingHashEmpty(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewStatisticsRepository(database)

	contest := seedContest(t, database, "judge.example.com", "c1", testStart, testStart.Add(time.Hour))
	hash, err := repo.RatingHash(context.Background(), contest.ID)
	if err != nil {
		t.Fatalf("RatingHash: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty before any run", hash)
	}
}
