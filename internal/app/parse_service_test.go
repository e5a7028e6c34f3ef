package app

import (
	"context"
	"testing"
	"time"

	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/ports/secondary"
)

func TestParseContestsCreatesStatistics(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	env.adapter.result = &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 3, map[string]any{"A": problem("+"), "B": problem("+1")}),
			"bob":   row("2", 2, map[string]any{"A": problem("+2"), "B": problem("-3")}),
			"carol": row("3", 1, map[string]any{"A": problem("-1")}),
		},
		Problems: []map[string]any{{"short": "A"}, {"short": "B"}},
	}

	summary, err := env.parse.ParseContests(ctx, primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}
	if summary.Attempted != 1 || summary.Succeeded != 1 {
		t.Fatalf("expected 1/1, got %d/%d", summary.Attempted, summary.Succeeded)
	}

	stats, err := env.stats.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest failed: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 statistics, got %d", len(stats))
	}
	if stats["alice"].PlaceAsInt != 1 || stats["alice"].Solving != 3 {
		t.Errorf("unexpected alice row: %+v", stats["alice"])
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.LastSuccess == nil {
		t.Error("expected last_success_time to be set")
	}
	if stored.NextAttempt == nil || !stored.NextAttempt.After(testNow) {
		t.Errorf("expected future next_attempt_time, got %v", stored.NextAttempt)
	}
	if len(stored.Fields) == 0 {
		t.Error("expected field registry to record addition keys")
	}
	if len(stored.Problems) != 2 {
		t.Errorf("expected 2 problems, got %d", len(stored.Problems))
	}
}

func TestParseContestsSecondPassWritesNothing(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	result := &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 2, map[string]any{"A": problem("+")}),
			"bob":   row("2", 1, map[string]any{"A": problem("-2")}),
		},
	}
	env.adapter.result = result

	req := primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true}
	if _, err := env.parse.ParseContests(ctx, req); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	known, err := env.stats.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest failed: %v", err)
	}

	_, counts, err := env.parse.reconcileContest(ctx, stored, known, result, req, testNow)
	if err != nil {
		t.Fatalf("second reconciliation failed: %v", err)
	}
	if counts.Created != 0 || counts.Updated != 0 || counts.Deleted != 0 {
		t.Errorf("expected zero writes on unchanged standings, got %+v", counts)
	}

	// The rows' modification timestamps must survive a full no-op pass.
	if _, err := env.parse.ParseContests(ctx, req); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	after, err := env.stats.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest failed: %v", err)
	}
	for key, record := range known {
		got, ok := after[key]
		if !ok {
			t.Errorf("expected %s to survive the second pass", key)
			continue
		}
		if got.Modified != record.Modified {
			t.Errorf("expected %s to keep its modified timestamp, got %q want %q",
				key, got.Modified, record.Modified)
		}
	}
}

func TestParseContestsRemovesVanishedRows(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	env.adapter.result = &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 2, nil),
			"bob":   row("2", 1, nil),
		},
	}
	req := primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true}
	if _, err := env.parse.ParseContests(ctx, req); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	env.adapter.result = &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 2, nil),
		},
	}
	if _, err := env.parse.ParseContests(ctx, req); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	stats, err := env.stats.ListByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("ListByContest failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected vanished row to be deleted, got %d rows", len(stats))
	}
	if _, ok := stats["bob"]; ok {
		t.Error("expected bob to be removed")
	}
}

func TestParseContestsTransientErrorBacksOff(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	env.adapter.err = &secondary.TransientError{Err: context.DeadlineExceeded}

	summary, err := env.parse.ParseContests(ctx, primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(summary.Failures))
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.ConsecutiveErrors != 1 {
		t.Errorf("expected 1 consecutive error, got %d", stored.ConsecutiveErrors)
	}
	if stored.LastSuccess != nil {
		t.Error("expected no last_success_time after a failed attempt")
	}
	if stored.NextAttempt == nil || !stored.NextAttempt.After(testNow) {
		t.Errorf("expected backed-off next_attempt_time, got %v", stored.NextAttempt)
	}
}

func TestParseContestsDeleteAction(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	env.adapter.result = &secondary.StandingsResult{Action: secondary.ActionDeleteContest}

	summary, err := env.parse.ParseContests(ctx, primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected delete action to count as success, got %+v", summary)
	}
	if _, err := env.contests.GetByID(ctx, contest.ID); err == nil {
		t.Error("expected contest to be deleted")
	}
}

func TestParseContestsDryRunKeepsDeletedContest(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	env.adapter.result = &secondary.StandingsResult{Action: secondary.ActionDeleteContest}

	summary, err := env.parse.ParseContests(ctx, primary.ParseRequest{
		ContestIDs: []int64{contest.ID}, IgnoreSchedule: true, NoUpdateResults: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected dry-run delete to count as success, got %+v", summary)
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("expected contest to survive a dry run: %v", err)
	}
	// The computed backoff must replace the batch claim lease rather than
	// leaving the lease as the next attempt time.
	if stored.NextAttempt == nil || !stored.NextAttempt.After(testNow.Add(claimLease)) {
		t.Errorf("expected backed-off next_attempt_time past the claim lease, got %v", stored.NextAttempt)
	}
}

func TestParseContestsDryRun(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "round-1", nil)

	env.adapter.result = &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 1, nil),
			"bob":   row("2", 0, nil),
		},
	}

	_, err := env.parse.ParseContests(ctx, primary.ParseRequest{
		ContestIDs: []int64{contest.ID}, IgnoreSchedule: true, NoUpdateResults: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}

	count, err := env.stats.CountByContest(ctx, contest.ID)
	if err != nil {
		t.Fatalf("CountByContest failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected dry run to persist nothing, got %d rows", count)
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.NextAttempt == nil {
		t.Error("expected schedule write even on dry run")
	}
}

func TestParseContestsRespectsSchedule(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.seedContest(t, "due", nil)
	blocked := env.seedContest(t, "blocked", nil)

	future := testNow.Add(time.Hour)
	schedule := env.parse.schedule
	if err := schedule.Claim(ctx, []int64{blocked.ID}, future); err != nil {
		t.Fatalf("failed to push blocked contest: %v", err)
	}

	env.adapter.result = &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 1, nil),
			"bob":   row("2", 0, nil),
		},
	}

	summary, err := env.parse.ParseContests(ctx, primary.ParseRequest{})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}
	if summary.Attempted != 1 {
		t.Fatalf("expected only the due contest, got %d attempted", summary.Attempted)
	}
	if env.adapter.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", env.adapter.calls)
	}
}

func TestParseContestsHiddenResultsFlag(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	contest := env.seedContest(t, "live", func(c *secondary.ContestRecord) {
		c.Start = testNow.Add(-1 * time.Hour)
		c.End = testNow.Add(2 * time.Hour)
	})

	env.adapter.result = &secondary.StandingsResult{
		Rows: map[string]secondary.StandingsRow{
			"alice": row("1", 1, map[string]any{"A": problem("?")}),
			"bob":   row("2", 0, nil),
		},
	}

	_, err := env.parse.ParseContests(ctx, primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if hidden, _ := stored.Info["hidden"].(bool); !hidden {
		t.Error("expected sub judice results to set the hidden flag")
	}
	// A live contest with hidden results re-polls within half an hour.
	if stored.NextAttempt == nil || stored.NextAttempt.After(testNow.Add(30*time.Minute)) {
		t.Errorf("expected short re-poll, got %v", stored.NextAttempt)
	}
}

func TestParseContestsHiddenResultsCapSurvivesErrors(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	// Long enough that the live short-contest fast path does not apply.
	contest := env.seedContest(t, "marathon", func(c *secondary.ContestRecord) {
		c.Start = testNow.Add(-48 * time.Hour)
		c.End = testNow.Add(48 * time.Hour)
		c.Info = map[string]any{"hidden": true}
	})
	if _, err := env.db.Exec(
		"UPDATE contests SET consecutive_errors = 3 WHERE id = ?", contest.ID); err != nil {
		t.Fatalf("failed to set consecutive errors: %v", err)
	}

	env.adapter.err = &secondary.TransientError{Err: context.DeadlineExceeded}

	summary, err := env.parse.ParseContests(ctx, primary.ParseRequest{ContestIDs: []int64{contest.ID}, IgnoreSchedule: true})
	if err != nil {
		t.Fatalf("ParseContests failed: %v", err)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(summary.Failures))
	}

	stored, err := env.contests.GetByID(ctx, contest.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	// The stored hidden flag keeps the half-hour re-poll cap in force even
	// though the doubled error delay would push the attempt hours out.
	if stored.NextAttempt == nil || !stored.NextAttempt.After(testNow) {
		t.Fatalf("expected future next_attempt_time, got %v", stored.NextAttempt)
	}
	if stored.NextAttempt.After(testNow.Add(30 * time.Minute)) {
		t.Errorf("expected re-poll within half an hour, got %v", stored.NextAttempt)
	}
}
