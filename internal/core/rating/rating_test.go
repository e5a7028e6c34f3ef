package rating

import (
	"errors"
	"math"
	"testing"
)

func resultFor(t *testing.T, results []Result, account string) Result {
	t.Helper()
	for _, r := range results {
		if r.Account == account {
			return r
		}
	}
	t.Fatalf("no result for %s", account)
	return Result{}
}

func TestPredict_InsufficientData(t *testing.T) {
	_, err := Predict([]Entry{{Account: "solo", OldRating: 1500, Rank: 1}})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestPredict_TwoEqualParticipants(t *testing.T) {
	results, err := Predict([]Entry{
		{Account: "winner", OldRating: 1500, Rank: 1},
		{Account: "loser", OldRating: 1500, Rank: 2},
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	winner := resultFor(t, results, "winner")
	loser := resultFor(t, results, "loser")

	if winner.RatingChange <= 0 {
		t.Errorf("winner change = %.1f, want positive", winner.RatingChange)
	}
	if loser.RatingChange >= 0 {
		t.Errorf("loser change = %.1f, want negative", loser.RatingChange)
	}

	// Roughly symmetric for equal ratings and K(0) on both sides.
	ratio := winner.RatingChange / -loser.RatingChange
	if ratio < 0.5 || ratio > 2 {
		t.Errorf("change magnitudes %-.1f/%.1f not roughly symmetric", winner.RatingChange, loser.RatingChange)
	}
}

func TestPredict_OrderConsistency(t *testing.T) {
	results, err := Predict([]Entry{
		{Account: "first", OldRating: 1450, Rank: 1},
		{Account: "second", OldRating: 1700, Rank: 2},
		{Account: "third", OldRating: 1300, Rank: 3},
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	e1 := resultFor(t, results, "first").ExpectedRating
	e2 := resultFor(t, results, "second").ExpectedRating
	e3 := resultFor(t, results, "third").ExpectedRating

	if e1 < e2 || e2 < e3 {
		t.Errorf("expected ratings %.1f, %.1f, %.1f not non-increasing by rank", e1, e2, e3)
	}
}

func TestPredict_NewcomerMovesFurther(t *testing.T) {
	results, err := Predict([]Entry{
		{Account: "newcomer", OldRating: 1500, Rank: 1, PriorContests: 0},
		{Account: "veteran", OldRating: 1500, Rank: 1, PriorContests: 50},
		{Account: "tail", OldRating: 1500, Rank: 3, PriorContests: 0},
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	newcomer := resultFor(t, results, "newcomer")
	veteran := resultFor(t, results, "veteran")
	if math.Abs(newcomer.RatingChange) <= math.Abs(veteran.RatingChange) {
		t.Errorf("newcomer change %.1f should exceed veteran change %.1f",
			newcomer.RatingChange, veteran.RatingChange)
	}
}

func TestPredict_NonFiniteRatingFails(t *testing.T) {
	_, err := Predict([]Entry{
		{Account: "a", OldRating: math.NaN(), Rank: 1},
		{Account: "b", OldRating: 1500, Rank: 2},
	})
	if err == nil {
		t.Error("non-finite rating must fail the pass")
	}
}

func TestKFactor(t *testing.T) {
	if got := kFactor(0); math.Abs(got-1) > 1e-9 {
		t.Errorf("K(0) = %.4f, want 1", got)
	}
	if kFactor(1) >= kFactor(0) || kFactor(10) >= kFactor(1) {
		t.Error("K must decrease with contest experience")
	}
	// Asymptote (1-p)/(2-p) = 2/9.
	if got := kFactor(1000); math.Abs(got-2.0/9.0) > 1e-6 {
		t.Errorf("K(inf) = %.4f, want 2/9", got)
	}
}

func TestWinProb(t *testing.T) {
	if got := winProb(0); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("E(0) = %.4f, want 0.5", got)
	}
	if got := winProb(400); math.Abs(got-10.0/11.0) > 1e-9 {
		t.Errorf("E(400) = %.4f, want 10/11", got)
	}
	if winProb(200)+winProb(-200) != 1 {
		t.Error("E(d) + E(-d) must equal 1")
	}
}

func TestContentHash_OrderInsensitive(t *testing.T) {
	a := []Entry{
		{Account: "x", OldRating: 1500, Rank: 1},
		{Account: "y", OldRating: 1400, Rank: 2},
	}
	b := []Entry{a[1], a[0]}

	if ContentHash(a) != ContentHash(b) {
		t.Error("hash must not depend on input order")
	}

	c := []Entry{
		{Account: "x", OldRating: 1500, Rank: 2},
		{Account: "y", OldRating: 1400, Rank: 1},
	}
	if ContentHash(a) == ContentHash(c) {
		t.Error("hash must change when ranks change")
	}
}
