// Package rating implements the Elo-style expected-rating predictor for one
// rated contest's final standing. For every participant it derives the
// rating implied purely by their performance against the field, solved by a
// bracketed binary search, and the resulting rating change.
//
// The computation is pure and deterministic: entries are processed in a
// stable order and the pairwise expectation loop is allocation-free.
package rating

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Model constants.
const (
	// InitialRating seeds first-time participants.
	InitialRating = 1400

	// ratingCeiling is the sentinel upper bound for the first (best)
	// participant's expected rating.
	ratingCeiling = 10000
	// tolerance is the absolute bisection tolerance in rating points.
	tolerance = 1e-3
	// maxDoublings bounds the bracketing window expansion; failing to
	// bracket within it indicates a data anomaly, not a numeric detail.
	maxDoublings = 64
	// decay is the K-factor decay constant: new participants move
	// further per event than established ones.
	decay = 5.0 / 7.0
)

// ErrInsufficientData is returned for fewer than two ranked participants.
// The caller skips the contest without a partial write.
var ErrInsufficientData = errors.New("rating: fewer than two ranked participants")

// BracketError is the fatal computation error raised when the binary search
// cannot bracket a root. It aborts the contest's rating pass and must be
// surfaced loudly, since it indicates anomalous input (duplicate or
// non-finite ratings).
type BracketError struct {
	Account string
	Target  float64
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("rating: cannot bracket expected rating for %s (target rank %.3f)", e.Account, e.Target)
}

// Entry is one participant of a rated contest's final standing. The caller
// must have excluded unranked and disqualified rows.
type Entry struct {
	Account       string
	OldRating     float64
	Rank          int
	PriorContests int
}

// Result is the computed rating outcome for one participant.
type Result struct {
	Account        string
	OldRating      float64
	ExpectedRating float64
	RatingChange   float64
}

// winProb is the standard pairwise Elo win probability E(delta).
func winProb(delta float64) float64 {
	return 1 / (1 + math.Pow(10, -delta/400))
}

// Predict computes the expected rating and rating change for every entry.
//
// Participants sharing an identical rank mean are processed in original
// input order; the model itself does not resolve that tie.
func Predict(entries []Entry) ([]Result, error) {
	if len(entries) < 2 {
		return nil, ErrInsufficientData
	}

	for _, e := range entries {
		if math.IsNaN(e.OldRating) || math.IsInf(e.OldRating, 0) {
			return nil, fmt.Errorf("rating: non-finite old rating for %s", e.Account)
		}
	}

	// Sorting by old rating stabilizes the floating-point iteration order;
	// it is not required for correctness.
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].OldRating < entries[order[b]].OldRating
	})
	sorted := make([]Entry, len(entries))
	for i, idx := range order {
		sorted[i] = entries[idx]
	}

	ratings := make([]float64, len(sorted))
	for i, e := range sorted {
		ratings[i] = e.OldRating
	}

	// Seed each participant's target rank mean from their actual rank and
	// the pairwise expectations against the rest of the field.
	rankMean := make([]float64, len(sorted))
	for i, e := range sorted {
		sum := 0.0
		for j, r := range ratings {
			if j == i {
				continue
			}
			sum += winProb(r - e.OldRating)
		}
		rankMean[i] = math.Sqrt(float64(e.Rank) * (1 + sum))
	}

	// Best expected performance first; ties keep input order via stable
	// sort over the rating-sorted slice.
	byMean := make([]int, len(sorted))
	for i := range byMean {
		byMean[i] = i
	}
	sort.SliceStable(byMean, func(a, b int) bool {
		return rankMean[byMean[a]] < rankMean[byMean[b]]
	})

	results := make([]Result, 0, len(sorted))
	ceiling := float64(ratingCeiling)
	for _, i := range byMean {
		e := sorted[i]
		expected, err := solveExpectedRating(ratings, i, e.Account, rankMean[i], ceiling)
		if err != nil {
			return nil, err
		}
		ceiling = expected

		results = append(results, Result{
			Account:        e.Account,
			OldRating:      e.OldRating,
			ExpectedRating: expected,
			RatingChange:   kFactor(e.PriorContests) * (expected - e.OldRating),
		})
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Account < results[b].Account })
	return results, nil
}

// solveExpectedRating finds the rating x, strictly below ceiling, whose
// expected rank against the field equals target. expectedRank is strictly
// decreasing in x, so the root is bracketed by expanding the window
// downward from the ceiling and then bisected.
//
// A participant whose target is unreachable even at the ceiling (better
// than the ceiling allows) is clamped to it, preserving order consistency.
func solveExpectedRating(ratings []float64, self int, account string, target, ceiling float64) (float64, error) {
	hi := ceiling
	if expectedRank(ratings, self, hi) > target {
		return hi, nil
	}

	step := 200.0
	lo := hi - step
	doublings := 0
	for expectedRank(ratings, self, lo) < target {
		step *= 2
		lo = hi - step
		doublings++
		if doublings > maxDoublings {
			return 0, &BracketError{Account: account, Target: target}
		}
	}

	for hi-lo > tolerance {
		mid := (hi + lo) / 2
		if expectedRank(ratings, self, mid) < target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (hi + lo) / 2, nil
}

// expectedRank is the rank a participant with rating x would be expected to
// take against the field: one plus the sum of the field's pairwise win
// probabilities against x. Kept allocation-free; this is the hot loop.
func expectedRank(ratings []float64, self int, x float64) float64 {
	rank := 1.0
	for j, r := range ratings {
		if j == self {
			continue
		}
		rank += winProb(r - x)
	}
	return rank
}

// kFactor scales the rating change by contest experience:
// K(n) = 1 / (1 + (1 - p^n)/(1 - p)). First-timers get K(0) = 1.
func kFactor(priorContests int) float64 {
	return 1 / (1 + (1-math.Pow(decay, float64(priorContests)))/(1-decay))
}

// ContentHash fingerprints a contest's rating input: the sorted
// (rank, account, old_rating) tuples. An unchanged hash means the previous
// computation still stands and the pass can be skipped.
func ContentHash(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%d:%s:%g", e.Rank, e.Account, e.OldRating)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
