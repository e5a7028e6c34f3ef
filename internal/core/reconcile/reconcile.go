// Package reconcile contains the pure merge logic for standings rows: how a
// freshly fetched row combines with the previously stored one, how the
// contest field registry evolves, and how changes are detected so that a
// no-op write can be skipped entirely.
//
// All inputs are pre-fetched by the caller - no I/O in this package.
package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Addition keys with reconciliation-level meaning. Everything else in the
// addition map is source-specific and passes through untouched.
const (
	FieldProblems     = "problems"
	FieldOldRating    = "old_rating"
	FieldNewRating    = "new_rating"
	FieldRatingChange = "rating_change"

	problemResult = "result"
	problemTime   = "time"
)

// Row is the canonical per-account statistics row.
type Row struct {
	Place       string
	Solving     float64
	Addition    map[string]any
	SkipInStats bool
}

// Update carries one fetched row. Addition values that are explicitly nil
// remove the corresponding field from the stored row.
type Update struct {
	Place       string
	Solving     float64
	Addition    map[string]any
	SkipInStats bool
}

// Options gates the live-contest behavior of MergeRow.
type Options struct {
	// Live is true while the contest is in progress.
	Live bool
	// ForceTimes overrides live solve-time preservation, letting the
	// fetched times win even mid-contest.
	ForceTimes bool
}

// MergeRow merges a fetched update into the previously stored row (prev may
// be nil for a new participant) and reports whether the result differs from
// prev under canonical serialization. A false changed flag means the write
// must be skipped.
func MergeRow(prev *Row, up Update, opts Options) (Row, bool) {
	merged := Row{
		Place:       up.Place,
		Solving:     up.Solving,
		SkipInStats: up.SkipInStats,
		Addition:    map[string]any{},
	}

	if prev != nil {
		for k, v := range prev.Addition {
			merged.Addition[k] = v
		}
	}
	for k, v := range up.Addition {
		if v == nil {
			delete(merged.Addition, k)
			continue
		}
		merged.Addition[k] = v
	}

	synthesizeRatingChange(merged.Addition)

	if opts.Live && !opts.ForceTimes && prev != nil {
		preserveSolveTimes(merged.Addition, prev.Addition)
	}

	if prev == nil {
		return merged, true
	}
	changed := prev.Place != merged.Place ||
		prev.Solving != merged.Solving ||
		prev.SkipInStats != merged.SkipInStats ||
		!CanonicalEqual(prev.Addition, merged.Addition)
	return merged, changed
}

// synthesizeRatingChange fills rating_change from old/new rating when the
// source publishes both but not the delta.
func synthesizeRatingChange(addition map[string]any) {
	if _, ok := addition[FieldRatingChange]; ok {
		return
	}
	oldR, okOld := Number(addition[FieldOldRating])
	newR, okNew := Number(addition[FieldNewRating])
	if !okOld || !okNew {
		return
	}
	addition[FieldRatingChange] = int(newR) - int(oldR)
}

// preserveSolveTimes keeps the previously recorded per-problem time for
// problems whose result did not change since the last poll. Repeated live
// polling must not reset already-recorded solve timestamps.
func preserveSolveTimes(merged, prev map[string]any) {
	mp, okM := problemsOf(merged)
	pp, okP := problemsOf(prev)
	if !okM || !okP {
		return
	}
	for short, mv := range mp {
		mProblem, ok := mv.(map[string]any)
		if !ok {
			continue
		}
		pProblem, ok := pp[short].(map[string]any)
		if !ok {
			continue
		}
		prevTime, hasTime := pProblem[problemTime]
		if !hasTime {
			continue
		}
		if !CanonicalEqual(mProblem[problemResult], pProblem[problemResult]) {
			continue
		}
		mProblem[problemTime] = prevTime
	}
}

func problemsOf(addition map[string]any) (map[string]any, bool) {
	p, ok := addition[FieldProblems].(map[string]any)
	return p, ok
}

// AppendFields returns the field registry extended with any addition keys
// not seen before. Known fields keep their positions; new keys are appended
// in sorted order so repeated passes stay deterministic.
func AppendFields(registry []string, addition map[string]any) []string {
	known := make(map[string]bool, len(registry))
	for _, f := range registry {
		known[f] = true
	}
	var fresh []string
	for k := range addition {
		if !known[k] {
			fresh = append(fresh, k)
			known[k] = true
		}
	}
	sort.Strings(fresh)
	return append(registry, fresh...)
}

// Canonical returns the canonical serialization of a value: JSON with map
// keys sorted and numbers normalized through a decode round trip, so that
// an int fetched from the adapter compares equal to the float64 the same
// value decodes to from storage.
func Canonical(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		// Addition values are JSON-representable by construction.
		panic(fmt.Sprintf("canonical serialization: %v", err))
	}
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		panic(fmt.Sprintf("canonical normalization: %v", err))
	}
	out, err := json.Marshal(norm)
	if err != nil {
		panic(fmt.Sprintf("canonical serialization: %v", err))
	}
	return out
}

// CanonicalEqual reports whether two values share a canonical serialization.
func CanonicalEqual(a, b any) bool {
	return string(Canonical(a)) == string(Canonical(b))
}

// Number extracts a numeric value from an addition field, accepting the
// types JSON decoding and adapters produce.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
