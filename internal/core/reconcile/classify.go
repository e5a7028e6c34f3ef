package reconcile

import (
	"strconv"
	"strings"
)

// Verdict classifies one per-problem result token.
type Verdict int

const (
	// VerdictUnknown covers malformed or source-specific tokens; they are
	// stored verbatim but never counted.
	VerdictUnknown Verdict = iota
	// VerdictRejected is an attempted but unaccepted problem.
	VerdictRejected
	// VerdictPartial is a positive score explicitly marked partial.
	VerdictPartial
	// VerdictAccepted is a clear accept.
	VerdictAccepted
	// VerdictSubJudice is a result still under evaluation upstream.
	VerdictSubJudice
)

// Classify applies the accept heuristic to one problem entry: a "+"-prefixed
// token or a positive numeric score that is not explicitly partial counts as
// accepted; "-"-prefixed tokens count as rejected attempts; "?"-prefixed
// tokens are sub judice.
func Classify(problem map[string]any) Verdict {
	partial, _ := problem["partial"].(bool)

	switch r := problem[problemResult].(type) {
	case string:
		switch {
		case r == "":
			return VerdictUnknown
		case strings.HasPrefix(r, "+"):
			return VerdictAccepted
		case strings.HasPrefix(r, "-"):
			return VerdictRejected
		case strings.HasPrefix(r, "?"):
			return VerdictSubJudice
		}
		n, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return VerdictUnknown
		}
		return numericVerdict(n, partial)
	default:
		n, ok := Number(r)
		if !ok {
			return VerdictUnknown
		}
		return numericVerdict(n, partial)
	}
}

func numericVerdict(n float64, partial bool) Verdict {
	switch {
	case n <= 0:
		return VerdictRejected
	case partial:
		return VerdictPartial
	default:
		return VerdictAccepted
	}
}

// Tally holds the per-problem counters recomputed on every pass.
type Tally struct {
	Attempts int
	Accepted int
}

// ProblemTallies recomputes attempt/accept counters per problem short code
// from the full row set. Rows flagged skip_in_stats are excluded from the
// counters entirely.
func ProblemTallies(rows map[string]Row) map[string]Tally {
	tallies := map[string]Tally{}
	for _, row := range rows {
		if row.SkipInStats {
			continue
		}
		problems, ok := problemsOf(row.Addition)
		if !ok {
			continue
		}
		for short, pv := range problems {
			problem, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			tally := tallies[short]
			switch Classify(problem) {
			case VerdictAccepted:
				tally.Attempts++
				tally.Accepted++
			case VerdictRejected, VerdictPartial, VerdictSubJudice:
				tally.Attempts++
			}
			tallies[short] = tally
		}
	}
	return tallies
}

// SubJudiceCount counts distinct problem results still under evaluation.
// A non-zero count flags the contest for a short re-poll regardless of the
// normal backoff.
func SubJudiceCount(rows map[string]Row) int {
	count := 0
	for _, row := range rows {
		problems, ok := problemsOf(row.Addition)
		if !ok {
			continue
		}
		for _, pv := range problems {
			problem, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			if Classify(problem) == VerdictSubJudice {
				count++
			}
		}
	}
	return count
}

// PlaceAsInt derives the integer rank used for comparisons from a place
// string such as "5" or "5-7" (shared places). Returns 0 when no leading
// integer is present.
func PlaceAsInt(place string) int64 {
	end := 0
	for end < len(place) && place[end] >= '0' && place[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(place[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
