// Package stage computes synthetic meta-contest standings: a stage is a
// rollup whose rows aggregate the statistics of several member contests
// (for example a multi-round series) into one standing.
//
// All inputs are pre-fetched by the caller - no I/O in this package.
package stage

import (
	"fmt"
	"sort"
)

// Member identifies one contest inside a stage, in round order.
type Member struct {
	Key   string
	Title string
}

// MemberRow is one account's row inside a member contest.
type MemberRow struct {
	Account string
	Solving float64
}

// Row is one computed stage standing row.
type Row struct {
	Account    string
	Place      string
	PlaceAsInt int64
	Solving    float64
	Addition   map[string]any
}

// Standings rolls member-contest rows up into one ranked stage standing.
// Score is the sum of solving over the stage's members; rows are ranked by
// total descending with standard competition ranking (ties share a place,
// rendered as "start-end"). Accounts tie-break alphabetically for
// deterministic output.
func Standings(members []Member, rows map[string][]MemberRow) []Row {
	type tally struct {
		total     float64
		perMember map[string]float64
	}
	totals := map[string]*tally{}
	for _, m := range members {
		for _, r := range rows[m.Key] {
			acc := totals[r.Account]
			if acc == nil {
				acc = &tally{perMember: map[string]float64{}}
				totals[r.Account] = acc
			}
			acc.total += r.Solving
			acc.perMember[m.Key] += r.Solving
		}
	}

	out := make([]Row, 0, len(totals))
	for account, acc := range totals {
		addition := map[string]any{"total": acc.total}
		for _, m := range members {
			if score, ok := acc.perMember[m.Key]; ok {
				addition[m.Key] = score
			}
		}
		out = append(out, Row{Account: account, Solving: acc.total, Addition: addition})
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Solving != out[b].Solving {
			return out[a].Solving > out[b].Solving
		}
		return out[a].Account < out[b].Account
	})

	assignPlaces(out)
	return out
}

// assignPlaces applies standard competition ranking over the sorted rows.
func assignPlaces(rows []Row) {
	i := 0
	for i < len(rows) {
		j := i
		for j < len(rows) && rows[j].Solving == rows[i].Solving {
			j++
		}
		place := fmt.Sprintf("%d", i+1)
		if j-i > 1 {
			place = fmt.Sprintf("%d-%d", i+1, j)
		}
		for k := i; k < j; k++ {
			rows[k].Place = place
			rows[k].PlaceAsInt = int64(i + 1)
		}
		i = j
	}
}
