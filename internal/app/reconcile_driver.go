package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/example/podium/internal/core/reconcile"
	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/ports/secondary"
)

// reconcileContest merges one fetched standings result into the stored rows
// and applies the resulting change set in one transaction. It returns the
// contest's hidden-results flag for the scheduler.
func (s *ParseServiceImpl) reconcileContest(
	ctx context.Context,
	contest *secondary.ContestRecord,
	known map[string]*secondary.StatisticsRecord,
	result *secondary.StandingsResult,
	req primary.ParseRequest,
	now time.Time,
) (bool, secondary.WriteCounts, error) {
	opts := reconcile.Options{
		Live:       contestWindow(contest).Running(now),
		ForceTimes: req.ForceTimes,
	}

	// Sorted iteration keeps account creation and upsert order
	// deterministic across passes.
	keys := make([]string, 0, len(result.Rows))
	for key := range result.Rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cs := &secondary.StandingsChangeSet{ContestID: contest.ID}
	merged := map[string]reconcile.Row{}
	registry := contest.Fields
	seen := map[string]bool{}

	for _, key := range keys {
		if key == "" {
			log.Printf("contest %d: dropping standings row without participant key", contest.ID)
			continue
		}
		fetched := result.Rows[key]
		seen[key] = true

		account, err := s.accounts.GetOrCreate(ctx, contest.Source, key)
		if err != nil {
			return false, secondary.WriteCounts{}, fmt.Errorf("failed to resolve account %q: %w", key, err)
		}
		if !req.NoUpdateResults {
			if err := s.accounts.ApplyDelta(ctx, account.ID, fetched.Account); err != nil {
				return false, secondary.WriteCounts{}, fmt.Errorf("failed to update account %q: %w", key, err)
			}
		}

		var prev *reconcile.Row
		prevRecord := known[key]
		if prevRecord != nil {
			prev = &reconcile.Row{
				Place:       prevRecord.Place,
				Solving:     prevRecord.Solving,
				Addition:    prevRecord.Addition,
				SkipInStats: prevRecord.SkipInStats,
			}
		}

		row, changed := reconcile.MergeRow(prev, reconcile.Update{
			Place:       fetched.Place,
			Solving:     fetched.Solving,
			Addition:    fetched.Addition,
			SkipInStats: fetched.SkipInStats,
		}, opts)
		merged[key] = row
		registry = reconcile.AppendFields(registry, row.Addition)

		if !changed {
			continue
		}
		record := &secondary.StatisticsRecord{
			ContestID:   contest.ID,
			AccountID:   account.ID,
			AccountKey:  key,
			Place:       row.Place,
			PlaceAsInt:  reconcile.PlaceAsInt(row.Place),
			Solving:     row.Solving,
			Addition:    row.Addition,
			SkipInStats: row.SkipInStats,
		}
		if prevRecord != nil {
			record.ID = prevRecord.ID
		}
		cs.Upserts = append(cs.Upserts, record)
	}

	// Accounts absent from an authoritative fetch are removed, the source
	// no longer lists them.
	for key, record := range known {
		if !seen[key] {
			cs.DeleteIDs = append(cs.DeleteIDs, record.ID)
		}
	}
	sort.Slice(cs.DeleteIDs, func(a, b int) bool { return cs.DeleteIDs[a] < cs.DeleteIDs[b] })

	tallies := reconcile.ProblemTallies(merged)
	cs.Tallies = make(map[string]secondary.ProblemTally, len(tallies))
	for short, tally := range tallies {
		cs.Tallies[short] = secondary.ProblemTally{Attempts: tally.Attempts, Accepted: tally.Accepted}
	}

	hidden := result.HasHiddenResults || reconcile.SubJudiceCount(merged) > 0
	cs.Meta = s.contestMeta(contest, result, registry, hidden, merged)

	if req.NoUpdateResults {
		log.Printf("contest %d: dry run, skipping %d upserts and %d deletes",
			contest.ID, len(cs.Upserts), len(cs.DeleteIDs))
		return hidden, secondary.WriteCounts{}, nil
	}

	counts, err := s.stats.Apply(ctx, cs)
	if err != nil {
		return hidden, counts, fmt.Errorf("failed to apply standings: %w", err)
	}
	return hidden, counts, nil
}

// contestMeta builds the contest-level metadata update, containing only the
// pieces that actually changed. Returns nil when nothing did.
func (s *ParseServiceImpl) contestMeta(
	contest *secondary.ContestRecord,
	result *secondary.StandingsResult,
	registry []string,
	hidden bool,
	merged map[string]reconcile.Row,
) *secondary.ContestMetaUpdate {
	meta := &secondary.ContestMetaUpdate{}
	changed := false

	if len(registry) != len(contest.Fields) {
		meta.Fields = registry
		changed = true
	}
	if result.Problems != nil && !reconcile.CanonicalEqual(result.Problems, contest.Problems) {
		meta.Problems = result.Problems
		changed = true
	}

	prevHidden, _ := contest.Info[infoHidden].(bool)
	if hidden != prevHidden {
		info := make(map[string]any, len(contest.Info)+1)
		for k, v := range contest.Info {
			info[k] = v
		}
		if hidden {
			info[infoHidden] = true
		} else {
			delete(info, infoHidden)
		}
		meta.Info = info
		changed = true
	}

	// A contest whose rows never carry per-problem times ranks by penalty
	// arithmetic instead of timestamps.
	calcTime := !anySolveTime(merged)
	if len(merged) > 0 && calcTime != contest.CalculateTime {
		meta.CalculateTime = &calcTime
		changed = true
	}

	if result.URL != "" && result.URL != contest.URL {
		url := result.URL
		meta.URL = &url
		changed = true
	}
	if result.Invisible != contest.Invisible {
		invisible := result.Invisible
		meta.Invisible = &invisible
		changed = true
	}

	if !changed {
		return nil
	}
	return meta
}

// anySolveTime reports whether any merged row carries a per-problem time.
func anySolveTime(rows map[string]reconcile.Row) bool {
	for _, row := range rows {
		problems, ok := row.Addition[reconcile.FieldProblems].(map[string]any)
		if !ok {
			continue
		}
		for _, pv := range problems {
			problem, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			if _, has := problem["time"]; has {
				return true
			}
		}
	}
	return false
}
