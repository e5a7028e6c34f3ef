package app

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/example/podium/internal/core/reconcile"
	"github.com/example/podium/internal/core/stage"
	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/ports/secondary"
)

// StageServiceImpl implements the StageService interface: rolling member
// contests up into synthetic stage standings.
type StageServiceImpl struct {
	contests secondary.ContestRepository
	accounts secondary.AccountRepository
	stats    secondary.StatisticsRepository
}

// NewStageService creates a new StageService with injected dependencies.
func NewStageService(
	contests secondary.ContestRepository,
	accounts secondary.AccountRepository,
	stats secondary.StatisticsRepository,
) *StageServiceImpl {
	return &StageServiceImpl{contests: contests, accounts: accounts, stats: stats}
}

// RecomputeStage rebuilds one stage contest's standing from its member
// contests. The resulting rows replace the stage's statistics in one
// transaction; unchanged rows are skipped.
func (s *StageServiceImpl) RecomputeStage(ctx context.Context, stageID int64) (*primary.StageSummary, error) {
	stageContest, err := s.contests.GetByID(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	if !stageContest.Stage {
		return nil, fmt.Errorf("contest %d is not a stage", stageID)
	}

	memberContests, err := s.contests.MembersWithin(ctx, stageContest.Source, stageContest.Start, stageContest.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage members: %w", err)
	}

	members := make([]stage.Member, 0, len(memberContests))
	rows := map[string][]stage.MemberRow{}
	for _, member := range memberContests {
		members = append(members, stage.Member{Key: member.Key, Title: member.Title})

		stats, err := s.stats.ListByContest(ctx, member.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list member statistics: %w", err)
		}
		for key, record := range stats {
			if record.SkipInStats {
				continue
			}
			rows[member.Key] = append(rows[member.Key], stage.MemberRow{
				Account: key,
				Solving: record.Solving,
			})
		}
		sort.Slice(rows[member.Key], func(a, b int) bool {
			return rows[member.Key][a].Account < rows[member.Key][b].Account
		})
	}

	standing := stage.Standings(members, rows)

	cs, err := s.stageChangeSet(ctx, stageContest, standing)
	if err != nil {
		return nil, err
	}
	if _, err := s.stats.Apply(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to apply stage standing: %w", err)
	}

	return &primary.StageSummary{
		StageID: stageID,
		Members: len(members),
		Rows:    len(standing),
	}, nil
}

// stageChangeSet diffs a computed standing against the stage's stored rows.
func (s *StageServiceImpl) stageChangeSet(ctx context.Context, stageContest *secondary.ContestRecord, standing []stage.Row) (*secondary.StandingsChangeSet, error) {
	known, err := s.stats.ListByContest(ctx, stageContest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage statistics: %w", err)
	}

	cs := &secondary.StandingsChangeSet{ContestID: stageContest.ID}
	registry := stageContest.Fields
	seen := map[string]bool{}

	for _, row := range standing {
		seen[row.Account] = true

		account, err := s.accounts.GetOrCreate(ctx, stageContest.Source, row.Account)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve account %q: %w", row.Account, err)
		}

		merged, changed := mergeStageRow(known[row.Account], row)
		registry = reconcile.AppendFields(registry, row.Addition)
		if !changed {
			continue
		}
		merged.ContestID = stageContest.ID
		merged.AccountID = account.ID
		merged.AccountKey = row.Account
		cs.Upserts = append(cs.Upserts, merged)
	}

	for key, record := range known {
		if !seen[key] {
			cs.DeleteIDs = append(cs.DeleteIDs, record.ID)
		}
	}
	sort.Slice(cs.DeleteIDs, func(a, b int) bool { return cs.DeleteIDs[a] < cs.DeleteIDs[b] })

	if len(registry) != len(stageContest.Fields) {
		cs.Meta = &secondary.ContestMetaUpdate{Fields: registry}
	}
	return cs, nil
}

// mergeStageRow turns one computed stage row into a statistics record and
// reports whether it differs from the stored one.
func mergeStageRow(prev *secondary.StatisticsRecord, row stage.Row) (*secondary.StatisticsRecord, bool) {
	record := &secondary.StatisticsRecord{
		Place:      row.Place,
		PlaceAsInt: row.PlaceAsInt,
		Solving:    row.Solving,
		Addition:   row.Addition,
	}
	if prev == nil {
		return record, true
	}
	record.ID = prev.ID
	changed := prev.Place != row.Place ||
		prev.Solving != row.Solving ||
		!reconcile.CanonicalEqual(prev.Addition, row.Addition)
	return record, changed
}

// RecomputeStagesContaining rebuilds every stage of the contest's source
// whose window contains the contest. Invoked after each non-failed parse.
func (s *StageServiceImpl) RecomputeStagesContaining(ctx context.Context, contestID int64) error {
	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return fmt.Errorf("failed to get contest: %w", err)
	}
	if contest.Stage {
		return nil
	}

	stages, err := s.contests.StagesContaining(ctx, contest.Source, contest.Start, contest.End)
	if err != nil {
		return fmt.Errorf("failed to list containing stages: %w", err)
	}
	for _, st := range stages {
		summary, err := s.RecomputeStage(ctx, st.ID)
		if err != nil {
			return fmt.Errorf("failed to recompute stage %d: %w", st.ID, err)
		}
		log.Printf("stage %s/%s: %d members, %d rows", st.Source, st.Key, summary.Members, summary.Rows)
	}
	return nil
}
