package app

import (
	"context"
	"fmt"

	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/ports/secondary"
)

// ContestServiceImpl implements the read-side ContestService interface.
type ContestServiceImpl struct {
	contests secondary.ContestRepository
	stats    secondary.StatisticsRepository
}

// NewContestService creates a new ContestService with injected dependencies.
func NewContestService(contests secondary.ContestRepository, stats secondary.StatisticsRepository) *ContestServiceImpl {
	return &ContestServiceImpl{contests: contests, stats: stats}
}

// ListContests lists contests with optional filters.
func (s *ContestServiceImpl) ListContests(ctx context.Context, filters primary.ContestListFilters) ([]*primary.Contest, error) {
	records, err := s.contests.List(ctx, secondary.ContestFilters{
		SourcePattern:   filters.SourcePattern,
		OnlyNeverParsed: filters.OnlyNew,
		Stages:          filters.Stages,
		Limit:           filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}

	out := make([]*primary.Contest, len(records))
	for i, record := range records {
		out[i] = toContestView(record)
	}
	return out, nil
}

// GetContest retrieves one contest with its statistics count.
func (s *ContestServiceImpl) GetContest(ctx context.Context, id int64) (*primary.Contest, error) {
	record, err := s.contests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	view := toContestView(record)
	if view.Statistics, err = s.stats.CountByContest(ctx, id); err != nil {
		return nil, err
	}
	return view, nil
}

func toContestView(record *secondary.ContestRecord) *primary.Contest {
	return &primary.Contest{
		ID:                record.ID,
		Source:            record.Source,
		Key:               record.Key,
		Title:             record.Title,
		URL:               record.URL,
		Start:             record.Start,
		End:               record.End,
		Rated:             record.Rated,
		Stage:             record.Stage,
		NextAttempt:       record.NextAttempt,
		LastSuccess:       record.LastSuccess,
		ConsecutiveErrors: record.ConsecutiveErrors,
		Fields:            record.Fields,
	}
}
