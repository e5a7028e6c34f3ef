package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/example/podium/internal/core/rating"
	"github.com/example/podium/internal/core/reconcile"
	"github.com/example/podium/internal/metrics"
	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/ports/secondary"
)

// RatingServiceImpl implements the RatingService interface: the rating
// predictor batch over rated finished contests.
type RatingServiceImpl struct {
	contests secondary.ContestRepository
	accounts secondary.AccountRepository
	stats    secondary.StatisticsRepository

	now func() time.Time
}

// NewRatingService creates a new RatingService with injected dependencies.
func NewRatingService(
	contests secondary.ContestRepository,
	accounts secondary.AccountRepository,
	stats secondary.StatisticsRepository,
) *RatingServiceImpl {
	return &RatingServiceImpl{
		contests: contests,
		accounts: accounts,
		stats:    stats,
		now:      time.Now,
	}
}

// RateContests computes expected ratings and rating changes for the selected
// rated contests. Each contest's rating write is one transaction; a failure
// in one contest never blocks the rest of the batch.
func (s *RatingServiceImpl) RateContests(ctx context.Context, req primary.RateRequest) (*primary.RateSummary, error) {
	pool, err := s.contests.List(ctx, secondary.ContestFilters{IDs: req.ContestIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}

	now := s.now()
	summary := &primary.RateSummary{}
	for _, contest := range pool {
		if !contest.Rated || contest.Stage {
			continue
		}
		if contest.End.After(now) && len(req.ContestIDs) == 0 {
			continue
		}

		outcome := primary.RateOutcome{ContestID: contest.ID, Key: contest.Key}
		participants, skipped, err := s.rateOne(ctx, contest, req.Force)
		outcome.Participants = participants
		switch {
		case err != nil:
			metrics.RatingPasses.WithLabelValues("error").Inc()
			log.Printf("rating %s/%s: %v", contest.Source, contest.Key, err)
			outcome.Skipped = err.Error()
			summary.Skipped++
		case skipped != "":
			metrics.RatingPasses.WithLabelValues("skipped").Inc()
			outcome.Skipped = skipped
			summary.Skipped++
		default:
			metrics.RatingPasses.WithLabelValues("computed").Inc()
			summary.Computed++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	return summary, nil
}

// rateOne runs the rating pass for one contest. It returns the participant
// count and a non-empty skip reason when no computation was needed.
func (s *RatingServiceImpl) rateOne(ctx context.Context, contest *secondary.ContestRecord, force bool) (int, string, error) {
	rows, err := s.stats.ListByContest(ctx, contest.ID)
	if err != nil {
		return 0, "", fmt.Errorf("failed to list statistics: %w", err)
	}

	keys := make([]string, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var (
		entries []rating.Entry
		records []*secondary.StatisticsRecord
	)
	for _, key := range keys {
		record := rows[key]
		if record.SkipInStats || record.PlaceAsInt <= 0 {
			continue
		}
		account, err := s.accounts.GetOrCreate(ctx, contest.Source, key)
		if err != nil {
			return 0, "", fmt.Errorf("failed to resolve account %q: %w", key, err)
		}
		// The account's rated-contest counter includes this contest once
		// a pass ran; prior experience must not.
		prior := int(account.NContests)
		if record.RatingChange != nil && prior > 0 {
			prior--
		}
		entries = append(entries, rating.Entry{
			Account:       key,
			OldRating:     oldRating(record, account),
			Rank:          int(record.PlaceAsInt),
			PriorContests: prior,
		})
		records = append(records, record)
	}

	if len(entries) < 2 {
		return len(entries), "insufficient data", nil
	}

	hash := rating.ContentHash(entries)
	if !force {
		stored, err := s.stats.RatingHash(ctx, contest.ID)
		if err != nil {
			return len(entries), "", err
		}
		if stored == hash {
			return len(entries), "unchanged", nil
		}
	}

	results, err := rating.Predict(entries)
	if err != nil {
		var bracket *rating.BracketError
		if errors.As(err, &bracket) {
			log.Printf("rating %s/%s: ABORTED, %v", contest.Source, contest.Key, bracket)
		}
		return len(entries), "", err
	}

	byAccount := make(map[string]rating.Result, len(results))
	for _, res := range results {
		byAccount[res.Account] = res
	}

	cs := &secondary.RatingChangeSet{ContestID: contest.ID, ContentHash: hash}
	for i, entry := range entries {
		res := byAccount[entry.Account]
		change := int64(math.Round(res.RatingChange))
		cs.Writes = append(cs.Writes, secondary.RatingWrite{
			StatisticID:  records[i].ID,
			AccountID:    records[i].AccountID,
			NewRating:    int64(math.Round(entry.OldRating)) + change,
			RatingChange: change,
		})
	}

	if err := s.stats.ApplyRating(ctx, cs); err != nil {
		return len(entries), "", err
	}
	return len(entries), "", nil
}

// oldRating resolves a participant's pre-contest rating: the source-published
// one when present, then the rating implied by an earlier pass over this same
// contest, then the stored account rating, then the initial seed. Recovering
// the pre-contest value from an already-rated row keeps the content hash
// stable across passes.
func oldRating(record *secondary.StatisticsRecord, account *secondary.AccountRecord) float64 {
	if r, ok := reconcile.Number(record.Addition[reconcile.FieldOldRating]); ok {
		return r
	}
	if record.NewRating != nil && record.RatingChange != nil {
		return float64(*record.NewRating - *record.RatingChange)
	}
	if account.Rating != nil {
		return float64(*account.Rating)
	}
	return rating.InitialRating
}
