// Package app implements the primary ports: the scheduling, reconciliation,
// rating and stage services the CLI drives.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/podium/internal/config"
	"github.com/example/podium/internal/core/schedule"
	"github.com/example/podium/internal/metrics"
	"github.com/example/podium/internal/ports/primary"
	"github.com/example/podium/internal/ports/secondary"
)

// infoHidden is the contest info key carrying the hidden-results flag
// between parses.
const infoHidden = "hidden"

// claimLease is how far next_attempt_time is pushed when a batch claims its
// contests; the per-contest outcome write replaces it.
const claimLease = 10 * time.Minute

// AdapterResolver turns a registered adapter name and its settings into an
// adapter instance. Injected so tests can supply fakes.
type AdapterResolver func(name string, settings map[string]any) (secondary.SourceAdapter, error)

// ParseServiceImpl implements the ParseService interface: the contest
// scheduler and the reconciliation driver.
type ParseServiceImpl struct {
	contests secondary.ContestRepository
	schedule secondary.ScheduleRepository
	accounts secondary.AccountRepository
	stats    secondary.StatisticsRepository
	sources  *config.SourceRegistry
	stages   primary.StageService
	resolve  AdapterResolver

	workers      int
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewParseService creates a new ParseService with injected dependencies.
// stages may be nil when stage rollups are disabled.
func NewParseService(
	contests secondary.ContestRepository,
	scheduleRepo secondary.ScheduleRepository,
	accounts secondary.AccountRepository,
	stats secondary.StatisticsRepository,
	sources *config.SourceRegistry,
	stages primary.StageService,
	resolve AdapterResolver,
	cfg *config.Config,
) *ParseServiceImpl {
	return &ParseServiceImpl{
		contests:     contests,
		schedule:     scheduleRepo,
		accounts:     accounts,
		stats:        stats,
		sources:      sources,
		stages:       stages,
		resolve:      resolve,
		workers:      cfg.Workers,
		fetchTimeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		now:          time.Now,
	}
}

// ParseContests runs one scheduling batch: select due contests, claim their
// schedules in one transaction, fetch and reconcile each with a bounded
// worker pool, and write every outcome back.
func (s *ParseServiceImpl) ParseContests(ctx context.Context, req primary.ParseRequest) (*primary.ParseSummary, error) {
	batchID := uuid.NewString()[:8]
	now := s.now()

	pool, err := s.contests.List(ctx, secondary.ContestFilters{
		SourcePattern:   req.SourcePattern,
		IDs:             req.ContestIDs,
		OnlyNeverParsed: req.OnlyNew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}

	candidates, err := s.selectCandidates(ctx, pool, req, now)
	if err != nil {
		return nil, err
	}

	if req.Shuffle {
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}

	// Claim the whole batch before any fetching begins so an overlapping
	// scheduler run does not pick the same contests.
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	if err := s.schedule.Claim(ctx, ids, now.Add(claimLease)); err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}

	summary := &primary.ParseSummary{BatchID: batchID, Attempted: len(candidates)}
	log.Printf("[batch %s] parsing %d contests", batchID, len(candidates))

	workers := req.Workers
	if workers <= 0 {
		workers = s.workers
	}
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan *secondary.ContestRecord)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for contest := range work {
				err := s.parseOne(batchCtx, batchID, contest, req)
				mu.Lock()
				if err != nil {
					summary.Failures = append(summary.Failures, primary.ContestFailure{
						ContestID: contest.ID,
						Source:    contest.Source,
						Key:       contest.Key,
						Reason:    err.Error(),
					})
					if req.StopOnError {
						cancel()
					}
				} else {
					summary.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}

	for _, contest := range candidates {
		select {
		case work <- contest:
		case <-batchCtx.Done():
		}
		if batchCtx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()

	sort.Slice(summary.Failures, func(a, b int) bool {
		return summary.Failures[a].ContestID < summary.Failures[b].ContestID
	})
	log.Printf("[batch %s] done: %d attempted, %d succeeded", batchID, summary.Attempted, summary.Succeeded)

	if req.StopOnError && len(summary.Failures) > 0 {
		return summary, fmt.Errorf("batch stopped on first error: %s", summary.Failures[0].Reason)
	}
	return summary, nil
}

// selectCandidates applies the scheduling windows to the filtered pool.
// Explicit id requests bypass the windows.
func (s *ParseServiceImpl) selectCandidates(ctx context.Context, pool []*secondary.ContestRecord, req primary.ParseRequest, now time.Time) ([]*secondary.ContestRecord, error) {
	if req.IgnoreSchedule || len(req.ContestIDs) > 0 {
		return pool, nil
	}

	var candidates []*secondary.ContestRecord
	for _, contest := range pool {
		src, ok := s.sources.Get(contest.Source)
		if !ok {
			continue
		}
		state, err := s.scheduleState(ctx, contest, now)
		if err != nil {
			return nil, err
		}
		if schedule.Candidate(contestWindow(contest), state, src.Timing(), now) {
			candidates = append(candidates, contest)
		}
	}
	return candidates, nil
}

func contestWindow(c *secondary.ContestRecord) schedule.Window {
	return schedule.Window{Start: c.Start, End: c.End}
}

func (s *ParseServiceImpl) scheduleState(ctx context.Context, contest *secondary.ContestRecord, now time.Time) (schedule.State, error) {
	state := schedule.State{
		NextAttempt:       contest.NextAttempt,
		LastSuccess:       contest.LastSuccess,
		ConsecutiveErrors: contest.ConsecutiveErrors,
	}
	hidden, _ := contest.Info[infoHidden].(bool)
	state.HasHiddenResults = hidden

	if contestWindow(contest).Running(now) {
		count, err := s.stats.CountByContest(ctx, contest.ID)
		if err != nil {
			return state, fmt.Errorf("failed to count statistics: %w", err)
		}
		state.HasStatistics = count > 0
	}
	return state, nil
}

// parseOne fetches and reconciles one contest. Errors are recovered at this
// boundary: the schedule write happens on every path, and only the
// per-contest failure propagates into the summary.
func (s *ParseServiceImpl) parseOne(ctx context.Context, batchID string, contest *secondary.ContestRecord, req primary.ParseRequest) error {
	now := s.now()
	label := fmt.Sprintf("[batch %s] %s/%s", batchID, contest.Source, contest.Key)

	// The stored hidden-results flag keeps the short re-poll cap in force
	// across failed attempts; only a reconciliation pass may clear it.
	hidden, _ := contest.Info[infoHidden].(bool)

	src, ok := s.sources.Get(contest.Source)
	if !ok {
		metrics.FetchAttempts.WithLabelValues(contest.Source, "config").Inc()
		log.Printf("%s: no source registry entry", label)
		return s.writeOutcome(ctx, contest, schedule.OutcomeError, hidden, now,
			fmt.Errorf("no source registry entry for %s", contest.Source))
	}
	timing := src.Timing()

	adapter, err := s.resolve(src.Adapter, src.Settings)
	if err != nil {
		metrics.FetchAttempts.WithLabelValues(contest.Source, "config").Inc()
		log.Printf("%s: adapter config: %v", label, err)
		return s.writeOutcomeT(ctx, contest, schedule.OutcomeError, hidden, now, timing, err)
	}

	known, err := s.stats.ListByContest(ctx, contest.ID)
	if err != nil {
		return fmt.Errorf("failed to load known statistics: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	result, err := adapter.FetchStandings(fetchCtx, contest, known)
	cancel()
	if err != nil {
		outcome := classifyFetchError(err)
		metrics.FetchAttempts.WithLabelValues(contest.Source, outcome).Inc()
		log.Printf("%s: fetch failed (%s): %v", label, outcome, err)
		return s.writeOutcomeT(ctx, contest, schedule.OutcomeError, hidden, now, timing, err)
	}

	switch result.Action {
	case secondary.ActionDeleteContest:
		metrics.FetchAttempts.WithLabelValues(contest.Source, "delete").Inc()
		log.Printf("%s: source signaled deletion", label)
		if req.NoUpdateResults {
			// Dry run keeps the contest; replace the claim lease with a
			// computed backoff like any other rowless answer.
			return s.writeOutcomeT(ctx, contest, schedule.OutcomeEmpty, hidden, now, timing, nil)
		}
		if err := s.contests.Delete(ctx, contest.ID); err != nil {
			return fmt.Errorf("failed to delete contest: %w", err)
		}
		return nil
	case secondary.ActionUpdateURL:
		metrics.FetchAttempts.WithLabelValues(contest.Source, "update-url").Inc()
		if !req.NoUpdateResults && result.URL != "" && result.URL != contest.URL {
			url := result.URL
			_, err := s.stats.Apply(ctx, &secondary.StandingsChangeSet{
				ContestID: contest.ID,
				Meta:      &secondary.ContestMetaUpdate{URL: &url},
			})
			if err != nil {
				return fmt.Errorf("failed to update url: %w", err)
			}
		}
		// No rows came with the action; back off like an empty answer.
		return s.writeOutcomeT(ctx, contest, schedule.OutcomeEmpty, hidden, now, timing, nil)
	}

	if len(result.Rows) == 0 {
		metrics.FetchAttempts.WithLabelValues(contest.Source, "empty").Inc()
		log.Printf("%s: standings not ready", label)
		return s.writeOutcomeT(ctx, contest, schedule.OutcomeEmpty, hidden || result.HasHiddenResults, now, timing, nil)
	}

	var counts secondary.WriteCounts
	hidden, counts, err = s.reconcileContest(ctx, contest, known, result, req, now)
	if err != nil {
		metrics.FetchAttempts.WithLabelValues(contest.Source, "reconcile-error").Inc()
		log.Printf("%s: reconcile failed: %v", label, err)
		return s.writeOutcomeT(ctx, contest, schedule.OutcomeError, hidden, now, timing, err)
	}

	metrics.FetchAttempts.WithLabelValues(contest.Source, "rows").Inc()
	metrics.CountWrites(counts.Created, counts.Updated, counts.Deleted)
	log.Printf("%s: %d rows (%d created, %d updated, %d deleted)",
		label, len(result.Rows), counts.Created, counts.Updated, counts.Deleted)

	if err := s.writeOutcomeT(ctx, contest, schedule.OutcomeRows, hidden, now, timing, nil); err != nil {
		return err
	}

	// A non-failed parse may feed a stage whose window contains this
	// contest.
	if s.stages != nil && !req.NoUpdateResults {
		if err := s.stages.RecomputeStagesContaining(ctx, contest.ID); err != nil {
			log.Printf("%s: stage rollup failed: %v", label, err)
		}
	}
	return nil
}

// writeOutcomeT persists the schedule for one attempt outcome and returns
// the attempt's error (nil for non-failed attempts).
func (s *ParseServiceImpl) writeOutcomeT(ctx context.Context, contest *secondary.ContestRecord, outcome schedule.Outcome, hidden bool, now time.Time, timing schedule.Timing, attemptErr error) error {
	state := schedule.State{
		LastSuccess:       contest.LastSuccess,
		ConsecutiveErrors: contest.ConsecutiveErrors,
		HasHiddenResults:  hidden,
	}
	next := schedule.Next(outcome, contestWindow(contest), state, timing, now)
	success := outcome == schedule.OutcomeRows
	if err := s.schedule.Write(ctx, contest.ID, next, success, now); err != nil {
		return fmt.Errorf("failed to write schedule: %w", err)
	}
	return attemptErr
}

// writeOutcome is writeOutcomeT with default timings, for contests whose
// source is not registered.
func (s *ParseServiceImpl) writeOutcome(ctx context.Context, contest *secondary.ContestRecord, outcome schedule.Outcome, hidden bool, now time.Time, attemptErr error) error {
	return s.writeOutcomeT(ctx, contest, outcome, hidden, now, schedule.Timing{}, attemptErr)
}

// classifyFetchError maps the adapter error taxonomy onto a metrics label.
func classifyFetchError(err error) string {
	var (
		structural *secondary.StructuralError
		transient  *secondary.TransientError
	)
	switch {
	case secondary.IsConfigError(err):
		return "config"
	case errors.As(err, &structural):
		return "structural"
	case errors.As(err, &transient):
		return "transient"
	default:
		return "transient"
	}
}
