// Package schedule contains the pure scheduling logic for contest fetch
// attempts: which contests are due right now, and when the next attempt
// should happen given the outcome of the current one.
//
// All inputs are pre-fetched by the caller - no I/O in this package.
package schedule

import "time"

// Outcome classifies what a fetch attempt produced, as far as scheduling
// is concerned.
type Outcome int

const (
	// OutcomeRows means the adapter returned usable standings rows.
	OutcomeRows Outcome = iota
	// OutcomeEmpty means the adapter answered but standings are not
	// published yet. Backed off like an error.
	OutcomeEmpty
	// OutcomeError means the fetch or parse failed transiently.
	OutcomeError
)

// Fixed scheduling constants.
const (
	// liveRecheckDelay caps the next delay while a live contest still has
	// hidden (masked) results, so they are re-checked soon after unmasking.
	liveRecheckDelay = 30 * time.Minute
	// postEndGrace is how long after end_time a still-running contest's
	// success re-fetch is allowed to land.
	postEndGrace = 5 * time.Second
	// maxErrorDoublings bounds the exponential error backoff.
	maxErrorDoublings = 6
)

// Default source timings, used when the registry leaves a field unset.
const (
	defaultDelayOnSuccess       = 6 * time.Hour
	defaultDelayOnError         = 15 * time.Minute
	defaultMaxDelayAfterEnd     = 30 * 24 * time.Hour
	defaultLongContestThreshold = 24 * time.Hour
)

// Window is a contest's time window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the contest length.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Running reports whether the contest is in progress at now.
func (w Window) Running(now time.Time) bool {
	return !now.Before(w.Start) && now.Before(w.End)
}

// Finished reports whether the contest has ended at now.
func (w Window) Finished(now time.Time) bool { return !now.Before(w.End) }

// State is the mutable per-contest scheduling state, pre-fetched from the
// schedule store together with the facts the selection rule needs.
type State struct {
	NextAttempt       *time.Time
	LastSuccess       *time.Time
	ConsecutiveErrors int

	// HasStatistics is true when at least one statistics record exists
	// for the contest (live standings are publishable mid-contest).
	HasStatistics bool
	// HasHiddenResults is true when the upstream judge still masks some
	// results of a live contest.
	HasHiddenResults bool
}

// Timing holds the source-configured delays for one contest source.
type Timing struct {
	DelayOnSuccess       time.Duration
	DelayOnError         time.Duration
	MinDelayAfterEnd     time.Duration
	MaxDelayAfterEnd     time.Duration
	LongContestThreshold time.Duration
}

// withDefaults fills unset fields with package defaults.
func (t Timing) withDefaults() Timing {
	if t.DelayOnSuccess <= 0 {
		t.DelayOnSuccess = defaultDelayOnSuccess
	}
	if t.DelayOnError <= 0 {
		t.DelayOnError = defaultDelayOnError
	}
	if t.MaxDelayAfterEnd <= 0 {
		t.MaxDelayAfterEnd = defaultMaxDelayAfterEnd
	}
	if t.LongContestThreshold <= 0 {
		t.LongContestThreshold = defaultLongContestThreshold
	}
	return t
}

// Candidate reports whether a contest is due for a fetch attempt at now.
//
// A contest qualifies when its next_attempt_time is unset or past, and one
// of the selection windows applies: it has never been successfully parsed,
// its end time has passed and now falls inside the source's post-end fetch
// window, or it is running and already has publishable statistics.
func Candidate(w Window, s State, t Timing, now time.Time) bool {
	t = t.withDefaults()

	if s.NextAttempt != nil && now.Before(*s.NextAttempt) {
		return false
	}

	if s.LastSuccess == nil {
		return true
	}
	if w.Finished(now) {
		from := w.End.Add(t.MinDelayAfterEnd)
		until := w.End.Add(t.MaxDelayAfterEnd)
		return !now.Before(from) && !now.After(until)
	}
	return w.Running(now) && s.HasStatistics
}

// Next computes the next attempt time after an attempt with the given
// outcome. The caller is responsible for persisting the result; Next is
// never skipped, even for failed attempts.
func Next(o Outcome, w Window, s State, t Timing, now time.Time) time.Time {
	t = t.withDefaults()

	live := w.Running(now)
	short := w.Duration() <= t.LongContestThreshold

	var delay time.Duration
	switch o {
	case OutcomeRows:
		delay = t.DelayOnSuccess
	default:
		// Empty standings back off like errors: the source answered
		// but produced nothing usable.
		delay = errorDelay(t, s.ConsecutiveErrors)
	}
	if live && short {
		// Keep live standings of short contests fresh.
		delay = 0
	}

	next := now.Add(delay)

	if o == OutcomeRows && live {
		// A running contest's success re-fetch must land at most a few
		// seconds after end_time if that is sooner than the delay.
		if cap := w.End.Add(postEndGrace); next.After(cap) {
			next = cap
		}
	}
	if live && s.HasHiddenResults {
		if cap := now.Add(liveRecheckDelay); next.After(cap) {
			next = cap
		}
	}
	return next
}

// errorDelay doubles the source's error delay per consecutive prior error,
// capped both in doublings and by the source's post-end window.
func errorDelay(t Timing, priorErrors int) time.Duration {
	n := priorErrors
	if n > maxErrorDoublings {
		n = maxErrorDoublings
	}
	delay := t.DelayOnError << uint(n)
	if delay > t.MaxDelayAfterEnd {
		delay = t.MaxDelayAfterEnd
	}
	return delay
}
