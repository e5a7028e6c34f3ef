package secondary

import (
	"context"
	"errors"
	"fmt"
)

// Action is an explicit adapter-signaled side instruction, consumed by a
// switch in the scheduler rather than control-flow errors.
type Action string

const (
	// ActionNone means no side instruction.
	ActionNone Action = ""
	// ActionDeleteContest asks the engine to remove the contest; the
	// upstream source no longer acknowledges it.
	ActionDeleteContest Action = "delete-contest"
	// ActionUpdateURL asks the engine to persist a corrected standings
	// URL.
	ActionUpdateURL Action = "update-url"
)

// StandingsRow is one fetched, normalized standings row.
type StandingsRow struct {
	Place       string
	Solving     float64
	Addition    map[string]any
	SkipInStats bool

	// Account carries opportunistic profile deltas for the participant.
	Account AccountDelta
}

// StandingsResult is the outcome of one adapter fetch.
type StandingsResult struct {
	// Rows is keyed by participant identifier. An absent or empty map
	// means "not ready yet".
	Rows map[string]StandingsRow

	// Problems is the canonical problem list, in presentation order.
	Problems []map[string]any

	// HasHiddenResults is true when the upstream judge still masks some
	// results; the scheduler shortens the next delay accordingly.
	HasHiddenResults bool

	// URL is an optional standings URL correction.
	URL string

	// Action is an optional side instruction.
	Action Action

	// Invisible hides the contest from downstream consumers.
	Invisible bool
}

// SourceAdapter is the per-source component that fetches and parses one
// contest's standings. Implementations may fan out internally; that
// concurrency is private to the adapter. Failures are signaled as the typed
// errors below, never as opaque panics.
type SourceAdapter interface {
	// FetchStandings fetches one contest's standings. known holds the
	// currently stored rows keyed by participant, letting an adapter
	// diff against what is already recorded. The call must honor ctx:
	// the scheduler bounds it with a timeout.
	FetchStandings(ctx context.Context, contest *ContestRecord, known map[string]*StatisticsRecord) (*StandingsResult, error)
}

// TransientError signals that standings are not fetchable or parseable
// right now (network failure, upstream not yet published, timeout). The
// scheduler retries via the error-branch backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient fetch failure: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// StructuralError signals that a page was found but its expected shape is
// missing. Treated like a transient failure: upstream template changes are
// revisited, not abandoned.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string { return fmt.Sprintf("structural parse failure: %v", e.Err) }
func (e *StructuralError) Unwrap() error { return e.Err }

// ConfigError signals that the adapter could not initialize for a contest
// (unresolvable module, missing credentials). Backed off like a transient
// failure so a misconfigured source does not wedge the batch, but kept
// distinguishable in logs.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("adapter configuration failure: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is an adapter configuration failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
