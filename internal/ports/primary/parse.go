// Package primary defines the primary ports (driving interfaces) for the
// application: the services the CLI invokes.
package primary

import "context"

// ParseService defines the primary port for the contest scheduler: selecting
// due contests, fetching their standings and reconciling the results.
type ParseService interface {
	// ParseContests runs one scheduling batch over the contests matching
	// the request filters.
	ParseContests(ctx context.Context, req ParseRequest) (*ParseSummary, error)
}

// ParseRequest contains the batch filters and execution flags.
type ParseRequest struct {
	// SourcePattern restricts to sources matching a LIKE pattern.
	SourcePattern string
	// ContestIDs restricts to an explicit contest id set.
	ContestIDs []int64
	// OnlyNew keeps contests that were never successfully parsed.
	OnlyNew bool
	// IgnoreSchedule fetches the selected contests even when their
	// next_attempt_time lies in the future (explicit id runs).
	IgnoreSchedule bool

	// StopOnError aborts the batch at the first unrecoverable failure.
	StopOnError bool
	// Shuffle randomizes contest order within the batch.
	Shuffle bool
	// Workers caps batch concurrency; 0 uses the configured default.
	Workers int

	// NoUpdateResults runs the reconciliation logic without persisting
	// statistics (diagnostics dry run). Schedule writes still happen.
	NoUpdateResults bool
	// ForceTimes lets fetched solve times overwrite preserved live ones.
	ForceTimes bool
}

// ContestFailure describes one failed contest attempt.
type ContestFailure struct {
	ContestID int64
	Source    string
	Key       string
	Reason    string
}

// ParseSummary reports one batch run.
type ParseSummary struct {
	BatchID   string
	Attempted int
	Succeeded int
	Failures  []ContestFailure
}
