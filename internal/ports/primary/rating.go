package primary

import "context"

// RatingService defines the primary port for the rating predictor batch.
type RatingService interface {
	// RateContests computes expected ratings and rating changes for the
	// selected rated contests.
	RateContests(ctx context.Context, req RateRequest) (*RateSummary, error)
}

// RateRequest selects the contests to rate.
type RateRequest struct {
	// ContestIDs restricts to an explicit id set; empty means all rated
	// finished contests.
	ContestIDs []int64
	// Force recomputes even when the content hash is unchanged.
	Force bool
}

// RateOutcome describes one contest's rating pass.
type RateOutcome struct {
	ContestID    int64
	Key          string
	Participants int
	// Skipped is set with a reason when no computation ran (unchanged
	// content hash, insufficient data).
	Skipped string
}

// RateSummary reports one rating batch.
type RateSummary struct {
	Computed int
	Skipped  int
	Outcomes []RateOutcome
}

// StageService defines the primary port for stage rollups.
type StageService interface {
	// RecomputeStage rebuilds one stage contest's standing from its
	// member contests.
	RecomputeStage(ctx context.Context, stageID int64) (*StageSummary, error)

	// RecomputeStagesContaining rebuilds every stage whose window
	// contains the given contest. Invoked after each non-failed parse.
	RecomputeStagesContaining(ctx context.Context, contestID int64) error
}

// StageSummary reports one stage rollup.
type StageSummary struct {
	StageID int64
	Members int
	Rows    int
}
