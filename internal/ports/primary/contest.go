package primary

import (
	"context"
	"time"
)

// ContestService defines the read-side primary port the CLI uses.
type ContestService interface {
	// ListContests lists contests with optional filters.
	ListContests(ctx context.Context, filters ContestListFilters) ([]*Contest, error)

	// GetContest retrieves one contest with its statistics count.
	GetContest(ctx context.Context, id int64) (*Contest, error)
}

// ContestListFilters contains filter options for listing contests.
type ContestListFilters struct {
	SourcePattern string
	OnlyNew       bool
	Stages        bool
	Limit         int
}

// Contest is the CLI-facing contest view.
type Contest struct {
	ID     int64
	Source string
	Key    string
	Title  string
	URL    string
	Start  time.Time
	End    time.Time

	Rated bool
	Stage bool

	NextAttempt       *time.Time
	LastSuccess       *time.Time
	ConsecutiveErrors int

	Statistics int
	Fields     []string
}
