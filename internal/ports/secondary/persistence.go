// Package secondary defines the secondary ports (driven adapters) for the
// application: the persistence contracts and the source adapter contract
// through which the engine talks to the outside world.
package secondary

import (
	"context"
	"time"
)

// ContestRecord represents a contest as stored in persistence.
type ContestRecord struct {
	ID     int64
	Source string
	Key    string
	Title  string
	URL    string
	Start  time.Time
	End    time.Time

	Rated         bool
	Invisible     bool
	CalculateTime bool
	Stage         bool

	// Info is the free-form contest metadata map.
	Info map[string]any
	// Fields is the append-only registry of addition keys seen so far.
	Fields []string
	// Problems is the canonical problem list.
	Problems []map[string]any

	NextAttempt       *time.Time
	LastSuccess       *time.Time
	ConsecutiveErrors int

	CreatedAt string
	UpdatedAt string
}

// ContestFilters contains filter options for selecting contests.
type ContestFilters struct {
	// SourcePattern is a SQL LIKE pattern on the source name.
	SourcePattern string
	// IDs restricts to an explicit contest id set.
	IDs []int64
	// OnlyNeverParsed keeps contests without a last_success_time.
	OnlyNeverParsed bool
	// Stages selects synthetic stage contests instead of regular ones.
	Stages bool
	Limit  int
}

// ContestMetaUpdate carries the contest-level metadata the reconciler may
// change. Nil slices/maps mean "unchanged"; the repository must persist the
// update in the same transaction as the statistics writes it accompanies.
type ContestMetaUpdate struct {
	Fields        []string
	Problems      []map[string]any
	Info          map[string]any
	CalculateTime *bool
	URL           *string
	Invisible     *bool
}

// ContestRepository defines the secondary port for contest persistence.
type ContestRepository interface {
	// GetByID retrieves a contest by its ID.
	GetByID(ctx context.Context, id int64) (*ContestRecord, error)

	// List retrieves contests matching the given filters.
	List(ctx context.Context, filters ContestFilters) ([]*ContestRecord, error)

	// Create persists a new contest (used by stages and tests; discovery
	// of upstream contests is outside this engine).
	Create(ctx context.Context, contest *ContestRecord) error

	// Delete removes a contest and its statistics. Only an explicit
	// adapter-signaled deletion action reaches this.
	Delete(ctx context.Context, id int64) error

	// StagesContaining lists stage contests of a source whose time window
	// contains the given window.
	StagesContaining(ctx context.Context, source string, start, end time.Time) ([]*ContestRecord, error)

	// MembersWithin lists the non-stage contests of a source whose time
	// window lies inside the given window, in start order.
	MembersWithin(ctx context.Context, source string, start, end time.Time) ([]*ContestRecord, error)
}

// ScheduleRepository defines the secondary port for per-contest fetch
// scheduling. Consumers outside this engine only read these fields.
type ScheduleRepository interface {
	// Claim pushes next_attempt_time forward for a whole batch in one
	// transaction, before any fetching begins, so two overlapping
	// schedulers never race on the same contests.
	Claim(ctx context.Context, ids []int64, next time.Time) error

	// Write records an attempt outcome: next_attempt_time always, and on
	// success last_success_time plus a consecutive-error reset. Never
	// skipped, even for failed attempts.
	Write(ctx context.Context, id int64, next time.Time, success bool, at time.Time) error
}

// AccountRecord represents an account as stored in persistence.
type AccountRecord struct {
	ID        int64
	Source    string
	Key       string
	Name      string
	Country   string
	Rating    *int64
	NContests int64
}

// AccountDelta carries the opportunistic profile updates an adapter may
// attach to a standings row. Nil fields mean "no change claimed".
type AccountDelta struct {
	Name    *string
	Country *string
	Rating  *int64
}

// AccountRepository defines the secondary port for account persistence.
type AccountRepository interface {
	// GetOrCreate resolves an account by source and key, creating it on
	// first appearance.
	GetOrCreate(ctx context.Context, source, key string) (*AccountRecord, error)

	// ApplyDelta applies a profile delta, writing only fields that
	// changed materially. Country values pass through a normalizing
	// lookup first.
	ApplyDelta(ctx context.Context, id int64, delta AccountDelta) error
}

// StatisticsRecord is the canonical join of contest and account.
type StatisticsRecord struct {
	ID         int64
	ContestID  int64
	AccountID  int64
	AccountKey string

	Place       string
	PlaceAsInt  int64
	Solving     float64
	Addition    map[string]any
	SkipInStats bool

	NewRating    *int64
	RatingChange *int64

	Modified string
}

// ProblemTally is the per-problem aggregate pair.
type ProblemTally struct {
	Attempts int
	Accepted int
}

// StandingsChangeSet is the minimal write set one reconciliation pass
// computed for a contest. The repository applies it in one transaction;
// partial writes must never be observable.
type StandingsChangeSet struct {
	ContestID int64
	// Upserts holds only rows that actually changed; unchanged rows are
	// skipped before the change set is built.
	Upserts []*StatisticsRecord
	// DeleteIDs are statistics whose account keys vanished from the
	// authoritative source.
	DeleteIDs []int64
	// Tallies replaces the contest's problem aggregates.
	Tallies map[string]ProblemTally
	// Meta is the contest-level metadata update, nil when unchanged.
	Meta *ContestMetaUpdate
}

// WriteCounts reports what a change-set application actually wrote. Used
// for the parse summary and the idempotence instrumentation.
type WriteCounts struct {
	Created int
	Updated int
	Deleted int
}

// RatingWrite is one participant's computed rating outcome.
type RatingWrite struct {
	StatisticID  int64
	AccountID    int64
	NewRating    int64
	RatingChange int64
}

// RatingChangeSet is one contest's atomic rating write: statistics rating
// fields, account ratings and contest counters, plus the content hash that
// lets the next pass skip recomputation.
type RatingChangeSet struct {
	ContestID   int64
	ContentHash string
	Writes      []RatingWrite
}

// StatisticsRepository defines the secondary port for statistics
// persistence.
type StatisticsRepository interface {
	// ListByContest retrieves all statistics of a contest keyed by
	// account key.
	ListByContest(ctx context.Context, contestID int64) (map[string]*StatisticsRecord, error)

	// Apply executes one reconciliation change set in one transaction
	// and reports what it wrote.
	Apply(ctx context.Context, cs *StandingsChangeSet) (WriteCounts, error)

	// CountByContest returns the number of statistics rows for a contest.
	CountByContest(ctx context.Context, contestID int64) (int, error)

	// RatingHash returns the content hash of the last successful rating
	// computation for a contest, or "" when none ran yet.
	RatingHash(ctx context.Context, contestID int64) (string, error)

	// ApplyRating executes one contest's rating change set in one
	// transaction: statistics rating fields, account rating and contest
	// counter, and the content hash.
	ApplyRating(ctx context.Context, cs *RatingChangeSet) error
}
