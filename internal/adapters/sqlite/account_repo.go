package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/podium/internal/ports/secondary"
)

// AccountRepository implements secondary.AccountRepository with SQLite.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new SQLite account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountSelectCols = "id, source, key, name, country, rating, n_contests"

func scanAccount(scanner interface {
	Scan(dest ...any) error
}) (*secondary.AccountRecord, error) {
	var rating sql.NullInt64

	record := &secondary.AccountRecord{}
	err := scanner.Scan(&record.ID, &record.Source, &record.Key,
		&record.Name, &record.Country, &rating, &record.NContests)
	if err != nil {
		return nil, err
	}
	record.Rating = intPtr(rating)
	return record, nil
}

// GetOrCreate resolves an account by source and key, creating it on first
// appearance of a participant key within a contest's standings.
func (r *AccountRepository) GetOrCreate(ctx context.Context, source, key string) (*secondary.AccountRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountSelectCols+" FROM accounts WHERE source = ? AND key = ?", source, key)

	record, err := scanAccount(row)
	if err == nil {
		return record, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO accounts (source, key) VALUES (?, ?)", source, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account id: %w", err)
	}
	return &secondary.AccountRecord{ID: id, Source: source, Key: key}, nil
}

// ApplyDelta applies a profile delta, writing only fields that changed
// materially. A no-op delta issues no statement at all.
func (r *AccountRepository) ApplyDelta(ctx context.Context, id int64, delta secondary.AccountDelta) error {
	current, err := r.getByID(ctx, id)
	if err != nil {
		return err
	}

	var sets []string
	var args []any

	if delta.Name != nil && *delta.Name != "" && *delta.Name != current.Name {
		sets = append(sets, "name = ?")
		args = append(args, *delta.Name)
	}
	if delta.Country != nil {
		if country := NormalizeCountry(*delta.Country); country != "" && country != current.Country {
			sets = append(sets, "country = ?")
			args = append(args, country)
		}
	}
	if delta.Rating != nil && (current.Rating == nil || *current.Rating != *delta.Rating) {
		sets = append(sets, "rating = ?")
		args = append(args, *delta.Rating)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	_, err = r.db.ExecContext(ctx,
		"UPDATE accounts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *AccountRepository) getByID(ctx context.Context, id int64) (*secondary.AccountRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountSelectCols+" FROM accounts WHERE id = ?", id)
	record, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return record, nil
}

// countryAliases maps the spellings sources actually publish to canonical
// names. Country updates only go through this lookup; unrecognized values
// that are not already canonical-looking are dropped.
var countryAliases = map[string]string{
	"usa":                "United States",
	"united states":      "United States",
	"u.s.a.":             "United States",
	"uk":                 "United Kingdom",
	"united kingdom":     "United Kingdom",
	"great britain":      "United Kingdom",
	"russia":             "Russia",
	"russian federation": "Russia",
	"south korea":        "South Korea",
	"republic of korea":  "South Korea",
	"korea":              "South Korea",
	"czechia":            "Czech Republic",
	"czech republic":     "Czech Republic",
	"prc":                "China",
	"china":              "China",
	"hong kong":          "Hong Kong",
	"taiwan":             "Taiwan",
	"vietnam":            "Vietnam",
	"viet nam":           "Vietnam",
}

// NormalizeCountry maps a source-published country spelling to its
// canonical name. Unknown multi-word or abbreviated values return "" so a
// garbage value never overwrites a good one.
func NormalizeCountry(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := countryAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	// Accept values that already look canonical: a capitalized word.
	if len(trimmed) > 3 && trimmed[0] >= 'A' && trimmed[0] <= 'Z' {
		return trimmed
	}
	return ""
}
