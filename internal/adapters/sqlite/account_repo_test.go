package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/podium/internal/adapters/sqlite"
	"github.com/example/podium/internal/ports/secondary"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestAccountRepository_GetOrCreate(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewAccountRepository(database)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "judge.example.com", "alice")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("created account has no id")
	}

	again, err := repo.GetOrCreate(ctx, "judge.example.com", "alice")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("second resolve created a new account: %d != %d", again.ID, first.ID)
	}
}

func TestAccountRepository_ApplyDelta(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewAccountRepository(database)
	ctx := context.Background()

	account := seedAccount(t, database, "judge.example.com", "bob")

	delta := secondary.AccountDelta{
		Name:    strPtr("Bob B."),
		Country: strPtr("usa"),
		Rating:  i64Ptr(1712),
	}
	if err := repo.ApplyDelta(ctx, account.ID, delta); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}

	got, err := repo.GetOrCreate(ctx, "judge.example.com", "bob")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if got.Name != "Bob B." {
		t.Errorf("name = %q, want Bob B.", got.Name)
	}
	if got.Country != "United States" {
		t.Errorf("country = %q, want normalized United States", got.Country)
	}
	if got.Rating == nil || *got.Rating != 1712 {
		t.Errorf("rating = %v, want 1712", got.Rating)
	}

	// A garbage country value must not overwrite the normalized one.
	if err := repo.ApplyDelta(ctx, account.ID, secondary.AccountDelta{Country: strPtr("??")}); err != nil {
		t.Fatalf("ApplyDelta garbage: %v", err)
	}
	got, _ = repo.GetOrCreate(ctx, "judge.example.com", "bob")
	if got.Country != "United States" {
		t.Errorf("country after garbage delta = %q, want United States", got.Country)
	}
}

func TestNormalizeCountry(t *testing.T) {
	cases := map[string]string{
		"usa":                "United States",
		"United states":      "United States",
		"UK":                 "United Kingdom",
		"Russian Federation": "Russia",
		"Viet Nam":           "Vietnam",
		"Germany":            "Germany",
		"??":                 "",
		"  ":                 "",
	}
	for raw, want := range cases {
		if got := sqlite.NormalizeCountry(raw); got != want {
			t.Errorf("NormalizeCountry(%q) = %q, want %q", raw, got, want)
		}
	}
}
