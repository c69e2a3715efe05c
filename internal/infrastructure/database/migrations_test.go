package database

import (
	"context"
	"embed"
	"testing"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations swaps the package-level migration source for the
// duration of a test and restores it afterwards.
func useTestMigrations(t *testing.T) {
	t.Helper()
	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = testMigrationsFS
	MigrationsDir = testMigrationsDir
}

func appliedCount(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("counting applied migrations: %v", err)
	}
	return n
}

func TestMigrate_AppliesMigrations(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='events'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("events table not created: %v", err)
	}

	if got := appliedCount(t, db); got != 1 {
		t.Errorf("applied = %d, want 1", got)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	if got := appliedCount(t, db); got != 1 {
		t.Errorf("applied = %d after re-run, want 1", got)
	}
}

func TestMigrate_NoEmbeddedMigrations(t *testing.T) {
	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	var empty embed.FS
	MigrationsFS = empty

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{
			name:        "valid migration",
			filename:    "20260815_120000_create_events.up.sql",
			wantVersion: "20260815_120000",
			wantName:    "create_events",
			wantOK:      true,
		},
		{
			name:     "down script skipped",
			filename: "20260815_120000_create_events.down.sql",
			wantOK:   false,
		},
		{
			name:     "not sql",
			filename: "README.md",
			wantOK:   false,
		},
		{
			name:     "missing direction",
			filename: "20260815_120000_create_events.sql",
			wantOK:   false,
		},
		{
			name:     "no version parts",
			filename: "junk.up.sql",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, migName, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if migName != tt.wantName {
				t.Errorf("name = %q, want %q", migName, tt.wantName)
			}
		})
	}
}
