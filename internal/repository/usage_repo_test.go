package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// The counter columns carry no DEFAULT, so inserts must supply both of them
// explicitly. SQLite shares enough of the postgres upsert dialect to exercise
// the queries without a live database.
func newUsageTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	const ddl = `
        CREATE TABLE user_usage (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            year INTEGER NOT NULL,
            month INTEGER NOT NULL,
            schemas_generated INTEGER NOT NULL,
            competitions_entered INTEGER NOT NULL,
            UNIQUE (user_id, year, month)
        )`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create user_usage table: %v", err)
	}
	return db
}

func TestIncrementCreatesRowWithBothCounters(t *testing.T) {
	repo := NewUsageRepo(newUsageTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	if err := repo.IncrementSchemasGenerated(ctx, "u1", at); err != nil {
		t.Fatalf("IncrementSchemasGenerated returned error: %v", err)
	}

	usage, err := repo.GetOrCreateUsage(ctx, "u1", at)
	if err != nil {
		t.Fatalf("GetOrCreateUsage returned error: %v", err)
	}
	if usage.SchemasGenerated != 1 {
		t.Errorf("expected 1 schema generated, got %d", usage.SchemasGenerated)
	}
	if usage.CompetitionsEntered != 0 {
		t.Errorf("expected 0 competitions entered, got %d", usage.CompetitionsEntered)
	}
}

func TestIncrementUpdatesExistingRow(t *testing.T) {
	repo := NewUsageRepo(newUsageTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	if _, err := repo.GetOrCreateUsage(ctx, "u1", at); err != nil {
		t.Fatalf("GetOrCreateUsage returned error: %v", err)
	}
	if err := repo.IncrementCompetitionsEntered(ctx, "u1", at); err != nil {
		t.Fatalf("IncrementCompetitionsEntered returned error: %v", err)
	}
	if err := repo.IncrementCompetitionsEntered(ctx, "u1", at); err != nil {
		t.Fatalf("IncrementCompetitionsEntered returned error: %v", err)
	}

	usage, err := repo.GetOrCreateUsage(ctx, "u1", at)
	if err != nil {
		t.Fatalf("GetOrCreateUsage returned error: %v", err)
	}
	if usage.CompetitionsEntered != 2 {
		t.Errorf("expected 2 competitions entered, got %d", usage.CompetitionsEntered)
	}
	if usage.SchemasGenerated != 0 {
		t.Errorf("expected 0 schemas generated, got %d", usage.SchemasGenerated)
	}
}
