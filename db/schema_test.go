// ABOUTME: Tests for database schema creation
// ABOUTME: Uses in-memory SQLite for fast isolated tests
package db

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestInitSchema(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	// Second run must be a no-op.
	if err := InitSchema(context.Background(), db); err != nil {
		t.Fatalf("InitSchema rerun failed: %v", err)
	}

	tables := []string{
		"persons", "organizations", "affiliations", "leads",
		"lead_activities", "opportunities", "quotes", "opportunity_quotes",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	indexes := []string{
		"idx_organizations_province",
		"idx_affiliations_organization",
		"idx_leads_status",
		"idx_opportunities_stage",
		"idx_opportunity_quotes_opportunity",
	}
	for _, idx := range indexes {
		var indexName string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&indexName)
		if err != nil {
			t.Errorf("Index %s not found: %v", idx, err)
		}
	}
}

func TestSchemaRejectsClosedStageWithoutClosedAt(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.DB().Exec(`
		INSERT INTO opportunities (id, name, stage, created_at, updated_at)
		VALUES ('x', 'bad', 'closed_won', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`)
	if err == nil {
		t.Fatal("Expected CHECK constraint to reject closed stage with NULL closed_at")
	}
}
