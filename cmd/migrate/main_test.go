// ABOUTME: Tests for the schema migration tool
// ABOUTME: Runs against temp SQLite files
package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/ufficio/db"
)

func TestSchemaTables(t *testing.T) {
	tables := schemaTables()
	for _, want := range []string{"persons", "organizations", "affiliations", "leads", "opportunities", "quotes", "opportunity_quotes"} {
		found := false
		for _, got := range tables {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected table %s in %v", want, tables)
		}
	}
}

func TestMigrateSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crm.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	if err := migrate(ctx, logger, db.DriverSQLite, path, true, true); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	if err := migrate(ctx, logger, db.DriverSQLite, path, false, true); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	database, err := sql.Open(db.DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = database.Close() }()

	tables, err := currentTables(ctx, database, db.DriverSQLite)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) < len(schemaTables()) {
		t.Errorf("Expected all schema tables, got %v", tables)
	}

	// Running again backs up the existing file and is a no-op on the schema.
	if err := migrate(ctx, logger, db.DriverSQLite, path, false, true); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	backups := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup.") {
			backups++
		}
	}
	if backups == 0 {
		t.Error("Expected a backup file")
	}
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := migrate(context.Background(), logger, "mysql", "x", false, false); err == nil {
		t.Error("Expected unknown driver to fail")
	}
}
