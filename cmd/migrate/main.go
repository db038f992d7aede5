// ABOUTME: Migration utility that applies the CRM schema to a target database.
// ABOUTME: Supports SQLite files and Postgres DSNs, with dry-run and file backup.

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/harperreed/ufficio/config"
	"github.com/harperreed/ufficio/db"
)

func main() {
	driver := flag.String("driver", db.DriverSQLite, "Database driver: sqlite3 or postgres")
	dsn := flag.String("dsn", "", "Postgres connection string (postgres driver)")
	dbPath := flag.String("db", "", "Path to database file (sqlite3 driver)")
	dryRun := flag.Bool("dry-run", false, "Print the statements without applying them")
	backup := flag.Bool("backup", true, "Copy the SQLite file before migrating")
	flag.Parse()

	logger := config.NewLogger(slog.LevelInfo)

	target := *dbPath
	if *driver == db.DriverPostgres {
		target = *dsn
	}
	if target == "" {
		logger.Error("a target is required: -db for sqlite3, -dsn for postgres")
		os.Exit(2)
	}

	if err := migrate(context.Background(), logger, *driver, target, *dryRun, *backup); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migration completed successfully")
}

var createTable = regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\w+)`)

// schemaTables lists the tables the schema creates, in creation order.
func schemaTables() []string {
	var tables []string
	for _, stmt := range db.Schema {
		if m := createTable.FindStringSubmatch(stmt); m != nil {
			tables = append(tables, m[1])
		}
	}
	return tables
}

func migrate(ctx context.Context, logger *slog.Logger, driver, target string, dryRun, createBackup bool) error {
	switch driver {
	case db.DriverSQLite:
		if _, err := os.Stat(target); err == nil && createBackup && !dryRun {
			if err := backupFile(logger, target); err != nil {
				return err
			}
		}
	case db.DriverPostgres:
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}

	database, err := sql.Open(driver, target)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	existing, err := currentTables(ctx, database, driver)
	if err != nil {
		return fmt.Errorf("failed to get current tables: %w", err)
	}

	var missing []string
	for _, t := range schemaTables() {
		if !slices.Contains(existing, t) {
			missing = append(missing, t)
		}
	}
	logger.Info("schema status", "existing", len(existing), "missing", missing)

	if dryRun {
		for i, stmt := range db.Schema {
			fmt.Printf("-- [%d/%d]\n%s;\n\n", i+1, len(db.Schema), stmt)
		}
		return nil
	}

	if err := db.InitSchema(ctx, database); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info("schema applied", "statements", len(db.Schema), "created_tables", len(missing))
	return nil
}

func backupFile(logger *slog.Logger, path string) error {
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	input, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}
	if err := os.WriteFile(backupPath, input, 0644); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	logger.Info("backup created", "path", backupPath)
	return nil
}

func currentTables(ctx context.Context, database *sql.DB, driver string) ([]string, error) {
	query := "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name"
	if driver == db.DriverPostgres {
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name"
	}
	rows, err := database.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
