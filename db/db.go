// ABOUTME: Database connection management and initialization
// ABOUTME: Opens SQLite (WAL, XDG path) or Postgres (pooled, ping retry) and applies the schema
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects the backing store.
type Config struct {
	Driver string
	// DSN is the Postgres connection string.
	DSN string
	// Path is the SQLite database file.
	Path string
	// PingAttempts bounds the Postgres startup retry loop. Zero means 5.
	PingAttempts int
}

// Open connects to the configured database, applies the schema and returns a
// Store ready to be injected.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case "", DriverSQLite:
		return OpenDatabase(cfg.Path)
	case DriverPostgres, "postgresql":
		return OpenPostgres(ctx, cfg.DSN, cfg.PingAttempts, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// OpenDatabase opens the embedded SQLite store at path.
func OpenDatabase(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// Open database with WAL mode
	db, err := sql.Open(DriverSQLite, path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Configure connection pool for SQLite (avoid database locked errors)
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return NewStore(db, DriverSQLite), nil
}

// OpenPostgres connects to a managed Postgres instance. The database may come
// up after the application, so the first ping is retried with backoff.
func OpenPostgres(ctx context.Context, dsn string, attempts int, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres driver requires a DSN")
	}
	if !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=disable"
		} else if !strings.Contains(dsn, "://") {
			dsn += " sslmode=disable"
		} else {
			dsn += "?sslmode=disable"
		}
	}
	if attempts <= 0 {
		attempts = 5
	}

	pool, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(30 * time.Minute)

	var pingErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = pool.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}
		logger.Warn("database ping failed", "attempt", attempt, "of", attempts, "error", pingErr)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempts, pingErr)
	}

	migCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := InitSchema(migCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("database connected", "driver", DriverPostgres)
	return NewStore(pool, DriverPostgres), nil
}
