// ABOUTME: Tests for configuration loading
// ABOUTME: Covers file, .env and environment override order
package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaultsWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(dir, "missing.json"), filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, db.DriverSQLite, cfg.Driver)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, Duration(crm.DefaultActionTimeout), cfg.ActionTimeout)
	assert.Equal(t, Duration(350*time.Millisecond), cfg.SearchDebounce)
	assert.Equal(t, crm.DefaultSearchLimit, cfg.SearchLimit)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	user := uuid.New()
	path := writeFile(t, dir, "config.json", `{
		"driver": "sqlite3",
		"db_path": "/tmp/from-json.db",
		"action_timeout": "30s",
		"search_debounce": 200000000,
		"search_limit": 50,
		"log_level": "debug"
	}`)
	envFile := writeFile(t, dir, ".env", "UFFICIO_SEARCH_LIMIT=25\nUFFICIO_USER_ID="+user.String()+"\nUFFICIO_ADMIN=true\n")
	t.Setenv("UFFICIO_DB_PATH", "/tmp/from-env.db")

	cfg, err := LoadFrom(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath, "process env wins over the file")
	assert.Equal(t, 25, cfg.SearchLimit, ".env wins over the file")
	assert.Equal(t, Duration(30*time.Second), cfg.ActionTimeout)
	assert.Equal(t, Duration(200*time.Millisecond), cfg.SearchDebounce)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	actor := cfg.Actor()
	assert.Equal(t, user, actor.UserID)
	assert.True(t, actor.Admin)

	opts := cfg.ServiceOptions()
	assert.Equal(t, 30*time.Second, opts.ActionTimeout)
	assert.Equal(t, 25, opts.SearchLimit)

	dbc := cfg.Database()
	assert.Equal(t, "/tmp/from-env.db", dbc.Path)
}

func TestLoadProcessEnvBeatsDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "UFFICIO_HTTP_ADDR=:9000\n")
	t.Setenv("UFFICIO_HTTP_ADDR", ":9100")

	cfg, err := LoadFrom("", envFile)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"driver", "UFFICIO_DB_DRIVER", "mysql"},
		{"postgres without dsn", "UFFICIO_DB_DRIVER", "postgres"},
		{"timeout", "UFFICIO_ACTION_TIMEOUT", "soon"},
		{"limit", "UFFICIO_SEARCH_LIMIT", "many"},
		{"admin", "UFFICIO_ADMIN", "sometimes"},
		{"user", "UFFICIO_USER_ID", "bob"},
		{"level", "UFFICIO_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadFrom("", "")
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"driver": `)
	_, err := LoadFrom(path, "")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.SearchLimit = 42
	cfg.ActionTimeout = Duration(5 * time.Second)
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFrom(path, "")
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.SearchLimit)
	assert.Equal(t, Duration(5*time.Second), loaded.ActionTimeout)
}

func TestLoggerDropsEmptyAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelInfo, true)

	logger.Debug("hidden")
	logger.Info("lead converted", "lead_id", "abc", "source", "", "error", nil)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "lead converted")
	assert.Contains(t, out, "lead_id=abc")
	assert.NotContains(t, out, "source=")
	assert.NotContains(t, out, "error=")
}
