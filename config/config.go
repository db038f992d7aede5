// ABOUTME: Runtime configuration: XDG config.json, then .env, then UFFICIO_* environment
// ABOUTME: Converts into the db, crm and logging settings the entry point wires together
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/joho/godotenv"
)

const (
	// AppName names the XDG config and data directories.
	AppName = "ufficio"

	// ConfigFileName is the JSON file under the XDG config directory.
	ConfigFileName = "config.json"

	EnvPrefix = "UFFICIO_"

	DefaultHTTPAddr       = "127.0.0.1:8080"
	DefaultSearchDebounce = 350 * time.Millisecond
	DefaultPingAttempts   = 5
	DefaultLogLevel       = "info"
)

// Duration reads "15s"-style strings or plain nanoseconds from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(time.Duration(t))
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration: %s", data)
	}
	return nil
}

// Config holds every setting the binaries read at startup.
type Config struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn,omitempty"`
	DBPath       string `json:"db_path,omitempty"`
	PingAttempts int    `json:"ping_attempts,omitempty"`

	HTTPAddr string `json:"http_addr"`

	ActionTimeout   Duration `json:"action_timeout"`
	SearchDebounce  Duration `json:"search_debounce"`
	SearchLimit     int      `json:"search_limit"`
	FacetSampleSize int      `json:"facet_sample_size"`
	QuoteBuilderURL string   `json:"quote_builder_url"`

	// UserID and Admin identify the local operator for the CLI, MCP and TUI.
	UserID string `json:"user_id,omitempty"`
	Admin  bool   `json:"admin,omitempty"`

	LogLevel string `json:"log_level"`
}

// Default returns a config with every field set.
func Default() *Config {
	return &Config{
		Driver:          db.DriverSQLite,
		DBPath:          filepath.Join(xdg.DataHome, AppName, "ufficio.db"),
		PingAttempts:    DefaultPingAttempts,
		HTTPAddr:        DefaultHTTPAddr,
		ActionTimeout:   Duration(crm.DefaultActionTimeout),
		SearchDebounce:  Duration(DefaultSearchDebounce),
		SearchLimit:     crm.DefaultSearchLimit,
		FacetSampleSize: crm.DefaultFacetSampleSize,
		QuoteBuilderURL: crm.DefaultQuoteBuilderURL,
		LogLevel:        DefaultLogLevel,
	}
}

// Path is the location of the JSON config file.
func Path() string {
	return filepath.Join(xdg.ConfigHome, AppName, ConfigFileName)
}

// Load reads the XDG config file and a .env in the working directory, then
// applies the process environment. Missing files are not an error.
func Load() (*Config, error) {
	return LoadFrom(Path(), ".env")
}

// LoadFrom is Load with explicit file locations. Either path may be empty.
func LoadFrom(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = Duration(d)
		return nil
	}

	str("DB_DRIVER", &c.Driver)
	str("DATABASE_URL", &c.DSN)
	str("DB_PATH", &c.DBPath)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("QUOTE_BUILDER_URL", &c.QuoteBuilderURL)
	str("USER_ID", &c.UserID)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup(EnvPrefix + "ADMIN"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sADMIN: %w", EnvPrefix, err)
		}
		c.Admin = b
	}

	for _, err := range []error{
		num("PING_ATTEMPTS", &c.PingAttempts),
		num("SEARCH_LIMIT", &c.SearchLimit),
		num("FACET_SAMPLE_SIZE", &c.FacetSampleSize),
		dur("ACTION_TIMEOUT", &c.ActionTimeout),
		dur("SEARCH_DEBOUNCE", &c.SearchDebounce),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Driver {
	case db.DriverSQLite:
		if c.DBPath == "" {
			return errors.New("db_path is required for sqlite3")
		}
	case db.DriverPostgres:
		if c.DSN == "" {
			return errors.New("dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported driver %q (valid: sqlite3, postgres)", c.Driver)
	}
	if c.ActionTimeout <= 0 {
		return errors.New("action_timeout must be positive")
	}
	if c.SearchDebounce < 0 {
		return errors.New("search_debounce cannot be negative")
	}
	if c.UserID != "" {
		if _, err := uuid.Parse(c.UserID); err != nil {
			return fmt.Errorf("user_id must be a uuid: %w", err)
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Save writes the config file, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Database() db.Config {
	return db.Config{Driver: c.Driver, DSN: c.DSN, Path: c.DBPath, PingAttempts: c.PingAttempts}
}

func (c *Config) ServiceOptions() crm.Options {
	return crm.Options{
		ActionTimeout:   time.Duration(c.ActionTimeout),
		SearchLimit:     c.SearchLimit,
		FacetSampleSize: c.FacetSampleSize,
		QuoteBuilderURL: c.QuoteBuilderURL,
	}
}

// Actor is the operator identity. An unset user id yields the zero actor.
func (c *Config) Actor() crm.Actor {
	id, _ := uuid.Parse(c.UserID)
	return crm.Actor{UserID: id, Admin: c.Admin}
}

func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return l, nil
}
