// ABOUTME: Conversion pipeline service shared by the CLI, MCP, HTTP and TUI surfaces
// ABOUTME: Holds the injected repository, logger, clock and per-action timeout
package crm

import (
	"context"
	"log/slog"
	"time"

	"github.com/harperreed/ufficio/db"
)

const (
	DefaultActionTimeout   = 15 * time.Second
	DefaultSearchLimit     = 200
	DefaultFacetSampleSize = 1000
	DefaultQuoteBuilderURL = "/quotes/new"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

type Options struct {
	// ActionTimeout bounds every operation end to end.
	ActionTimeout time.Duration
	// SearchLimit is the default and the cap for entity searches.
	SearchLimit int
	// FacetSampleSize bounds the rows read by the facet fallback.
	FacetSampleSize int
	// QuoteBuilderURL is where quote handoffs point.
	QuoteBuilderURL string
}

func (o Options) withDefaults() Options {
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.SearchLimit <= 0 || o.SearchLimit > DefaultSearchLimit {
		o.SearchLimit = DefaultSearchLimit
	}
	if o.FacetSampleSize <= 0 {
		o.FacetSampleSize = DefaultFacetSampleSize
	}
	if o.QuoteBuilderURL == "" {
		o.QuoteBuilderURL = DefaultQuoteBuilderURL
	}
	return o
}

type Service struct {
	repo db.Repository
	log  *slog.Logger
	now  Clock
	opts Options
}

// NewService wires the pipeline. A nil logger or clock falls back to the
// defaults.
func NewService(repo db.Repository, logger *slog.Logger, now Clock, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo: repo,
		log:  logger,
		now:  now,
		opts: opts.withDefaults(),
	}
}

func (s *Service) Options() Options { return s.opts }

// begin derives the bounded context every operation runs under.
func (s *Service) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.ActionTimeout)
}
