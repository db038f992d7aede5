// ABOUTME: Structured logger construction
// ABOUTME: Colour output only when stderr is a terminal
package config

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the stderr logger. Colour is only used on a terminal.
func NewLogger(level slog.Level) *slog.Logger {
	return newLogger(colorable.NewColorable(os.Stderr), level, !isatty.IsTerminal(os.Stderr.Fd()))
}

func newLogger(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Empty optional attrs are noise.
			switch v := a.Value.Any().(type) {
			case nil:
				return slog.Attr{}
			case string:
				if v == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if v == 0 {
					return slog.Attr{}
				}
			}
			return a
		},
	}))
}
