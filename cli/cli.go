// ABOUTME: Shared plumbing for the CLI commands
// ABOUTME: Holds the service, output streams and acting user; prints notices
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/crm"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// Env is what every command runs against.
type Env struct {
	Svc   *crm.Service
	Actor crm.Actor
	Out   io.Writer
	In    io.Reader

	// Interactive is true when stdin is a terminal and prompts can be shown.
	Interactive bool
}

func NewEnv(svc *crm.Service, actor crm.Actor) *Env {
	return &Env{
		Svc:         svc,
		Actor:       actor,
		Out:         os.Stdout,
		In:          os.Stdin,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (e *Env) ctx() context.Context {
	return crm.WithActor(context.Background(), e.Actor)
}

func (e *Env) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.Out, format, args...)
}

// report prints the single notice for an action and returns an error when
// the action failed so the process exits non-zero.
func (e *Env) report(action string, err error, success string) error {
	n := e.Svc.Report(action, err, success)
	e.printf("%s\n", n)
	if n.Kind == crm.NoticeValidation {
		for field, msg := range n.Fields {
			if msg != n.Message {
				e.printf("  %s: %s\n", field, msg)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("%s failed", action)
	}
	return nil
}

// confirm asks a yes/no question. Without a terminal it refuses unless the
// caller passed --yes.
func (e *Env) confirm(question string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !e.Interactive {
		return false, fmt.Errorf("%s: not a terminal, pass --yes to confirm", question)
	}
	e.printf("%s [y/N] ", question)
	line, err := bufio.NewReader(e.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func parseID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s: %w", field, err)
	}
	return id, nil
}

func parseOptionalID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseAmount(field, value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid --%s: %w", field, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s (want YYYY-MM-DD): %w", field, err)
	}
	return &t, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return "€" + d.Decimal.StringFixed(2)
}
