// ABOUTME: Long-running CLI commands: the HTTP API and the interactive picker
package cli

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/tui"
	"github.com/harperreed/ufficio/web"
)

// ServeCommand runs the HTTP API until ctx is cancelled.
func ServeCommand(ctx context.Context, env *Env, logger *slog.Logger, defaultAddr string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "Listen address")
	_ = fs.Parse(args)

	var admins []uuid.UUID
	if env.Actor.Admin {
		admins = append(admins, env.Actor.UserID)
	}
	return web.NewServer(env.Svc, logger, admins...).Run(ctx, *addr)
}

// PickCommand opens the interactive client picker and prints the choice.
func PickCommand(env *Env, debounce time.Duration, args []string) error {
	fs := flag.NewFlagSet("pick", flag.ExitOnError)
	wait := fs.Duration("debounce", debounce, "Delay after the last keystroke before searching")
	_ = fs.Parse(args)

	sel, err := tui.Run(env.Svc, *wait)
	if err != nil {
		return err
	}
	if sel == nil {
		env.printf("Nothing selected\n")
		return nil
	}
	env.printf("%s %s (ID: %s)\n", sel.Type, sel.Name, sel.ID)
	if sel.AffiliationID != nil {
		env.printf("  Referente: %s (affiliation ID: %s)\n", sel.ReferenteName, sel.AffiliationID)
	}
	return nil
}
