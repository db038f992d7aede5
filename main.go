// ABOUTME: Entry point for the ufficio CRM: MCP server, HTTP API, picker and CLI
// ABOUTME: Loads configuration, opens the store and routes to the requested command
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/harperreed/ufficio/cli"
	"github.com/harperreed/ufficio/config"
	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
)

const version = "0.2.0"

type command func(env *cli.Env, args []string) error

var crmCommands = map[string]command{
	"add-person":          cli.AddPersonCommand,
	"add-organization":    cli.AddOrganizationCommand,
	"edit-organization":   cli.EditOrganizationCommand,
	"delete-organization": cli.DeleteOrganizationCommand,
	"quick-affiliate":     cli.QuickAffiliateCommand,
	"remove-affiliate":    cli.RemoveAffiliateCommand,
	"affiliates":          cli.AffiliatesCommand,
	"search":              cli.SearchCommand,
	"facets":              cli.FacetsCommand,
	"add-lead":            cli.AddLeadCommand,
	"list-leads":          cli.ListLeadsCommand,
	"lead-status":         cli.LeadStatusCommand,
	"log-activity":        cli.LogActivityCommand,
	"convert-lead":        cli.ConvertLeadCommand,
	"export-leads":        cli.ExportLeadsCommand,
	"lead-template":       cli.LeadTemplateCommand,
	"add-prospect":        cli.AddProspectCommand,
	"set-stage":           cli.SetStageCommand,
	"list-opportunities":  cli.ListOpportunitiesCommand,
	"delete-opportunity":  cli.DeleteOpportunityCommand,
	"quotes":              cli.QuotesCommand,
	"quote-link":          cli.QuoteLinkCommand,
	"handoff":             cli.HandoffCommand,
}

var vizCommands = map[string]command{
	"dashboard": cli.VizDashboardCommand,
	"graph":     cli.VizGraphPipelineCommand,
}

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "SQLite database path (overrides config)")
	initOnly := flag.Bool("init", false, "Initialize database and exit")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("ufficio version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	logger := config.NewLogger(cfg.Level())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, args, *initOnly); err != nil {
		logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, initOnly bool) error {
	store, err := db.Open(ctx, cfg.Database(), logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	logger.Debug("database ready", "driver", cfg.Driver, "path", cfg.DBPath)
	if initOnly {
		logger.Info("database initialized successfully")
		return nil
	}

	svc := crm.NewService(store, logger, nil, cfg.ServiceOptions())
	env := cli.NewEnv(svc, cfg.Actor())

	command, rest := args[0], args[1:]
	switch command {
	case "mcp":
		return cli.MCPCommand(ctx, env, logger, version)
	case "serve":
		return cli.ServeCommand(ctx, env, logger, cfg.HTTPAddr, rest)
	case "pick":
		return cli.PickCommand(env, time.Duration(cfg.SearchDebounce), rest)
	case "crm":
		return dispatch("crm", crmCommands, env, rest)
	case "viz":
		return dispatch("viz", vizCommands, env, rest)
	}

	fmt.Printf("Unknown command: %s\n\n", command)
	printUsage()
	return fmt.Errorf("unknown command %q", command)
}

func dispatch(group string, commands map[string]command, env *cli.Env, args []string) error {
	if len(args) == 0 {
		fmt.Printf("Error: %s requires a subcommand: %s\n", group, commandNames(commands))
		return fmt.Errorf("%s requires a subcommand", group)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Printf("Unknown %s command: %s\n\n", group, args[0])
		printUsage()
		return fmt.Errorf("unknown %s command %q", group, args[0])
	}
	return cmd(env, args[1:])
}

func commandNames(commands map[string]command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printUsage() {
	fmt.Printf(`ufficio v%s - CRM for leads, opportunities and quotes

USAGE:
  ufficio [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       SQLite database path (default: ~/.local/share/ufficio/ufficio.db)
  --log-level <level>    debug, info, warn or error
  --init                 Initialize database and exit

CONFIGURATION:
  ~/.config/ufficio/config.json, then .env, then UFFICIO_* environment variables
  (UFFICIO_DB_DRIVER, UFFICIO_DATABASE_URL, UFFICIO_USER_ID, UFFICIO_ADMIN, ...)

COMMANDS:
  mcp                    Start MCP server for Claude Desktop
  serve                  Start the HTTP API (--addr)
  pick                   Interactive client picker (--debounce)
  crm                    CRM management commands
  viz                    Visualization commands

REGISTRY:
  ufficio crm add-person          --first --last [--fiscal-code --city --province --email --phone]
  ufficio crm add-organization    --name [--vat --city --province --type]
                                  [--contact-first --contact-last --contact-role --contact-email]
  ufficio crm edit-organization   --id <id> [--name --vat --city --province --type --notes]
  ufficio crm delete-organization --id <id> [--yes]   (admin only)
  ufficio crm quick-affiliate     --org <id> --first --last --role (--email | --phone)
  ufficio crm remove-affiliate    --id <affiliation-id>
  ufficio crm affiliates          --org <id> [--filter <text>]
  ufficio crm search              [--type person|organization] [--province] [--org-type] [text]
  ufficio crm facets

LEADS:
  ufficio crm add-lead            [--name --email --phone --company --budget --source ...]
  ufficio crm list-leads          [--status --source --limit]
  ufficio crm lead-status         --id <id> --status new|contacted|qualified|lost
  ufficio crm log-activity        --id <id> --kind call|email|meeting|note <text>
  ufficio crm convert-lead        --id <id> [--yes]
  ufficio crm export-leads        [--format csv|xlsx] [--output <file>] [--status --source]
  ufficio crm lead-template       [--output <file>]

OPPORTUNITIES:
  ufficio crm add-prospect        --type person|organization (--person | --org --affiliation)
                                  [--name --revenue --close YYYY-MM-DD]
  ufficio crm set-stage           --id <id> --stage <stage>
  ufficio crm list-opportunities  [--stage --limit]
  ufficio crm delete-opportunity  --id <id> [--yes]   (admin only)
  ufficio crm quotes              --id <id>
  ufficio crm quote-link          --id <id> --quote <id> [--primary]
  ufficio crm handoff             --id <id>

VIZ COMMANDS:
  ufficio viz dashboard           Pipeline summary
  ufficio viz graph [--output f]  Leads, opportunities and quotes as DOT

EXAMPLES:
  ufficio crm add-lead --name "Mario Rossi" --company "Rossi Impianti" --budget 10000 --source referral
  ufficio crm convert-lead --id <lead-id> --yes
  ufficio serve --addr 127.0.0.1:8080
`, version)
}
