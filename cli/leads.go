// ABOUTME: Lead CLI commands: intake, status, activities, conversion and export
// ABOUTME: Conversion asks for confirmation unless --yes is given
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

// AddLeadCommand records a new lead.
func AddLeadCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("add-lead", flag.ExitOnError)
	var in crm.LeadInput
	fs.StringVar(&in.ContactName, "name", "", "Contact name")
	fs.StringVar(&in.ContactEmail, "email", "", "Contact email")
	fs.StringVar(&in.ContactPhone, "phone", "", "Contact phone")
	fs.StringVar(&in.CompanyName, "company", "", "Company name")
	fs.StringVar(&in.Source, "source", "", "Lead source (fonte)")
	fs.StringVar(&in.Channel, "channel", "", "Channel")
	fs.StringVar(&in.UTMSource, "utm-source", "", "UTM source")
	fs.StringVar(&in.UTMMedium, "utm-medium", "", "UTM medium")
	fs.StringVar(&in.UTMCampaign, "utm-campaign", "", "UTM campaign")
	fs.StringVar(&in.Notes, "notes", "", "Notes")
	budget := fs.String("budget", "", "Budget in euro")
	person := fs.String("person", "", "Known person ID")
	org := fs.String("org", "", "Known organization ID")
	aff := fs.String("affiliation", "", "Referente (affiliation) ID")
	_ = fs.Parse(args)

	var err error
	if in.Budget, err = parseAmount("budget", *budget); err != nil {
		return err
	}
	if in.PersonID, err = parseOptionalID("person", *person); err != nil {
		return err
	}
	if in.OrganizationID, err = parseOptionalID("org", *org); err != nil {
		return err
	}
	if in.AffiliationID, err = parseOptionalID("affiliation", *aff); err != nil {
		return err
	}

	lead, err := env.Svc.CreateLead(env.ctx(), in)
	if err != nil {
		return env.report("create lead", err, "")
	}
	env.printf("✓ Lead created: %s (ID: %s)\n", dash(lead.Title()), lead.ID)
	if lead.PersonID != nil && in.PersonID == nil {
		env.printf("  Matched existing person %s by email\n", lead.PersonID)
	}
	return nil
}

// ListLeadsCommand lists leads, newest first.
func ListLeadsCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("list-leads", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status")
	source := fs.String("source", "", "Filter by source")
	limit := fs.Int("limit", 50, "Maximum results")
	_ = fs.Parse(args)

	leads, err := env.Svc.ListLeads(env.ctx(), db.LeadFilter{Status: models.LeadStatus(*status), Source: *source, Limit: *limit})
	if err != nil {
		return env.report("list leads", err, "")
	}
	if len(leads) == 0 {
		env.printf("No leads found\n")
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEAD\tSTATUS\tSOURCE\tBUDGET\tLAST ACTIVITY\tID")
	_, _ = fmt.Fprintln(w, "----\t------\t------\t------\t-------------\t--")
	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			dash(l.Title()), l.Status, dash(l.Source), money(l.Budget), l.LastActivityAt.Format("2006-01-02"), l.ID)
	}
	return w.Flush()
}

// LeadStatusCommand moves a lead to another status.
func LeadStatusCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("lead-status", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	status := fs.String("status", "", "new, contacted, qualified or lost (required)")
	_ = fs.Parse(args)

	leadID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	lead, err := env.Svc.UpdateLeadStatus(env.ctx(), leadID, models.LeadStatus(*status))
	if err != nil {
		return env.report("update lead status", err, "")
	}
	return env.report("update lead status", nil, fmt.Sprintf("Lead is now %s", lead.Status))
}

// LogActivityCommand adds a call, email, meeting or note to a lead.
func LogActivityCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("log-activity", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	kind := fs.String("kind", "note", "call, email, meeting or note")
	_ = fs.Parse(args)

	leadID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	content := strings.Join(fs.Args(), " ")
	if _, err := env.Svc.LogLeadActivity(env.ctx(), leadID, models.ActivityKind(*kind), content); err != nil {
		return env.report("log activity", err, "")
	}
	return env.report("log activity", nil, "Activity logged")
}

// ConvertLeadCommand turns a lead into an opportunity.
func ConvertLeadCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("convert-lead", flag.ExitOnError)
	id := fs.String("id", "", "Lead ID (required)")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	_ = fs.Parse(args)

	leadID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	lead, err := env.Svc.GetLead(env.ctx(), leadID)
	if err != nil {
		return env.report("convert lead", err, "")
	}

	ok, err := env.confirm(fmt.Sprintf("Convert lead %q to an opportunity?", lead.Title()), *yes)
	if err != nil {
		return err
	}
	if !ok {
		env.printf("Cancelled\n")
		return nil
	}

	opp, err := env.Svc.ConvertLead(env.ctx(), leadID)
	if err != nil {
		return env.report("convert lead", err, "")
	}
	return env.report("convert lead", nil, fmt.Sprintf("Lead converted to opportunity %s (ID: %s)", opp.Name, opp.ID))
}

// ExportLeadsCommand writes leads as CSV or Excel.
func ExportLeadsCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("export-leads", flag.ExitOnError)
	format := fs.String("format", "csv", "csv or xlsx")
	output := fs.String("output", "", "Output file (default: stdout)")
	status := fs.String("status", "", "Filter by status")
	source := fs.String("source", "", "Filter by source")
	_ = fs.Parse(args)

	out := env.Out
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *output, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	} else if *format == "xlsx" && env.Interactive {
		return fmt.Errorf("refusing to write a workbook to the terminal, use --output")
	}

	filter := db.LeadFilter{Status: models.LeadStatus(*status), Source: *source}
	var (
		n   int
		err error
	)
	switch *format {
	case "csv":
		n, err = env.Svc.ExportLeadsCSV(env.ctx(), out, filter)
	case "xlsx":
		n, err = env.Svc.ExportLeadsXLSX(env.ctx(), out, filter)
	default:
		return fmt.Errorf("unknown format %q (valid: csv, xlsx)", *format)
	}
	if err != nil {
		return env.report("export leads", err, "")
	}
	if *output != "" {
		env.printf("✓ Exported %d leads to %s\n", n, *output)
	}
	return nil
}

// LeadTemplateCommand writes the blank lead import template.
func LeadTemplateCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("lead-template", flag.ExitOnError)
	output := fs.String("output", "", "Output file (default: stdout)")
	_ = fs.Parse(args)

	if *output == "" {
		return crm.WriteLeadTemplate(env.Out)
	}
	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *output, err)
	}
	defer func() { _ = f.Close() }()
	if err := crm.WriteLeadTemplate(f); err != nil {
		return err
	}
	env.printf("✓ Template written to %s\n", *output)
	return nil
}
