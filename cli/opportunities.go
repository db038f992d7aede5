// ABOUTME: Opportunity CLI commands: prospects, stages and linked quotes
// ABOUTME: Also prints the quote builder handoff link
package cli

import (
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

// AddProspectCommand creates an opportunity directly for a known client.
func AddProspectCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("add-prospect", flag.ExitOnError)
	kind := fs.String("type", "organization", "person or organization")
	person := fs.String("person", "", "Person ID (person prospects)")
	org := fs.String("org", "", "Organization ID (organization prospects)")
	aff := fs.String("affiliation", "", "Referente ID (organization prospects)")
	name := fs.String("name", "", "Opportunity name (default: client name)")
	revenue := fs.String("revenue", "", "Expected revenue in euro")
	closeDate := fs.String("close", "", "Expected close date (YYYY-MM-DD)")
	description := fs.String("description", "", "Description")
	notes := fs.String("notes", "", "Notes")
	_ = fs.Parse(args)

	ct, err := models.ParseClientType(*kind)
	if err != nil {
		return err
	}
	in := crm.ProspectInput{ClientType: ct, Name: *name, Description: *description, Notes: *notes}
	if in.PersonID, err = parseOptionalID("person", *person); err != nil {
		return err
	}
	if in.OrganizationID, err = parseOptionalID("org", *org); err != nil {
		return err
	}
	if in.AffiliationID, err = parseOptionalID("affiliation", *aff); err != nil {
		return err
	}
	if in.ExpectedRevenue, err = parseAmount("revenue", *revenue); err != nil {
		return err
	}
	if in.ExpectedCloseDate, err = parseDate("close", *closeDate); err != nil {
		return err
	}

	opp, err := env.Svc.CreateProspect(env.ctx(), in)
	if err != nil {
		return env.report("create prospect", err, "")
	}
	env.printf("✓ Opportunity created: %s (ID: %s)\n", opp.Name, opp.ID)
	env.printf("  Stage: %s\n", opp.Stage)
	return nil
}

// SetStageCommand moves an opportunity through the pipeline.
func SetStageCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("set-stage", flag.ExitOnError)
	id := fs.String("id", "", "Opportunity ID (required)")
	stage := fs.String("stage", "", "discovery, proposal, negotiation, closed_won or closed_lost (required)")
	_ = fs.Parse(args)

	oppID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	opp, outcome, err := env.Svc.TransitionStage(env.ctx(), oppID, models.Stage(*stage))
	if err != nil {
		return env.report("update stage", err, "")
	}
	return env.report("update stage", nil, fmt.Sprintf("%s: %s", opp.Name, outcome))
}

// ListOpportunitiesCommand lists opportunities.
func ListOpportunitiesCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("list-opportunities", flag.ExitOnError)
	stage := fs.String("stage", "", "Filter by stage")
	limit := fs.Int("limit", 50, "Maximum results")
	_ = fs.Parse(args)

	opps, err := env.Svc.ListOpportunities(env.ctx(), db.OpportunityFilter{Stage: models.Stage(*stage), Limit: *limit})
	if err != nil {
		return env.report("list opportunities", err, "")
	}
	if len(opps) == 0 {
		env.printf("No opportunities found\n")
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCLIENT\tSTAGE\tREVENUE\tID")
	_, _ = fmt.Fprintln(w, "----\t------\t-----\t-------\t--")
	for _, o := range opps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Name, dash(string(o.ClientType())), o.Stage, money(o.ExpectedRevenue), o.ID)
	}
	return w.Flush()
}

// DeleteOpportunityCommand removes an opportunity. Admins only.
func DeleteOpportunityCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("delete-opportunity", flag.ExitOnError)
	id := fs.String("id", "", "Opportunity ID (required)")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	_ = fs.Parse(args)

	oppID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	ok, err := env.confirm("Delete opportunity "+oppID.String()+"?", *yes)
	if err != nil || !ok {
		return err
	}
	return env.report("delete opportunity", env.Svc.DeleteOpportunity(env.ctx(), oppID), "Opportunity deleted")
}

// QuotesCommand lists the quotes linked to an opportunity.
func QuotesCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("quotes", flag.ExitOnError)
	id := fs.String("id", "", "Opportunity ID (required)")
	_ = fs.Parse(args)

	oppID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	linked, err := env.Svc.LinkedQuotes(env.ctx(), oppID)
	if err != nil {
		return env.report("list quotes", err, "")
	}
	if len(linked.Quotes) == 0 {
		env.printf("No quotes linked to this opportunity\n")
		return nil
	}

	primary := linked.Primary()
	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, " \tTITLE\tSTATUS\tTOTAL\tID")
	_, _ = fmt.Fprintln(w, " \t-----\t------\t-----\t--")
	for _, q := range linked.Quotes {
		mark := " "
		if primary != nil && primary.ID == q.ID {
			mark = "★"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t€%s\t%s\n", mark, q.Title, q.Status, q.Total.StringFixed(2), q.ID)
	}
	_ = w.Flush()
	env.printf("\n%d quotes, %d accepted, total €%s\n", linked.Summary.Count, linked.Summary.Accepted, linked.Summary.Total.StringFixed(2))
	return nil
}

// QuoteLinkCommand attaches an existing quote to an opportunity.
func QuoteLinkCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("quote-link", flag.ExitOnError)
	id := fs.String("id", "", "Opportunity ID (required)")
	quote := fs.String("quote", "", "Quote ID (required)")
	primary := fs.Bool("primary", false, "Make this the primary quote")
	_ = fs.Parse(args)

	oppID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	quoteID, err := parseID("quote", *quote)
	if err != nil {
		return err
	}
	return env.report("link quote", env.Svc.LinkQuote(env.ctx(), oppID, quoteID, *primary), "Quote linked")
}

// HandoffCommand prints the quote builder link for an opportunity.
func HandoffCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("handoff", flag.ExitOnError)
	id := fs.String("id", "", "Opportunity ID (required)")
	_ = fs.Parse(args)

	oppID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	h, err := env.Svc.QuoteHandoff(env.ctx(), oppID)
	if err != nil {
		return env.report("open quote builder", err, "")
	}
	env.printf("%s\n", h.URL)
	return nil
}
