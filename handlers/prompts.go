// ABOUTME: MCP prompt handlers for reusable pipeline workflow templates
// ABOUTME: Lead triage and opportunity review prompts built from live data
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (h *Handlers) registerPrompts(server *mcp.Server) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "lead-triage",
		Description: "Prioritize open leads and suggest which to contact, qualify or convert",
	}, h.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "opportunity-review",
		Description: "Review an opportunity, its stage and linked quotes",
		Arguments: []*mcp.PromptArgument{
			{Name: "opportunity_id", Description: "Opportunity ID", Required: true},
		},
	}, h.GetPrompt)
}

// GetPrompt generates the prompt message based on the template
func (h *Handlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	ctx = h.ctx(ctx)
	switch request.Params.Name {
	case "lead-triage":
		return h.leadTriagePrompt(ctx)
	case "opportunity-review":
		return h.opportunityReviewPrompt(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *Handlers) leadTriagePrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	leads, err := h.svc.ListLeads(ctx, db.LeadFilter{Limit: 200})
	if err != nil {
		return nil, h.fail("build lead triage", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Open leads:\n")
	open := 0
	for _, l := range leads {
		if l.Status.IsTerminal() {
			continue
		}
		open++
		budget := "no budget"
		if l.Budget.Valid {
			budget = "budget " + l.Budget.Decimal.StringFixed(2)
		}
		promptText.WriteString(fmt.Sprintf("- %s [%s] %s, source %q, last activity %s (id %s)\n",
			l.Title(), l.Status, budget, l.Source, l.LastActivityAt.Format("2006-01-02"), l.ID))
	}
	if open == 0 {
		promptText.WriteString("(none)\n")
	}

	promptText.WriteString("\nPlease:")
	promptText.WriteString("\n1. Rank these leads by likelihood to convert")
	promptText.WriteString("\n2. Suggest the next status or activity for each")
	promptText.WriteString("\n3. Name the leads ready for convert_lead")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Triage of %d open leads", open),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: promptText.String()}},
		},
	}, nil
}

func (h *Handlers) opportunityReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	id, err := parseID("opportunity_id", args["opportunity_id"])
	if err != nil {
		return nil, err
	}

	opp, err := h.svc.GetOpportunity(ctx, id)
	if err != nil {
		return nil, h.fail("build opportunity review", err)
	}
	linked, err := h.svc.LinkedQuotes(ctx, id)
	if err != nil {
		return nil, h.fail("build opportunity review", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Opportunity: %s\n", opp.Name))
	promptText.WriteString(fmt.Sprintf("Stage: %s\n", opp.Stage))
	if opp.Probability != nil {
		promptText.WriteString(fmt.Sprintf("Probability: %d%%\n", *opp.Probability))
	}
	if opp.ExpectedRevenue.Valid {
		promptText.WriteString(fmt.Sprintf("Expected revenue: %s\n", opp.ExpectedRevenue.Decimal.StringFixed(2)))
	}
	if opp.Stage.IsClosed() && opp.ClosedAt != nil {
		promptText.WriteString(fmt.Sprintf("Closed: %s\n", opp.ClosedAt.Format("2006-01-02")))
	}

	promptText.WriteString(fmt.Sprintf("\nQuotes (%d, total %s):\n", linked.Summary.Count, linked.Summary.Total.StringFixed(2)))
	for _, q := range linked.Quotes {
		promptText.WriteString(fmt.Sprintf("- %s %s [%s] %s\n", q.Number, q.Title, q.Status, q.Total.StringFixed(2)))
	}

	promptText.WriteString("\nPlease review this opportunity and suggest:")
	if opp.Stage.IsClosed() {
		promptText.WriteString("\n1. What went right or wrong")
		promptText.WriteString("\n2. Whether it should be reopened")
	} else {
		promptText.WriteString("\n1. The next stage to aim for and what it takes")
		promptText.WriteString(fmt.Sprintf("\n2. Whether a quote is needed (stages: %s)", stageList()))
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review of opportunity: %s", opp.Name),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: promptText.String()}},
		},
	}, nil
}

func stageList() string {
	names := make([]string, len(models.Stages))
	for i, s := range models.Stages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
