// ABOUTME: MCP resource handlers for exposing pipeline data
// ABOUTME: Provides read-only access to leads, opportunities and the stage summary via URI
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
)

const resourceScheme = "ufficio://"

func (h *Handlers) registerResources(server *mcp.Server) {
	for _, r := range []*mcp.Resource{
		{URI: resourceScheme + "leads", Name: "leads", Description: "Open and recent leads", MIMEType: "application/json"},
		{URI: resourceScheme + "opportunities", Name: "opportunities", Description: "All opportunities", MIMEType: "application/json"},
		{URI: resourceScheme + "pipeline", Name: "pipeline", Description: "Opportunity count and expected revenue per stage", MIMEType: "application/json"},
	} {
		server.AddResource(r, h.ReadResource)
	}
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "opportunities/{id}",
		Name:        "opportunity",
		Description: "One opportunity with its linked quotes",
		MIMEType:    "application/json",
	}, h.ReadResource)
}

// ReadResource handles resource read requests
func (h *Handlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}
	ctx = h.ctx(ctx)

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch parts[0] {
	case "leads":
		leads, err := h.svc.ListLeads(ctx, db.LeadFilter{Limit: 1000})
		if err != nil {
			return nil, h.fail("read leads", err)
		}
		out := make([]LeadOutput, len(leads))
		for i := range leads {
			out[i] = leadToOutput(&leads[i])
		}
		return jsonResource(uri, out)

	case "opportunities":
		if len(parts) == 1 {
			opps, err := h.svc.ListOpportunities(ctx, db.OpportunityFilter{Limit: 1000})
			if err != nil {
				return nil, h.fail("read opportunities", err)
			}
			out := make([]OpportunityOutput, len(opps))
			for i := range opps {
				out[i] = opportunityToOutput(&opps[i])
			}
			return jsonResource(uri, out)
		}
		return h.readOpportunity(ctx, uri, parts[1])

	case "pipeline":
		return h.readPipeline(ctx, uri)

	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *Handlers) readOpportunity(ctx context.Context, uri, idStr string) (*mcp.ReadResourceResult, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid opportunity ID: %w", err)
	}

	opp, err := h.svc.GetOpportunity(ctx, id)
	if err != nil {
		return nil, h.fail("read opportunity", err)
	}
	linked, err := h.svc.LinkedQuotes(ctx, id)
	if err != nil {
		return nil, h.fail("read opportunity", err)
	}

	return jsonResource(uri, struct {
		Opportunity OpportunityOutput           `json:"opportunity"`
		Quotes      ListOpportunityQuotesOutput `json:"quotes"`
	}{opportunityToOutput(opp), linkedToOutput(linked)})
}

type stageSummary struct {
	Count           int    `json:"count"`
	ExpectedRevenue string `json:"expected_revenue"`
}

func (h *Handlers) readPipeline(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	opps, err := h.svc.ListOpportunities(ctx, db.OpportunityFilter{Limit: 10000})
	if err != nil {
		return nil, h.fail("read pipeline", err)
	}
	return jsonResource(uri, summarizeStages(opps))
}

func summarizeStages(opps []models.Opportunity) map[models.Stage]stageSummary {
	totals := make(map[models.Stage]decimal.Decimal, len(models.Stages))
	counts := make(map[models.Stage]int, len(models.Stages))
	for _, s := range models.Stages {
		totals[s] = decimal.Zero
	}
	for _, o := range opps {
		counts[o.Stage]++
		if o.ExpectedRevenue.Valid {
			totals[o.Stage] = totals[o.Stage].Add(o.ExpectedRevenue.Decimal)
		}
	}

	out := make(map[models.Stage]stageSummary, len(totals))
	for s, total := range totals {
		out[s] = stageSummary{Count: counts[s], ExpectedRevenue: total.StringFixed(2)}
	}
	return out
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
