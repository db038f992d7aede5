// ABOUTME: Pipeline MCP tool handlers
// ABOUTME: Leads, conversion, prospects, stage changes and quote linkage
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CreateLeadInput struct {
	ContactName    string `json:"contact_name,omitempty" jsonschema:"Contact name as given"`
	ContactEmail   string `json:"contact_email,omitempty" jsonschema:"Contact email; links the lead to a known person"`
	ContactPhone   string `json:"contact_phone,omitempty" jsonschema:"Contact phone"`
	CompanyName    string `json:"company_name,omitempty" jsonschema:"Company name as given"`
	Budget         string `json:"budget,omitempty" jsonschema:"Budget as a decimal, e.g. 10000.00"`
	Source         string `json:"source,omitempty" jsonschema:"Lead source, e.g. referral, web, fair"`
	Channel        string `json:"channel,omitempty" jsonschema:"Acquisition channel"`
	Notes          string `json:"notes,omitempty" jsonschema:"Notes"`
	PersonID       string `json:"person_id,omitempty" jsonschema:"Existing person ID"`
	OrganizationID string `json:"organization_id,omitempty" jsonschema:"Existing organization ID"`
	AffiliationID  string `json:"affiliation_id,omitempty" jsonschema:"Referente affiliation ID (requires organization_id)"`
}

func (h *Handlers) CreateLead(ctx context.Context, _ *mcp.CallToolRequest, input CreateLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	in := crm.LeadInput{
		ContactName:  input.ContactName,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		CompanyName:  input.CompanyName,
		Source:       input.Source,
		Channel:      input.Channel,
		Notes:        input.Notes,
	}
	var err error
	if in.Budget, err = parseAmount("budget", input.Budget); err != nil {
		return nil, LeadOutput{}, err
	}
	if in.PersonID, err = parseOptionalID("person_id", input.PersonID); err != nil {
		return nil, LeadOutput{}, err
	}
	if in.OrganizationID, err = parseOptionalID("organization_id", input.OrganizationID); err != nil {
		return nil, LeadOutput{}, err
	}
	if in.AffiliationID, err = parseOptionalID("affiliation_id", input.AffiliationID); err != nil {
		return nil, LeadOutput{}, err
	}

	lead, err := h.svc.CreateLead(h.ctx(ctx), in)
	if err != nil {
		return nil, LeadOutput{}, h.fail("create lead", err)
	}
	return nil, leadToOutput(lead), nil
}

type UpdateLeadStatusInput struct {
	LeadID string `json:"lead_id" jsonschema:"Lead ID (required)"`
	Status string `json:"status" jsonschema:"new, contacted, qualified or lost (use convert_lead to convert)"`
}

func (h *Handlers) UpdateLeadStatus(ctx context.Context, _ *mcp.CallToolRequest, input UpdateLeadStatusInput) (*mcp.CallToolResult, LeadOutput, error) {
	leadID, err := parseID("lead_id", input.LeadID)
	if err != nil {
		return nil, LeadOutput{}, err
	}
	status, err := models.ParseLeadStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if err != nil {
		return nil, LeadOutput{}, err
	}

	lead, err := h.svc.UpdateLeadStatus(h.ctx(ctx), leadID, status)
	if err != nil {
		return nil, LeadOutput{}, h.fail("update lead status", err)
	}
	return nil, leadToOutput(lead), nil
}

type LogLeadActivityInput struct {
	LeadID  string `json:"lead_id" jsonschema:"Lead ID (required)"`
	Kind    string `json:"kind" jsonschema:"call, email, meeting or note"`
	Content string `json:"content" jsonschema:"What happened (required)"`
}

type LeadActivityOutput struct {
	ID        string `json:"id"`
	LeadID    string `json:"lead_id"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func (h *Handlers) LogLeadActivity(ctx context.Context, _ *mcp.CallToolRequest, input LogLeadActivityInput) (*mcp.CallToolResult, LeadActivityOutput, error) {
	leadID, err := parseID("lead_id", input.LeadID)
	if err != nil {
		return nil, LeadActivityOutput{}, err
	}

	kind := models.ActivityKind(strings.ToLower(strings.TrimSpace(input.Kind)))
	a, err := h.svc.LogLeadActivity(h.ctx(ctx), leadID, kind, input.Content)
	if err != nil {
		return nil, LeadActivityOutput{}, h.fail("log activity", err)
	}
	return nil, LeadActivityOutput{
		ID:        a.ID.String(),
		LeadID:    a.LeadID.String(),
		Kind:      string(a.Kind),
		Content:   a.Content,
		CreatedAt: timeString(&a.CreatedAt),
	}, nil
}

type ConvertLeadInput struct {
	LeadID string `json:"lead_id" jsonschema:"Lead ID (required)"`
}

type ConvertLeadOutput struct {
	Opportunity OpportunityOutput `json:"opportunity"`
	Message     string            `json:"message"`
}

func (h *Handlers) ConvertLead(ctx context.Context, _ *mcp.CallToolRequest, input ConvertLeadInput) (*mcp.CallToolResult, ConvertLeadOutput, error) {
	leadID, err := parseID("lead_id", input.LeadID)
	if err != nil {
		return nil, ConvertLeadOutput{}, err
	}

	opp, err := h.svc.ConvertLead(h.ctx(ctx), leadID)
	if err != nil {
		return nil, ConvertLeadOutput{}, h.fail("convert lead", err)
	}
	n := h.svc.Report("convert lead", nil, "Lead converted to opportunity "+opp.Name)
	return nil, ConvertLeadOutput{Opportunity: opportunityToOutput(opp), Message: n.Message}, nil
}

type CreateProspectInput struct {
	ClientType      string `json:"client_type" jsonschema:"person or organization (required)"`
	PersonID        string `json:"person_id,omitempty" jsonschema:"Person ID (required for person clients)"`
	OrganizationID  string `json:"organization_id,omitempty" jsonschema:"Organization ID (required for organization clients)"`
	AffiliationID   string `json:"affiliation_id,omitempty" jsonschema:"Referente affiliation ID (required for organization clients)"`
	Name            string `json:"name,omitempty" jsonschema:"Opportunity name (defaults to the client's name)"`
	ExpectedRevenue string `json:"expected_revenue,omitempty" jsonschema:"Expected revenue as a decimal"`
	Description     string `json:"description,omitempty" jsonschema:"Description"`
}

func (h *Handlers) CreateProspect(ctx context.Context, _ *mcp.CallToolRequest, input CreateProspectInput) (*mcp.CallToolResult, OpportunityOutput, error) {
	ct, err := models.ParseClientType(input.ClientType)
	if err != nil {
		return nil, OpportunityOutput{}, err
	}
	in := crm.ProspectInput{ClientType: ct, Name: input.Name, Description: input.Description}
	if in.PersonID, err = parseOptionalID("person_id", input.PersonID); err != nil {
		return nil, OpportunityOutput{}, err
	}
	if in.OrganizationID, err = parseOptionalID("organization_id", input.OrganizationID); err != nil {
		return nil, OpportunityOutput{}, err
	}
	if in.AffiliationID, err = parseOptionalID("affiliation_id", input.AffiliationID); err != nil {
		return nil, OpportunityOutput{}, err
	}
	if in.ExpectedRevenue, err = parseAmount("expected_revenue", input.ExpectedRevenue); err != nil {
		return nil, OpportunityOutput{}, err
	}

	opp, err := h.svc.CreateProspect(h.ctx(ctx), in)
	if err != nil {
		return nil, OpportunityOutput{}, h.fail("create prospect", err)
	}
	return nil, opportunityToOutput(opp), nil
}

type UpdateOpportunityStageInput struct {
	OpportunityID string `json:"opportunity_id" jsonschema:"Opportunity ID (required)"`
	Stage         string `json:"stage" jsonschema:"discovery, proposal, negotiation, closed_won or closed_lost"`
}

type UpdateOpportunityStageOutput struct {
	Opportunity OpportunityOutput `json:"opportunity"`
	Outcome     string            `json:"outcome"`
}

func (h *Handlers) UpdateOpportunityStage(ctx context.Context, _ *mcp.CallToolRequest, input UpdateOpportunityStageInput) (*mcp.CallToolResult, UpdateOpportunityStageOutput, error) {
	oppID, err := parseID("opportunity_id", input.OpportunityID)
	if err != nil {
		return nil, UpdateOpportunityStageOutput{}, err
	}
	stage, err := models.ParseStage(strings.ToLower(strings.TrimSpace(input.Stage)))
	if err != nil {
		return nil, UpdateOpportunityStageOutput{}, err
	}

	opp, outcome, err := h.svc.TransitionStage(h.ctx(ctx), oppID, stage)
	if err != nil {
		return nil, UpdateOpportunityStageOutput{}, h.fail("update stage", err)
	}
	return nil, UpdateOpportunityStageOutput{Opportunity: opportunityToOutput(opp), Outcome: string(outcome)}, nil
}

type ListOpportunityQuotesInput struct {
	OpportunityID string `json:"opportunity_id" jsonschema:"Opportunity ID (required)"`
}

type QuoteOutput struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Total     string `json:"total"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

type ListOpportunityQuotesOutput struct {
	Quotes   []QuoteOutput `json:"quotes"`
	Count    int           `json:"count"`
	Accepted int           `json:"accepted"`
	Total    string        `json:"total"`
}

func (h *Handlers) ListOpportunityQuotes(ctx context.Context, _ *mcp.CallToolRequest, input ListOpportunityQuotesInput) (*mcp.CallToolResult, ListOpportunityQuotesOutput, error) {
	oppID, err := parseID("opportunity_id", input.OpportunityID)
	if err != nil {
		return nil, ListOpportunityQuotesOutput{}, err
	}

	linked, err := h.svc.LinkedQuotes(h.ctx(ctx), oppID)
	if err != nil {
		return nil, ListOpportunityQuotesOutput{}, h.fail("list quotes", err)
	}
	return nil, linkedToOutput(linked), nil
}

func linkedToOutput(linked crm.LinkedQuotes) ListOpportunityQuotesOutput {
	primary := linked.Primary()
	out := ListOpportunityQuotesOutput{
		Quotes:   make([]QuoteOutput, len(linked.Quotes)),
		Count:    linked.Summary.Count,
		Accepted: linked.Summary.Accepted,
		Total:    linked.Summary.Total.StringFixed(2),
	}
	for i, q := range linked.Quotes {
		out.Quotes[i] = QuoteOutput{
			ID:        q.ID.String(),
			Number:    q.Number,
			Title:     q.Title,
			Status:    string(q.Status),
			Total:     q.Total.StringFixed(2),
			IsPrimary: primary != nil && primary.ID == q.ID,
		}
	}
	return out
}

type QuoteHandoffInput struct {
	OpportunityID string `json:"opportunity_id" jsonschema:"Opportunity ID (required)"`
}

type QuoteHandoffOutput struct {
	URL           string `json:"url"`
	ClientType    string `json:"client_type"`
	ClientID      string `json:"client_id"`
	OpportunityID string `json:"opportunity_id"`
}

func (h *Handlers) QuoteHandoff(ctx context.Context, _ *mcp.CallToolRequest, input QuoteHandoffInput) (*mcp.CallToolResult, QuoteHandoffOutput, error) {
	oppID, err := parseID("opportunity_id", input.OpportunityID)
	if err != nil {
		return nil, QuoteHandoffOutput{}, err
	}

	hand, err := h.svc.QuoteHandoff(h.ctx(ctx), oppID)
	if err != nil {
		return nil, QuoteHandoffOutput{}, h.fail("open quote builder", err)
	}
	return nil, QuoteHandoffOutput{
		URL:           hand.URL,
		ClientType:    string(hand.ClientType),
		ClientID:      hand.ClientID.String(),
		OpportunityID: hand.OpportunityID.String(),
	}, nil
}

type LinkQuoteInput struct {
	OpportunityID string `json:"opportunity_id" jsonschema:"Opportunity ID (required)"`
	QuoteID       string `json:"quote_id" jsonschema:"Quote ID (required)"`
	Primary       bool   `json:"primary,omitempty" jsonschema:"Mark this quote as the opportunity's primary quote"`
}

func (h *Handlers) LinkQuote(ctx context.Context, _ *mcp.CallToolRequest, input LinkQuoteInput) (*mcp.CallToolResult, ListOpportunityQuotesOutput, error) {
	oppID, err := parseID("opportunity_id", input.OpportunityID)
	if err != nil {
		return nil, ListOpportunityQuotesOutput{}, err
	}
	quoteID, err := parseID("quote_id", input.QuoteID)
	if err != nil {
		return nil, ListOpportunityQuotesOutput{}, err
	}

	ctx = h.ctx(ctx)
	if err := h.svc.LinkQuote(ctx, oppID, quoteID, input.Primary); err != nil {
		return nil, ListOpportunityQuotesOutput{}, h.fail("link quote", err)
	}
	linked, err := h.svc.LinkedQuotes(ctx, oppID)
	if err != nil {
		return nil, ListOpportunityQuotesOutput{}, h.fail("list quotes", fmt.Errorf("reload after link: %w", err))
	}
	return nil, linkedToOutput(linked), nil
}
