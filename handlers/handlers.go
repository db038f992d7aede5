// ABOUTME: Shared plumbing for the MCP tool handlers
// ABOUTME: Binds the operator identity, parses ids and turns service errors into tool errors
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
)

// Handlers serves every MCP tool, resource and prompt on top of one service.
type Handlers struct {
	svc   *crm.Service
	actor crm.Actor
}

func New(svc *crm.Service, actor crm.Actor) *Handlers {
	return &Handlers{svc: svc, actor: actor}
}

func (h *Handlers) ctx(ctx context.Context) context.Context {
	return crm.WithActor(ctx, h.actor)
}

// fail reports the failure and returns the user-facing message as the tool
// error. Backend detail stays in the log under the notice's action id.
func (h *Handlers) fail(action string, err error) error {
	n := h.svc.Report(action, err, "")
	if n.Kind == crm.NoticeBackend {
		return fmt.Errorf("%s (ref %s)", n.Message, n.ActionID)
	}
	return errors.New(n.Message)
}

// Register adds all tools, resources and prompts to server.
func (h *Handlers) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_entities",
		Description: "Search persons or organizations by name, tax code, city or contact, with province and organization type filters",
	}, h.SearchEntities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "entity_facets",
		Description: "List the province and organization type values available as search filters",
	}, h.EntityFacets)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_affiliates",
		Description: "List the persons affiliated with an organization and their roles, with an optional text filter",
	}, h.ListAffiliates)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quick_create_affiliation",
		Description: "Create a person and affiliate them to an organization with a role in one step",
	}, h.QuickCreateAffiliation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quick_create_organization",
		Description: "Create an organization from an inbound contact, optionally with the person who reached out",
	}, h.QuickCreateOrganization)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_lead",
		Description: "Record a new lead with contact details, budget and source",
	}, h.CreateLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_lead_status",
		Description: "Move a lead to new, contacted, qualified or lost",
	}, h.UpdateLeadStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "log_lead_activity",
		Description: "Log a call, email, meeting or note against a lead",
	}, h.LogLeadActivity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "convert_lead",
		Description: "Convert a lead into a discovery-stage opportunity and mark the lead converted",
	}, h.ConvertLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_prospect",
		Description: "Open a discovery-stage opportunity for a person or an organization without a lead",
	}, h.CreateProspect)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_opportunity_stage",
		Description: "Move an opportunity to another pipeline stage; closing stamps the close date",
	}, h.UpdateOpportunityStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_opportunity_quotes",
		Description: "List the quotes linked to an opportunity with their totals",
	}, h.ListOpportunityQuotes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quote_handoff",
		Description: "Build the quote builder URL pre-populated with an opportunity's client",
	}, h.QuoteHandoff)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "link_quote",
		Description: "Link an existing quote to an opportunity, optionally as the primary quote",
	}, h.LinkQuote)

	h.registerResources(server)
	h.registerPrompts(server)
}

func parseID(field, value string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s is required", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}

func parseOptionalID(field, value string) (*uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseAmount(field, value string) (decimal.NullDecimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func amountString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func timeString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type PersonOutput struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	FiscalCode  string `json:"fiscal_code,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

func personToOutput(p *models.Person) PersonOutput {
	return PersonOutput{
		ID:          p.ID.String(),
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DisplayName: p.DisplayName(),
		FiscalCode:  p.FiscalCode,
		City:        p.City,
		Province:    p.Province,
		Email:       p.Contacts.PrimaryEmail(),
		Phone:       p.Contacts.PrimaryPhone(),
	}
}

type OrganizationOutput struct {
	ID        string `json:"id"`
	LegalName string `json:"legal_name"`
	VATNumber string `json:"vat_number,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	OrgType   string `json:"org_type,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func organizationToOutput(o *models.Organization) OrganizationOutput {
	return OrganizationOutput{
		ID:        o.ID.String(),
		LegalName: o.LegalName,
		VATNumber: o.VATNumber,
		City:      o.City,
		Province:  o.Province,
		OrgType:   o.OrgType,
		Email:     o.Contacts.PrimaryEmail(),
		Phone:     o.Contacts.PrimaryPhone(),
	}
}

type AffiliationOutput struct {
	ID             string `json:"id"`
	PersonID       string `json:"person_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

func affiliationToOutput(a *models.Affiliation) AffiliationOutput {
	return AffiliationOutput{
		ID:             a.ID.String(),
		PersonID:       a.PersonID.String(),
		OrganizationID: a.OrganizationID.String(),
		Role:           a.Role,
	}
}

type LeadOutput struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Title          string `json:"title"`
	ContactName    string `json:"contact_name,omitempty"`
	ContactEmail   string `json:"contact_email,omitempty"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
	Budget         string `json:"budget,omitempty"`
	Source         string `json:"source,omitempty"`
	PersonID       string `json:"person_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	AffiliationID  string `json:"affiliation_id,omitempty"`
	LastActivityAt string `json:"last_activity_at"`
}

func leadToOutput(l *models.Lead) LeadOutput {
	return LeadOutput{
		ID:             l.ID.String(),
		Status:         string(l.Status),
		Title:          l.Title(),
		ContactName:    l.ContactName,
		ContactEmail:   l.ContactEmail,
		ContactPhone:   l.ContactPhone,
		CompanyName:    l.CompanyName,
		Budget:         amountString(l.Budget),
		Source:         l.Source,
		PersonID:       idString(l.PersonID),
		OrganizationID: idString(l.OrganizationID),
		AffiliationID:  idString(l.AffiliationID),
		LastActivityAt: timeString(&l.LastActivityAt),
	}
}

type OpportunityOutput struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Stage           string `json:"stage"`
	Probability     *int   `json:"probability,omitempty"`
	ExpectedRevenue string `json:"expected_revenue,omitempty"`
	ClientType      string `json:"client_type,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	LeadID          string `json:"lead_id,omitempty"`
	PersonID        string `json:"person_id,omitempty"`
	OrganizationID  string `json:"organization_id,omitempty"`
	AffiliationID   string `json:"affiliation_id,omitempty"`
	ClosedAt        string `json:"closed_at,omitempty"`
}

func opportunityToOutput(o *models.Opportunity) OpportunityOutput {
	return OpportunityOutput{
		ID:              o.ID.String(),
		Name:            o.Name,
		Stage:           string(o.Stage),
		Probability:     o.Probability,
		ExpectedRevenue: amountString(o.ExpectedRevenue),
		ClientType:      string(o.ClientType()),
		ClientID:        idString(o.ClientID()),
		LeadID:          idString(o.LeadID),
		PersonID:        idString(o.PersonID),
		OrganizationID:  idString(o.OrganizationID),
		AffiliationID:   idString(o.AffiliationID),
		ClosedAt:        timeString(o.ClosedAt),
	}
}
