// ABOUTME: Registry MCP tool handlers
// ABOUTME: Implements search_entities, entity_facets, list_affiliates and the quick-create tools
package handlers

import (
	"context"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type SearchEntitiesInput struct {
	Type     string `json:"type" jsonschema:"person or organization (required)"`
	Text     string `json:"text,omitempty" jsonschema:"Free text matched against name, tax code, city and contacts"`
	Province string `json:"province,omitempty" jsonschema:"Province code filter, e.g. MI"`
	OrgType  string `json:"org_type,omitempty" jsonschema:"Organization type filter (organizations only)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of rows (default and cap 200)"`
}

type EntityOutput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	TaxCode     string `json:"tax_code,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	OrgType     string `json:"org_type,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type SearchEntitiesOutput struct {
	Rows []EntityOutput `json:"rows"`
	// Empty explains an empty result: no_data or no_matches.
	Empty   string `json:"empty,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handlers) SearchEntities(ctx context.Context, _ *mcp.CallToolRequest, input SearchEntitiesInput) (*mcp.CallToolResult, SearchEntitiesOutput, error) {
	ct, err := models.ParseClientType(input.Type)
	if err != nil {
		return nil, SearchEntitiesOutput{}, err
	}

	res, err := h.svc.SearchEntities(h.ctx(ctx), crm.EntityQuery{
		Type:     ct,
		Text:     input.Text,
		Province: input.Province,
		OrgType:  input.OrgType,
		Limit:    input.Limit,
	})
	if err != nil {
		return nil, SearchEntitiesOutput{}, h.fail("search", err)
	}

	out := SearchEntitiesOutput{Rows: make([]EntityOutput, len(res.Rows)), Empty: string(res.Empty), Message: res.Empty.Message()}
	for i, r := range res.Rows {
		out.Rows[i] = EntityOutput{
			ID:          r.ID.String(),
			Type:        string(r.Type),
			DisplayName: r.DisplayName,
			TaxCode:     r.TaxCode,
			City:        r.City,
			Province:    r.Province,
			OrgType:     r.OrgType,
			Email:       r.Email,
			Phone:       r.Phone,
		}
	}
	return nil, out, nil
}

type EntityFacetsInput struct{}

type EntityFacetsOutput struct {
	Provinces []string `json:"provinces"`
	OrgTypes  []string `json:"org_types"`
	Degraded  bool     `json:"degraded,omitempty"`
}

func (h *Handlers) EntityFacets(ctx context.Context, _ *mcp.CallToolRequest, _ EntityFacetsInput) (*mcp.CallToolResult, EntityFacetsOutput, error) {
	f, err := h.svc.FacetOptions(h.ctx(ctx))
	if err != nil {
		return nil, EntityFacetsOutput{}, h.fail("load filters", err)
	}
	return nil, EntityFacetsOutput{Provinces: f.Provinces, OrgTypes: f.OrgTypes, Degraded: f.Degraded}, nil
}

type ListAffiliatesInput struct {
	OrganizationID string `json:"organization_id" jsonschema:"Organization ID (required)"`
	Filter         string `json:"filter,omitempty" jsonschema:"Case-insensitive filter over name, role, email and phone"`
}

type AffiliateOutput struct {
	AffiliationID string `json:"affiliation_id"`
	PersonID      string `json:"person_id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

type ListAffiliatesOutput struct {
	Affiliates []AffiliateOutput `json:"affiliates"`
	Total      int               `json:"total"`
	Empty      string            `json:"empty,omitempty"`
	Message    string            `json:"message,omitempty"`
}

func (h *Handlers) ListAffiliates(ctx context.Context, _ *mcp.CallToolRequest, input ListAffiliatesInput) (*mcp.CallToolResult, ListAffiliatesOutput, error) {
	orgID, err := parseID("organization_id", input.OrganizationID)
	if err != nil {
		return nil, ListAffiliatesOutput{}, err
	}

	list, err := h.svc.ListAffiliates(h.ctx(ctx), orgID, input.Filter)
	if err != nil {
		return nil, ListAffiliatesOutput{}, h.fail("list referenti", err)
	}

	out := ListAffiliatesOutput{
		Affiliates: make([]AffiliateOutput, len(list.Rows)),
		Total:      list.Total,
		Empty:      string(list.Empty),
		Message:    list.Empty.Message(),
	}
	for i, r := range list.Rows {
		out.Affiliates[i] = AffiliateOutput{
			AffiliationID: r.AffiliationID.String(),
			PersonID:      r.PersonID.String(),
			Name:          r.Name,
			Role:          r.Role,
			Email:         r.Email,
			Phone:         r.Phone,
		}
	}
	return nil, out, nil
}

type QuickCreateAffiliationInput struct {
	OrganizationID string `json:"organization_id" jsonschema:"Organization ID (required)"`
	FirstName      string `json:"first_name" jsonschema:"First name (required)"`
	LastName       string `json:"last_name" jsonschema:"Last name (required)"`
	Role           string `json:"role" jsonschema:"Role within the organization (required)"`
	Email          string `json:"email,omitempty" jsonschema:"Email address (email or phone required)"`
	Phone          string `json:"phone,omitempty" jsonschema:"Phone number (email or phone required)"`
}

type QuickCreateAffiliationOutput struct {
	Person      PersonOutput      `json:"person"`
	Affiliation AffiliationOutput `json:"affiliation"`
	Message     string            `json:"message"`
}

func (h *Handlers) QuickCreateAffiliation(ctx context.Context, _ *mcp.CallToolRequest, input QuickCreateAffiliationInput) (*mcp.CallToolResult, QuickCreateAffiliationOutput, error) {
	orgID, err := parseID("organization_id", input.OrganizationID)
	if err != nil {
		return nil, QuickCreateAffiliationOutput{}, err
	}

	person, aff, err := h.svc.QuickCreateAffiliation(h.ctx(ctx), orgID, crm.QuickPersonInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      input.Role,
		Email:     input.Email,
		Phone:     input.Phone,
	})
	if err != nil {
		return nil, QuickCreateAffiliationOutput{}, h.fail("quick add referente", err)
	}

	n := h.svc.Report("quick add referente", nil, "Referente created")
	return nil, QuickCreateAffiliationOutput{
		Person:      personToOutput(person),
		Affiliation: affiliationToOutput(aff),
		Message:     n.Message,
	}, nil
}

type QuickCreateOrganizationInput struct {
	LegalName        string `json:"legal_name" jsonschema:"Legal name (required)"`
	VATNumber        string `json:"vat_number,omitempty" jsonschema:"VAT number"`
	City             string `json:"city,omitempty" jsonschema:"City"`
	Province         string `json:"province,omitempty" jsonschema:"Province code"`
	OrgType          string `json:"org_type,omitempty" jsonschema:"Organization type, e.g. srl or spa"`
	Email            string `json:"email,omitempty" jsonschema:"Organization email"`
	Phone            string `json:"phone,omitempty" jsonschema:"Organization phone"`
	ContactFirstName string `json:"contact_first_name,omitempty" jsonschema:"First name of the person who reached out"`
	ContactLastName  string `json:"contact_last_name,omitempty" jsonschema:"Last name of the person who reached out"`
	ContactRole      string `json:"contact_role,omitempty" jsonschema:"Their role (required when a contact name is given)"`
	ContactEmail     string `json:"contact_email,omitempty" jsonschema:"Their email; an existing person with this email is reused"`
	ContactPhone     string `json:"contact_phone,omitempty" jsonschema:"Their phone"`
}

type QuickCreateOrganizationOutput struct {
	Organization OrganizationOutput `json:"organization"`
	Person       *PersonOutput      `json:"person,omitempty"`
	Affiliation  *AffiliationOutput `json:"affiliation,omitempty"`
	ReusedPerson bool               `json:"reused_person,omitempty"`
}

func (h *Handlers) QuickCreateOrganization(ctx context.Context, _ *mcp.CallToolRequest, input QuickCreateOrganizationInput) (*mcp.CallToolResult, QuickCreateOrganizationOutput, error) {
	res, err := h.svc.QuickCreateOrganization(h.ctx(ctx), crm.InboundContact(input))
	if err != nil {
		return nil, QuickCreateOrganizationOutput{}, h.fail("create organization", err)
	}

	out := QuickCreateOrganizationOutput{
		Organization: organizationToOutput(res.Organization),
		ReusedPerson: res.ReusedPerson,
	}
	if res.Person != nil {
		p := personToOutput(res.Person)
		out.Person = &p
	}
	if res.Affiliation != nil {
		a := affiliationToOutput(res.Affiliation)
		out.Affiliation = &a
	}
	return nil, out, nil
}
