// ABOUTME: Tests for the MCP tool, resource and prompt handlers
// ABOUTME: Drives the handlers directly against a temporary SQLite store
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func setupHandlers(t *testing.T, actor crm.Actor) (*Handlers, *db.Store) {
	t.Helper()
	store, err := db.OpenDatabase(filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(crm.NewService(store, logger, nil, crm.Options{}), actor), store
}

func createOrg(t *testing.T, h *Handlers, name string) OrganizationOutput {
	t.Helper()
	_, out, err := h.QuickCreateOrganization(context.Background(), &mcp.CallToolRequest{}, QuickCreateOrganizationInput{
		LegalName: name,
		Province:  "mi",
		OrgType:   "spa",
	})
	if err != nil {
		t.Fatalf("QuickCreateOrganization failed: %v", err)
	}
	return out.Organization
}

func TestSearchEntitiesHandler(t *testing.T) {
	h, _ := setupHandlers(t, crm.Actor{})
	ctx := context.Background()

	_, out, err := h.SearchEntities(ctx, &mcp.CallToolRequest{}, SearchEntitiesInput{Type: "organization"})
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if out.Empty != string(crm.EmptyNoData) {
		t.Errorf("Expected no_data on empty registry, got %q", out.Empty)
	}

	createOrg(t, h, "Beta SpA")

	_, out, err = h.SearchEntities(ctx, &mcp.CallToolRequest{}, SearchEntitiesInput{Type: "company", Text: "beta"})
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if len(out.Rows) != 1 || out.Rows[0].DisplayName != "Beta SpA" {
		t.Fatalf("Expected Beta SpA, got %+v", out.Rows)
	}
	if out.Rows[0].Province != "MI" {
		t.Errorf("Expected province MI, got %q", out.Rows[0].Province)
	}

	_, out, err = h.SearchEntities(ctx, &mcp.CallToolRequest{}, SearchEntitiesInput{Type: "organization", Text: "gamma"})
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if out.Empty != string(crm.EmptyNoMatches) || out.Message == "" {
		t.Errorf("Expected no_matches with a message, got %q %q", out.Empty, out.Message)
	}

	if _, _, err := h.SearchEntities(ctx, &mcp.CallToolRequest{}, SearchEntitiesInput{Type: "robot"}); err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestEntityFacetsHandler(t *testing.T) {
	h, _ := setupHandlers(t, crm.Actor{})
	createOrg(t, h, "Beta SpA")

	_, out, err := h.EntityFacets(context.Background(), &mcp.CallToolRequest{}, EntityFacetsInput{})
	if err != nil {
		t.Fatalf("EntityFacets failed: %v", err)
	}
	if len(out.Provinces) != 1 || out.Provinces[0] != "MI" {
		t.Errorf("Expected [MI], got %v", out.Provinces)
	}
}

func TestQuickCreateAffiliationHandler(t *testing.T) {
	h, _ := setupHandlers(t, crm.Actor{})
	ctx := context.Background()
	org := createOrg(t, h, "Beta SpA")

	_, _, err := h.QuickCreateAffiliation(ctx, &mcp.CallToolRequest{}, QuickCreateAffiliationInput{
		OrganizationID: org.ID, FirstName: "Elena", LastName: "Conti", Role: "Buyer",
	})
	if err == nil || !strings.Contains(err.Error(), "email") {
		t.Fatalf("Expected validation error naming email, got %v", err)
	}

	_, out, err := h.QuickCreateAffiliation(ctx, &mcp.CallToolRequest{}, QuickCreateAffiliationInput{
		OrganizationID: org.ID, FirstName: "Elena", LastName: "Conti", Role: "Buyer", Email: "elena@beta.it",
	})
	if err != nil {
		t.Fatalf("QuickCreateAffiliation failed: %v", err)
	}
	if out.Affiliation.Role != "Buyer" || out.Person.Email != "elena@beta.it" {
		t.Errorf("Unexpected output: %+v", out)
	}

	_, list, err := h.ListAffiliates(ctx, &mcp.CallToolRequest{}, ListAffiliatesInput{OrganizationID: org.ID, Filter: "buy"})
	if err != nil {
		t.Fatalf("ListAffiliates failed: %v", err)
	}
	if len(list.Affiliates) != 1 || list.Affiliates[0].Name != "Elena Conti" {
		t.Errorf("Expected Elena Conti, got %+v", list.Affiliates)
	}

	if _, _, err := h.ListAffiliates(ctx, &mcp.CallToolRequest{}, ListAffiliatesInput{OrganizationID: "nope"}); err == nil {
		t.Error("Expected error for invalid organization_id")
	}
}

func TestLeadToQuoteFlow(t *testing.T) {
	user := uuid.New()
	h, store := setupHandlers(t, crm.Actor{UserID: user})
	ctx := context.Background()

	_, lead, err := h.CreateLead(ctx, &mcp.CallToolRequest{}, CreateLeadInput{
		ContactName: "Mario Rossi",
		CompanyName: "Rossi Impianti",
		Budget:      "10000",
		Source:      "referral",
	})
	if err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}
	if lead.Budget != "10000.00" || lead.Status != "new" {
		t.Errorf("Unexpected lead: %+v", lead)
	}

	if _, _, err := h.CreateLead(ctx, &mcp.CallToolRequest{}, CreateLeadInput{ContactName: "X", Budget: "lots"}); err == nil {
		t.Error("Expected error for invalid budget")
	}

	_, act, err := h.LogLeadActivity(ctx, &mcp.CallToolRequest{}, LogLeadActivityInput{LeadID: lead.ID, Kind: "Call", Content: "first call"})
	if err != nil {
		t.Fatalf("LogLeadActivity failed: %v", err)
	}
	if act.Kind != "call" {
		t.Errorf("Expected kind call, got %q", act.Kind)
	}

	_, updated, err := h.UpdateLeadStatus(ctx, &mcp.CallToolRequest{}, UpdateLeadStatusInput{LeadID: lead.ID, Status: "qualified"})
	if err != nil {
		t.Fatalf("UpdateLeadStatus failed: %v", err)
	}
	if updated.Status != "qualified" {
		t.Errorf("Expected qualified, got %q", updated.Status)
	}

	_, conv, err := h.ConvertLead(ctx, &mcp.CallToolRequest{}, ConvertLeadInput{LeadID: lead.ID})
	if err != nil {
		t.Fatalf("ConvertLead failed: %v", err)
	}
	if conv.Opportunity.Stage != "discovery" || conv.Opportunity.Probability != nil {
		t.Errorf("Unexpected opportunity: %+v", conv.Opportunity)
	}
	if conv.Opportunity.ExpectedRevenue != "10000.00" {
		t.Errorf("Expected revenue 10000.00, got %q", conv.Opportunity.ExpectedRevenue)
	}

	_, _, err = h.ConvertLead(ctx, &mcp.CallToolRequest{}, ConvertLeadInput{LeadID: lead.ID})
	if err == nil || !strings.Contains(err.Error(), "already converted") {
		t.Errorf("Expected already converted error, got %v", err)
	}

	// A lead without a client cannot be quoted yet.
	if _, _, err := h.QuoteHandoff(ctx, &mcp.CallToolRequest{}, QuoteHandoffInput{OpportunityID: conv.Opportunity.ID}); err == nil {
		t.Error("Expected handoff error for opportunity without client")
	}

	_, stage, err := h.UpdateOpportunityStage(ctx, &mcp.CallToolRequest{}, UpdateOpportunityStageInput{OpportunityID: conv.Opportunity.ID, Stage: "closed_won"})
	if err != nil {
		t.Fatalf("UpdateOpportunityStage failed: %v", err)
	}
	if stage.Outcome != string(crm.OutcomeClientAcquired) || stage.Opportunity.ClosedAt == "" {
		t.Errorf("Unexpected stage output: %+v", stage)
	}

	_, _, err = h.UpdateOpportunityStage(ctx, &mcp.CallToolRequest{}, UpdateOpportunityStageInput{OpportunityID: conv.Opportunity.ID, Stage: "closed_lost"})
	if err == nil {
		t.Error("Expected won -> lost to be refused")
	}

	id := uuid.MustParse(conv.Opportunity.ID)
	stored, err := store.GetOpportunity(ctx, id)
	if err != nil {
		t.Fatalf("GetOpportunity failed: %v", err)
	}
	if *stored.AssignedTo != user {
		t.Errorf("Expected opportunity assigned to the operator")
	}
}

func TestProspectQuoteHandlers(t *testing.T) {
	h, store := setupHandlers(t, crm.Actor{})
	ctx := context.Background()
	org := createOrg(t, h, "Beta SpA")
	_, aff, err := h.QuickCreateAffiliation(ctx, &mcp.CallToolRequest{}, QuickCreateAffiliationInput{
		OrganizationID: org.ID, FirstName: "Elena", LastName: "Conti", Role: "Buyer", Phone: "+39 02 1234",
	})
	if err != nil {
		t.Fatalf("QuickCreateAffiliation failed: %v", err)
	}

	_, opp, err := h.CreateProspect(ctx, &mcp.CallToolRequest{}, CreateProspectInput{
		ClientType:     "organization",
		OrganizationID: org.ID,
		AffiliationID:  aff.Affiliation.ID,
	})
	if err != nil {
		t.Fatalf("CreateProspect failed: %v", err)
	}
	if opp.Name != "Beta SpA" || opp.Probability == nil || *opp.Probability != 50 {
		t.Errorf("Unexpected prospect: %+v", opp)
	}

	_, hand, err := h.QuoteHandoff(ctx, &mcp.CallToolRequest{}, QuoteHandoffInput{OpportunityID: opp.ID})
	if err != nil {
		t.Fatalf("QuoteHandoff failed: %v", err)
	}
	u, err := url.Parse(hand.URL)
	if err != nil {
		t.Fatalf("Invalid handoff URL: %v", err)
	}
	if u.Query().Get("client_id") != org.ID || u.Query().Get("client_type") != "organization" {
		t.Errorf("Unexpected handoff query: %s", u.RawQuery)
	}

	orgID := uuid.MustParse(org.ID)
	q := &models.Quote{ClientType: models.ClientOrganization, OrganizationID: &orgID, Title: "Impianto", Status: models.QuoteSent}
	if err := store.CreateQuote(ctx, q); err != nil {
		t.Fatalf("CreateQuote failed: %v", err)
	}

	_, linked, err := h.LinkQuote(ctx, &mcp.CallToolRequest{}, LinkQuoteInput{OpportunityID: opp.ID, QuoteID: q.ID.String(), Primary: true})
	if err != nil {
		t.Fatalf("LinkQuote failed: %v", err)
	}
	if linked.Count != 1 || !linked.Quotes[0].IsPrimary {
		t.Errorf("Expected one primary quote, got %+v", linked)
	}

	_, listed, err := h.ListOpportunityQuotes(ctx, &mcp.CallToolRequest{}, ListOpportunityQuotesInput{OpportunityID: opp.ID})
	if err != nil {
		t.Fatalf("ListOpportunityQuotes failed: %v", err)
	}
	if listed.Total != "0.00" || listed.Count != 1 {
		t.Errorf("Unexpected summary: %+v", listed)
	}
}

func TestBackendErrorsAreGeneric(t *testing.T) {
	h, store := setupHandlers(t, crm.Actor{})
	_ = store.Close()

	_, _, err := h.SearchEntities(context.Background(), &mcp.CallToolRequest{}, SearchEntitiesInput{Type: "person"})
	if err == nil {
		t.Fatal("Expected error on closed database")
	}
	if !strings.Contains(err.Error(), "Could not search") || !strings.Contains(err.Error(), "ref ") {
		t.Errorf("Expected generic message with reference, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "sql") {
		t.Errorf("Backend detail leaked: %q", err.Error())
	}
}

func TestReadResource(t *testing.T) {
	h, _ := setupHandlers(t, crm.Actor{})
	ctx := context.Background()
	org := createOrg(t, h, "Beta SpA")
	_, aff, err := h.QuickCreateAffiliation(ctx, &mcp.CallToolRequest{}, QuickCreateAffiliationInput{
		OrganizationID: org.ID, FirstName: "Elena", LastName: "Conti", Role: "Buyer", Email: "elena@beta.it",
	})
	if err != nil {
		t.Fatalf("QuickCreateAffiliation failed: %v", err)
	}
	_, opp, err := h.CreateProspect(ctx, &mcp.CallToolRequest{}, CreateProspectInput{
		ClientType: "organization", OrganizationID: org.ID, AffiliationID: aff.Affiliation.ID, ExpectedRevenue: "2500",
	})
	if err != nil {
		t.Fatalf("CreateProspect failed: %v", err)
	}

	read := func(uri string) string {
		t.Helper()
		res, err := h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
		if err != nil {
			t.Fatalf("ReadResource(%s) failed: %v", uri, err)
		}
		return res.Contents[0].Text
	}

	var pipeline map[string]stageSummary
	if err := json.Unmarshal([]byte(read("ufficio://pipeline")), &pipeline); err != nil {
		t.Fatalf("Invalid pipeline JSON: %v", err)
	}
	if pipeline["discovery"].Count != 1 || pipeline["discovery"].ExpectedRevenue != "2500.00" {
		t.Errorf("Unexpected discovery summary: %+v", pipeline["discovery"])
	}
	if _, ok := pipeline["closed_won"]; !ok {
		t.Error("Expected every stage in the pipeline summary")
	}

	if text := read("ufficio://opportunities/" + opp.ID); !strings.Contains(text, "Beta SpA") {
		t.Errorf("Expected opportunity name in resource, got %s", text)
	}
	if text := read("ufficio://leads"); strings.TrimSpace(text) != "[]" {
		t.Errorf("Expected no leads, got %s", text)
	}

	if _, err := h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "crm://contacts"}}); err == nil {
		t.Error("Expected error for foreign scheme")
	}
	if _, err := h.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "ufficio://deals"}}); err == nil {
		t.Error("Expected error for unknown resource")
	}
}

func TestGetPrompt(t *testing.T) {
	h, _ := setupHandlers(t, crm.Actor{})
	ctx := context.Background()
	if _, _, err := h.CreateLead(ctx, &mcp.CallToolRequest{}, CreateLeadInput{CompanyName: "Rossi Impianti", Source: "fair"}); err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}

	res, err := h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "lead-triage"}})
	if err != nil {
		t.Fatalf("GetPrompt failed: %v", err)
	}
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	if !strings.Contains(text, "Rossi Impianti") {
		t.Errorf("Expected lead in triage prompt, got %s", text)
	}

	_, err = h.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "opportunity-review", Arguments: map[string]string{}}})
	if err == nil {
		t.Error("Expected error without opportunity_id")
	}
}
