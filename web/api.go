// ABOUTME: JSON handlers for the selector, quick-create, lead and opportunity routes
// ABOUTME: Each handler decodes, calls one service operation and writes one response
package web

import (
	"net/http"
	"strconv"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

func (s *Server) handleSearchEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ct, err := models.ParseClientType(q.Get("type"))
	if err != nil {
		s.writeError(w, "search", &crm.ValidationError{Fields: map[string]string{"type": "type must be person or organization"}})
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	res, err := s.svc.SearchEntities(r.Context(), crm.EntityQuery{
		Type:     ct,
		Text:     q.Get("text"),
		Province: q.Get("province"),
		OrgType:  q.Get("org_type"),
		Limit:    limit,
	})
	if err != nil {
		s.writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.FacetOptions(r.Context())
	if err != nil {
		s.writeError(w, "load filters", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleListAffiliates(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "organization_id")
	if err != nil {
		s.writeError(w, "list referenti", err)
		return
	}
	list, err := s.svc.ListAffiliates(r.Context(), orgID, r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, "list referenti", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleQuickCreateAffiliation(w http.ResponseWriter, r *http.Request) {
	const action = "quick add referente"
	orgID, err := pathID(r, "organization_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var in crm.QuickPersonInput
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, action, err)
		return
	}

	person, aff, err := s.svc.QuickCreateAffiliation(r.Context(), orgID, in)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"person":      person,
		"affiliation": aff,
		"notice":      s.svc.Report(action, nil, "Referente created"),
	})
}

func (s *Server) handleQuickCreateOrganization(w http.ResponseWriter, r *http.Request) {
	const action = "create organization"
	var in crm.InboundContact
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, action, err)
		return
	}
	res, err := s.svc.QuickCreateOrganization(r.Context(), in)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	const action = "update organization"
	id, err := pathID(r, "organization_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var patch crm.OrganizationPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, action, err)
		return
	}
	org, err := s.svc.UpdateOrganization(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	const action = "delete organization"
	id, err := pathID(r, "organization_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	if err := s.svc.DeleteOrganization(r.Context(), id); err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Report(action, nil, "Organization deleted"))
}

func (s *Server) handleRemoveAffiliation(w http.ResponseWriter, r *http.Request) {
	const action = "remove referente"
	id, err := pathID(r, "affiliation_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	if err := s.svc.RemoveAffiliation(r.Context(), id); err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Report(action, nil, "Referente removed"))
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	f, err := leadFilter(r)
	if err != nil {
		s.writeError(w, "list leads", err)
		return
	}
	leads, err := s.svc.ListLeads(r.Context(), f)
	if err != nil {
		s.writeError(w, "list leads", err)
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func leadFilter(r *http.Request) (db.LeadFilter, error) {
	q := r.URL.Query()
	f := db.LeadFilter{Status: models.LeadStatus(q.Get("status")), Source: q.Get("source")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &crm.ValidationError{Fields: map[string]string{"limit": "limit must be a number"}}
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var in crm.LeadInput
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, "create lead", err)
		return
	}
	lead, err := s.svc.CreateLead(r.Context(), in)
	if err != nil {
		s.writeError(w, "create lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleLeadStatus(w http.ResponseWriter, r *http.Request) {
	const action = "update lead status"
	leadID, err := pathID(r, "lead_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var body struct {
		Status models.LeadStatus `json:"status"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, action, err)
		return
	}
	lead, err := s.svc.UpdateLeadStatus(r.Context(), leadID, body.Status)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleLeadActivity(w http.ResponseWriter, r *http.Request) {
	const action = "log activity"
	leadID, err := pathID(r, "lead_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var body struct {
		Kind    models.ActivityKind `json:"kind"`
		Content string              `json:"content"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, action, err)
		return
	}
	a, err := s.svc.LogLeadActivity(r.Context(), leadID, body.Kind, body.Content)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleConvertLead(w http.ResponseWriter, r *http.Request) {
	const action = "convert lead"
	leadID, err := pathID(r, "lead_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	opp, err := s.svc.ConvertLead(r.Context(), leadID)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"opportunity": opp,
		"notice":      s.svc.Report(action, nil, "Lead converted"),
	})
}

func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.OpportunityFilter{Stage: models.Stage(q.Get("stage"))}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	opps, err := s.svc.ListOpportunities(r.Context(), f)
	if err != nil {
		s.writeError(w, "list opportunities", err)
		return
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

func (s *Server) handleCreateProspect(w http.ResponseWriter, r *http.Request) {
	var in crm.ProspectInput
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, "create prospect", err)
		return
	}
	opp, err := s.svc.CreateProspect(r.Context(), in)
	if err != nil {
		s.writeError(w, "create prospect", err)
		return
	}
	writeJSON(w, http.StatusCreated, opp)
}

func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "opportunity_id")
	if err != nil {
		s.writeError(w, "load opportunity", err)
		return
	}
	opp, err := s.svc.GetOpportunity(r.Context(), id)
	if err != nil {
		s.writeError(w, "load opportunity", err)
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

func (s *Server) handleDeleteOpportunity(w http.ResponseWriter, r *http.Request) {
	const action = "delete opportunity"
	id, err := pathID(r, "opportunity_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	if err := s.svc.DeleteOpportunity(r.Context(), id); err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Report(action, nil, "Opportunity deleted"))
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	const action = "update stage"
	id, err := pathID(r, "opportunity_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var body struct {
		Stage models.Stage `json:"stage"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, action, err)
		return
	}
	opp, outcome, err := s.svc.TransitionStage(r.Context(), id, body.Stage)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunity": opp,
		"outcome":     outcome,
		"notice":      s.svc.Report(action, nil, "Opportunity "+string(outcome)),
	})
}

func (s *Server) handleOpportunityQuotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "opportunity_id")
	if err != nil {
		s.writeError(w, "list quotes", err)
		return
	}
	linked, err := s.svc.LinkedQuotes(r.Context(), id)
	if err != nil {
		s.writeError(w, "list quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, linked)
}

func (s *Server) handleLinkQuote(w http.ResponseWriter, r *http.Request) {
	const action = "link quote"
	id, err := pathID(r, "opportunity_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var body struct {
		QuoteID string `json:"quote_id"`
		Primary bool   `json:"primary"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, action, err)
		return
	}
	quoteID, err := parseQueryID("quote_id", body.QuoteID)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	if err := s.svc.LinkQuote(r.Context(), id, quoteID, body.Primary); err != nil {
		s.writeError(w, action, err)
		return
	}
	linked, err := s.svc.LinkedQuotes(r.Context(), id)
	if err != nil {
		s.writeError(w, "list quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, linked)
}

func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	const action = "open quote builder"
	id, err := pathID(r, "opportunity_id")
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	h, err := s.svc.QuoteHandoff(r.Context(), id)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, h.URL, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
