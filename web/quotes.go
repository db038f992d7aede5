// ABOUTME: Quote builder landing routes, lead export downloads and the pipeline graph
package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/harperreed/ufficio/viz"
	"github.com/shopspring/decimal"
)

// handleDraftQuote is where the quote builder lands after a handoff. The
// response pre-populates the builder's form.
func (s *Server) handleDraftQuote(w http.ResponseWriter, r *http.Request) {
	const action = "open quote builder"
	h, err := crm.ParseHandoff(r.URL.Query())
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	q, err := s.svc.DraftQuote(r.Context(), h)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"handoff": h, "quote": q})
}

type quoteForm struct {
	Title      string             `json:"title"`
	Total      decimal.Decimal    `json:"total"`
	Status     models.QuoteStatus `json:"status"`
	ValidUntil string             `json:"valid_until"`
}

func (f quoteForm) quote() (*models.Quote, error) {
	verr := &crm.ValidationError{Fields: map[string]string{}}
	q := &models.Quote{Title: strings.TrimSpace(f.Title), Total: f.Total, Status: f.Status}
	if q.Status == "" {
		q.Status = models.QuoteDraft
	} else if !q.Status.Valid() {
		verr.Fields["status"] = "status must be one of: draft, sent, accepted, rejected, expired"
	}
	if f.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", f.ValidUntil)
		if err != nil {
			verr.Fields["valid_until"] = "valid_until must be a date (YYYY-MM-DD)"
		} else {
			q.ValidUntil = &t
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return q, nil
}

// handleSaveQuote saves the builder's quote and links it back to the
// opportunity named in the handoff query.
func (s *Server) handleSaveQuote(w http.ResponseWriter, r *http.Request) {
	const action = "save quote"
	h, err := crm.ParseHandoff(r.URL.Query())
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	var form quoteForm
	if err := decodeBody(w, r, &form); err != nil {
		s.writeError(w, action, err)
		return
	}
	q, err := form.quote()
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	saved, err := s.svc.SaveHandoffQuote(r.Context(), h, q)
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleExportLeads(w http.ResponseWriter, r *http.Request) {
	const action = "export leads"
	f, err := leadFilter(r)
	if err != nil {
		s.writeError(w, action, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	// Buffer so a failure mid-export still gets a proper error response.
	var buf bytes.Buffer
	var n int
	switch format {
	case "csv":
		n, err = s.svc.ExportLeadsCSV(r.Context(), &buf, f)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case "xlsx":
		n, err = s.svc.ExportLeadsXLSX(r.Context(), &buf, f)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		err = &crm.ValidationError{Fields: map[string]string{"format": "format must be csv or xlsx"}}
	}
	if err != nil {
		w.Header().Del("Content-Type")
		s.writeError(w, action, err)
		return
	}

	name := fmt.Sprintf("leads-%s.%s", time.Now().Format("20060102"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Row-Count", fmt.Sprint(n))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleLeadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leads-template.csv"`)
	if err := crm.WriteLeadTemplate(w); err != nil {
		s.log.Error("failed to write lead template", "error", err)
	}
}

func (s *Server) handlePipelineGraph(w http.ResponseWriter, r *http.Request) {
	const action = "render pipeline"
	leads, err := s.svc.ListLeads(r.Context(), db.LeadFilter{})
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	opps, err := s.svc.ListOpportunities(r.Context(), db.OpportunityFilter{})
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	quotes := make(map[string][]models.Quote, len(opps))
	for _, o := range opps {
		linked, err := s.svc.LinkedQuotes(r.Context(), o.ID)
		if err != nil {
			s.writeError(w, action, err)
			return
		}
		quotes[o.ID.String()] = linked.Quotes
	}

	dot, err := viz.NewGraphGenerator().GeneratePipelineGraph(r.Context(), viz.Pipeline{Leads: leads, Opportunities: opps, Quotes: quotes})
	if err != nil {
		s.writeError(w, action, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write([]byte(dot))
}
