// ABOUTME: HTTP JSON API over the conversion pipeline service
// ABOUTME: Maps service errors to status codes and binds the caller from X-User-ID
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/db"
)

// UserHeader carries the authenticated user's id, set by the fronting proxy.
const UserHeader = "X-User-ID"

type Server struct {
	svc    *crm.Service
	log    *slog.Logger
	admins map[uuid.UUID]bool
	mux    *http.ServeMux
}

// NewServer builds the router. Users listed in admins may delete
// opportunities.
func NewServer(svc *crm.Service, logger *slog.Logger, admins ...uuid.UUID) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, log: logger, admins: make(map[uuid.UUID]bool), mux: http.NewServeMux()}
	for _, id := range admins {
		if id != uuid.Nil {
			s.admins[id] = true
		}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/entities", s.handleSearchEntities)
	s.mux.HandleFunc("GET /api/facets", s.handleFacets)
	s.mux.HandleFunc("POST /api/organizations", s.handleQuickCreateOrganization)
	s.mux.HandleFunc("PATCH /api/organizations/{id}", s.handleUpdateOrganization)
	s.mux.HandleFunc("DELETE /api/organizations/{id}", s.handleDeleteOrganization)
	s.mux.HandleFunc("GET /api/organizations/{id}/affiliates", s.handleListAffiliates)
	s.mux.HandleFunc("POST /api/organizations/{id}/affiliates", s.handleQuickCreateAffiliation)
	s.mux.HandleFunc("DELETE /api/affiliations/{id}", s.handleRemoveAffiliation)

	s.mux.HandleFunc("GET /api/leads", s.handleListLeads)
	s.mux.HandleFunc("POST /api/leads", s.handleCreateLead)
	s.mux.HandleFunc("POST /api/leads/{id}/status", s.handleLeadStatus)
	s.mux.HandleFunc("POST /api/leads/{id}/activities", s.handleLeadActivity)
	s.mux.HandleFunc("POST /api/leads/{id}/convert", s.handleConvertLead)

	s.mux.HandleFunc("GET /api/opportunities", s.handleListOpportunities)
	s.mux.HandleFunc("POST /api/opportunities", s.handleCreateProspect)
	s.mux.HandleFunc("GET /api/opportunities/{id}", s.handleGetOpportunity)
	s.mux.HandleFunc("DELETE /api/opportunities/{id}", s.handleDeleteOpportunity)
	s.mux.HandleFunc("POST /api/opportunities/{id}/stage", s.handleStage)
	s.mux.HandleFunc("GET /api/opportunities/{id}/quotes", s.handleOpportunityQuotes)
	s.mux.HandleFunc("POST /api/opportunities/{id}/quotes", s.handleLinkQuote)
	s.mux.HandleFunc("GET /api/opportunities/{id}/handoff", s.handleHandoff)
	s.mux.HandleFunc("GET /api/pipeline/graph", s.handlePipelineGraph)

	s.mux.HandleFunc("GET /quotes/new", s.handleDraftQuote)
	s.mux.HandleFunc("POST /quotes/new", s.handleSaveQuote)
	s.mux.HandleFunc("GET /leads/export", s.handleExportLeads)
	s.mux.HandleFunc("GET /leads/template", s.handleLeadTemplate)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	actor, err := s.actorFrom(r)
	if err != nil {
		s.writeError(rec, "authenticate", err)
	} else {
		s.mux.ServeHTTP(rec, r.WithContext(crm.WithActor(r.Context(), actor)))
	}

	s.log.Info("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start))
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("starting web server", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) actorFrom(r *http.Request) (crm.Actor, error) {
	raw := strings.TrimSpace(r.Header.Get(UserHeader))
	if raw == "" {
		return crm.Actor{}, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return crm.Actor{}, &crm.ValidationError{Fields: map[string]string{"user": UserHeader + " must be a valid id"}}
	}
	return crm.Actor{UserID: id, Admin: s.admins[id]}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var verr *crm.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crm.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, crm.ErrOrganizationInUse):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case crm.IsUserError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError logs the failure and writes its notice.
func (s *Server) writeError(w http.ResponseWriter, action string, err error) {
	n := s.svc.Report(action, err, "")
	writeJSON(w, statusFor(err), n)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &crm.ValidationError{Fields: map[string]string{"body": fmt.Sprintf("invalid JSON body: %v", err)}}
	}
	return nil
}

func pathID(r *http.Request, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &crm.ValidationError{Fields: map[string]string{field: field + " must be a valid id"}}
	}
	return id, nil
}

func parseQueryID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, &crm.ValidationError{Fields: map[string]string{field: field + " must be a valid id"}}
	}
	return id, nil
}
