// ABOUTME: Entity selector: registry search with facets and distinct empty states
// ABOUTME: Facets fall back to client-side dedup over a sample when the distinct query fails
package crm

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

// EmptyState tells an empty table apart: nothing stored vs nothing matching.
type EmptyState string

const (
	EmptyNone           EmptyState = ""
	EmptyNoData         EmptyState = "no_data"
	EmptyNoMatches      EmptyState = "no_matches"
	EmptyNoAffiliations EmptyState = "no_affiliations"
)

// Message is the text shown in place of the table.
func (e EmptyState) Message() string {
	switch e {
	case EmptyNoData:
		return "No records yet"
	case EmptyNoMatches:
		return "No matches for the current filters"
	case EmptyNoAffiliations:
		return "No affiliations for this organization"
	}
	return ""
}

type EntityQuery struct {
	Type     models.ClientType `json:"type"`
	Text     string            `json:"text,omitempty"`
	Province string            `json:"province,omitempty"`
	OrgType  string            `json:"org_type,omitempty"`
	Limit    int               `json:"limit,omitempty"`
}

func (q EntityQuery) filtered() bool {
	return strings.TrimSpace(q.Text) != "" || q.Province != "" || q.OrgType != ""
}

type EntityRow struct {
	ID          uuid.UUID         `json:"id"`
	Type        models.ClientType `json:"type"`
	DisplayName string            `json:"display_name"`
	TaxCode     string            `json:"tax_code,omitempty"`
	City        string            `json:"city,omitempty"`
	Province    string            `json:"province,omitempty"`
	OrgType     string            `json:"org_type,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
}

type SearchResult struct {
	Query EntityQuery `json:"query"`
	Rows  []EntityRow `json:"rows"`
	Empty EmptyState  `json:"empty,omitempty"`
}

// SearchEntities runs the selector lookup. Results are ordered by display
// name; an empty query returns the first rows unfiltered.
func (s *Service) SearchEntities(ctx context.Context, q EntityQuery) (SearchResult, error) {
	if !q.Type.Valid() {
		return SearchResult{}, invalid("type", "type must be person or organization")
	}
	if q.Type == models.ClientPerson && q.OrgType != "" {
		return SearchResult{}, invalid("org_type", "org_type only applies to organizations")
	}
	if q.Limit <= 0 || q.Limit > s.opts.SearchLimit {
		q.Limit = s.opts.SearchLimit
	}
	q.Text = strings.TrimSpace(q.Text)

	ctx, cancel := s.begin(ctx)
	defer cancel()

	sq := db.SearchQuery{Text: q.Text, Province: q.Province, OrgType: q.OrgType, Limit: q.Limit}
	var (
		found []db.SearchRow
		err   error
	)
	if q.Type == models.ClientPerson {
		found, err = s.repo.SearchPersons(ctx, sq)
	} else {
		found, err = s.repo.SearchOrganizations(ctx, sq)
	}
	if err != nil {
		return SearchResult{}, err
	}

	res := SearchResult{Query: q, Rows: make([]EntityRow, 0, len(found))}
	for _, r := range found {
		res.Rows = append(res.Rows, EntityRow{
			ID:          r.ID,
			Type:        q.Type,
			DisplayName: r.DisplayName,
			TaxCode:     r.TaxCode,
			City:        r.City,
			Province:    r.Province,
			OrgType:     r.OrgType,
			Email:       r.Contacts.PrimaryEmail(),
			Phone:       r.Contacts.PrimaryPhone(),
		})
	}

	if len(res.Rows) == 0 {
		res.Empty, err = s.emptyState(ctx, q)
		if err != nil {
			return SearchResult{}, err
		}
	}
	return res, nil
}

func (s *Service) emptyState(ctx context.Context, q EntityQuery) (EmptyState, error) {
	if !q.filtered() {
		return EmptyNoData, nil
	}
	var (
		n   int
		err error
	)
	if q.Type == models.ClientPerson {
		n, err = s.repo.CountPersons(ctx)
	} else {
		n, err = s.repo.CountOrganizations(ctx)
	}
	if err != nil {
		return EmptyNone, err
	}
	if n == 0 {
		return EmptyNoData, nil
	}
	return EmptyNoMatches, nil
}

type Facets struct {
	Provinces []string `json:"provinces"`
	OrgTypes  []string `json:"org_types"`
	// Degraded is set when the values came from the sampled fallback and
	// may be incomplete.
	Degraded bool `json:"degraded,omitempty"`
}

// FacetOptions loads the province and organization type drop-downs.
func (s *Service) FacetOptions(ctx context.Context) (Facets, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	provinces, perr := s.repo.DistinctOrganizationValues(ctx, db.FacetProvince)
	orgTypes, oerr := s.repo.DistinctOrganizationValues(ctx, db.FacetOrgType)
	if perr == nil && oerr == nil {
		return Facets{Provinces: nonNil(provinces), OrgTypes: nonNil(orgTypes)}, nil
	}

	s.log.Warn("distinct facet query failed, using sampled fallback",
		"province_error", perr, "org_type_error", oerr, "sample_size", s.opts.FacetSampleSize)

	sample, err := s.repo.SampleOrganizationFacets(ctx, s.opts.FacetSampleSize)
	if err != nil {
		return Facets{}, err
	}
	f := dedupFacets(sample)
	f.Degraded = true
	return f, nil
}

func dedupFacets(sample []db.FacetSample) Facets {
	provinces := make(map[string]struct{})
	orgTypes := make(map[string]struct{})
	for _, row := range sample {
		if row.Province != "" {
			provinces[row.Province] = struct{}{}
		}
		if row.OrgType != "" {
			orgTypes[row.OrgType] = struct{}{}
		}
	}
	return Facets{Provinces: sortedKeys(provinces), OrgTypes: sortedKeys(orgTypes)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
