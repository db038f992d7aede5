// ABOUTME: Repository interface and its database/sql implementation
// ABOUTME: Provides the unit-of-work (WithinTx) and the shared query and scan helpers
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid record")
)

// Facet names a column whose distinct values feed a filter drop-down.
type Facet string

const (
	FacetProvince Facet = "province"
	FacetOrgType  Facet = "org_type"
)

// SearchQuery filters the registry search. Empty Text matches everything.
type SearchQuery struct {
	Text     string
	Province string
	OrgType  string
	Limit    int
}

// SearchRow is the narrow projection returned by registry searches.
type SearchRow struct {
	ID          uuid.UUID
	DisplayName string
	TaxCode     string
	City        string
	Province    string
	OrgType     string
	Contacts    models.ContactList
}

// FacetSample is one organization's facet values, used when the distinct
// queries are unavailable.
type FacetSample struct {
	Province string
	OrgType  string
}

// Affiliate is an affiliation joined with its person.
type Affiliate struct {
	Affiliation models.Affiliation
	Person      models.Person
}

type LeadFilter struct {
	Status     models.LeadStatus
	AssignedTo *uuid.UUID
	Source     string
	Limit      int
}

type OpportunityFilter struct {
	Stage          models.Stage
	LeadID         *uuid.UUID
	PersonID       *uuid.UUID
	OrganizationID *uuid.UUID
	Limit          int
}

// Repository is the data-access surface every component receives at
// construction. Multi-step writes go through WithinTx.
type Repository interface {
	// WithinTx runs fn against a repository bound to one transaction. An
	// error from fn rolls everything back. Nested calls join the outer
	// transaction.
	WithinTx(ctx context.Context, fn func(Repository) error) error

	CreatePerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	UpdatePerson(ctx context.Context, p *models.Person) error
	DeletePerson(ctx context.Context, id uuid.UUID) error
	FindPersonByEmail(ctx context.Context, email string) (*models.Person, error)
	SearchPersons(ctx context.Context, q SearchQuery) ([]SearchRow, error)
	CountPersons(ctx context.Context) (int, error)

	CreateOrganization(ctx context.Context, o *models.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, o *models.Organization) error
	DeleteOrganization(ctx context.Context, id uuid.UUID) error
	SearchOrganizations(ctx context.Context, q SearchQuery) ([]SearchRow, error)
	CountOrganizations(ctx context.Context) (int, error)
	DistinctOrganizationValues(ctx context.Context, facet Facet) ([]string, error)
	SampleOrganizationFacets(ctx context.Context, limit int) ([]FacetSample, error)

	CreateAffiliation(ctx context.Context, a *models.Affiliation) error
	GetAffiliation(ctx context.Context, id uuid.UUID) (*models.Affiliation, error)
	DeleteAffiliation(ctx context.Context, id uuid.UUID) error
	FindAffiliations(ctx context.Context, personID, organizationID uuid.UUID) ([]models.Affiliation, error)
	ListOrganizationAffiliates(ctx context.Context, organizationID uuid.UUID) ([]Affiliate, error)

	CreateLead(ctx context.Context, l *models.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	UpdateLead(ctx context.Context, l *models.Lead) error
	ListLeads(ctx context.Context, f LeadFilter) ([]models.Lead, error)
	CreateLeadActivity(ctx context.Context, a *models.LeadActivity) error
	ListLeadActivities(ctx context.Context, leadID uuid.UUID) ([]models.LeadActivity, error)

	CreateOpportunity(ctx context.Context, o *models.Opportunity) error
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	UpdateOpportunity(ctx context.Context, o *models.Opportunity) error
	DeleteOpportunity(ctx context.Context, id uuid.UUID) error
	ListOpportunities(ctx context.Context, f OpportunityFilter) ([]models.Opportunity, error)

	CreateQuote(ctx context.Context, q *models.Quote) error
	GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	GetQuotesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Quote, error)
	CreateOpportunityQuote(ctx context.Context, link *models.OpportunityQuote) error
	GetQuoteLink(ctx context.Context, quoteID uuid.UUID) (*models.OpportunityQuote, error)
	ListOpportunityQuotes(ctx context.Context, opportunityID uuid.UUID) ([]models.OpportunityQuote, error)
	DeleteOpportunityQuotes(ctx context.Context, opportunityID uuid.UUID) error
	SetPrimaryQuote(ctx context.Context, opportunityID, quoteID uuid.UUID) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements Repository on database/sql.
type Store struct {
	db     *sql.DB
	q      querier
	driver string
	now    func() time.Time
}

var _ Repository = (*Store)(nil)

func NewStore(db *sql.DB, driver string) *Store {
	return &Store{
		db:     db,
		q:      db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source used for created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

func (s *Store) Driver() string { return s.driver }

// DB exposes the underlying pool for tooling such as migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	txStore := &Store{db: s.db, q: tx, driver: s.driver, now: s.now}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, Rebind(s.driver, query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, Rebind(s.driver, query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, Rebind(s.driver, query), args...)
}

// execOne runs a write that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, what string, id uuid.UUID, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// Rebind rewrites ? placeholders to $1..$n for Postgres.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func idArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func idPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern for use with
// ESCAPE '\'. Wildcards typed by the user match literally.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func normalizeLimit(limit, fallback, max int) int {
	if limit <= 0 {
		limit = fallback
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
