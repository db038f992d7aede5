// ABOUTME: Organization database operations
// ABOUTME: Handles CRUD, registry search and the facet queries behind the filter drop-downs
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/models"
)

const organizationColumns = `id, legal_name, vat_number, address, city, province, org_type, contacts, notes, created_at, updated_at`

func scanOrganization(row scanner) (*models.Organization, error) {
	var o models.Organization
	var contacts string
	if err := row.Scan(&o.ID, &o.LegalName, &o.VATNumber, &o.Address, &o.City,
		&o.Province, &o.OrgType, &contacts, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeContacts(contacts)
	if err != nil {
		return nil, err
	}
	o.Contacts = decoded
	return &o, nil
}

func (s *Store) CreateOrganization(ctx context.Context, o *models.Organization) error {
	if strings.TrimSpace(o.LegalName) == "" {
		return fmt.Errorf("%w: organization needs a legal name", ErrInvalid)
	}
	contacts, values, err := encodeContacts(o.Contacts)
	if err != nil {
		return err
	}

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = s.exec(ctx, `
		INSERT INTO organizations (`+organizationColumns+`, contact_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID.String(), o.LegalName, o.VATNumber, o.Address, o.City, o.Province, o.OrgType,
		contacts, o.Notes, o.CreatedAt, o.UpdatedAt, values)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	o, err := scanOrganization(s.queryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o *models.Organization) error {
	contacts, values, err := encodeContacts(o.Contacts)
	if err != nil {
		return err
	}
	o.UpdatedAt = s.now()

	return s.execOne(ctx, "update organization", o.ID, `
		UPDATE organizations
		SET legal_name = ?, vat_number = ?, address = ?, city = ?, province = ?, org_type = ?,
			contacts = ?, contact_values = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, o.LegalName, o.VATNumber, o.Address, o.City, o.Province, o.OrgType,
		contacts, values, o.Notes, o.UpdatedAt, o.ID.String())
}

func (s *Store) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete organization", id, `DELETE FROM organizations WHERE id = ?`, id.String())
}

// SearchOrganizations matches legal name, VAT number, city and contact
// values, narrowed by the province and type facets.
func (s *Store) SearchOrganizations(ctx context.Context, q SearchQuery) ([]SearchRow, error) {
	var where []string
	var args []any

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := likePattern(text)
		where = append(where, `(LOWER(legal_name) LIKE ? ESCAPE '\'
			OR LOWER(vat_number) LIKE ? ESCAPE '\'
			OR LOWER(city) LIKE ? ESCAPE '\'
			OR contact_values LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if q.Province != "" {
		where = append(where, `province = ?`)
		args = append(args, q.Province)
	}
	if q.OrgType != "" {
		where = append(where, `org_type = ?`)
		args = append(args, q.OrgType)
	}

	query := `SELECT id, legal_name, vat_number, city, province, org_type, contacts FROM organizations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY LOWER(legal_name) ASC, id ASC LIMIT ?`
	args = append(args, normalizeLimit(q.Limit, 200, 200))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search organizations: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		var contacts string
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.TaxCode, &r.City, &r.Province, &r.OrgType, &contacts); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if r.Contacts, err = decodeContacts(contacts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountOrganizations(ctx context.Context) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
	}
	return n, nil
}

// DistinctOrganizationValues returns the sorted non-empty values of a facet
// column.
func (s *Store) DistinctOrganizationValues(ctx context.Context, facet Facet) ([]string, error) {
	var column string
	switch facet {
	case FacetProvince:
		column = "province"
	case FacetOrgType:
		column = "org_type"
	default:
		return nil, fmt.Errorf("%w: unknown facet %q", ErrInvalid, facet)
	}

	rows, err := s.query(ctx, `SELECT DISTINCT `+column+` FROM organizations WHERE `+column+` <> '' ORDER BY `+column)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s values: %w", facet, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// SampleOrganizationFacets reads facet columns from up to limit rows.
func (s *Store) SampleOrganizationFacets(ctx context.Context, limit int) ([]FacetSample, error) {
	rows, err := s.query(ctx, `SELECT province, org_type FROM organizations ORDER BY id LIMIT ?`, normalizeLimit(limit, 1000, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to sample organization facets: %w", err)
	}
	defer rows.Close()

	var out []FacetSample
	for rows.Next() {
		var f FacetSample
		if err := rows.Scan(&f.Province, &f.OrgType); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
