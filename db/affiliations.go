// ABOUTME: Affiliation database operations
// ABOUTME: Links persons to organizations and lists an organization's affiliates
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

const affiliationColumns = `id, person_id, organization_id, role, created_at, updated_at`

func scanAffiliation(row scanner) (*models.Affiliation, error) {
	var a models.Affiliation
	if err := row.Scan(&a.ID, &a.PersonID, &a.OrganizationID, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAffiliation(ctx context.Context, a *models.Affiliation) error {
	if a.PersonID == uuid.Nil || a.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: affiliation needs a person and an organization", ErrInvalid)
	}
	if strings.TrimSpace(a.Role) == "" {
		return fmt.Errorf("%w: affiliation needs a role", ErrInvalid)
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO affiliations (`+affiliationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID.String(), a.PersonID.String(), a.OrganizationID.String(), a.Role, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create affiliation: %w", err)
	}
	return nil
}

func (s *Store) GetAffiliation(ctx context.Context, id uuid.UUID) (*models.Affiliation, error) {
	a, err := scanAffiliation(s.queryRow(ctx, `SELECT `+affiliationColumns+` FROM affiliations WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("affiliation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliation: %w", err)
	}
	return a, nil
}

func (s *Store) DeleteAffiliation(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete affiliation", id, `DELETE FROM affiliations WHERE id = ?`, id.String())
}

// FindAffiliations returns every affiliation of the pair. A person may hold
// several roles in the same organization.
func (s *Store) FindAffiliations(ctx context.Context, personID, organizationID uuid.UUID) ([]models.Affiliation, error) {
	rows, err := s.query(ctx, `
		SELECT `+affiliationColumns+` FROM affiliations
		WHERE person_id = ? AND organization_id = ?
		ORDER BY created_at ASC
	`, personID.String(), organizationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to find affiliations: %w", err)
	}
	defer rows.Close()

	var out []models.Affiliation
	for rows.Next() {
		a, err := scanAffiliation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affiliation: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListOrganizationAffiliates joins the organization's affiliations with their
// persons, ordered by surname.
func (s *Store) ListOrganizationAffiliates(ctx context.Context, organizationID uuid.UUID) ([]Affiliate, error) {
	rows, err := s.query(ctx, `
		SELECT a.id, a.person_id, a.organization_id, a.role, a.created_at, a.updated_at,
			p.id, p.first_name, p.last_name, p.fiscal_code, p.address, p.city, p.province,
			p.contacts, p.notes, p.created_at, p.updated_at
		FROM affiliations a
		JOIN persons p ON p.id = a.person_id
		WHERE a.organization_id = ?
		ORDER BY LOWER(p.last_name) ASC, LOWER(p.first_name) ASC, a.created_at ASC
	`, organizationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}
	defer rows.Close()

	var out []Affiliate
	for rows.Next() {
		var af Affiliate
		var contacts string
		a, p := &af.Affiliation, &af.Person
		if err := rows.Scan(&a.ID, &a.PersonID, &a.OrganizationID, &a.Role, &a.CreatedAt, &a.UpdatedAt,
			&p.ID, &p.FirstName, &p.LastName, &p.FiscalCode, &p.Address, &p.City, &p.Province,
			&contacts, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan affiliate: %w", err)
		}
		if p.Contacts, err = decodeContacts(contacts); err != nil {
			return nil, err
		}
		out = append(out, af)
	}
	return out, rows.Err()
}
