// ABOUTME: Lead and lead activity database operations
// ABOUTME: Handles lead CRUD, filtered listing and the activity log
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

const leadColumns = `id, person_id, organization_id, affiliation_id, contact_name, contact_email,
	contact_phone, company_name, budget, source, channel, utm_source, utm_medium, utm_campaign,
	status, notes, assigned_to, created_by, created_at, updated_at, last_activity_at`

func scanLead(row scanner) (*models.Lead, error) {
	var l models.Lead
	var personID, orgID, affID, assignedTo, createdBy uuid.NullUUID
	if err := row.Scan(&l.ID, &personID, &orgID, &affID, &l.ContactName, &l.ContactEmail,
		&l.ContactPhone, &l.CompanyName, &l.Budget, &l.Source, &l.Channel, &l.UTMSource,
		&l.UTMMedium, &l.UTMCampaign, &l.Status, &l.Notes, &assignedTo, &createdBy,
		&l.CreatedAt, &l.UpdatedAt, &l.LastActivityAt); err != nil {
		return nil, err
	}
	l.PersonID = idPtr(personID)
	l.OrganizationID = idPtr(orgID)
	l.AffiliationID = idPtr(affID)
	l.AssignedTo = idPtr(assignedTo)
	l.CreatedBy = idPtr(createdBy)
	return &l, nil
}

func (s *Store) CreateLead(ctx context.Context, l *models.Lead) error {
	if l.Status == "" {
		l.Status = models.LeadNew
	}
	if !l.Status.Valid() {
		return fmt.Errorf("%w: lead status %q", ErrInvalid, l.Status)
	}

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := s.now()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.LastActivityAt.IsZero() {
		l.LastActivityAt = now
	}

	_, err := s.exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID.String(), idArg(l.PersonID), idArg(l.OrganizationID), idArg(l.AffiliationID),
		l.ContactName, l.ContactEmail, l.ContactPhone, l.CompanyName, l.Budget,
		l.Source, l.Channel, l.UTMSource, l.UTMMedium, l.UTMCampaign, string(l.Status), l.Notes,
		idArg(l.AssignedTo), idArg(l.CreatedBy), l.CreatedAt, l.UpdatedAt, l.LastActivityAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (s *Store) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	l, err := scanLead(s.queryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

func (s *Store) UpdateLead(ctx context.Context, l *models.Lead) error {
	if !l.Status.Valid() {
		return fmt.Errorf("%w: lead status %q", ErrInvalid, l.Status)
	}
	l.UpdatedAt = s.now()

	return s.execOne(ctx, "update lead", l.ID, `
		UPDATE leads
		SET person_id = ?, organization_id = ?, affiliation_id = ?, contact_name = ?, contact_email = ?,
			contact_phone = ?, company_name = ?, budget = ?, source = ?, channel = ?, utm_source = ?,
			utm_medium = ?, utm_campaign = ?, status = ?, notes = ?, assigned_to = ?,
			updated_at = ?, last_activity_at = ?
		WHERE id = ?
	`, idArg(l.PersonID), idArg(l.OrganizationID), idArg(l.AffiliationID), l.ContactName,
		l.ContactEmail, l.ContactPhone, l.CompanyName, l.Budget, l.Source, l.Channel,
		l.UTMSource, l.UTMMedium, l.UTMCampaign, string(l.Status), l.Notes, idArg(l.AssignedTo),
		l.UpdatedAt, l.LastActivityAt.UTC(), l.ID.String())
}

// ListLeads returns leads newest first.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]models.Lead, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	if f.AssignedTo != nil {
		where = append(where, `assigned_to = ?`)
		args = append(args, f.AssignedTo.String())
	}
	if f.Source != "" {
		where = append(where, `LOWER(source) = ?`)
		args = append(args, strings.ToLower(f.Source))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	args = append(args, normalizeLimit(f.Limit, 100, 10000))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func (s *Store) CreateLeadActivity(ctx context.Context, a *models.LeadActivity) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: activity kind %q", ErrInvalid, a.Kind)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = s.now()

	_, err := s.exec(ctx, `
		INSERT INTO lead_activities (id, lead_id, kind, content, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID.String(), a.LeadID.String(), string(a.Kind), a.Content, idArg(a.CreatedBy), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead activity: %w", err)
	}
	return nil
}

// ListLeadActivities returns a lead's activity log, newest first.
func (s *Store) ListLeadActivities(ctx context.Context, leadID uuid.UUID) ([]models.LeadActivity, error) {
	rows, err := s.query(ctx, `
		SELECT id, lead_id, kind, content, created_by, created_at
		FROM lead_activities
		WHERE lead_id = ?
		ORDER BY created_at DESC, id ASC
	`, leadID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list lead activities: %w", err)
	}
	defer rows.Close()

	var out []models.LeadActivity
	for rows.Next() {
		var a models.LeadActivity
		var createdBy uuid.NullUUID
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Kind, &a.Content, &createdBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead activity: %w", err)
		}
		a.CreatedBy = idPtr(createdBy)
		out = append(out, a)
	}
	return out, rows.Err()
}
