// ABOUTME: Opportunity database operations
// ABOUTME: Handles opportunity CRUD and pipeline listing
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

const opportunityColumns = `id, name, lead_id, person_id, organization_id, affiliation_id, stage,
	probability, expected_revenue, expected_close_date, closed_at, description, notes,
	assigned_to, created_by, created_at, updated_at`

func scanOpportunity(row scanner) (*models.Opportunity, error) {
	var o models.Opportunity
	var leadID, personID, orgID, affID, assignedTo, createdBy uuid.NullUUID
	var probability sql.NullInt64
	var closeDate, closedAt sql.NullTime
	if err := row.Scan(&o.ID, &o.Name, &leadID, &personID, &orgID, &affID, &o.Stage,
		&probability, &o.ExpectedRevenue, &closeDate, &closedAt, &o.Description, &o.Notes,
		&assignedTo, &createdBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.LeadID = idPtr(leadID)
	o.PersonID = idPtr(personID)
	o.OrganizationID = idPtr(orgID)
	o.AffiliationID = idPtr(affID)
	o.AssignedTo = idPtr(assignedTo)
	o.CreatedBy = idPtr(createdBy)
	o.Probability = intPtr(probability)
	o.ExpectedCloseDate = timePtr(closeDate)
	o.ClosedAt = timePtr(closedAt)
	return &o, nil
}

func validateOpportunity(o *models.Opportunity) error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: opportunity needs a name", ErrInvalid)
	}
	if !o.Stage.Valid() {
		return fmt.Errorf("%w: stage %q", ErrInvalid, o.Stage)
	}
	if o.Stage.IsClosed() != (o.ClosedAt != nil) {
		return fmt.Errorf("%w: closed_at does not match stage %s", ErrInvalid, o.Stage)
	}
	if o.Probability != nil && (*o.Probability < 0 || *o.Probability > 100) {
		return fmt.Errorf("%w: probability %d out of range", ErrInvalid, *o.Probability)
	}
	return nil
}

func (s *Store) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	if o.Stage == "" {
		o.Stage = models.StageDiscovery
	}
	if err := validateOpportunity(o); err != nil {
		return err
	}

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.exec(ctx, `
		INSERT INTO opportunities (`+opportunityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID.String(), o.Name, idArg(o.LeadID), idArg(o.PersonID), idArg(o.OrganizationID),
		idArg(o.AffiliationID), string(o.Stage), intArg(o.Probability), o.ExpectedRevenue,
		timeArg(o.ExpectedCloseDate), timeArg(o.ClosedAt), o.Description, o.Notes,
		idArg(o.AssignedTo), idArg(o.CreatedBy), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create opportunity: %w", err)
	}
	return nil
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	o, err := scanOpportunity(s.queryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOpportunity(ctx context.Context, o *models.Opportunity) error {
	if err := validateOpportunity(o); err != nil {
		return err
	}
	o.UpdatedAt = s.now()

	return s.execOne(ctx, "update opportunity", o.ID, `
		UPDATE opportunities
		SET name = ?, lead_id = ?, person_id = ?, organization_id = ?, affiliation_id = ?, stage = ?,
			probability = ?, expected_revenue = ?, expected_close_date = ?, closed_at = ?,
			description = ?, notes = ?, assigned_to = ?, updated_at = ?
		WHERE id = ?
	`, o.Name, idArg(o.LeadID), idArg(o.PersonID), idArg(o.OrganizationID), idArg(o.AffiliationID),
		string(o.Stage), intArg(o.Probability), o.ExpectedRevenue, timeArg(o.ExpectedCloseDate),
		timeArg(o.ClosedAt), o.Description, o.Notes, idArg(o.AssignedTo), o.UpdatedAt, o.ID.String())
}

func (s *Store) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete opportunity", id, `DELETE FROM opportunities WHERE id = ?`, id.String())
}

// ListOpportunities returns opportunities, most recently updated first.
func (s *Store) ListOpportunities(ctx context.Context, f OpportunityFilter) ([]models.Opportunity, error) {
	var where []string
	var args []any

	if f.Stage != "" {
		where = append(where, `stage = ?`)
		args = append(args, string(f.Stage))
	}
	if f.LeadID != nil {
		where = append(where, `lead_id = ?`)
		args = append(args, f.LeadID.String())
	}
	if f.PersonID != nil {
		where = append(where, `person_id = ?`)
		args = append(args, f.PersonID.String())
	}
	if f.OrganizationID != nil {
		where = append(where, `organization_id = ?`)
		args = append(args, f.OrganizationID.String())
	}

	query := `SELECT ` + opportunityColumns + ` FROM opportunities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY updated_at DESC, id ASC LIMIT ?`
	args = append(args, normalizeLimit(f.Limit, 100, 10000))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
