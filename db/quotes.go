// ABOUTME: Quote and opportunity-quote link database operations
// ABOUTME: Reads quotes by id set and maintains the primary flag on links
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

const quoteColumns = `id, number, client_type, person_id, organization_id, title, status, total, valid_until, created_at, updated_at`

func scanQuote(row scanner) (*models.Quote, error) {
	var q models.Quote
	var personID, orgID uuid.NullUUID
	var validUntil sql.NullTime
	if err := row.Scan(&q.ID, &q.Number, &q.ClientType, &personID, &orgID, &q.Title,
		&q.Status, &q.Total, &validUntil, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.PersonID = idPtr(personID)
	q.OrganizationID = idPtr(orgID)
	q.ValidUntil = timePtr(validUntil)
	return &q, nil
}

func (s *Store) CreateQuote(ctx context.Context, q *models.Quote) error {
	if !q.ClientType.Valid() {
		return fmt.Errorf("%w: client type %q", ErrInvalid, q.ClientType)
	}
	if q.Status == "" {
		q.Status = models.QuoteDraft
	}
	if !q.Status.Valid() {
		return fmt.Errorf("%w: quote status %q", ErrInvalid, q.Status)
	}

	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	now := s.now()
	q.CreatedAt = now
	q.UpdatedAt = now
	if q.Number == "" {
		q.Number = fmt.Sprintf("Q-%s-%s", now.Format("20060102"), strings.ToUpper(q.ID.String()[:8]))
	}

	_, err := s.exec(ctx, `
		INSERT INTO quotes (`+quoteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID.String(), q.Number, string(q.ClientType), idArg(q.PersonID), idArg(q.OrganizationID),
		q.Title, string(q.Status), q.Total, timeArg(q.ValidUntil), q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}
	return nil
}

func (s *Store) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	q, err := scanQuote(s.queryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return q, nil
}

// GetQuotesByIDs loads the quotes in the id set. Missing ids are skipped.
func (s *Store) GetQuotesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Quote, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	rows, err := s.query(ctx, `
		SELECT `+quoteColumns+` FROM quotes
		WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}
	defer rows.Close()

	var out []models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

const linkColumns = `id, opportunity_id, quote_id, is_primary, created_at`

func scanLink(row scanner) (*models.OpportunityQuote, error) {
	var l models.OpportunityQuote
	if err := row.Scan(&l.ID, &l.OpportunityID, &l.QuoteID, &l.IsPrimary, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) CreateOpportunityQuote(ctx context.Context, link *models.OpportunityQuote) error {
	if link.OpportunityID == uuid.Nil || link.QuoteID == uuid.Nil {
		return fmt.Errorf("%w: link needs an opportunity and a quote", ErrInvalid)
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.CreatedAt = s.now()

	_, err := s.exec(ctx, `
		INSERT INTO opportunity_quotes (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, link.ID.String(), link.OpportunityID.String(), link.QuoteID.String(), link.IsPrimary, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to link quote: %w", err)
	}
	return nil
}

// GetQuoteLink returns the link holding quoteID, if any.
func (s *Store) GetQuoteLink(ctx context.Context, quoteID uuid.UUID) (*models.OpportunityQuote, error) {
	l, err := scanLink(s.queryRow(ctx, `SELECT `+linkColumns+` FROM opportunity_quotes WHERE quote_id = ?`, quoteID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link for quote %s: %w", quoteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote link: %w", err)
	}
	return l, nil
}

func (s *Store) ListOpportunityQuotes(ctx context.Context, opportunityID uuid.UUID) ([]models.OpportunityQuote, error) {
	rows, err := s.query(ctx, `
		SELECT `+linkColumns+` FROM opportunity_quotes
		WHERE opportunity_id = ?
		ORDER BY created_at ASC, id ASC
	`, opportunityID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunity quotes: %w", err)
	}
	defer rows.Close()

	var out []models.OpportunityQuote
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote link: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *Store) DeleteOpportunityQuotes(ctx context.Context, opportunityID uuid.UUID) error {
	if _, err := s.exec(ctx, `DELETE FROM opportunity_quotes WHERE opportunity_id = ?`, opportunityID.String()); err != nil {
		return fmt.Errorf("failed to unlink quotes: %w", err)
	}
	return nil
}

// SetPrimaryQuote marks quoteID as the primary quote of the opportunity and
// clears the flag on its other links.
func (s *Store) SetPrimaryQuote(ctx context.Context, opportunityID, quoteID uuid.UUID) error {
	var n int
	if err := s.queryRow(ctx, `
		SELECT COUNT(*) FROM opportunity_quotes WHERE opportunity_id = ? AND quote_id = ?
	`, opportunityID.String(), quoteID.String()).Scan(&n); err != nil {
		return fmt.Errorf("failed to check quote link: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("quote %s on opportunity %s: %w", quoteID, opportunityID, ErrNotFound)
	}

	if _, err := s.exec(ctx, `
		UPDATE opportunity_quotes SET is_primary = (quote_id = ?) WHERE opportunity_id = ?
	`, quoteID.String(), opportunityID.String()); err != nil {
		return fmt.Errorf("failed to set primary quote: %w", err)
	}
	return nil
}
