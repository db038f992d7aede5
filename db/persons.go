// ABOUTME: Person database operations
// ABOUTME: Handles CRUD, email lookup and the registry search over persons
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/models"
)

const personColumns = `id, first_name, last_name, fiscal_code, address, city, province, contacts, notes, created_at, updated_at`

// encodeContacts returns the JSON column and the contact_values column. The
// latter holds only the lowercased values, one per line, so free-text search
// never matches JSON keys or kind names.
func encodeContacts(contacts models.ContactList) (string, string, error) {
	if err := contacts.Validate(); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if contacts == nil {
		contacts = models.ContactList{}
	}
	data, err := json.Marshal(contacts)
	if err != nil {
		return "", "", err
	}
	values := make([]string, 0, len(contacts))
	for _, c := range contacts {
		values = append(values, strings.ToLower(strings.TrimSpace(c.Value)))
	}
	return string(data), strings.Join(values, "\n"), nil
}

func decodeContacts(raw string) (models.ContactList, error) {
	var contacts models.ContactList
	if raw == "" || raw == "null" {
		return contacts, nil
	}
	if err := json.Unmarshal([]byte(raw), &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

func scanPerson(row scanner) (*models.Person, error) {
	var p models.Person
	var contacts string
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.FiscalCode, &p.Address,
		&p.City, &p.Province, &contacts, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeContacts(contacts)
	if err != nil {
		return nil, err
	}
	p.Contacts = decoded
	return &p, nil
}

func (s *Store) CreatePerson(ctx context.Context, p *models.Person) error {
	if strings.TrimSpace(p.FirstName) == "" && strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("%w: person needs a name", ErrInvalid)
	}
	contacts, values, err := encodeContacts(p.Contacts)
	if err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = s.exec(ctx, `
		INSERT INTO persons (`+personColumns+`, contact_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID.String(), p.FirstName, p.LastName, p.FiscalCode, p.Address, p.City, p.Province,
		contacts, p.Notes, p.CreatedAt, p.UpdatedAt, values)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	p, err := scanPerson(s.queryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePerson(ctx context.Context, p *models.Person) error {
	contacts, values, err := encodeContacts(p.Contacts)
	if err != nil {
		return err
	}
	p.UpdatedAt = s.now()

	return s.execOne(ctx, "update person", p.ID, `
		UPDATE persons
		SET first_name = ?, last_name = ?, fiscal_code = ?, address = ?, city = ?, province = ?,
			contacts = ?, contact_values = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, p.FirstName, p.LastName, p.FiscalCode, p.Address, p.City, p.Province,
		contacts, values, p.Notes, p.UpdatedAt, p.ID.String())
}

func (s *Store) DeletePerson(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete person", id, `DELETE FROM persons WHERE id = ?`, id.String())
}

// FindPersonByEmail matches the email contact case-insensitively. The LIKE
// on contact_values narrows candidates and the decoded list decides.
func (s *Store) FindPersonByEmail(ctx context.Context, email string) (*models.Person, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("person with empty email: %w", ErrNotFound)
	}

	rows, err := s.query(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE contact_values LIKE ? ESCAPE '\'
		ORDER BY created_at ASC
	`, likePattern(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find person by email: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		for _, c := range p.Contacts {
			if c.Kind == models.ContactEmail && strings.EqualFold(strings.TrimSpace(c.Value), email) {
				return p, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find person by email: %w", err)
	}
	return nil, fmt.Errorf("person with email %s: %w", email, ErrNotFound)
}

// SearchPersons matches name, fiscal code, city and contact values, ordered
// by display name.
func (s *Store) SearchPersons(ctx context.Context, q SearchQuery) ([]SearchRow, error) {
	var where []string
	var args []any

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := likePattern(text)
		where = append(where, `(LOWER(first_name || ' ' || last_name) LIKE ? ESCAPE '\'
			OR LOWER(last_name || ' ' || first_name) LIKE ? ESCAPE '\'
			OR LOWER(fiscal_code) LIKE ? ESCAPE '\'
			OR LOWER(city) LIKE ? ESCAPE '\'
			OR contact_values LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	if q.Province != "" {
		where = append(where, `province = ?`)
		args = append(args, q.Province)
	}

	query := `SELECT id, first_name || ' ' || last_name, fiscal_code, city, province, contacts FROM persons`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY LOWER(first_name || ' ' || last_name) ASC, id ASC LIMIT ?`
	args = append(args, normalizeLimit(q.Limit, 200, 200))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search persons: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		var contacts string
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.TaxCode, &r.City, &r.Province, &contacts); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		r.DisplayName = strings.TrimSpace(r.DisplayName)
		if r.Contacts, err = decodeContacts(contacts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountPersons(ctx context.Context) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count persons: %w", err)
	}
	return n, nil
}
