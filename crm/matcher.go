// ABOUTME: Person deduplication by email
// ABOUTME: Reuses existing persons when inbound contacts and leads name a known address
package crm

import (
	"context"
	"errors"
	"strings"

	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

// PersonMatcher finds existing persons by normalized email. Hits and misses
// are remembered for the life of the matcher, which is one operation.
type PersonMatcher struct {
	repo    db.Repository
	byEmail map[string]*models.Person
}

func NewPersonMatcher(repo db.Repository) *PersonMatcher {
	return &PersonMatcher{
		repo:    repo,
		byEmail: make(map[string]*models.Person),
	}
}

// FindMatch looks for an existing person by email.
func (m *PersonMatcher) FindMatch(ctx context.Context, email string) (*models.Person, bool, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, false, nil
	}

	if p, seen := m.byEmail[normalized]; seen {
		return p, p != nil, nil
	}

	p, err := m.repo.FindPersonByEmail(ctx, normalized)
	if errors.Is(err, db.ErrNotFound) {
		m.byEmail[normalized] = nil
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m.byEmail[normalized] = p
	return p, true, nil
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
