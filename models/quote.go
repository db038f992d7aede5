// ABOUTME: Quote model and opportunity-quote association
// ABOUTME: Includes the aggregate shown next to an opportunity's linked quotes
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired:
		return true
	}
	return false
}

func ParseQuoteStatus(s string) (QuoteStatus, error) {
	st := QuoteStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid quote status: %s (valid: draft, sent, accepted, rejected, expired)", s)
	}
	return st, nil
}

type Quote struct {
	ID             uuid.UUID       `json:"id"`
	Number         string          `json:"number"`
	ClientType     ClientType      `json:"client_type"`
	PersonID       *uuid.UUID      `json:"person_id,omitempty"`
	OrganizationID *uuid.UUID      `json:"organization_id,omitempty"`
	Title          string          `json:"title"`
	Status         QuoteStatus     `json:"status"`
	Total          decimal.Decimal `json:"total"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OpportunityQuote struct {
	ID            uuid.UUID `json:"id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`
	QuoteID       uuid.UUID `json:"quote_id"`
	IsPrimary     bool      `json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"`
}

type QuoteSummary struct {
	Count    int             `json:"count"`
	Accepted int             `json:"accepted"`
	Total    decimal.Decimal `json:"total"`
}

// SummarizeQuotes adds up quote totals and counts accepted quotes. It does not
// look at anything but its input, so calling it twice gives the same answer.
func SummarizeQuotes(quotes []Quote) QuoteSummary {
	s := QuoteSummary{Total: decimal.Zero}
	for _, q := range quotes {
		s.Count++
		s.Total = s.Total.Add(q.Total)
		if q.Status == QuoteAccepted {
			s.Accepted++
		}
	}
	return s
}
