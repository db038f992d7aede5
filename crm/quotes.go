// ABOUTME: Opportunity to quote linkage and the quote builder handoff
// ABOUTME: The handoff URL carries client_type, client_id and opportunity_id
package crm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
)

type LinkedQuotes struct {
	OpportunityID uuid.UUID                 `json:"opportunity_id"`
	Links         []models.OpportunityQuote `json:"links"`
	Quotes        []models.Quote            `json:"quotes"`
	Summary       models.QuoteSummary       `json:"summary"`
}

// Primary returns the primary linked quote, if one is flagged.
func (l LinkedQuotes) Primary() *models.Quote {
	for _, link := range l.Links {
		if !link.IsPrimary {
			continue
		}
		for i := range l.Quotes {
			if l.Quotes[i].ID == link.QuoteID {
				return &l.Quotes[i]
			}
		}
	}
	return nil
}

// LinkedQuotes reads the join rows, then the quotes by id. An opportunity
// without quotes is a valid, empty result.
func (s *Service) LinkedQuotes(ctx context.Context, oppID uuid.UUID) (LinkedQuotes, error) {
	if oppID == uuid.Nil {
		return LinkedQuotes{}, invalid("opportunity_id", "opportunity is required")
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	if _, err := s.repo.GetOpportunity(ctx, oppID); err != nil {
		return LinkedQuotes{}, err
	}
	links, err := s.repo.ListOpportunityQuotes(ctx, oppID)
	if err != nil {
		return LinkedQuotes{}, err
	}

	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.QuoteID)
	}
	quotes, err := s.repo.GetQuotesByIDs(ctx, ids)
	if err != nil {
		return LinkedQuotes{}, err
	}

	if links == nil {
		links = []models.OpportunityQuote{}
	}
	if quotes == nil {
		quotes = []models.Quote{}
	}
	return LinkedQuotes{
		OpportunityID: oppID,
		Links:         links,
		Quotes:        quotes,
		Summary:       models.SummarizeQuotes(quotes),
	}, nil
}

// Handoff is what the quote builder needs to pre-populate a draft.
type Handoff struct {
	ClientType    models.ClientType `json:"client_type"`
	ClientID      uuid.UUID         `json:"client_id"`
	OpportunityID uuid.UUID         `json:"opportunity_id"`
	URL           string            `json:"url,omitempty"`
}

func (h Handoff) Query() url.Values {
	v := url.Values{}
	v.Set("client_type", string(h.ClientType))
	v.Set("client_id", h.ClientID.String())
	v.Set("opportunity_id", h.OpportunityID.String())
	return v
}

// ParseHandoff reads the query parameters written by QuoteHandoff.
func ParseHandoff(v url.Values) (Handoff, error) {
	verr := &ValidationError{}
	var h Handoff

	ct, err := models.ParseClientType(v.Get("client_type"))
	if err != nil {
		verr.add("client_type", "client_type must be person or organization")
	}
	h.ClientType = ct

	if h.ClientID, err = uuid.Parse(strings.TrimSpace(v.Get("client_id"))); err != nil {
		verr.add("client_id", "client_id must be a valid id")
	}
	if h.OpportunityID, err = uuid.Parse(strings.TrimSpace(v.Get("opportunity_id"))); err != nil {
		verr.add("opportunity_id", "opportunity_id must be a valid id")
	}

	if err := verr.orNil(); err != nil {
		return Handoff{}, err
	}
	return h, nil
}

// QuoteHandoff resolves the opportunity's client and builds the quote
// builder URL.
func (s *Service) QuoteHandoff(ctx context.Context, oppID uuid.UUID) (Handoff, error) {
	if oppID == uuid.Nil {
		return Handoff{}, invalid("opportunity_id", "opportunity is required")
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	opp, err := s.repo.GetOpportunity(ctx, oppID)
	if err != nil {
		return Handoff{}, err
	}
	clientID := opp.ClientID()
	if clientID == nil {
		return Handoff{}, invalid("opportunity_id", "opportunity has no client to quote")
	}

	h := Handoff{ClientType: opp.ClientType(), ClientID: *clientID, OpportunityID: opp.ID}
	base, err := url.Parse(s.opts.QuoteBuilderURL)
	if err != nil {
		return Handoff{}, fmt.Errorf("failed to parse quote builder url: %w", err)
	}
	q := base.Query()
	for k, vs := range h.Query() {
		q[k] = vs
	}
	base.RawQuery = q.Encode()
	h.URL = base.String()
	return h, nil
}

// checkHandoff verifies that the handoff still names the opportunity's
// client.
func checkHandoff(ctx context.Context, repo db.Repository, h Handoff) (*models.Opportunity, error) {
	opp, err := repo.GetOpportunity(ctx, h.OpportunityID)
	if err != nil {
		return nil, err
	}
	id := opp.ClientID()
	if id == nil || *id != h.ClientID || opp.ClientType() != h.ClientType {
		return nil, invalid("client_id", "client does not match the opportunity")
	}
	return opp, nil
}

// DraftQuote returns the unsaved quote the builder opens with.
func (s *Service) DraftQuote(ctx context.Context, h Handoff) (*models.Quote, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	opp, err := checkHandoff(ctx, s.repo, h)
	if err != nil {
		return nil, err
	}
	q := &models.Quote{
		ClientType: h.ClientType,
		Title:      opp.Name,
		Status:     models.QuoteDraft,
		Total:      decimal.Zero,
	}
	if opp.ExpectedRevenue.Valid {
		q.Total = opp.ExpectedRevenue.Decimal
	}
	setQuoteClient(q, h)
	return q, nil
}

func setQuoteClient(q *models.Quote, h Handoff) {
	id := h.ClientID
	q.ClientType = h.ClientType
	q.PersonID, q.OrganizationID = nil, nil
	if h.ClientType == models.ClientPerson {
		q.PersonID = &id
	} else {
		q.OrganizationID = &id
	}
}

// SaveHandoffQuote stores a quote built from a handoff together with its
// link to the opportunity. The first quote of an opportunity becomes primary.
func (s *Service) SaveHandoffQuote(ctx context.Context, h Handoff, q *models.Quote) (*models.Quote, error) {
	if q == nil {
		return nil, invalid("quote", "quote is required")
	}
	if q.Total.IsNegative() {
		return nil, invalid("total", "total cannot be negative")
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		opp, err := checkHandoff(ctx, tx, h)
		if err != nil {
			return err
		}
		setQuoteClient(q, h)
		if strings.TrimSpace(q.Title) == "" {
			q.Title = opp.Name
		}
		if err := tx.CreateQuote(ctx, q); err != nil {
			return &StepError{Op: "save quote", Step: 1, Name: "create quote", Err: err}
		}

		existing, err := tx.ListOpportunityQuotes(ctx, opp.ID)
		if err != nil {
			return err
		}
		link := &models.OpportunityQuote{OpportunityID: opp.ID, QuoteID: q.ID, IsPrimary: len(existing) == 0}
		if err := tx.CreateOpportunityQuote(ctx, link); err != nil {
			return &StepError{Op: "save quote", Step: 2, Name: "link quote", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("quote saved from handoff", "quote_id", q.ID, "opportunity_id", h.OpportunityID)
	return q, nil
}

// LinkQuote attaches an existing quote to an opportunity. A quote belongs to
// at most one opportunity.
func (s *Service) LinkQuote(ctx context.Context, oppID, quoteID uuid.UUID, primary bool) error {
	verr := &ValidationError{}
	if oppID == uuid.Nil {
		verr.add("opportunity_id", "opportunity is required")
	}
	if quoteID == uuid.Nil {
		verr.add("quote_id", "quote is required")
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	return s.repo.WithinTx(ctx, func(tx db.Repository) error {
		if _, err := tx.GetOpportunity(ctx, oppID); err != nil {
			return err
		}
		if _, err := tx.GetQuote(ctx, quoteID); err != nil {
			return err
		}
		link, err := tx.GetQuoteLink(ctx, quoteID)
		switch {
		case err == nil:
			return fmt.Errorf("quote %s is on opportunity %s: %w", quoteID, link.OpportunityID, ErrQuoteAlreadyLinked)
		case !errors.Is(err, db.ErrNotFound):
			return err
		}

		if err := tx.CreateOpportunityQuote(ctx, &models.OpportunityQuote{OpportunityID: oppID, QuoteID: quoteID}); err != nil {
			return &StepError{Op: "link quote", Step: 1, Name: "create link", Err: err}
		}
		if primary {
			if err := tx.SetPrimaryQuote(ctx, oppID, quoteID); err != nil {
				return &StepError{Op: "link quote", Step: 2, Name: "set primary", Err: err}
			}
		}
		return nil
	})
}

// SetPrimaryQuote flags one linked quote as primary and clears the others.
func (s *Service) SetPrimaryQuote(ctx context.Context, oppID, quoteID uuid.UUID) error {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	return s.repo.WithinTx(ctx, func(tx db.Repository) error {
		return tx.SetPrimaryQuote(ctx, oppID, quoteID)
	})
}
