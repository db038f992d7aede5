package crm

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orgProspect(t *testing.T, svc *Service, store *db.Store, name string) *models.Opportunity {
	t.Helper()
	ctx := context.Background()
	org := mustOrg(t, store, name)
	p := mustPerson(t, store, "Elena", "Conti", "")
	aff := &models.Affiliation{PersonID: p.ID, OrganizationID: org.ID, Role: "Buyer"}
	require.NoError(t, store.CreateAffiliation(ctx, aff))

	opp, err := svc.CreateProspect(ctx, ProspectInput{
		ClientType:      models.ClientOrganization,
		OrganizationID:  &org.ID,
		AffiliationID:   &aff.ID,
		ExpectedRevenue: decimal.NewNullDecimal(decimal.NewFromInt(1500)),
	})
	require.NoError(t, err)
	return opp
}

func TestQuoteHandoffRoundTrip(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	opp := orgProspect(t, svc, store, "Beta SpA")

	h, err := svc.QuoteHandoff(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClientOrganization, h.ClientType)
	assert.Equal(t, *opp.OrganizationID, h.ClientID)
	assert.True(t, strings.HasPrefix(h.URL, "/quotes/new?"), h.URL)

	u, err := url.Parse(h.URL)
	require.NoError(t, err)
	parsed, err := ParseHandoff(u.Query())
	require.NoError(t, err)
	assert.Equal(t, h.ClientType, parsed.ClientType)
	assert.Equal(t, h.ClientID, parsed.ClientID)
	assert.Equal(t, h.OpportunityID, parsed.OpportunityID)

	draft, err := svc.DraftQuote(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, "Beta SpA", draft.Title)
	assert.True(t, draft.Total.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, *opp.OrganizationID, *draft.OrganizationID)
	assert.Nil(t, draft.PersonID)
}

func TestQuoteHandoffKeepsBuilderQuery(t *testing.T) {
	store := setupStore(t)
	svc := NewService(store, nil, nil, Options{QuoteBuilderURL: "https://quotes.example.com/new?lang=it"})
	opp := orgProspect(t, svc, store, "Beta SpA")

	h, err := svc.QuoteHandoff(context.Background(), opp.ID)
	require.NoError(t, err)
	u, err := url.Parse(h.URL)
	require.NoError(t, err)
	assert.Equal(t, "quotes.example.com", u.Host)
	assert.Equal(t, "it", u.Query().Get("lang"))
	assert.Equal(t, opp.ID.String(), u.Query().Get("opportunity_id"))
}

func TestParseHandoffValidation(t *testing.T) {
	_, err := ParseHandoff(url.Values{"client_type": {"robot"}, "client_id": {"nope"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestDraftQuoteRejectsForeignClient(t *testing.T) {
	svc, store := setupService(t)
	opp := orgProspect(t, svc, store, "Beta SpA")
	other := mustOrg(t, store, "Gamma Srl")

	_, err := svc.DraftQuote(context.Background(), Handoff{
		ClientType: models.ClientOrganization, ClientID: other.ID, OpportunityID: opp.ID,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "client_id")
}

func TestSaveHandoffQuoteAndSummary(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	opp := orgProspect(t, svc, store, "Beta SpA")
	h, err := svc.QuoteHandoff(ctx, opp.ID)
	require.NoError(t, err)

	empty, err := svc.LinkedQuotes(ctx, opp.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty.Quotes)
	assert.Zero(t, empty.Summary.Count)
	assert.True(t, empty.Summary.Total.IsZero())
	assert.Nil(t, empty.Primary())

	first, err := svc.SaveHandoffQuote(ctx, h, &models.Quote{Total: decimal.NewFromInt(1200), Status: models.QuoteAccepted})
	require.NoError(t, err)
	assert.Equal(t, "Beta SpA", first.Title)
	assert.NotEmpty(t, first.Number)

	_, err = svc.SaveHandoffQuote(ctx, h, &models.Quote{Title: "Alternative", Total: decimal.RequireFromString("500.50")})
	require.NoError(t, err)

	once, err := svc.LinkedQuotes(ctx, opp.ID)
	require.NoError(t, err)
	twice, err := svc.LinkedQuotes(ctx, opp.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, once.Summary.Count)
	assert.Equal(t, 1, once.Summary.Accepted)
	assert.True(t, once.Summary.Total.Equal(decimal.RequireFromString("1700.50")), once.Summary.Total.String())
	assert.Equal(t, once.Summary.Count, twice.Summary.Count)
	assert.True(t, once.Summary.Total.Equal(twice.Summary.Total))

	primary := once.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, first.ID, primary.ID)
}

func TestSaveHandoffQuoteRejectsNegativeTotal(t *testing.T) {
	svc, store := setupService(t)
	opp := orgProspect(t, svc, store, "Beta SpA")
	h, err := svc.QuoteHandoff(context.Background(), opp.ID)
	require.NoError(t, err)

	_, err = svc.SaveHandoffQuote(context.Background(), h, &models.Quote{Total: decimal.NewFromInt(-1)})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLinkQuote(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	beta := orgProspect(t, svc, store, "Beta SpA")
	gamma := orgProspect(t, svc, store, "Gamma Srl")

	q := &models.Quote{ClientType: models.ClientOrganization, OrganizationID: beta.OrganizationID, Title: "Standalone", Total: decimal.NewFromInt(900)}
	require.NoError(t, store.CreateQuote(ctx, q))

	require.NoError(t, svc.LinkQuote(ctx, beta.ID, q.ID, true))

	linked, err := svc.LinkedQuotes(ctx, beta.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.Primary())
	assert.Equal(t, q.ID, linked.Primary().ID)

	err = svc.LinkQuote(ctx, gamma.ID, q.ID, false)
	assert.ErrorIs(t, err, ErrQuoteAlreadyLinked)

	gammaQuotes, err := svc.LinkedQuotes(ctx, gamma.ID)
	require.NoError(t, err)
	assert.Empty(t, gammaQuotes.Links)
}

func TestLinkedQuotesUnknownOpportunity(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.LinkedQuotes(context.Background(), uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}
