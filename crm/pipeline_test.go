package crm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReferralLead(t *testing.T, svc *Service, ctx context.Context) *models.Lead {
	t.Helper()
	lead, err := svc.CreateLead(ctx, LeadInput{
		ContactName: "Mario Rossi",
		CompanyName: "Rossi Impianti",
		Budget:      decimal.NewNullDecimal(decimal.NewFromInt(10000)),
		Source:      "referral",
	})
	require.NoError(t, err)
	require.Equal(t, models.LeadNew, lead.Status)
	return lead
}

func TestConvertLeadScenario(t *testing.T) {
	svc, store := setupService(t)
	user := uuid.New()
	ctx := WithActor(context.Background(), Actor{UserID: user})
	lead := newReferralLead(t, svc, ctx)

	opp, err := svc.ConvertLead(ctx, lead.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StageDiscovery, opp.Stage)
	assert.Nil(t, opp.Probability)
	assert.Nil(t, opp.ClosedAt)
	require.NotNil(t, opp.LeadID)
	assert.Equal(t, lead.ID, *opp.LeadID)
	assert.Equal(t, "Rossi Impianti", opp.Name)
	require.True(t, opp.ExpectedRevenue.Valid)
	assert.True(t, opp.ExpectedRevenue.Decimal.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, user, *opp.AssignedTo)

	stored, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadConverted, stored.Status)

	opps, err := store.ListOpportunities(ctx, db.OpportunityFilter{LeadID: &lead.ID})
	require.NoError(t, err)
	assert.Len(t, opps, 1)

	acts, err := store.ListLeadActivities(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, models.ActivityStatus, acts[0].Kind)
}

func TestConvertLeadCopiesReferences(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	org := mustOrg(t, store, "Acme Srl")
	p := mustPerson(t, store, "Paolo", "Gialli", "")
	aff := &models.Affiliation{PersonID: p.ID, OrganizationID: org.ID, Role: "CEO"}
	require.NoError(t, store.CreateAffiliation(ctx, aff))

	lead, err := svc.CreateLead(ctx, LeadInput{OrganizationID: &org.ID, AffiliationID: &aff.ID, PersonID: &p.ID})
	require.NoError(t, err)

	opp, err := svc.ConvertLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, *opp.OrganizationID)
	assert.Equal(t, aff.ID, *opp.AffiliationID)
	assert.Equal(t, p.ID, *opp.PersonID)
	assert.Equal(t, "Acme Srl", opp.Name)
}

func TestConvertLeadRollsBackWhenLeadUpdateFails(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	lead, err := newTestService(store).CreateLead(ctx, LeadInput{ContactName: "Anna"})
	require.NoError(t, err)

	boom := errors.New("connection reset")
	svc := newTestService(&faultyRepo{Repository: store, failUpdateLead: boom})

	_, err = svc.ConvertLead(ctx, lead.ID)
	require.Error(t, err)
	var step *StepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, 2, step.Step)
	assert.ErrorIs(t, err, boom)

	stored, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadNew, stored.Status)

	opps, err := store.ListOpportunities(ctx, db.OpportunityFilter{})
	require.NoError(t, err)
	assert.Empty(t, opps, "opportunity write must be rolled back")
}

func TestConvertLeadLeavesLeadWhenOpportunityFails(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	lead, err := newTestService(store).CreateLead(ctx, LeadInput{ContactName: "Anna"})
	require.NoError(t, err)

	svc := newTestService(&faultyRepo{Repository: store, failCreateOpportunity: errors.New("insert failed")})
	_, err = svc.ConvertLead(ctx, lead.ID)
	var step *StepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, 1, step.Step)

	stored, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadNew, stored.Status)
}

func TestConvertLeadTwiceIsRejected(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	lead := newReferralLead(t, svc, ctx)

	_, err := svc.ConvertLead(ctx, lead.ID)
	require.NoError(t, err)

	_, err = svc.ConvertLead(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrLeadAlreadyConverted)

	opps, err := store.ListOpportunities(ctx, db.OpportunityFilter{LeadID: &lead.ID})
	require.NoError(t, err)
	assert.Len(t, opps, 1)
}

func TestConvertLeadValidation(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.ConvertLead(context.Background(), uuid.Nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.ConvertLead(context.Background(), uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateProspectDefaultsNameFromOrganization(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	org := mustOrg(t, store, "Beta SpA")
	p := mustPerson(t, store, "Elena", "Conti", "elena@beta.it")
	aff := &models.Affiliation{PersonID: p.ID, OrganizationID: org.ID, Role: "Buyer"}
	require.NoError(t, store.CreateAffiliation(ctx, aff))

	opp, err := svc.CreateProspect(ctx, ProspectInput{
		ClientType:     models.ClientOrganization,
		OrganizationID: &org.ID,
		AffiliationID:  &aff.ID,
		Name:           "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Beta SpA", opp.Name)
	assert.Equal(t, models.StageDiscovery, opp.Stage)
	require.NotNil(t, opp.Probability)
	assert.Equal(t, 50, *opp.Probability)
	assert.Nil(t, opp.LeadID)

	stored, err := store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beta SpA", stored.Name)
}

func TestCreateProspectForPerson(t *testing.T) {
	svc, store := setupService(t)
	p := mustPerson(t, store, "Luca", "Verdi", "")

	opp, err := svc.CreateProspect(context.Background(), ProspectInput{ClientType: models.ClientPerson, PersonID: &p.ID})
	require.NoError(t, err)
	assert.Equal(t, "Luca Verdi", opp.Name)
	assert.Equal(t, models.ClientPerson, opp.ClientType())
}

func TestCreateProspectValidation(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateProspect(ctx, ProspectInput{ClientType: models.ClientOrganization})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "organization_id")
	assert.Contains(t, verr.Fields, "affiliation_id")

	// A referente from another organization is refused.
	beta := mustOrg(t, store, "Beta SpA")
	gamma := mustOrg(t, store, "Gamma Srl")
	p := mustPerson(t, store, "Elena", "Conti", "")
	aff := &models.Affiliation{PersonID: p.ID, OrganizationID: gamma.ID, Role: "Buyer"}
	require.NoError(t, store.CreateAffiliation(ctx, aff))

	_, err = svc.CreateProspect(ctx, ProspectInput{ClientType: models.ClientOrganization, OrganizationID: &beta.ID, AffiliationID: &aff.ID})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "affiliation_id")

	opps, err := store.ListOpportunities(ctx, db.OpportunityFilter{})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestTransitionStageClosedAt(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	p := mustPerson(t, store, "Luca", "Verdi", "")
	opp, err := svc.CreateProspect(ctx, ProspectInput{ClientType: models.ClientPerson, PersonID: &p.ID})
	require.NoError(t, err)

	tests := []struct {
		to      models.Stage
		closed  bool
		outcome Outcome
	}{
		{models.StageProposal, false, OutcomeStatusUpdated},
		{models.StageClosedWon, true, OutcomeClientAcquired},
		{models.StageNegotiation, false, OutcomeStatusUpdated}, // reopen
		{models.StageClosedLost, true, OutcomeArchived},
		{models.StageDiscovery, false, OutcomeStatusUpdated}, // reopen to the start
	}

	for _, tt := range tests {
		got, outcome, err := svc.TransitionStage(ctx, opp.ID, tt.to)
		require.NoError(t, err, "transition to %s", tt.to)
		assert.Equal(t, tt.outcome, outcome)

		stored, err := store.GetOpportunity(ctx, opp.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.to, stored.Stage)
		assert.Equal(t, tt.closed, stored.ClosedAt != nil, "closed_at after %s", tt.to)
		assert.Equal(t, tt.closed, got.ClosedAt != nil)
	}
}

func TestTransitionStageRejectsWonToLost(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	p := mustPerson(t, store, "Luca", "Verdi", "")
	opp, err := svc.CreateProspect(ctx, ProspectInput{ClientType: models.ClientPerson, PersonID: &p.ID})
	require.NoError(t, err)

	_, _, err = svc.TransitionStage(ctx, opp.ID, models.StageClosedWon)
	require.NoError(t, err)

	_, _, err = svc.TransitionStage(ctx, opp.ID, models.StageClosedLost)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, _, err = svc.TransitionStage(ctx, opp.ID, models.Stage("won"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	stored, err := store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageClosedWon, stored.Stage)
	assert.NotNil(t, stored.ClosedAt)
}

func TestDeleteOpportunityRequiresAdmin(t *testing.T) {
	svc, store := setupService(t)
	p := mustPerson(t, store, "Luca", "Verdi", "")
	ctx := context.Background()
	opp, err := svc.CreateProspect(ctx, ProspectInput{ClientType: models.ClientPerson, PersonID: &p.ID})
	require.NoError(t, err)

	err = svc.DeleteOpportunity(WithActor(ctx, Actor{UserID: uuid.New()}), opp.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := WithActor(ctx, Actor{UserID: uuid.New(), Admin: true})
	require.NoError(t, svc.DeleteOpportunity(admin, opp.ID))

	_, err = store.GetOpportunity(ctx, opp.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}
