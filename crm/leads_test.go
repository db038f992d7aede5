package crm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLeadLinksKnownPerson(t *testing.T) {
	svc, store := setupService(t)
	user := uuid.New()
	ctx := WithActor(context.Background(), Actor{UserID: user})
	p := mustPerson(t, store, "Mario", "Rossi", "mario@rossi.it")

	lead, err := svc.CreateLead(ctx, LeadInput{ContactName: "Mario", ContactEmail: " Mario@Rossi.it "})
	require.NoError(t, err)
	require.NotNil(t, lead.PersonID)
	assert.Equal(t, p.ID, *lead.PersonID)
	assert.Equal(t, user, *lead.CreatedBy)
	assert.Equal(t, user, *lead.AssignedTo)
	assert.Equal(t, models.ClientPerson, lead.ClientType())

	stranger, err := svc.CreateLead(ctx, LeadInput{ContactEmail: "nobody@example.com"})
	require.NoError(t, err)
	assert.Nil(t, stranger.PersonID)
}

func TestCreateLeadValidation(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	org := mustOrg(t, store, "Acme Srl")
	other := mustOrg(t, store, "Beta SpA")
	p := mustPerson(t, store, "Marco", "Bruni", "")
	aff := &models.Affiliation{PersonID: p.ID, OrganizationID: other.ID, Role: "CEO"}
	require.NoError(t, store.CreateAffiliation(ctx, aff))

	tests := []struct {
		name  string
		in    LeadInput
		field string
	}{
		{"nothing to contact", LeadInput{Source: "web"}, "contact"},
		{"negative budget", LeadInput{ContactName: "A", Budget: decimal.NewNullDecimal(decimal.NewFromInt(-5))}, "budget"},
		{"bad email", LeadInput{ContactEmail: "mario at rossi"}, "contact_email"},
		{"referente without organization", LeadInput{ContactName: "A", AffiliationID: &aff.ID}, "organization_id"},
		{"referente of another organization", LeadInput{OrganizationID: &org.ID, AffiliationID: &aff.ID}, "affiliation_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLead(ctx, tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	leads, err := store.ListLeads(ctx, db.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestCreateLeadWithoutBudget(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	lead, err := svc.CreateLead(ctx, LeadInput{CompanyName: "Rossi Impianti"})
	require.NoError(t, err)

	opp, err := svc.ConvertLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, opp.ExpectedRevenue.Valid)

	stored, err := store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.False(t, stored.ExpectedRevenue.Valid)
}

func TestUpdateLeadStatus(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	lead, err := svc.CreateLead(ctx, LeadInput{ContactName: "Anna"})
	require.NoError(t, err)

	_, err = svc.UpdateLeadStatus(ctx, lead.ID, models.LeadConverted)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpdateLeadStatus(ctx, lead.ID, models.LeadStatus("hot"))
	require.ErrorAs(t, err, &verr)

	updated, err := svc.UpdateLeadStatus(ctx, lead.ID, models.LeadContacted)
	require.NoError(t, err)
	assert.Equal(t, models.LeadContacted, updated.Status)
	assert.Equal(t, testNow, updated.LastActivityAt)

	// Same status again is a no-op.
	_, err = svc.UpdateLeadStatus(ctx, lead.ID, models.LeadContacted)
	require.NoError(t, err)

	acts, err := store.ListLeadActivities(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "new -> contacted", acts[0].Content)

	_, err = svc.ConvertLead(ctx, lead.ID)
	require.NoError(t, err)
	_, err = svc.UpdateLeadStatus(ctx, lead.ID, models.LeadLost)
	assert.ErrorIs(t, err, ErrLeadAlreadyConverted)
}

func TestLogLeadActivity(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	lead, err := svc.CreateLead(ctx, LeadInput{ContactName: "Anna"})
	require.NoError(t, err)

	_, err = svc.LogLeadActivity(ctx, lead.ID, models.ActivityStatus, "sneaky")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "kind")

	_, err = svc.LogLeadActivity(ctx, lead.ID, models.ActivityCall, "   ")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")

	act, err := svc.LogLeadActivity(ctx, lead.ID, models.ActivityCall, "Left a voicemail")
	require.NoError(t, err)

	stored, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, act.CreatedAt, stored.LastActivityAt, time.Second)

	acts, err := svc.LeadActivities(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, models.ActivityCall, acts[0].Kind)

	_, err = svc.LogLeadActivity(ctx, uuid.New(), models.ActivityNote, "orphan")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListLeadsFilter(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	a, err := svc.CreateLead(ctx, LeadInput{ContactName: "Anna", Source: "web"})
	require.NoError(t, err)
	_, err = svc.CreateLead(ctx, LeadInput{ContactName: "Bruno", Source: "fair"})
	require.NoError(t, err)
	_, err = svc.UpdateLeadStatus(ctx, a.ID, models.LeadQualified)
	require.NoError(t, err)

	leads, err := svc.ListLeads(ctx, db.LeadFilter{Status: models.LeadQualified})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, a.ID, leads[0].ID)

	leads, err = svc.ListLeads(ctx, db.LeadFilter{Source: "fair"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Bruno", leads[0].ContactName)

	_, err = svc.ListLeads(ctx, db.LeadFilter{Status: "warm"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
