// ABOUTME: Tests for person, organization and affiliation storage
// ABOUTME: Covers contact validation, search ordering, facets and affiliates
package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPerson(t *testing.T, s *Store, first, last, email string) *models.Person {
	t.Helper()
	p := &models.Person{FirstName: first, LastName: last, Contacts: models.NewContactList(email, "")}
	require.NoError(t, s.CreatePerson(context.Background(), p))
	return p
}

func createOrg(t *testing.T, s *Store, name, province, orgType string) *models.Organization {
	t.Helper()
	o := &models.Organization{LegalName: name, Province: province, OrgType: orgType}
	require.NoError(t, s.CreateOrganization(context.Background(), o))
	return o
}

func TestPersonRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	p := &models.Person{
		FirstName:  "Mario",
		LastName:   "Rossi",
		FiscalCode: "RSSMRA80A01H501U",
		Province:   "RM",
		Contacts: models.ContactList{
			{Kind: models.ContactEmail, Value: "mario@rossi.it"},
			{Kind: models.ContactMobile, Value: "+39 333 1234567"},
		},
	}
	require.NoError(t, s.CreatePerson(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mario Rossi", got.DisplayName())
	assert.Equal(t, "mario@rossi.it", got.Contacts.PrimaryEmail())
	assert.Equal(t, "+39 333 1234567", got.Contacts.PrimaryPhone())

	got.City = "Roma"
	require.NoError(t, s.UpdatePerson(ctx, got))
	again, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roma", again.City)

	require.NoError(t, s.DeletePerson(ctx, p.ID))
	_, err = s.GetPerson(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePersonRejectsInvalidContact(t *testing.T) {
	s := setupTestDB(t)

	p := &models.Person{
		FirstName: "Anna",
		LastName:  "Bianchi",
		Contacts:  models.ContactList{{Kind: "telegram", Value: "@anna"}},
	}
	err := s.CreatePerson(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	n, err := s.CountPersons(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetPersonRejectsCorruptContacts(t *testing.T) {
	s := setupTestDB(t)
	p := createPerson(t, s, "Luca", "Verdi", "luca@verdi.it")

	_, err := s.DB().Exec(`UPDATE persons SET contacts = '[{"kind":"pager","value":"1"}]' WHERE id = ?`, p.ID.String())
	require.NoError(t, err)

	_, err = s.GetPerson(context.Background(), p.ID)
	assert.ErrorIs(t, err, models.ErrInvalidContact)
}

func TestUpdateMissingPerson(t *testing.T) {
	s := setupTestDB(t)
	err := s.UpdatePerson(context.Background(), &models.Person{ID: uuid.New(), FirstName: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindPersonByEmail(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createPerson(t, s, "Giulia", "Neri", "Giulia.Neri@example.com")
	createPerson(t, s, "Giulio", "Neri", "giulio.neri@example.com")

	got, err := s.FindPersonByEmail(ctx, "  giulia.neri@EXAMPLE.com ")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.FindPersonByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchPersonsOrderAndFilter(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	createPerson(t, s, "Zeno", "Rossi", "")
	createPerson(t, s, "Anna", "Rossini", "")
	createPerson(t, s, "Marco", "Bianchi", "marco@rossi-srl.it")

	rows, err := s.SearchPersons(ctx, SearchQuery{Text: "ROSSI"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Anna Rossini", rows[0].DisplayName)
	assert.Equal(t, "Marco Bianchi", rows[1].DisplayName)
	assert.Equal(t, "Zeno Rossi", rows[2].DisplayName)

	all, err := s.SearchPersons(ctx, SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := s.SearchPersons(ctx, SearchQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSearchOrganizationsFacets(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	createOrg(t, s, "Beta SpA", "MI", "spa")
	createOrg(t, s, "Acme Srl", "RM", "srl")
	createOrg(t, s, "Gamma Srl", "MI", "srl")

	rows, err := s.SearchOrganizations(ctx, SearchQuery{Province: "MI"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Beta SpA", rows[0].DisplayName)
	assert.Equal(t, "Gamma Srl", rows[1].DisplayName)

	rows, err = s.SearchOrganizations(ctx, SearchQuery{Text: "srl", OrgType: "srl", Province: "RM"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme Srl", rows[0].DisplayName)

	provinces, err := s.DistinctOrganizationValues(ctx, FacetProvince)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI", "RM"}, provinces)

	types, err := s.DistinctOrganizationValues(ctx, FacetOrgType)
	require.NoError(t, err)
	assert.Equal(t, []string{"spa", "srl"}, types)

	_, err = s.DistinctOrganizationValues(ctx, Facet("city"))
	assert.ErrorIs(t, err, ErrInvalid)

	sample, err := s.SampleOrganizationFacets(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, sample, 2)

	n, err := s.CountOrganizations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSearchCapsAtTwoHundred(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	for i := 0; i < 205; i++ {
		createOrg(t, s, fmt.Sprintf("Org %03d", i), "", "")
	}

	rows, err := s.SearchOrganizations(ctx, SearchQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, rows, 200)
	assert.Equal(t, "Org 000", rows[0].DisplayName)
}

func TestAffiliationsAllowSeveralRoles(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	org := createOrg(t, s, "Acme Srl", "RM", "srl")
	p := createPerson(t, s, "Paolo", "Gialli", "paolo@acme.it")
	q := createPerson(t, s, "Andrea", "Blu", "")

	require.NoError(t, s.CreateAffiliation(ctx, &models.Affiliation{PersonID: p.ID, OrganizationID: org.ID, Role: "CEO"}))
	require.NoError(t, s.CreateAffiliation(ctx, &models.Affiliation{PersonID: p.ID, OrganizationID: org.ID, Role: "Board member"}))
	require.NoError(t, s.CreateAffiliation(ctx, &models.Affiliation{PersonID: q.ID, OrganizationID: org.ID, Role: "Buyer"}))

	roles, err := s.FindAffiliations(ctx, p.ID, org.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	affiliates, err := s.ListOrganizationAffiliates(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, affiliates, 3)
	assert.Equal(t, "Blu", affiliates[0].Person.LastName)
	assert.Equal(t, "paolo@acme.it", affiliates[1].Person.Contacts.PrimaryEmail())

	err = s.CreateAffiliation(ctx, &models.Affiliation{PersonID: p.ID, OrganizationID: org.ID, Role: " "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWithinTxRollsBack(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	boom := fmt.Errorf("boom")

	err := s.WithinTx(ctx, func(tx Repository) error {
		if err := tx.CreatePerson(ctx, &models.Person{FirstName: "Temp", LastName: "Person"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountPersons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	err = s.WithinTx(ctx, func(tx Repository) error {
		return tx.WithinTx(ctx, func(inner Repository) error {
			return inner.CreatePerson(ctx, &models.Person{FirstName: "Kept", LastName: "Person"})
		})
	})
	require.NoError(t, err)

	n, err = s.CountPersons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchMatchesContactValuesOnly(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	createPerson(t, s, "Mario", "Rossi", "mario@rossi.it")
	createPerson(t, s, "Anna", "Bianchi", "anna@bianchi.it")
	o := &models.Organization{LegalName: "Acme Srl", Contacts: models.NewContactList("info@acme.it", "02 1234")}
	require.NoError(t, s.CreateOrganization(ctx, o))

	for _, text := range []string{"kind", "value", "email", "phone", "%", "_", `\`} {
		rows, err := s.SearchPersons(ctx, SearchQuery{Text: text})
		require.NoError(t, err)
		assert.Empty(t, rows, "persons for %q", text)

		rows, err = s.SearchOrganizations(ctx, SearchQuery{Text: text})
		require.NoError(t, err)
		assert.Empty(t, rows, "organizations for %q", text)
	}

	rows, err := s.SearchPersons(ctx, SearchQuery{Text: "ROSSI.IT"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mario Rossi", rows[0].DisplayName)

	rows, err = s.SearchOrganizations(ctx, SearchQuery{Text: "02 12"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Contact values follow updates.
	p := createPerson(t, s, "Luca", "Verdi", "luca@old.it")
	p.Contacts = models.NewContactList("luca@new.it", "")
	require.NoError(t, s.UpdatePerson(ctx, p))
	rows, err = s.SearchPersons(ctx, SearchQuery{Text: "old.it"})
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = s.SearchPersons(ctx, SearchQuery{Text: "new.it"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%rossi%", likePattern("  Rossi "))
	assert.Equal(t, `%50\%%`, likePattern("50%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, likePattern(`C:\tmp`))
}

func TestUpdateOrganizationStampsClock(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return created })

	o := &models.Organization{LegalName: "Delta Srl", Contacts: models.NewContactList("info@delta.it", "")}
	require.NoError(t, s.CreateOrganization(ctx, o))
	assert.True(t, o.CreatedAt.Equal(created))

	edited := created.Add(48 * time.Hour)
	s.SetClock(func() time.Time { return edited })
	o.City = "Bologna"
	o.Contacts = models.NewContactList("sales@delta.it", "")
	require.NoError(t, s.UpdateOrganization(ctx, o))

	got, err := s.GetOrganization(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bologna", got.City)
	assert.True(t, got.CreatedAt.Equal(created), "created_at %v", got.CreatedAt)
	assert.True(t, got.UpdatedAt.Equal(edited), "updated_at %v", got.UpdatedAt)

	rows, err := s.SearchOrganizations(ctx, SearchQuery{Text: "sales@delta"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	rows, err = s.SearchOrganizations(ctx, SearchQuery{Text: "info@delta"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, s.DeleteOrganization(ctx, o.ID))
	assert.ErrorIs(t, s.DeleteOrganization(ctx, o.ID), ErrNotFound)
}

func TestDeleteAffiliation(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createPerson(t, s, "Sara", "Galli", "")
	o := createOrg(t, s, "Epsilon SpA", "MI", "spa")
	a := &models.Affiliation{PersonID: p.ID, OrganizationID: o.ID, Role: "CEO"}
	require.NoError(t, s.CreateAffiliation(ctx, a))

	require.NoError(t, s.DeleteAffiliation(ctx, a.ID))
	_, err := s.GetAffiliation(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteAffiliation(ctx, a.ID), ErrNotFound)

	_, err = s.GetPerson(ctx, p.ID)
	assert.NoError(t, err)
}
