// ABOUTME: Affiliation selector and the quick-create flows for referenti and organizations
// ABOUTME: Every multi-row write runs in one transaction so a failure leaves nothing behind
package crm

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

type AffiliateRow struct {
	AffiliationID uuid.UUID `json:"affiliation_id"`
	PersonID      uuid.UUID `json:"person_id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
}

type AffiliateList struct {
	OrganizationID uuid.UUID      `json:"organization_id"`
	Rows           []AffiliateRow `json:"rows"`
	// Total counts affiliations before the filter is applied.
	Total int        `json:"total"`
	Empty EmptyState `json:"empty,omitempty"`
}

// ListAffiliates lists the persons affiliated with an organization. A person
// holding several roles appears once per role.
func (s *Service) ListAffiliates(ctx context.Context, orgID uuid.UUID, filter string) (AffiliateList, error) {
	if orgID == uuid.Nil {
		return AffiliateList{}, invalid("organization_id", "organization is required")
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	if _, err := s.repo.GetOrganization(ctx, orgID); err != nil {
		return AffiliateList{}, err
	}
	affiliates, err := s.repo.ListOrganizationAffiliates(ctx, orgID)
	if err != nil {
		return AffiliateList{}, err
	}

	all := make([]AffiliateRow, 0, len(affiliates))
	for _, a := range affiliates {
		all = append(all, AffiliateRow{
			AffiliationID: a.Affiliation.ID,
			PersonID:      a.Person.ID,
			Name:          a.Person.DisplayName(),
			Role:          a.Affiliation.Role,
			Email:         a.Person.Contacts.PrimaryEmail(),
			Phone:         a.Person.Contacts.PrimaryPhone(),
		})
	}

	list := AffiliateList{OrganizationID: orgID, Total: len(all)}
	list.Rows, list.Empty = FilterAffiliates(all, filter)
	return list, nil
}

// FilterAffiliates applies the case-insensitive sub-filter over name, role,
// email and phone. The empty state distinguishes an organization with no
// affiliations from a filter that hides them all.
func FilterAffiliates(rows []AffiliateRow, filter string) ([]AffiliateRow, EmptyState) {
	if len(rows) == 0 {
		return []AffiliateRow{}, EmptyNoAffiliations
	}
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return rows, EmptyNone
	}

	out := []AffiliateRow{}
	for _, r := range rows {
		hay := strings.ToLower(strings.Join([]string{r.Name, r.Role, r.Email, r.Phone}, "\x00"))
		if strings.Contains(hay, needle) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return out, EmptyNoMatches
	}
	return out, EmptyNone
}

// QuickPersonInput is the quick-add referente form.
type QuickPersonInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Role      string `json:"role" validate:"required,max=100"`
	Email     string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone     string `json:"phone" validate:"required_without=Email"`
}

func (in *QuickPersonInput) trim() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Role = strings.TrimSpace(in.Role)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
}

// QuickCreateAffiliation creates a person and affiliates it to the
// organization with the given role. The person is re-read after the writes so
// callers get the stored row.
func (s *Service) QuickCreateAffiliation(ctx context.Context, orgID uuid.UUID, in QuickPersonInput) (*models.Person, *models.Affiliation, error) {
	in.trim()
	if orgID == uuid.Nil {
		return nil, nil, invalid("organization_id", "organization is required")
	}
	if err := validateStruct(&in); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	var (
		person *models.Person
		aff    *models.Affiliation
	)
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		if _, err := tx.GetOrganization(ctx, orgID); err != nil {
			return err
		}

		p := &models.Person{
			ID:        uuid.New(),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Contacts:  models.NewContactList(in.Email, in.Phone),
		}
		if err := tx.CreatePerson(ctx, p); err != nil {
			return &StepError{Op: "quick create affiliation", Step: 1, Name: "create person", Err: err}
		}

		a := &models.Affiliation{PersonID: p.ID, OrganizationID: orgID, Role: in.Role}
		if err := tx.CreateAffiliation(ctx, a); err != nil {
			return &StepError{Op: "quick create affiliation", Step: 2, Name: "create affiliation", Err: err}
		}

		stored, err := tx.GetPerson(ctx, p.ID)
		if err != nil {
			return &StepError{Op: "quick create affiliation", Step: 3, Name: "reload person", Err: err}
		}
		person, aff = stored, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("referente created", "organization_id", orgID, "person_id", person.ID, "role", aff.Role)
	return person, aff, nil
}

// InboundContact is a prospective client organization as captured from an
// inbound request, optionally naming the person who reached out.
type InboundContact struct {
	LegalName string `json:"legal_name" validate:"required,max=200"`
	VATNumber string `json:"vat_number,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	OrgType   string `json:"org_type,omitempty"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string `json:"phone,omitempty"`

	ContactFirstName string `json:"contact_first_name,omitempty"`
	ContactLastName  string `json:"contact_last_name,omitempty"`
	ContactRole      string `json:"contact_role,omitempty" validate:"required_with=ContactFirstName ContactLastName"`
	ContactEmail     string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone     string `json:"contact_phone,omitempty"`
}

func (in *InboundContact) trim() {
	for _, f := range []*string{&in.LegalName, &in.VATNumber, &in.City, &in.Province, &in.OrgType,
		&in.Email, &in.Phone, &in.ContactFirstName, &in.ContactLastName, &in.ContactRole,
		&in.ContactEmail, &in.ContactPhone} {
		*f = strings.TrimSpace(*f)
	}
}

func (in *InboundContact) namesIndividual() bool {
	return in.ContactFirstName != "" || in.ContactLastName != ""
}

type QuickOrganizationResult struct {
	Organization *models.Organization `json:"organization"`
	Person       *models.Person       `json:"person,omitempty"`
	Affiliation  *models.Affiliation  `json:"affiliation,omitempty"`
	// ReusedPerson is set when the contact matched an existing person by email.
	ReusedPerson bool `json:"reused_person,omitempty"`
}

// QuickCreateOrganization creates the organization and, when the inbound
// contact names an individual with a role, the person and the affiliation
// too. A person already on file with the same email is reused.
func (s *Service) QuickCreateOrganization(ctx context.Context, in InboundContact) (QuickOrganizationResult, error) {
	in.trim()
	if err := validateStruct(&in); err != nil {
		return QuickOrganizationResult{}, err
	}
	if in.ContactRole != "" && !in.namesIndividual() {
		return QuickOrganizationResult{}, invalid("contact_first_name", "a contact name is required when a role is given")
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	var res QuickOrganizationResult
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		org := &models.Organization{
			LegalName: in.LegalName,
			VATNumber: in.VATNumber,
			City:      in.City,
			Province:  strings.ToUpper(in.Province),
			OrgType:   in.OrgType,
			Contacts:  models.NewContactList(in.Email, in.Phone),
		}
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return &StepError{Op: "quick create organization", Step: 1, Name: "create organization", Err: err}
		}
		res.Organization = org

		if !in.namesIndividual() {
			return nil
		}

		matcher := NewPersonMatcher(tx)
		person, found, err := matcher.FindMatch(ctx, in.ContactEmail)
		if err != nil {
			return &StepError{Op: "quick create organization", Step: 2, Name: "match person", Err: err}
		}
		if !found {
			person = &models.Person{
				FirstName: in.ContactFirstName,
				LastName:  in.ContactLastName,
				Contacts:  models.NewContactList(in.ContactEmail, in.ContactPhone),
			}
			if err := tx.CreatePerson(ctx, person); err != nil {
				return &StepError{Op: "quick create organization", Step: 2, Name: "create person", Err: err}
			}
		}
		res.Person = person
		res.ReusedPerson = found

		aff := &models.Affiliation{PersonID: person.ID, OrganizationID: org.ID, Role: in.ContactRole}
		if err := tx.CreateAffiliation(ctx, aff); err != nil {
			return &StepError{Op: "quick create organization", Step: 3, Name: "create affiliation", Err: err}
		}
		res.Affiliation = aff
		return nil
	})
	if err != nil {
		return QuickOrganizationResult{}, err
	}

	s.log.Info("organization created", "organization_id", res.Organization.ID, "with_contact", res.Person != nil)
	return res, nil
}
