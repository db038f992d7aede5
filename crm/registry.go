// ABOUTME: Direct registry entry for persons and organizations
// ABOUTME: Used by the CLI and MCP surfaces outside the quick-create flows
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
)

type PersonInput struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	FiscalCode string `json:"fiscal_code,omitempty" validate:"max=32"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (s *Service) AddPerson(ctx context.Context, in PersonInput) (*models.Person, error) {
	for _, f := range []*string{&in.FirstName, &in.LastName, &in.FiscalCode, &in.City, &in.Province, &in.Email, &in.Phone} {
		*f = strings.TrimSpace(*f)
	}
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	p := &models.Person{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		FiscalCode: strings.ToUpper(in.FiscalCode),
		City:       in.City,
		Province:   strings.ToUpper(in.Province),
		Contacts:   models.NewContactList(in.Email, in.Phone),
		Notes:      in.Notes,
	}
	if err := s.repo.CreatePerson(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.GetPerson(ctx, id)
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.GetOrganization(ctx, id)
}

// OrganizationPatch changes only the fields that are set.
type OrganizationPatch struct {
	LegalName *string `json:"legal_name,omitempty" validate:"omitempty,max=200"`
	VATNumber *string `json:"vat_number,omitempty" validate:"omitempty,max=32"`
	City      *string `json:"city,omitempty"`
	Province  *string `json:"province,omitempty"`
	OrgType   *string `json:"org_type,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

func (p *OrganizationPatch) empty() bool {
	return p.LegalName == nil && p.VATNumber == nil && p.City == nil &&
		p.Province == nil && p.OrgType == nil && p.Notes == nil
}

func (s *Service) UpdateOrganization(ctx context.Context, id uuid.UUID, patch OrganizationPatch) (*models.Organization, error) {
	for _, f := range []*string{patch.LegalName, patch.VATNumber, patch.City, patch.Province, patch.OrgType} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	verr := &ValidationError{}
	if id == uuid.Nil {
		verr.add("organization_id", "organization is required")
	}
	if patch.empty() {
		verr.add("patch", "nothing to update")
	}
	if patch.LegalName != nil && *patch.LegalName == "" {
		verr.add("legal_name", "legal_name cannot be empty")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	if err := validateStruct(&patch); err != nil {
		return nil, err
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	var org *models.Organization
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		o, err := tx.GetOrganization(ctx, id)
		if err != nil {
			return err
		}
		apply := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		apply(&o.LegalName, patch.LegalName)
		apply(&o.VATNumber, patch.VATNumber)
		apply(&o.City, patch.City)
		apply(&o.OrgType, patch.OrgType)
		apply(&o.Notes, patch.Notes)
		if patch.Province != nil {
			o.Province = strings.ToUpper(*patch.Province)
		}
		if err := tx.UpdateOrganization(ctx, o); err != nil {
			return err
		}
		org = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// DeleteOrganization removes an organization and, through the schema, its
// affiliations. Admins only. Organizations that still have opportunities are
// kept.
func (s *Service) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	actor, _ := ActorFrom(ctx)
	if !actor.Admin {
		return fmt.Errorf("delete organization: %w", ErrForbidden)
	}
	if id == uuid.Nil {
		return invalid("organization_id", "organization is required")
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		if _, err := tx.GetOrganization(ctx, id); err != nil {
			return err
		}
		opps, err := tx.ListOpportunities(ctx, db.OpportunityFilter{OrganizationID: &id, Limit: 1})
		if err != nil {
			return err
		}
		if len(opps) > 0 {
			return fmt.Errorf("organization %s: %w", id, ErrOrganizationInUse)
		}
		return tx.DeleteOrganization(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("organization deleted", "organization_id", id, "by", actor.UserID)
	return nil
}

// RemoveAffiliation drops a referente from its organization. The person stays
// in the registry.
func (s *Service) RemoveAffiliation(ctx context.Context, affiliationID uuid.UUID) error {
	if affiliationID == uuid.Nil {
		return invalid("affiliation_id", "affiliation is required")
	}
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if err := s.repo.DeleteAffiliation(ctx, affiliationID); err != nil {
		return err
	}
	s.log.Info("affiliation removed", "affiliation_id", affiliationID)
	return nil
}
