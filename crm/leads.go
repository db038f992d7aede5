// ABOUTME: Lead intake, status lifecycle and activity log
// ABOUTME: Conversion is the only way a lead becomes converted
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
)

type LeadInput struct {
	PersonID       *uuid.UUID `json:"person_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	AffiliationID  *uuid.UUID `json:"affiliation_id,omitempty"`

	ContactName  string `json:"contact_name,omitempty" validate:"max=200"`
	ContactEmail string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone string `json:"contact_phone,omitempty"`
	CompanyName  string `json:"company_name,omitempty" validate:"max=200"`

	Budget      decimal.NullDecimal `json:"budget"`
	Source      string              `json:"source,omitempty"`
	Channel     string              `json:"channel,omitempty"`
	UTMSource   string              `json:"utm_source,omitempty"`
	UTMMedium   string              `json:"utm_medium,omitempty"`
	UTMCampaign string              `json:"utm_campaign,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	AssignedTo  *uuid.UUID          `json:"assigned_to,omitempty"`
}

func (in *LeadInput) trim() {
	for _, f := range []*string{&in.ContactName, &in.ContactEmail, &in.ContactPhone, &in.CompanyName,
		&in.Source, &in.Channel, &in.UTMSource, &in.UTMMedium, &in.UTMCampaign} {
		*f = strings.TrimSpace(*f)
	}
}

func (in *LeadInput) validate() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	verr := &ValidationError{}
	if in.ContactName == "" && in.ContactEmail == "" && in.ContactPhone == "" &&
		in.CompanyName == "" && in.PersonID == nil && in.OrganizationID == nil {
		verr.add("contact", "a contact name, email, phone, company or client is required")
	}
	if in.Budget.Valid && in.Budget.Decimal.IsNegative() {
		verr.add("budget", "budget cannot be negative")
	}
	if in.AffiliationID != nil && in.OrganizationID == nil {
		verr.add("organization_id", "organization is required when a referente is given")
	}
	return verr.orNil()
}

// CreateLead records a new lead for the acting user. When the lead names no
// person but its email belongs to one on file, the lead is linked to it.
func (s *Service) CreateLead(ctx context.Context, in LeadInput) (*models.Lead, error) {
	in.trim()
	if err := in.validate(); err != nil {
		return nil, err
	}
	actor, _ := ActorFrom(ctx)

	ctx, cancel := s.begin(ctx)
	defer cancel()

	lead := &models.Lead{
		PersonID:       in.PersonID,
		OrganizationID: in.OrganizationID,
		AffiliationID:  in.AffiliationID,
		ContactName:    in.ContactName,
		ContactEmail:   in.ContactEmail,
		ContactPhone:   in.ContactPhone,
		CompanyName:    in.CompanyName,
		Budget:         in.Budget,
		Source:         in.Source,
		Channel:        in.Channel,
		UTMSource:      in.UTMSource,
		UTMMedium:      in.UTMMedium,
		UTMCampaign:    in.UTMCampaign,
		Notes:          in.Notes,
		Status:         models.LeadNew,
		AssignedTo:     in.AssignedTo,
		CreatedBy:      actor.stamp(),
		LastActivityAt: s.now(),
	}
	if lead.AssignedTo == nil {
		lead.AssignedTo = actor.stamp()
	}

	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		if lead.PersonID != nil {
			if _, err := tx.GetPerson(ctx, *lead.PersonID); err != nil {
				return err
			}
		} else if lead.ContactEmail != "" {
			p, found, err := NewPersonMatcher(tx).FindMatch(ctx, lead.ContactEmail)
			if err != nil {
				return err
			}
			if found {
				lead.PersonID = &p.ID
			}
		}
		if lead.OrganizationID != nil {
			if _, err := tx.GetOrganization(ctx, *lead.OrganizationID); err != nil {
				return err
			}
		}
		if lead.AffiliationID != nil {
			aff, err := tx.GetAffiliation(ctx, *lead.AffiliationID)
			if err != nil {
				return err
			}
			if aff.OrganizationID != *lead.OrganizationID {
				return invalid("affiliation_id", "referente does not belong to the selected organization")
			}
		}
		return tx.CreateLead(ctx, lead)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("lead created", "lead_id", lead.ID, "source", lead.Source)
	return lead, nil
}

// UpdateLeadStatus moves a lead between new, contacted, qualified and lost.
func (s *Service) UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status models.LeadStatus) (*models.Lead, error) {
	if leadID == uuid.Nil {
		return nil, invalid("lead_id", "lead is required")
	}
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	if status == models.LeadConverted {
		return nil, invalid("status", "use lead conversion to mark a lead converted")
	}
	actor, _ := ActorFrom(ctx)

	ctx, cancel := s.begin(ctx)
	defer cancel()

	var lead *models.Lead
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		l, err := tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if l.Status == models.LeadConverted {
			return fmt.Errorf("lead %s: %w", leadID, ErrLeadAlreadyConverted)
		}
		if l.Status == status {
			lead = l
			return nil
		}

		previous := l.Status
		l.Status = status
		l.LastActivityAt = s.now()
		if err := tx.UpdateLead(ctx, l); err != nil {
			return err
		}
		if err := tx.CreateLeadActivity(ctx, &models.LeadActivity{
			LeadID:    l.ID,
			Kind:      models.ActivityStatus,
			Content:   fmt.Sprintf("%s -> %s", previous, status),
			CreatedBy: actor.stamp(),
		}); err != nil {
			return err
		}
		lead = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// LogLeadActivity appends to the lead's activity log and bumps its last
// activity time.
func (s *Service) LogLeadActivity(ctx context.Context, leadID uuid.UUID, kind models.ActivityKind, content string) (*models.LeadActivity, error) {
	content = strings.TrimSpace(content)
	verr := &ValidationError{}
	if leadID == uuid.Nil {
		verr.add("lead_id", "lead is required")
	}
	if !kind.Valid() || kind == models.ActivityStatus {
		verr.add("kind", "kind must be one of: call, email, meeting, note")
	}
	if content == "" {
		verr.add("content", "content is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	actor, _ := ActorFrom(ctx)

	ctx, cancel := s.begin(ctx)
	defer cancel()

	activity := &models.LeadActivity{LeadID: leadID, Kind: kind, Content: content, CreatedBy: actor.stamp()}
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		lead, err := tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if err := tx.CreateLeadActivity(ctx, activity); err != nil {
			return err
		}
		lead.LastActivityAt = activity.CreatedAt
		return tx.UpdateLead(ctx, lead)
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *Service) GetLead(ctx context.Context, leadID uuid.UUID) (*models.Lead, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.GetLead(ctx, leadID)
}

func (s *Service) LeadActivities(ctx context.Context, leadID uuid.UUID) ([]models.LeadActivity, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.ListLeadActivities(ctx, leadID)
}

func (s *Service) ListLeads(ctx context.Context, f db.LeadFilter) ([]models.Lead, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.ListLeads(ctx, f)
}
