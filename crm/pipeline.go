// ABOUTME: Lead conversion, manual prospects and opportunity stage transitions
// ABOUTME: Conversion writes the opportunity and the lead status in one transaction, in order
package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
)

// ConvertLead promotes a lead into a discovery opportunity and marks the lead
// converted. The opportunity is written first; the lead is only updated once
// that succeeded.
func (s *Service) ConvertLead(ctx context.Context, leadID uuid.UUID) (*models.Opportunity, error) {
	if leadID == uuid.Nil {
		return nil, invalid("lead_id", "lead is required")
	}
	actor, _ := ActorFrom(ctx)

	ctx, cancel := s.begin(ctx)
	defer cancel()

	const op = "convert lead"
	var opp *models.Opportunity
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		lead, err := tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status == models.LeadConverted {
			return fmt.Errorf("lead %s: %w", leadID, ErrLeadAlreadyConverted)
		}

		name, err := opportunityName(ctx, tx, lead)
		if err != nil {
			return err
		}

		o := &models.Opportunity{
			Name:            name,
			LeadID:          &lead.ID,
			PersonID:        lead.PersonID,
			OrganizationID:  lead.OrganizationID,
			AffiliationID:   lead.AffiliationID,
			Stage:           models.StageDiscovery,
			ExpectedRevenue: lead.Budget,
			Notes:           lead.Notes,
			AssignedTo:      lead.AssignedTo,
			CreatedBy:       actor.stamp(),
		}
		if o.AssignedTo == nil {
			o.AssignedTo = actor.stamp()
		}
		if err := tx.CreateOpportunity(ctx, o); err != nil {
			return &StepError{Op: op, Step: 1, Name: "create opportunity", Err: err}
		}

		previous := lead.Status
		lead.Status = models.LeadConverted
		lead.LastActivityAt = s.now()
		if err := tx.UpdateLead(ctx, lead); err != nil {
			return &StepError{Op: op, Step: 2, Name: "mark lead converted", Err: err}
		}

		activity := &models.LeadActivity{
			LeadID:    lead.ID,
			Kind:      models.ActivityStatus,
			Content:   fmt.Sprintf("%s -> %s: opportunity %s", previous, models.LeadConverted, o.ID),
			CreatedBy: actor.stamp(),
		}
		if err := tx.CreateLeadActivity(ctx, activity); err != nil {
			return &StepError{Op: op, Step: 3, Name: "log conversion", Err: err}
		}

		opp = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("lead converted", "lead_id", leadID, "opportunity_id", opp.ID)
	return opp, nil
}

// opportunityName prefers the lead's own snapshot and falls back to the
// referenced client's display name.
func opportunityName(ctx context.Context, repo db.Repository, lead *models.Lead) (string, error) {
	if title := strings.TrimSpace(lead.Title()); title != "" {
		return title, nil
	}
	if lead.OrganizationID != nil {
		org, err := repo.GetOrganization(ctx, *lead.OrganizationID)
		if err != nil {
			return "", err
		}
		return org.DisplayName(), nil
	}
	if lead.PersonID != nil {
		p, err := repo.GetPerson(ctx, *lead.PersonID)
		if err != nil {
			return "", err
		}
		return p.DisplayName(), nil
	}
	return "Opportunity " + lead.ID.String()[:8], nil
}

// ProspectInput is the manual opportunity form.
type ProspectInput struct {
	ClientType        models.ClientType   `json:"client_type"`
	PersonID          *uuid.UUID          `json:"person_id,omitempty"`
	OrganizationID    *uuid.UUID          `json:"organization_id,omitempty"`
	AffiliationID     *uuid.UUID          `json:"affiliation_id,omitempty"`
	Name              string              `json:"name,omitempty"`
	ExpectedRevenue   decimal.NullDecimal `json:"expected_revenue"`
	ExpectedCloseDate *time.Time          `json:"expected_close_date,omitempty"`
	Description       string              `json:"description,omitempty"`
	Notes             string              `json:"notes,omitempty"`
}

func (in ProspectInput) validate() error {
	verr := &ValidationError{}
	switch in.ClientType {
	case models.ClientPerson:
		if in.PersonID == nil || *in.PersonID == uuid.Nil {
			verr.add("person_id", "person is required")
		}
	case models.ClientOrganization:
		if in.OrganizationID == nil || *in.OrganizationID == uuid.Nil {
			verr.add("organization_id", "organization is required")
		}
		if in.AffiliationID == nil || *in.AffiliationID == uuid.Nil {
			verr.add("affiliation_id", "referente is required")
		}
	default:
		verr.add("client_type", "client_type must be person or organization")
	}
	if in.ExpectedRevenue.Valid && in.ExpectedRevenue.Decimal.IsNegative() {
		verr.add("expected_revenue", "expected_revenue cannot be negative")
	}
	return verr.orNil()
}

// CreateProspect opens a discovery opportunity without a lead. A blank name
// takes the client's display name.
func (s *Service) CreateProspect(ctx context.Context, in ProspectInput) (*models.Opportunity, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.validate(); err != nil {
		return nil, err
	}
	actor, _ := ActorFrom(ctx)

	ctx, cancel := s.begin(ctx)
	defer cancel()

	var opp *models.Opportunity
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		o := &models.Opportunity{
			Name:              in.Name,
			Stage:             models.StageDiscovery,
			ExpectedRevenue:   in.ExpectedRevenue,
			ExpectedCloseDate: in.ExpectedCloseDate,
			Description:       in.Description,
			Notes:             in.Notes,
			AssignedTo:        actor.stamp(),
			CreatedBy:         actor.stamp(),
		}
		probability := models.DefaultProspectProbability
		o.Probability = &probability

		if in.ClientType == models.ClientPerson {
			p, err := tx.GetPerson(ctx, *in.PersonID)
			if err != nil {
				return err
			}
			o.PersonID = &p.ID
			if o.Name == "" {
				o.Name = p.DisplayName()
			}
		} else {
			org, err := tx.GetOrganization(ctx, *in.OrganizationID)
			if err != nil {
				return err
			}
			aff, err := tx.GetAffiliation(ctx, *in.AffiliationID)
			if err != nil {
				return err
			}
			if aff.OrganizationID != org.ID {
				return invalid("affiliation_id", "referente does not belong to the selected organization")
			}
			o.OrganizationID = &org.ID
			o.AffiliationID = &aff.ID
			o.PersonID = &aff.PersonID
			if o.Name == "" {
				o.Name = org.DisplayName()
			}
		}

		if err := tx.CreateOpportunity(ctx, o); err != nil {
			return err
		}
		opp = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("prospect created", "opportunity_id", opp.ID, "client_type", in.ClientType)
	return opp, nil
}

// Outcome is the message shown after a stage change.
type Outcome string

const (
	OutcomeClientAcquired Outcome = "client acquired"
	OutcomeArchived       Outcome = "archived"
	OutcomeStatusUpdated  Outcome = "status updated"
)

func outcomeFor(stage models.Stage) Outcome {
	switch stage {
	case models.StageClosedWon:
		return OutcomeClientAcquired
	case models.StageClosedLost:
		return OutcomeArchived
	}
	return OutcomeStatusUpdated
}

// TransitionStage moves an opportunity along the pipeline. Closing stamps
// closed_at; reopening clears it.
func (s *Service) TransitionStage(ctx context.Context, oppID uuid.UUID, to models.Stage) (*models.Opportunity, Outcome, error) {
	if oppID == uuid.Nil {
		return nil, "", invalid("opportunity_id", "opportunity is required")
	}
	if !to.Valid() {
		return nil, "", invalid("stage", fmt.Sprintf("unknown stage %q", to))
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	var opp *models.Opportunity
	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		o, err := tx.GetOpportunity(ctx, oppID)
		if err != nil {
			return err
		}
		if o.Stage == to {
			opp = o
			return nil
		}
		if err := o.ApplyStage(to, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateOpportunity(ctx, o); err != nil {
			return err
		}
		opp = o
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	outcome := outcomeFor(opp.Stage)
	s.log.Info("opportunity stage changed", "opportunity_id", oppID, "stage", opp.Stage, "outcome", outcome)
	return opp, outcome, nil
}

// DeleteOpportunity removes an opportunity and its quote links. Admins only.
func (s *Service) DeleteOpportunity(ctx context.Context, oppID uuid.UUID) error {
	actor, _ := ActorFrom(ctx)
	if !actor.Admin {
		return fmt.Errorf("delete opportunity: %w", ErrForbidden)
	}

	ctx, cancel := s.begin(ctx)
	defer cancel()

	err := s.repo.WithinTx(ctx, func(tx db.Repository) error {
		if err := tx.DeleteOpportunityQuotes(ctx, oppID); err != nil {
			return &StepError{Op: "delete opportunity", Step: 1, Name: "unlink quotes", Err: err}
		}
		if err := tx.DeleteOpportunity(ctx, oppID); err != nil {
			return &StepError{Op: "delete opportunity", Step: 2, Name: "delete opportunity", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("opportunity deleted", "opportunity_id", oppID, "by", actor.UserID)
	return nil
}

func (s *Service) GetOpportunity(ctx context.Context, oppID uuid.UUID) (*models.Opportunity, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.GetOpportunity(ctx, oppID)
}

func (s *Service) ListOpportunities(ctx context.Context, f db.OpportunityFilter) ([]models.Opportunity, error) {
	if f.Stage != "" && !f.Stage.Valid() {
		return nil, invalid("stage", fmt.Sprintf("unknown stage %q", f.Stage))
	}
	ctx, cancel := s.begin(ctx)
	defer cancel()
	return s.repo.ListOpportunities(ctx, f)
}
