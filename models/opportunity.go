// ABOUTME: Opportunity model and pipeline stage state machine
// ABOUTME: Keeps ClosedAt in step with the stage on every transition
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Stage string

const (
	StageDiscovery   Stage = "discovery"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageClosedWon   Stage = "closed_won"
	StageClosedLost  Stage = "closed_lost"
)

// DefaultProspectProbability is used for opportunities created by hand.
const DefaultProspectProbability = 50

// Stages lists the pipeline in display order.
var Stages = []Stage{StageDiscovery, StageProposal, StageNegotiation, StageClosedWon, StageClosedLost}

var ErrInvalidTransition = errors.New("invalid stage transition")

// stageTransitions lists, for every stage, where it may go next.
// Open stages move freely among themselves (backward moves included) and may
// close either way. A closed opportunity can only be reopened; flipping
// won<->lost directly is refused.
var stageTransitions = map[Stage]map[Stage]bool{
	StageDiscovery:   {StageProposal: true, StageNegotiation: true, StageClosedWon: true, StageClosedLost: true},
	StageProposal:    {StageDiscovery: true, StageNegotiation: true, StageClosedWon: true, StageClosedLost: true},
	StageNegotiation: {StageDiscovery: true, StageProposal: true, StageClosedWon: true, StageClosedLost: true},
	StageClosedWon:   {StageDiscovery: true, StageProposal: true, StageNegotiation: true},
	StageClosedLost:  {StageDiscovery: true, StageProposal: true, StageNegotiation: true},
}

func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

func (s Stage) IsClosed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid stage: %s (valid: discovery, proposal, negotiation, closed_won, closed_lost)", s)
	}
	return st, nil
}

// CanTransition reports whether from -> to is allowed. Staying put is always
// allowed.
func CanTransition(from, to Stage) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return stageTransitions[from][to]
}

type Opportunity struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	PersonID       *uuid.UUID `json:"person_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	AffiliationID  *uuid.UUID `json:"affiliation_id,omitempty"`

	Stage             Stage               `json:"stage"`
	Probability       *int                `json:"probability,omitempty"`
	ExpectedRevenue   decimal.NullDecimal `json:"expected_revenue"`
	ExpectedCloseDate *time.Time          `json:"expected_close_date,omitempty"`
	ClosedAt          *time.Time          `json:"closed_at,omitempty"`
	Description       string              `json:"description,omitempty"`
	Notes             string              `json:"notes,omitempty"`

	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ClientType resolves who the opportunity is for.
func (o *Opportunity) ClientType() ClientType {
	switch {
	case o.OrganizationID != nil:
		return ClientOrganization
	case o.PersonID != nil:
		return ClientPerson
	}
	return ""
}

// ClientID is the person or organization id matching ClientType.
func (o *Opportunity) ClientID() *uuid.UUID {
	if o.OrganizationID != nil {
		return o.OrganizationID
	}
	return o.PersonID
}

// ApplyStage validates the transition and moves the opportunity to the target
// stage. Closing stamps ClosedAt; any open stage clears it.
func (o *Opportunity) ApplyStage(to Stage, now time.Time) error {
	if !CanTransition(o.Stage, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Stage, to)
	}

	if to.IsClosed() {
		if o.Stage != to || o.ClosedAt == nil {
			t := now
			o.ClosedAt = &t
		}
	} else {
		o.ClosedAt = nil
	}

	o.Stage = to
	o.UpdatedAt = now
	return nil
}
