// ABOUTME: Lead and lead activity models
// ABOUTME: Captures inbound interest, attribution metadata and lifecycle status
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadLost      LeadStatus = "lost"
)

var leadStatuses = []LeadStatus{LeadNew, LeadContacted, LeadQualified, LeadConverted, LeadLost}

func (s LeadStatus) Valid() bool {
	for _, v := range leadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal is true for converted and lost. The row stays around either way.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadConverted || s == LeadLost
}

func ParseLeadStatus(s string) (LeadStatus, error) {
	st := LeadStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid lead status: %s (valid: new, contacted, qualified, converted, lost)", s)
	}
	return st, nil
}

type Lead struct {
	ID             uuid.UUID  `json:"id"`
	PersonID       *uuid.UUID `json:"person_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	AffiliationID  *uuid.UUID `json:"affiliation_id,omitempty"`

	// Contact snapshot as captured by the intake form.
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`

	Budget      decimal.NullDecimal `json:"budget"`
	Source      string              `json:"source,omitempty"`
	Channel     string              `json:"channel,omitempty"`
	UTMSource   string              `json:"utm_source,omitempty"`
	UTMMedium   string              `json:"utm_medium,omitempty"`
	UTMCampaign string              `json:"utm_campaign,omitempty"`
	Status      LeadStatus          `json:"status"`
	Notes       string              `json:"notes,omitempty"`

	AssignedTo     *uuid.UUID `json:"assigned_to,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// ClientType reports who the lead belongs to. A lead with neither reference
// is a bare contact snapshot and reports an empty type.
func (l *Lead) ClientType() ClientType {
	switch {
	case l.OrganizationID != nil:
		return ClientOrganization
	case l.PersonID != nil:
		return ClientPerson
	}
	return ""
}

// Title is the best human label available for the lead.
func (l *Lead) Title() string {
	if l.CompanyName != "" {
		return l.CompanyName
	}
	if l.ContactName != "" {
		return l.ContactName
	}
	return l.ContactEmail
}

type ActivityKind string

const (
	ActivityCall    ActivityKind = "call"
	ActivityEmail   ActivityKind = "email"
	ActivityMeeting ActivityKind = "meeting"
	ActivityNote    ActivityKind = "note"
	ActivityStatus  ActivityKind = "status"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityCall, ActivityEmail, ActivityMeeting, ActivityNote, ActivityStatus:
		return true
	}
	return false
}

type LeadActivity struct {
	ID        uuid.UUID    `json:"id"`
	LeadID    uuid.UUID    `json:"lead_id"`
	Kind      ActivityKind `json:"kind"`
	Content   string       `json:"content"`
	CreatedBy *uuid.UUID   `json:"created_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
