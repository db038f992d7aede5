// ABOUTME: Client registry models: persons, organizations and affiliations
// ABOUTME: Defines the ContactMethod value object shared by both entity kinds
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContactKind tags a ContactMethod.
type ContactKind string

const (
	ContactEmail   ContactKind = "email"
	ContactPhone   ContactKind = "phone"
	ContactMobile  ContactKind = "mobile"
	ContactFax     ContactKind = "fax"
	ContactPEC     ContactKind = "pec"
	ContactWebsite ContactKind = "website"
)

var ErrInvalidContact = errors.New("invalid contact method")

// Valid reports whether k is one of the known contact kinds.
func (k ContactKind) Valid() bool {
	switch k {
	case ContactEmail, ContactPhone, ContactMobile, ContactFax, ContactPEC, ContactWebsite:
		return true
	}
	return false
}

// IsPhone reports whether k can be dialled.
func (k ContactKind) IsPhone() bool {
	return k == ContactPhone || k == ContactMobile
}

// ContactMethod is one way of reaching a person or organization.
type ContactMethod struct {
	Kind  ContactKind `json:"kind"`
	Value string      `json:"value"`
}

func (c ContactMethod) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidContact, c.Kind)
	}
	if strings.TrimSpace(c.Value) == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidContact, c.Kind)
	}
	return nil
}

// UnmarshalJSON rejects unknown kinds so bad rows never reach callers.
func (c *ContactMethod) UnmarshalJSON(data []byte) error {
	type raw ContactMethod
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded := ContactMethod(r)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*c = decoded
	return nil
}

// ContactList is the contacts column of persons and organizations.
type ContactList []ContactMethod

func (l ContactList) Validate() error {
	for _, c := range l {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// First returns the value of the first contact whose kind matches.
func (l ContactList) First(match func(ContactKind) bool) string {
	for _, c := range l {
		if match(c.Kind) {
			return c.Value
		}
	}
	return ""
}

// PrimaryEmail is the first email contact.
func (l ContactList) PrimaryEmail() string {
	return l.First(func(k ContactKind) bool { return k == ContactEmail })
}

// PrimaryPhone is the first phone or mobile contact.
func (l ContactList) PrimaryPhone() string {
	return l.First(ContactKind.IsPhone)
}

// NewContactList builds a contact list from optional email and phone values.
func NewContactList(email, phone string) ContactList {
	var l ContactList
	if email = strings.TrimSpace(email); email != "" {
		l = append(l, ContactMethod{Kind: ContactEmail, Value: email})
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		l = append(l, ContactMethod{Kind: ContactPhone, Value: phone})
	}
	return l
}

// ClientType says whether a lead, opportunity or quote belongs to a person or
// to an organization.
type ClientType string

const (
	ClientPerson       ClientType = "person"
	ClientOrganization ClientType = "organization"
)

func (t ClientType) Valid() bool {
	return t == ClientPerson || t == ClientOrganization
}

// ParseClientType accepts the canonical names plus the Italian ones used by
// the quote builder.
func ParseClientType(s string) (ClientType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person", "persona", "persona_fisica":
		return ClientPerson, nil
	case "organization", "company", "persona_giuridica":
		return ClientOrganization, nil
	}
	return "", fmt.Errorf("invalid client type: %q", s)
}

type Person struct {
	ID         uuid.UUID   `json:"id"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	FiscalCode string      `json:"fiscal_code,omitempty"`
	Address    string      `json:"address,omitempty"`
	City       string      `json:"city,omitempty"`
	Province   string      `json:"province,omitempty"`
	Contacts   ContactList `json:"contacts"`
	Notes      string      `json:"notes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (p *Person) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Organization struct {
	ID        uuid.UUID   `json:"id"`
	LegalName string      `json:"legal_name"`
	VATNumber string      `json:"vat_number,omitempty"`
	Address   string      `json:"address,omitempty"`
	City      string      `json:"city,omitempty"`
	Province  string      `json:"province,omitempty"`
	OrgType   string      `json:"org_type,omitempty"`
	Contacts  ContactList `json:"contacts"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (o *Organization) DisplayName() string {
	return strings.TrimSpace(o.LegalName)
}

// Affiliation links a person to an organization with a free-text role.
type Affiliation struct {
	ID             uuid.UUID `json:"id"`
	PersonID       uuid.UUID `json:"person_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
