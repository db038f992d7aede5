// ABOUTME: Tests for CRM data models
// ABOUTME: Covers the stage machine, quote summary and contact list helpers
package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageDiscovery, StageProposal, true},
		{StageNegotiation, StageDiscovery, true},
		{StageProposal, StageClosedWon, true},
		{StageDiscovery, StageClosedLost, true},
		{StageClosedWon, StageNegotiation, true},
		{StageClosedLost, StageDiscovery, true},
		{StageClosedWon, StageClosedLost, false},
		{StageClosedLost, StageClosedWon, false},
		{StageClosedWon, StageClosedWon, true},
		{StageDiscovery, Stage("won"), false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestApplyStageClosedAt(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	o := &Opportunity{ID: uuid.New(), Stage: StageDiscovery}

	if err := o.ApplyStage(StageClosedWon, now); err != nil {
		t.Fatalf("close won: %v", err)
	}
	if o.ClosedAt == nil || !o.ClosedAt.Equal(now) {
		t.Fatalf("expected closed_at %v, got %v", now, o.ClosedAt)
	}

	// Re-applying the same closed stage keeps the original close time.
	if err := o.ApplyStage(StageClosedWon, now.Add(time.Hour)); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if !o.ClosedAt.Equal(now) {
		t.Errorf("closed_at moved to %v", o.ClosedAt)
	}

	err := o.ApplyStage(StageClosedLost, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if o.Stage != StageClosedWon {
		t.Errorf("refused transition changed stage to %s", o.Stage)
	}

	if err := o.ApplyStage(StageNegotiation, now); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if o.ClosedAt != nil {
		t.Errorf("reopened opportunity still has closed_at %v", o.ClosedAt)
	}
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages {
		if _, err := ParseStage(string(s)); err != nil {
			t.Errorf("ParseStage(%s): %v", s, err)
		}
	}
	if _, err := ParseStage("won"); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestOpportunityClient(t *testing.T) {
	person, org := uuid.New(), uuid.New()

	o := &Opportunity{PersonID: &person}
	if o.ClientType() != ClientPerson || *o.ClientID() != person {
		t.Errorf("person opportunity resolved to %s %v", o.ClientType(), o.ClientID())
	}

	o.OrganizationID = &org
	if o.ClientType() != ClientOrganization || *o.ClientID() != org {
		t.Errorf("organization opportunity resolved to %s %v", o.ClientType(), o.ClientID())
	}

	if (&Opportunity{}).ClientType() != "" {
		t.Error("expected empty client type")
	}
}

func TestSummarizeQuotes(t *testing.T) {
	quotes := []Quote{
		{Total: decimal.RequireFromString("1000.50"), Status: QuoteAccepted},
		{Total: decimal.RequireFromString("250"), Status: QuoteSent},
		{Total: decimal.RequireFromString("99.50"), Status: QuoteAccepted},
	}

	s := SummarizeQuotes(quotes)
	if s.Count != 3 || s.Accepted != 2 {
		t.Errorf("expected 3 quotes, 2 accepted; got %d, %d", s.Count, s.Accepted)
	}
	if !s.Total.Equal(decimal.NewFromInt(1350)) {
		t.Errorf("expected total 1350, got %s", s.Total)
	}

	again := SummarizeQuotes(quotes)
	if again.Count != s.Count || !again.Total.Equal(s.Total) {
		t.Error("summary changed between calls")
	}

	empty := SummarizeQuotes(nil)
	if empty.Count != 0 || !empty.Total.IsZero() {
		t.Errorf("expected empty summary, got %+v", empty)
	}
}

func TestLeadStatus(t *testing.T) {
	if !LeadConverted.IsTerminal() || !LeadLost.IsTerminal() {
		t.Error("converted and lost are terminal")
	}
	if LeadQualified.IsTerminal() {
		t.Error("qualified is not terminal")
	}
	if _, err := ParseLeadStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestLeadTitle(t *testing.T) {
	l := &Lead{ContactEmail: "anna@example.com"}
	if l.Title() != "anna@example.com" {
		t.Errorf("got %q", l.Title())
	}
	l.ContactName = "Anna Bianchi"
	if l.Title() != "Anna Bianchi" {
		t.Errorf("got %q", l.Title())
	}
	l.CompanyName = "Bianchi Srl"
	if l.Title() != "Bianchi Srl" {
		t.Errorf("got %q", l.Title())
	}
}

func TestContactList(t *testing.T) {
	l := NewContactList(" mario@rossi.it ", "")
	if len(l) != 1 || l.PrimaryEmail() != "mario@rossi.it" || l.PrimaryPhone() != "" {
		t.Fatalf("unexpected contact list %+v", l)
	}

	l = append(l, ContactMethod{Kind: ContactMobile, Value: "+39 333 1234567"})
	if l.PrimaryPhone() != "+39 333 1234567" {
		t.Errorf("expected mobile as primary phone, got %q", l.PrimaryPhone())
	}
	if err := l.Validate(); err != nil {
		t.Errorf("valid list: %v", err)
	}

	var decoded ContactList
	err := json.Unmarshal([]byte(`[{"kind":"telex","value":"123"}]`), &decoded)
	if !errors.Is(err, ErrInvalidContact) {
		t.Errorf("expected ErrInvalidContact, got %v", err)
	}
}

func TestParseClientType(t *testing.T) {
	tests := map[string]ClientType{
		"person":            ClientPerson,
		"persona_fisica":    ClientPerson,
		" Organization ":    ClientOrganization,
		"persona_giuridica": ClientOrganization,
	}
	for in, want := range tests {
		got, err := ParseClientType(in)
		if err != nil || got != want {
			t.Errorf("ParseClientType(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseClientType("robot"); err == nil {
		t.Error("expected error for unknown client type")
	}
}
