// ABOUTME: Database schema definitions
// ABOUTME: Statements are idempotent and portable between SQLite and Postgres
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is applied statement by statement so the same list works with
// drivers that refuse multi-statement Exec.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS persons (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	fiscal_code TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	province TEXT NOT NULL DEFAULT '',
	contacts TEXT NOT NULL DEFAULT '[]',
	contact_values TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_last_name ON persons(last_name)`,

	`CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	legal_name TEXT NOT NULL,
	vat_number TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	province TEXT NOT NULL DEFAULT '',
	org_type TEXT NOT NULL DEFAULT '',
	contacts TEXT NOT NULL DEFAULT '[]',
	contact_values TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_organizations_legal_name ON organizations(legal_name)`,
	`CREATE INDEX IF NOT EXISTS idx_organizations_province ON organizations(province)`,

	`CREATE TABLE IF NOT EXISTS affiliations (
	id TEXT PRIMARY KEY,
	person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_affiliations_organization ON affiliations(organization_id)`,
	`CREATE INDEX IF NOT EXISTS idx_affiliations_person ON affiliations(person_id)`,

	`CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	person_id TEXT REFERENCES persons(id) ON DELETE SET NULL,
	organization_id TEXT REFERENCES organizations(id) ON DELETE SET NULL,
	affiliation_id TEXT REFERENCES affiliations(id) ON DELETE SET NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL DEFAULT '',
	budget NUMERIC(14,2),
	source TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL DEFAULT '',
	utm_source TEXT NOT NULL DEFAULT '',
	utm_medium TEXT NOT NULL DEFAULT '',
	utm_campaign TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'contacted', 'qualified', 'converted', 'lost')),
	notes TEXT NOT NULL DEFAULT '',
	assigned_to TEXT,
	created_by TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	last_activity_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to)`,

	`CREATE TABLE IF NOT EXISTS lead_activities (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	kind TEXT NOT NULL CHECK (kind IN ('call', 'email', 'meeting', 'note', 'status')),
	content TEXT NOT NULL,
	created_by TEXT,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_lead_activities_lead ON lead_activities(lead_id)`,

	`CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	lead_id TEXT REFERENCES leads(id) ON DELETE SET NULL,
	person_id TEXT REFERENCES persons(id) ON DELETE SET NULL,
	organization_id TEXT REFERENCES organizations(id) ON DELETE SET NULL,
	affiliation_id TEXT REFERENCES affiliations(id) ON DELETE SET NULL,
	stage TEXT NOT NULL CHECK (stage IN ('discovery', 'proposal', 'negotiation', 'closed_won', 'closed_lost')),
	probability INTEGER CHECK (probability BETWEEN 0 AND 100),
	expected_revenue NUMERIC(14,2),
	expected_close_date DATE,
	closed_at TIMESTAMP,
	description TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	assigned_to TEXT,
	created_by TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	CHECK ((stage IN ('closed_won', 'closed_lost')) = (closed_at IS NOT NULL))
)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_stage ON opportunities(stage)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_lead ON opportunities(lead_id)`,

	`CREATE TABLE IF NOT EXISTS quotes (
	id TEXT PRIMARY KEY,
	number TEXT NOT NULL,
	client_type TEXT NOT NULL CHECK (client_type IN ('person', 'organization')),
	person_id TEXT REFERENCES persons(id) ON DELETE SET NULL,
	organization_id TEXT REFERENCES organizations(id) ON DELETE SET NULL,
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'sent', 'accepted', 'rejected', 'expired')),
	total NUMERIC(14,2) NOT NULL DEFAULT 0,
	valid_until DATE,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS opportunity_quotes (
	id TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
	quote_id TEXT NOT NULL UNIQUE REFERENCES quotes(id) ON DELETE CASCADE,
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunity_quotes_opportunity ON opportunity_quotes(opportunity_id)`,
}

// InitSchema applies every schema statement. Running it twice is harmless.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
