// ABOUTME: Lead export as CSV or Excel and the blank import template
// ABOUTME: Both formats share one column layout
package crm

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/xuri/excelize/v2"
)

// LeadTemplateHeader is the column set of the import template.
var LeadTemplateHeader = []string{
	"contact_name", "contact_email", "contact_phone", "company_name", "budget",
	"source", "channel", "utm_source", "utm_medium", "utm_campaign", "notes",
}

// LeadExportHeader adds the system columns to the template columns.
var LeadExportHeader = []string{
	"id", "status",
	"contact_name", "contact_email", "contact_phone", "company_name", "budget",
	"source", "channel", "utm_source", "utm_medium", "utm_campaign", "notes",
	"person_id", "organization_id", "created_at", "last_activity_at",
}

const maxExportRows = 10000

func leadRecord(l models.Lead) []string {
	budget := ""
	if l.Budget.Valid {
		budget = l.Budget.Decimal.StringFixed(2)
	}
	return []string{
		l.ID.String(), string(l.Status),
		l.ContactName, l.ContactEmail, l.ContactPhone, l.CompanyName, budget,
		l.Source, l.Channel, l.UTMSource, l.UTMMedium, l.UTMCampaign, l.Notes,
		idString(l.PersonID), idString(l.OrganizationID),
		l.CreatedAt.UTC().Format(time.RFC3339), l.LastActivityAt.UTC().Format(time.RFC3339),
	}
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (s *Service) exportRows(ctx context.Context, f db.LeadFilter) ([]models.Lead, error) {
	if f.Limit <= 0 || f.Limit > maxExportRows {
		f.Limit = maxExportRows
	}
	return s.ListLeads(ctx, f)
}

// ExportLeadsCSV writes the header and one row per lead. It returns the
// number of data rows written.
func (s *Service) ExportLeadsCSV(ctx context.Context, w io.Writer, f db.LeadFilter) (int, error) {
	leads, err := s.exportRows(ctx, f)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(LeadExportHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, l := range leads {
		if err := cw.Write(leadRecord(l)); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(leads), nil
}

// WriteLeadTemplate writes the blank import template: the header row only.
func WriteLeadTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LeadTemplateHeader); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ExportLeadsXLSX writes the same table as ExportLeadsCSV into a workbook
// with a single "Leads" sheet.
func (s *Service) ExportLeadsXLSX(ctx context.Context, w io.Writer, f db.LeadFilter) (int, error) {
	leads, err := s.exportRows(ctx, f)
	if err != nil {
		return 0, err
	}

	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	const sheet = "Leads"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(LeadExportHeader))
	for i, h := range LeadExportHeader {
		header[i] = h
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(LeadExportHeader))
	if err := book.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
		return 0, fmt.Errorf("failed to style header: %w", err)
	}

	for i, l := range leads {
		rec := leadRecord(l)
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		// Budget is written as a number.
		if l.Budget.Valid {
			row[6] = l.Budget.Decimal.InexactFloat64()
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := book.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(leads), nil
}
