// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Summarizes lead intake and the opportunity pipeline by stage
package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/ufficio/models"
	"github.com/shopspring/decimal"
)

// StaleAfter is how long an open lead may go without activity before the
// dashboard flags it.
const StaleAfter = 14 * 24 * time.Hour

type DashboardStats struct {
	PipelineByStage map[models.Stage]PipelineStageStats
	LeadsByStatus   map[models.LeadStatus]int

	TotalLeads         int
	TotalOpportunities int

	StaleLeads []StaleLead
}

type PipelineStageStats struct {
	Stage   models.Stage
	Count   int
	Revenue decimal.Decimal
}

type StaleLead struct {
	Title     string
	DaysSince int
}

func GenerateDashboardStats(leads []models.Lead, opps []models.Opportunity, now time.Time) *DashboardStats {
	stats := &DashboardStats{
		PipelineByStage:    make(map[models.Stage]PipelineStageStats),
		LeadsByStatus:      make(map[models.LeadStatus]int),
		TotalLeads:         len(leads),
		TotalOpportunities: len(opps),
	}

	for _, o := range opps {
		ps := stats.PipelineByStage[o.Stage]
		ps.Stage = o.Stage
		ps.Count++
		if o.ExpectedRevenue.Valid {
			ps.Revenue = ps.Revenue.Add(o.ExpectedRevenue.Decimal)
		}
		stats.PipelineByStage[o.Stage] = ps
	}

	for _, l := range leads {
		stats.LeadsByStatus[l.Status]++
		if l.Status.IsTerminal() {
			continue
		}
		if since := now.Sub(l.LastActivityAt); since > StaleAfter {
			stats.StaleLeads = append(stats.StaleLeads, StaleLead{
				Title:     l.Title(),
				DaysSince: int(since.Hours() / 24),
			})
		}
	}
	return stats
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  UFFICIO PIPELINE\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("OPPORTUNITIES\n")
	renderPipeline(&out, stats.PipelineByStage)
	out.WriteString("\n")

	out.WriteString("LEADS\n")
	for _, st := range []models.LeadStatus{models.LeadNew, models.LeadContacted, models.LeadQualified, models.LeadConverted, models.LeadLost} {
		if n := stats.LeadsByStatus[st]; n > 0 {
			out.WriteString(fmt.Sprintf("  %-13s %d\n", st, n))
		}
	}
	out.WriteString(fmt.Sprintf("\n  %d leads  %d opportunities\n", stats.TotalLeads, stats.TotalOpportunities))

	if len(stats.StaleLeads) > 0 {
		out.WriteString("\nNEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d open leads with no activity in %d+ days\n", len(stats.StaleLeads), int(StaleAfter.Hours()/24)))
	}
	return out.String()
}

func renderPipeline(out *strings.Builder, pipeline map[models.Stage]PipelineStageStats) {
	maxCount := 0
	for _, ps := range pipeline {
		if ps.Count > maxCount {
			maxCount = ps.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, stage := range models.Stages {
		ps, ok := pipeline[stage]
		if !ok {
			continue
		}
		barLength := (ps.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		out.WriteString(fmt.Sprintf("  %-13s %s  %2d (€%s)\n", stage, bar, ps.Count, ps.Revenue.StringFixed(0)))
	}
}
