// ABOUTME: Affiliate picker shown after choosing an organization
// ABOUTME: Loads referenti once and filters them locally
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/ufficio/crm"
)

type affiliatesMsg struct {
	list crm.AffiliateList
	err  error
}

func affiliateColumns() []table.Column {
	return []table.Column{
		{Title: "Name", Width: 28},
		{Title: "Role", Width: 18},
		{Title: "Email", Width: 28},
		{Title: "Phone", Width: 16},
	}
}

// loadAffiliates fetches every referente once; the sub-filter runs locally.
func (m Model) loadAffiliates() tea.Cmd {
	backend, orgID := m.backend, m.org.ID
	return func() tea.Msg {
		list, err := backend.ListAffiliates(context.Background(), orgID, "")
		return affiliatesMsg{list: list, err: err}
	}
}

func (m Model) handleAffiliates(msg affiliatesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		n := m.backend.Report("list referenti", msg.err, "")
		m.notice = &n
		return m, nil
	}
	if msg.list.OrganizationID != m.org.ID {
		return m, nil
	}
	m.affAll = msg.list.Rows
	m.applyAffiliateFilter()
	return m, nil
}

func (m *Model) applyAffiliateFilter() {
	m.affRows, m.affEmpty = crm.FilterAffiliates(m.affAll, m.affFilter.Value())
	rows := make([]table.Row, 0, len(m.affRows))
	for _, r := range m.affRows {
		rows = append(rows, table.Row{r.Name, r.Role, r.Email, r.Phone})
	}
	m.affTable.SetRows(rows)
	m.affTable.SetCursor(0)
}

func (m Model) handleAffiliateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewSelect
		m.notice = nil
		m.affFilter.Blur()
		m.input.Focus()
		return m, nil
	case "up":
		m.affTable.MoveUp(1)
		return m, nil
	case "down":
		m.affTable.MoveDown(1)
		return m, nil
	case "ctrl+n":
		m.openQuickAdd()
		return m, nil
	case "enter":
		i := m.affTable.Cursor()
		if i < 0 || i >= len(m.affRows) {
			return m, nil
		}
		row := m.affRows[i]
		id := row.AffiliationID
		m.selected = &Selection{
			Type:          m.org.Type,
			ID:            m.org.ID,
			Name:          m.org.DisplayName,
			AffiliationID: &id,
			ReferenteName: row.Name,
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.affFilter, cmd = m.affFilter.Update(msg)
	m.applyAffiliateFilter()
	return m, cmd
}

func (m Model) renderAffiliatesView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("REFERENTI · " + m.org.DisplayName))
	s.WriteString("\n")
	s.WriteString(m.affFilter.View())
	s.WriteString("\n\n")

	if m.affEmpty != crm.EmptyNone {
		s.WriteString(emptyStyle.Render(m.affEmpty.Message()))
	} else {
		s.WriteString(m.affTable.View())
	}
	s.WriteString("\n")
	s.WriteString(m.renderNotice())

	help := []string{
		"↑/↓: Navigate",
		"Enter: Choose",
		"Ctrl+N: New referente",
		"Esc: Back",
	}
	s.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return s.String()
}
