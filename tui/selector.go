// ABOUTME: Debounced entity search for the client picker
// ABOUTME: Only the newest lookup's result reaches the table
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
)

// debounceMsg fires once the input has been quiet for the debounce window.
// Only the tick carrying the current sequence number starts a lookup.
type debounceMsg struct{ seq int }

// searchResultMsg carries the sequence number of the lookup that produced it;
// results for an older sequence are dropped.
type searchResultMsg struct {
	seq int
	res crm.SearchResult
	err error
}

type facetsMsg struct {
	facets crm.Facets
	err    error
}

func entityColumns(t models.ClientType) []table.Column {
	if t == models.ClientPerson {
		return []table.Column{
			{Title: "Name", Width: 28},
			{Title: "Tax code", Width: 18},
			{Title: "City", Width: 16},
			{Title: "Email", Width: 28},
		}
	}
	return []table.Column{
		{Title: "Name", Width: 32},
		{Title: "Province", Width: 9},
		{Title: "Type", Width: 10},
		{Title: "City", Width: 20},
	}
}

func (m Model) query() crm.EntityQuery {
	q := crm.EntityQuery{Type: m.entityType, Text: m.input.Value()}
	if m.province >= 0 && m.province < len(m.facets.Provinces) {
		q.Province = m.facets.Provinces[m.province]
	}
	return q
}

// schedule bumps the sequence number and starts a debounce tick for it.
func (m *Model) schedule() tea.Cmd {
	m.seq++
	seq := m.seq
	return tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return debounceMsg{seq: seq}
	})
}

func (m Model) search(seq int) tea.Cmd {
	backend, q := m.backend, m.query()
	return func() tea.Msg {
		res, err := backend.SearchEntities(context.Background(), q)
		return searchResultMsg{seq: seq, res: res, err: err}
	}
}

func (m Model) loadFacets() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		f, err := backend.FacetOptions(context.Background())
		return facetsMsg{facets: f, err: err}
	}
}

// handleFacets keeps the filters usable without options when loading fails.
func (m Model) handleFacets(msg facetsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		n := m.backend.Report("load facets", msg.err, "")
		m.notice = &n
		m.facets = crm.Facets{}
		return m, nil
	}
	m.facets = msg.facets
	return m, nil
}

func (m Model) handleDebounce(msg debounceMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq {
		return m, nil
	}
	m.searching = true
	return m, m.search(msg.seq)
}

func (m Model) handleSearchResult(msg searchResultMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq {
		return m, nil
	}
	m.searching = false
	if msg.err != nil {
		n := m.backend.Report("search", msg.err, "")
		m.notice = &n
		m.result = crm.SearchResult{}
		m.table.SetRows(nil)
		return m, nil
	}
	m.notice = nil
	m.result = msg.res
	m.table.SetRows(entityRows(msg.res.Rows))
	m.table.SetCursor(0)
	return m, nil
}

func entityRows(rows []crm.EntityRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if r.Type == models.ClientPerson {
			out = append(out, table.Row{r.DisplayName, r.TaxCode, r.City, r.Email})
		} else {
			out = append(out, table.Row{r.DisplayName, r.Province, r.OrgType, r.City})
		}
	}
	return out
}

func (m Model) handleSelectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "up":
		m.table.MoveUp(1)
		return m, nil
	case "down":
		m.table.MoveDown(1)
		return m, nil
	case "tab":
		if m.entityType == models.ClientOrganization {
			m.entityType = models.ClientPerson
		} else {
			m.entityType = models.ClientOrganization
		}
		// Rows must be cleared before the column set changes shape.
		m.table.SetRows(nil)
		m.table.SetColumns(entityColumns(m.entityType))
		m.result = crm.SearchResult{}
		tick := m.schedule()
		return m, tick
	case "ctrl+p":
		if len(m.facets.Provinces) == 0 {
			return m, nil
		}
		m.province++
		if m.province >= len(m.facets.Provinces) {
			m.province = -1
		}
		tick := m.schedule()
		return m, tick
	case "enter":
		return m.choose()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	tick := m.schedule()
	return m, tea.Batch(cmd, tick)
}

func (m Model) choose() (tea.Model, tea.Cmd) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.result.Rows) {
		return m, nil
	}
	row := m.result.Rows[i]
	if row.Type == models.ClientPerson {
		m.selected = &Selection{Type: row.Type, ID: row.ID, Name: row.DisplayName}
		return m, tea.Quit
	}

	m.org = row
	m.viewMode = ViewAffiliates
	m.notice = nil
	m.input.Blur()
	m.affFilter.SetValue("")
	m.affFilter.Focus()
	m.affAll, m.affRows, m.affEmpty = nil, nil, crm.EmptyNone
	m.affTable.SetRows(nil)
	return m, m.loadAffiliates()
}

func (m Model) renderSelectView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("UFFICIO · choose a client"))
	s.WriteString("\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")
	s.WriteString(m.input.View())
	if q := m.query(); q.Province != "" {
		s.WriteString("  province: " + q.Province)
	}
	if m.searching {
		s.WriteString("  searching…")
	}
	s.WriteString("\n\n")

	if m.result.Empty != crm.EmptyNone {
		s.WriteString(emptyStyle.Render(m.result.Empty.Message()))
	} else {
		s.WriteString(m.table.View())
	}
	s.WriteString("\n")
	s.WriteString(m.renderNotice())
	s.WriteString(m.renderSelectHelp())
	return s.String()
}

func (m Model) renderTabs() string {
	tabs := []struct {
		label string
		t     models.ClientType
	}{
		{"Organizations", models.ClientOrganization},
		{"Persons", models.ClientPerson},
	}
	var rendered []string
	for _, tab := range tabs {
		if tab.t == m.entityType {
			rendered = append(rendered, tabActiveStyle.Render(tab.label))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(tab.label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderSelectHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Tab: Persons/Organizations",
		"Ctrl+P: Province",
		"Enter: Choose",
		"Esc: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}
