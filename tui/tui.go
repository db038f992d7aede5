// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Interactive client picker: debounced entity search, then an organization's referenti
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
)

// Backend is the slice of the service the picker drives. *crm.Service
// satisfies it.
type Backend interface {
	SearchEntities(ctx context.Context, q crm.EntityQuery) (crm.SearchResult, error)
	FacetOptions(ctx context.Context) (crm.Facets, error)
	ListAffiliates(ctx context.Context, orgID uuid.UUID, filter string) (crm.AffiliateList, error)
	QuickCreateAffiliation(ctx context.Context, orgID uuid.UUID, in crm.QuickPersonInput) (*models.Person, *models.Affiliation, error)
	Report(action string, err error, success string) crm.Notice
}

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewSelect ViewMode = iota
	ViewAffiliates
	ViewQuickAdd
)

// Selection is what the user picked. Affiliation fields are set only when an
// organization's referente was chosen.
type Selection struct {
	Type          models.ClientType
	ID            uuid.UUID
	Name          string
	AffiliationID *uuid.UUID
	ReferenteName string
}

// Model is the main bubbletea model
type Model struct {
	backend  Backend
	debounce time.Duration
	viewMode ViewMode

	// Entity selector state
	entityType models.ClientType
	input      textinput.Model
	table      table.Model
	seq        int
	result     crm.SearchResult
	searching  bool
	facets     crm.Facets
	province   int // index into facets.Provinces, -1 for all

	// Affiliate picker state
	org       crm.EntityRow
	affFilter textinput.Model
	affAll    []crm.AffiliateRow
	affRows   []crm.AffiliateRow
	affEmpty  crm.EmptyState
	affTable  table.Model

	// Quick add form state
	form       []textinput.Model
	focusIndex int

	notice   *crm.Notice
	selected *Selection

	width  int
	height int
}

// NewModel creates a picker that waits debounce after the last keystroke
// before searching.
func NewModel(backend Backend, debounce time.Duration) Model {
	in := textinput.New()
	in.Placeholder = "Search by name, tax code or email"
	in.Prompt = "🔍 "
	in.Focus()

	filter := textinput.New()
	filter.Placeholder = "Filter by name, role or email"
	filter.Prompt = "› "

	m := Model{
		backend:    backend,
		debounce:   debounce,
		viewMode:   ViewSelect,
		entityType: models.ClientOrganization,
		input:      in,
		affFilter:  filter,
		province:   -1,
		width:      80,
		height:     24,
	}
	m.table = newTable(entityColumns(m.entityType), m.height)
	m.affTable = newTable(affiliateColumns(), m.height)
	return m
}

func newTable(cols []table.Column, height int) table.Model {
	return table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(max(height-12, 3)),
	)
}

// Selected returns the pick made before the program quit, if any.
func (m Model) Selected() *Selection {
	return m.selected
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadFacets(), m.search(m.seq))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(m.height-12, 3))
		m.affTable.SetHeight(max(m.height-12, 3))
		return m, nil
	case debounceMsg:
		return m.handleDebounce(msg)
	case searchResultMsg:
		return m.handleSearchResult(msg)
	case facetsMsg:
		return m.handleFacets(msg)
	case affiliatesMsg:
		return m.handleAffiliates(msg)
	case quickAddMsg:
		return m.handleQuickAdd(msg)
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewSelect:
		return m.renderSelectView()
	case ViewAffiliates:
		return m.renderAffiliatesView()
	case ViewQuickAdd:
		return m.renderQuickAddView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.viewMode {
	case ViewSelect:
		return m.handleSelectKeys(msg)
	case ViewAffiliates:
		return m.handleAffiliateKeys(msg)
	case ViewQuickAdd:
		return m.handleQuickAddKeys(msg)
	}
	return m, nil
}

func (m Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	style := successStyle
	if m.notice.Kind != crm.NoticeSuccess {
		style = errorStyle
	}
	return style.Render(m.notice.String())
}

// Run shows the picker full-screen and returns the selection, or nil when
// the user quit without choosing.
func Run(backend Backend, debounce time.Duration) (*Selection, error) {
	final, err := tea.NewProgram(NewModel(backend, debounce), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	return final.(Model).Selected(), nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("244")).
			Padding(1, 2)

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)
