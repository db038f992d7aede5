// ABOUTME: Quick add form for a new referente
// ABOUTME: Field errors from the service render under each input
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
)

const quickAddAction = "quick add referente"

type quickAddMsg struct {
	orgID uuid.UUID
	aff   *models.Affiliation
	err   error
}

var quickAddFields = []string{"First name", "Last name", "Role", "Email", "Phone"}

func (m *Model) openQuickAdd() {
	m.form = make([]textinput.Model, len(quickAddFields))
	for i, label := range quickAddFields {
		in := textinput.New()
		in.Placeholder = label
		in.Prompt = label + ": "
		m.form[i] = in
	}
	m.focusIndex = 0
	m.form[0].Focus()
	m.affFilter.Blur()
	m.notice = nil
	m.viewMode = ViewQuickAdd
}

func (m *Model) updateFormFocus() {
	for i := range m.form {
		if i == m.focusIndex {
			m.form[i].Focus()
		} else {
			m.form[i].Blur()
		}
	}
}

func (m Model) quickAddInput() crm.QuickPersonInput {
	v := func(i int) string { return strings.TrimSpace(m.form[i].Value()) }
	return crm.QuickPersonInput{FirstName: v(0), LastName: v(1), Role: v(2), Email: v(3), Phone: v(4)}
}

func (m Model) submitQuickAdd() tea.Cmd {
	backend, orgID, in := m.backend, m.org.ID, m.quickAddInput()
	return func() tea.Msg {
		_, aff, err := backend.QuickCreateAffiliation(context.Background(), orgID, in)
		return quickAddMsg{orgID: orgID, aff: aff, err: err}
	}
}

func (m Model) handleQuickAdd(msg quickAddMsg) (tea.Model, tea.Cmd) {
	n := m.backend.Report(quickAddAction, msg.err, "Referente created")
	m.notice = &n
	if msg.err != nil {
		return m, nil
	}
	// Back to the picker with a fresh read of the organization's referenti.
	m.viewMode = ViewAffiliates
	m.affFilter.SetValue("")
	m.affFilter.Focus()
	return m, m.loadAffiliates()
}

func (m Model) handleQuickAddKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewAffiliates
		m.notice = nil
		m.affFilter.Focus()
		return m, nil
	case "tab", "down":
		m.focusIndex = (m.focusIndex + 1) % len(m.form)
		m.updateFormFocus()
		return m, nil
	case "shift+tab", "up":
		m.focusIndex = (m.focusIndex - 1 + len(m.form)) % len(m.form)
		m.updateFormFocus()
		return m, nil
	case "enter", "ctrl+s":
		return m, m.submitQuickAdd()
	}

	var cmd tea.Cmd
	m.form[m.focusIndex], cmd = m.form[m.focusIndex].Update(msg)
	return m, cmd
}

func (m Model) renderQuickAddView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("NEW REFERENTE · " + m.org.DisplayName))
	s.WriteString("\n")
	for i, input := range m.form {
		if i == m.focusIndex {
			s.WriteString("> ")
		} else {
			s.WriteString("  ")
		}
		s.WriteString(input.View())
		s.WriteString("\n")
	}
	s.WriteString("\n")
	s.WriteString(m.renderNotice())
	if m.notice != nil && m.notice.Kind == crm.NoticeValidation {
		for _, label := range []string{"first_name", "last_name", "role", "email", "phone"} {
			if msg, ok := m.notice.Fields[label]; ok {
				s.WriteString("\n  " + errorStyle.Render(msg))
			}
		}
	}

	help := []string{
		"Tab: Next field",
		"Enter: Save",
		"Esc: Cancel",
	}
	s.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return s.String()
}
