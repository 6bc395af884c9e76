package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/notetaker/pkg/core"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	modeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	editingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	formBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activeBoxEdge = lipgloss.Color("205")
)

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("notetaker"))
	s.WriteString("\n\n")

	box := formBoxStyle
	if m.focus == focusInput {
		box = box.BorderForeground(activeBoxEdge)
	}
	s.WriteString(box.Render(m.input.View()))
	s.WriteString("\n")
	s.WriteString(modeStyle.Render(modeLabel(m.snap.Draft)))
	s.WriteString("\n\n")

	if len(m.snap.Notes) == 0 {
		s.WriteString(emptyStyle.Render("no notes yet"))
		s.WriteString("\n")
	}
	for i, n := range m.snap.Notes {
		prefix := "  "
		if m.focus == focusList && i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		line := n.Text
		if line == "" {
			line = emptyStyle.Render("(empty)")
		}
		if n.ID == m.snap.Draft.EditingID {
			line = editingStyle.Render(line + " (editing)")
		}
		s.WriteString(prefix + line + "\n")
	}

	if msg := m.errorLine(); msg != "" {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(msg))
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help()))
	return s.String()
}

func (m Model) errorLine() string {
	if m.err != "" {
		return m.err
	}
	return m.snap.LastError
}

func (m Model) help() string {
	if m.focus == focusList {
		return "↑/↓: move  enter: edit  d: delete  tab: form  q: quit"
	}
	return "enter: save  esc: cancel edit  tab: list  ctrl+c: quit"
}

func modeLabel(d core.Draft) string {
	switch d.Mode() {
	case core.DraftEditing:
		return "editing " + d.EditingID
	case core.DraftCreating:
		return "new note"
	}
	return ""
}
