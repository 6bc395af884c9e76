// Package tui is the terminal front end of `notetaker ui`: a form to write
// or edit a note above the list of notes.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aretw0/notetaker/pkg/core"
)

// Reconciler is what the model drives. *core.Reconciler implements it.
type Reconciler interface {
	SetText(ctx context.Context, text string) error
	Select(ctx context.Context, n core.Note) error
	Cancel(ctx context.Context) error
	Submit(ctx context.Context) error
	Remove(ctx context.Context, id string) error
	Snapshot() core.Snapshot
	Updates() <-chan core.Snapshot
}

type focus int

const (
	focusInput focus = iota
	focusList
)

// snapshotMsg signals that the reconciler published a new state.
type snapshotMsg struct{}

// closedMsg signals that the reconciler stopped publishing.
type closedMsg struct{}

// Model is the bubbletea model of the notes UI.
type Model struct {
	ctx    context.Context
	rec    Reconciler
	input  textinput.Model
	snap   core.Snapshot
	cursor int
	focus  focus
	err    string
	width  int
}

// New creates the model around a started reconciler.
func New(ctx context.Context, rec Reconciler) Model {
	ti := textinput.New()
	ti.Placeholder = "Write your note"
	ti.CharLimit = 1024
	ti.Width = 50
	ti.Focus()

	m := Model{ctx: ctx, rec: rec, input: ti}
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForUpdate())
}

func (m Model) waitForUpdate() tea.Cmd {
	updates := m.rec.Updates()
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return closedMsg{}
		}
		return snapshotMsg{}
	}
}

// sync reloads the latest snapshot. The message that woke us may be older
// than actions dispatched since, so the snapshot is always read fresh.
func (m *Model) sync() {
	m.snap = m.rec.Snapshot()
	if m.input.Value() != m.snap.Draft.Text {
		m.input.SetValue(m.snap.Draft.Text)
		m.input.CursorEnd()
	}
	if m.cursor >= len(m.snap.Notes) {
		m.cursor = len(m.snap.Notes) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) dispatch(err error) {
	switch {
	case err == nil:
		m.err = ""
	case errors.Is(err, core.ErrClosed):
		m.err = "reconciler closed"
	default:
		m.err = err.Error()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-6)
		return m, nil

	case snapshotMsg:
		m.sync()
		return m, m.waitForUpdate()

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil
		}
		if m.focus == focusList {
			return m.updateList(msg)
		}
		return m.updateInput(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput && len(m.snap.Notes) > 0 {
		m.focus = focusList
		m.input.Blur()
		return
	}
	m.focus = focusInput
	m.input.Focus()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.dispatch(m.rec.Submit(m.ctx))
		m.sync()
		return m, nil
	case tea.KeyEsc:
		m.dispatch(m.rec.Cancel(m.ctx))
		m.sync()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.dispatch(m.rec.SetText(m.ctx, after))
		m.snap = m.rec.Snapshot()
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Notes)-1 {
			m.cursor++
		}
	case "enter", "e":
		if n, ok := m.selected(); ok {
			m.dispatch(m.rec.Select(m.ctx, n))
			m.sync()
			m.focus = focusInput
			m.input.Focus()
		}
	case "d", "x", "delete":
		if n, ok := m.selected(); ok {
			m.dispatch(m.rec.Remove(m.ctx, n.ID))
		}
	case "esc":
		m.focus = focusInput
		m.input.Focus()
	}
	return m, nil
}

func (m Model) selected() (core.Note, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Notes) {
		return core.Note{}, false
	}
	return m.snap.Notes[m.cursor], true
}
