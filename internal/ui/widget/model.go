// Package widget renders the bounded notification dropdown shown under the
// header bell.
package widget

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/keys"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/notify"
	"github.com/nhle/evaldash/internal/theme"
	"github.com/nhle/evaldash/internal/ui"
)

// DefaultMaxItems is how many notifications the dropdown shows.
const DefaultMaxItems = 5

// SelectedMsg is sent when the user opens a notification from the widget.
type SelectedMsg struct {
	Notification model.Notification
}

// Option configures a Model.
type Option func(*Model)

// WithMaxItems sets the truncation limit. Non-positive values are ignored.
func WithMaxItems(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxItems = n
		}
	}
}

// WithWidth sets the rendered width.
func WithWidth(w int) Option {
	return func(m *Model) { m.width = w }
}

// Model is the notification dropdown.
type Model struct {
	store    ui.NotificationStore
	keys     *keys.KeyMap
	list     list.Model
	spinner  spinner.Model
	maxItems int
	width    int

	// Derived from the store on every change.
	shown  int
	total  int
	unread int
	status notify.Status
	err    error
}

// New creates the widget over the shared store.
func New(s ui.NotificationStore, k *keys.KeyMap, opts ...Option) Model {
	m := Model{
		store:    s,
		keys:     k,
		maxItems: DefaultMaxItems,
		width:    60,
	}
	for _, opt := range opts {
		opt(&m)
	}

	l := list.New(nil, ui.ItemDelegate{Compact: true}, m.width-4, m.maxItems)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	m.list = l

	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))

	m.sync()
	return m
}

// Init starts the loading spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the widget.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.StoreChangedMsg:
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(ui.NotificationItem)
		if !ok {
			return m, nil
		}
		n := item.Notification
		selected := func() tea.Msg { return SelectedMsg{Notification: n} }
		if n.Read {
			return m, selected
		}
		return m, tea.Sequence(ui.MarkRead(m.store, n.ID), selected)

	case key.Matches(msg, m.keys.Refresh):
		return m, ui.RequestRefresh
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// sync re-reads the store and rebuilds the visible slice.
func (m *Model) sync() {
	records := m.store.ScopedRecords()
	visible := notify.Apply(records, notify.Query{Type: model.TypeAll, Limit: m.maxItems})

	m.total = len(records)
	m.shown = len(visible)
	m.unread = m.store.UnreadCount()
	m.status, m.err = m.store.Status()

	index := m.list.Index()
	m.list.SetItems(ui.Items(visible))
	if index >= len(visible) {
		index = len(visible) - 1
	}
	if index >= 0 {
		m.list.Select(index)
	}
}

// View renders the dropdown.
func (m Model) View() string {
	return theme.PanelStyle.Width(m.width - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.header(), m.body()),
	)
}

func (m Model) header() string {
	title := lipgloss.NewStyle().Bold(true).Render("Notifications")
	if m.unread > 0 {
		title += " " + theme.BadgeStyle.Render(fmt.Sprintf("%d", m.unread))
	}
	return title
}

func (m Model) body() string {
	hasData := m.total > 0

	switch {
	case !hasData && (m.status == notify.StatusLoading || m.status == notify.StatusIdle):
		return m.spinner.View() + " Loading notifications…"

	case !hasData && m.status == notify.StatusError:
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.ErrorStyle.Render(ui.ErrorText(m.err)),
			theme.HelpStyle.Render("Press R to retry."),
		)

	case !hasData:
		return theme.DimmedStyle.Render("No notifications")
	}

	lines := []string{m.list.View()}
	if more := m.total - m.shown; more > 0 {
		lines = append(lines, theme.HelpStyle.Render(fmt.Sprintf("+%d more · press v to view all", more)))
	}
	if m.status == notify.StatusError {
		lines = append(lines, theme.ErrorStyle.Render("⚠ showing cached notifications"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Visible returns the notifications currently shown, for tests and the
// app's selection handling.
func (m Model) Visible() []model.Notification {
	out := make([]model.Notification, 0, len(m.list.Items()))
	for _, it := range m.list.Items() {
		if ni, ok := it.(ui.NotificationItem); ok {
			out = append(out, ni.Notification)
		}
	}
	return out
}

// SetWidth updates the rendered width.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.list.SetSize(width-4, m.maxItems)
}
