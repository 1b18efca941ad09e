// Package page renders the full notifications page: type chips with live
// counts, free-text search, and per-item and bulk actions.
package page

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/keys"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/notify"
	"github.com/nhle/evaldash/internal/theme"
	"github.com/nhle/evaldash/internal/ui"
)

// chips lists the filter chips in display order. Index 0 is "all".
var chips = append([]model.Type{model.TypeAll}, model.Types...)

// Model is the notifications page.
type Model struct {
	store       ui.NotificationStore
	keys        *keys.KeyMap
	list        list.Model
	spinner     spinner.Model
	searchInput textinput.Model
	searchMode  bool
	chip        int
	width       int
	height      int

	// Derived from the store on every change.
	counts notify.Counts
	total  int
	status notify.Status
	err    error

	// bannerDismissed hides the fetch-failure banner until the next error.
	bannerDismissed bool
}

// New creates the page over the shared store.
func New(s ui.NotificationStore, k *keys.KeyMap, width, height int) Model {
	l := list.New(nil, ui.ItemDelegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	si := textinput.New()
	si.Placeholder = "search school, title, student..."
	si.Prompt = "/ "
	si.Width = width - 4

	m := Model{
		store:       s,
		keys:        k,
		list:        l,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		searchInput: si,
		width:       width,
		height:      height,
	}
	m.sync()
	m.resize()
	return m
}

// Init starts the loading spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the page.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.StoreChangedMsg:
		prev := m.status
		m.sync()
		if m.status == notify.StatusError && prev != notify.StatusError {
			m.bannerDismissed = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys filters on every keystroke. Nothing is refetched.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		m.resize()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.searchInput.Blur()
		m.sync()
		m.resize()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.sync()
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.resize()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.NextChip):
		m.setChip((m.chip + 1) % len(chips))
		return m, nil

	case key.Matches(msg, m.keys.PrevChip):
		m.setChip((m.chip + len(chips) - 1) % len(chips))
		return m, nil

	case key.Matches(msg, m.keys.Chip):
		m.setChip(int(msg.Runes[0] - '0'))
		return m, nil

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.selected(); ok {
			return m, ui.MarkRead(m.store, n.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.MarkUnread):
		if n, ok := m.selected(); ok {
			return m, ui.MarkUnread(m.store, n.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Archive):
		if n, ok := m.selected(); ok {
			return m, ui.Archive(m.store, n.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, ui.MarkAllRead(m.store)

	case key.Matches(msg, m.keys.Refresh):
		m.bannerDismissed = false
		return m, ui.RequestRefresh

	case key.Matches(msg, m.keys.Back):
		if m.bannerVisible() {
			m.bannerDismissed = true
			m.resize()
		} else if m.searchInput.Value() != "" {
			m.searchInput.Reset()
			m.sync()
			m.resize()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// CapturesBack reports whether esc is handled by the page (closing search,
// dismissing the banner or clearing the query) instead of leaving it.
func (m Model) CapturesBack() bool {
	return m.searchMode || m.bannerVisible() || m.searchInput.Value() != ""
}

// Searching reports whether the search box has focus, so the app does
// not treat typed letters as shortcuts.
func (m Model) Searching() bool {
	return m.searchMode
}

func (m *Model) setChip(i int) {
	if i < 0 || i >= len(chips) || i == m.chip {
		return
	}
	m.chip = i
	m.list.Select(0)
	m.sync()
}

// SetFilter selects the chip for t. Unknown types are ignored.
func (m *Model) SetFilter(t model.Type) {
	for i, c := range chips {
		if c == t {
			m.setChip(i)
			return
		}
	}
}

// SetSearch replaces the search query.
func (m *Model) SetSearch(term string) {
	m.searchInput.SetValue(term)
	m.sync()
	m.resize()
}

// Filter returns the active type chip.
func (m Model) Filter() model.Type {
	return chips[m.chip]
}

// Focus moves the cursor to id if it is visible.
func (m *Model) Focus(id string) {
	for i, it := range m.list.Items() {
		if ni, ok := it.(ui.NotificationItem); ok && ni.Notification.ID == id {
			m.list.Select(i)
			return
		}
	}
}

func (m Model) selected() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(ui.NotificationItem)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notification, true
}

// sync re-reads the store and re-applies the current query.
func (m *Model) sync() {
	records := m.store.ScopedRecords()
	visible := notify.Apply(records, notify.Query{
		Type:   m.Filter(),
		Search: m.searchInput.Value(),
	})

	m.counts = m.store.TypeCounts()
	m.total = len(records)
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

func (m Model) bannerVisible() bool {
	return m.status == notify.StatusError && !m.bannerDismissed
}

// resize gives the list whatever the chrome leaves over.
func (m *Model) resize() {
	chrome := 2 // chips row and its margin
	if m.bannerVisible() {
		chrome += 2
	}
	if m.searchMode || m.searchInput.Value() != "" {
		chrome++
	}
	m.list.SetSize(m.width, max(m.height-chrome, 1))
}

// View renders the page.
func (m Model) View() string {
	sections := []string{m.renderChips()}

	if m.bannerVisible() {
		sections = append(sections, theme.BannerStyle.Width(m.width).Render(
			"⚠ "+ui.ErrorText(m.err)+"  (R retry · esc dismiss)",
		))
	}

	if m.searchMode || m.searchInput.Value() != "" {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View()))
	}

	sections = append(sections, m.renderBody())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderChips() string {
	var b strings.Builder
	for i, t := range chips {
		label := fmt.Sprintf("%d %s %d", i, theme.ForType(t).Label, m.counts[t])
		b.WriteString(theme.ChipStyle(i == m.chip).Render(label))
	}
	return lipgloss.NewStyle().MarginBottom(1).Render(b.String())
}

func (m Model) renderBody() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.total == 0 {
		switch m.status {
		case notify.StatusIdle, notify.StatusLoading:
			return style.Render(m.spinner.View() + " Loading notifications…")
		case notify.StatusError:
			return style.Render("No notifications to show.")
		default:
			return style.Render("No notifications yet.")
		}
	}

	if len(m.list.Items()) == 0 {
		return style.Render("No matching notifications.\nTry another filter or search.")
	}

	return m.list.View()
}

// Visible returns the notifications after filtering and search.
func (m Model) Visible() []model.Notification {
	out := make([]model.Notification, 0, len(m.list.Items()))
	for _, it := range m.list.Items() {
		if ni, ok := it.(ui.NotificationItem); ok {
			out = append(out, ni.Notification)
		}
	}
	return out
}

// SetSize updates the page dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = width - 4
	m.resize()
}
