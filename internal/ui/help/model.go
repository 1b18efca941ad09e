// Package help renders the keyboard shortcut overlay.
package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/keys"
	"github.com/nhle/evaldash/internal/theme"
)

// sections names the FullHelp groups, in the same order.
var sections = []string{"Navigation", "Views", "Filters", "Notifications"}

// Model is the help overlay.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates the help overlay.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: k, help: h}
	m.SetSize(width, height)
	return m
}

// Init returns nil.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the app closes the overlay.
func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders one titled block per binding group.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)

	blocks := []string{title}
	for i, group := range m.keys.FullHelp() {
		name := "More"
		if i < len(sections) {
			name = sections[i]
		}
		blocks = append(blocks, heading.Render(name), renderGroup(group), "")
	}
	blocks = append(blocks, theme.DimmedStyle.Render("Press ? or esc to close."))

	return theme.PanelStyle.
		Width(max(m.width-4, 20)).
		Height(max(m.height-4, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func renderGroup(bindings []key.Binding) string {
	keyStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite).Width(12)

	lines := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		lines = append(lines, "  "+keyStyle.Render(h.Key)+theme.DimmedStyle.Render(h.Desc))
	}
	return strings.Join(lines, "\n")
}

// ShortHelp renders the one-line hint shown in the status bar.
func (m Model) ShortHelp() string {
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
