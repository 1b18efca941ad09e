// Package command is the ":" palette. It parses a typed line into a
// Command the app executes.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/theme"
)

// Kind identifies a palette command.
type Kind int

const (
	Refresh Kind = iota
	ReadAll
	Filter
	Search
	Page
	Dashboard
	Configure
	Help
	Quit
)

// Command is a parsed palette line.
type Command struct {
	Kind Kind

	// Type is set for Filter.
	Type model.Type

	// Term is set for Search. Empty clears the search.
	Term string
}

// Msg is emitted when the user runs a valid command.
type Msg struct {
	Command Command
}

// ClosedMsg is emitted when the palette is dismissed without a command.
type ClosedMsg struct{}

// ErrEmpty is returned by Parse for a blank line.
var ErrEmpty = errors.New("empty command")

var names = map[string]Kind{
	"refresh":   Refresh,
	"sync":      Refresh,
	"read-all":  ReadAll,
	"readall":   ReadAll,
	"filter":    Filter,
	"search":    Search,
	"page":      Page,
	"all":       Page,
	"dashboard": Dashboard,
	"home":      Dashboard,
	"configure": Configure,
	"config":    Configure,
	"help":      Help,
	"quit":      Quit,
	"q":         Quit,
}

// suggestions feed the input's inline completion.
var suggestions = func() []string {
	out := []string{"refresh", "read-all", "search ", "page", "dashboard", "configure", "help", "quit"}
	out = append(out, "filter all")
	for _, t := range model.Types {
		out = append(out, "filter "+string(t))
	}
	return out
}()

// Parse turns a palette line into a Command.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmpty
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	kind, ok := names[strings.ToLower(name)]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", name)
	}

	switch kind {
	case Filter:
		t, err := model.ParseFilter(arg)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: Filter, Type: t}, nil
	case Search:
		return Command{Kind: Search, Term: arg}, nil
	}

	if arg != "" {
		return Command{}, fmt.Errorf("%s takes no argument", name)
	}
	return Command{Kind: kind}, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    error
	width  int
	height int
}

// New creates the palette.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, read-all, filter <type>, search <text>..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(suggestions)

	m := Model{input: ti}
	m.SetSize(width, height)
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.reset()
			return m, func() tea.Msg { return ClosedMsg{} }

		case "enter":
			c, err := Parse(m.input.Value())
			if errors.Is(err, ErrEmpty) {
				m.reset()
				return m, func() tea.Msg { return ClosedMsg{} }
			}
			if err != nil {
				m.err = err
				return m, nil
			}
			m.reset()
			return m, func() tea.Msg { return Msg{Command: c} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) reset() {
	m.input.Reset()
	m.input.Blur()
	m.err = nil
}

// View renders the palette.
func (m Model) View() string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Command"),
		m.input.View(),
	}
	if m.err != nil {
		lines = append(lines, theme.ErrorStyle.Render(m.err.Error()))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 20)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-8, 10)
}

// Focus gives keyboard focus to the input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
