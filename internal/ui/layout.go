package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the top bar with a title on the left and the
// notification bell on the right.
func (l Layout) RenderHeader(title string, bell string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	bellRendered := theme.HeaderStyle.Render(bell)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(bellRendered), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, bellRendered)
}

// RenderStatusBar renders the bottom status bar. notice, if set, replaces
// the keyboard hints.
func (l Layout) RenderStatusBar(hints string, notice string) string {
	style := theme.StatusBarStyle
	text := hints
	if notice != "" {
		style = style.Foreground(theme.ColorYellow).Bold(true)
		text = notice
	}

	return style.Width(max(l.Width, 0)).MaxHeight(1).Render(text)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// Bell renders the header bell with its unread badge.
func Bell(unread int) string {
	if unread == 0 {
		return "🔔"
	}
	label := "🔔 " + strconv.Itoa(unread)
	if unread > 99 {
		label = "🔔 99+"
	}
	return label
}
