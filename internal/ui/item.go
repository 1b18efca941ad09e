package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/theme"
)

// NotificationItem wraps a model.Notification so it can be used in a
// bubbles/list.
type NotificationItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for list filtering. Filtering is
// done by notify.Search, so this is only the title.
func (i NotificationItem) FilterValue() string { return i.Notification.Title }

// Items converts notifications into list items.
func Items(records []model.Notification) []list.Item {
	items := make([]list.Item, len(records))
	for i, n := range records {
		items[i] = NotificationItem{Notification: n}
	}
	return items
}

// ItemDelegate implements list.ItemDelegate for notifications.
type ItemDelegate struct {
	// Compact drops the description line, for the widget.
	Compact bool

	// Now is used for relative timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int {
	if d.Compact {
		return 1
	}
	return 2
}

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ni, ok := item.(NotificationItem)
	if !ok {
		return
	}
	n := ni.Notification

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	style := theme.ForType(n.Type)
	marker := " "
	if !n.Read {
		marker = theme.UnreadMarker
	}

	icon := n.Icon
	if icon == "" {
		icon = style.Icon
	}

	label := theme.TypeLabelStyle(n.Type).Render(style.Label)
	when := theme.DimmedStyle.Render(RelativeTime(n.Timestamp, now()))

	title := n.Title
	if n.Read {
		title = theme.DimmedStyle.Render(title)
	}

	line := fmt.Sprintf("%s %s %s %s  %s", marker, icon, label, title, when)

	if !d.Compact {
		var parts []string
		if n.SchoolName != "" {
			parts = append(parts, n.SchoolName)
		}
		if n.StudentName != "" {
			parts = append(parts, n.StudentName)
		}
		if n.Description != "" {
			parts = append(parts, n.Description)
		}
		line += "\n    " + theme.DimmedStyle.Render(strings.Join(parts, " · "))
	}

	if m.Width() > 0 {
		line = lipgloss.NewStyle().MaxWidth(m.Width()).Render(line)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// RelativeTime returns a human-friendly relative time string.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
