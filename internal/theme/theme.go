package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/evaldash/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps the widget dropdown.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// DimmedStyle renders read notifications and secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// BadgeStyle renders the unread counter next to the bell.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// ErrorStyle is used for inline errors and the stale-data banner.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// BannerStyle frames the dismissible fetch-failure banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Border(lipgloss.NormalBorder(), false, false, true, false).
	BorderForeground(ColorRed)

// UnreadMarker prefixes unread notifications.
var UnreadMarker = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).Render("●")

// TypeStyle is the presentation of one notification type.
type TypeStyle struct {
	Label string
	Icon  string
	Color lipgloss.AdaptiveColor
}

// typeStyles maps each concrete type to its presentation. Lookups go
// through ForType, which falls back for anything missing here.
var typeStyles = map[model.Type]TypeStyle{
	model.TypePerformance:    {Label: "Performance", Icon: "📈", Color: ColorBlue},
	model.TypeAchievement:    {Label: "Achievement", Icon: "🏆", Color: ColorGreen},
	model.TypeImprovement:    {Label: "Improvement", Icon: "🛠", Color: ColorOrange},
	model.TypePrincipalReply: {Label: "Principal reply", Icon: "✉", Color: ColorMagenta},
	model.TypeChatMessage:    {Label: "Chat", Icon: "💬", Color: ColorYellow},
	model.TypeAll:            {Label: "All", Icon: "🔔", Color: ColorWhite},
}

// FallbackTypeStyle is used for types without an entry in the table.
var FallbackTypeStyle = TypeStyle{Label: "Notice", Icon: "•", Color: ColorGray}

// ForType returns the presentation for t, or FallbackTypeStyle.
func ForType(t model.Type) TypeStyle {
	if s, ok := typeStyles[t]; ok {
		return s
	}
	return FallbackTypeStyle
}

// TypeLabelStyle returns a color-coded style for the given type label.
func TypeLabelStyle(t model.Type) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(ForType(t).Color)
}

// ChipStyle renders a filter chip on the notifications page.
func ChipStyle(active bool) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1).MarginRight(1)
	if active {
		return base.Bold(true).Foreground(ColorWhite).Background(ColorBlue)
	}
	return base.Foreground(ColorGray)
}
