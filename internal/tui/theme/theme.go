// Package theme provides the Lip Gloss color palette and reusable styles
// for the yamca TUI. Its only internal import is the event kinds it colors.
package theme

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/yamca/yamca/internal/event"
)

// Event colors.
var (
	ColorCreated  = lipgloss.Color("#7c3aed")
	ColorListened = lipgloss.Color("#2563eb")
	ColorStopped  = lipgloss.Color("#d97706")
	ColorDeleted  = lipgloss.Color("#dc2626")
	ColorLoaded   = lipgloss.Color("#06b6d4")
	ColorSent     = lipgloss.Color("#16a34a")
	ColorReceived = lipgloss.Color("#22c55e")
	ColorDefault  = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// KindColor returns the color used for events of kind k.
func KindColor(k event.Kind) lipgloss.Color {
	switch k {
	case event.TopicCreated:
		return ColorCreated
	case event.TopicListened:
		return ColorListened
	case event.TopicListenStopped:
		return ColorStopped
	case event.TopicDeleted:
		return ColorDeleted
	case event.TopicLoaded:
		return ColorLoaded
	case event.MessageSent:
		return ColorSent
	case event.MessageReceived:
		return ColorReceived
	default:
		return ColorDefault
	}
}

// UnreadBadge renders an unread counter, or "" when there is nothing unread.
func UnreadBadge(n int) string {
	if n <= 0 {
		return ""
	}
	label := "99+"
	if n < 100 {
		label = strconv.Itoa(n)
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		Background(ColorAccent).
		Padding(0, 1).
		Render(label)
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleMatch = lipgloss.NewStyle().
			Underline(true).
			Foreground(ColorAccent)
)
