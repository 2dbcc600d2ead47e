// Package status renders the one-line session status bar.
package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/yamca/yamca/internal/session"
	"github.com/yamca/yamca/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	State    session.State
	Profile  string
	Endpoint string
	Topics   int
	Unread   int
	Pending  string // in-progress action, e.g. "connecting"
	Width    int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SetCounts updates the topic and unread totals.
func (m *Model) SetCounts(topics, unread int) {
	m.Topics = topics
	m.Unread = unread
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var stateStr string
	switch m.State {
	case session.Ready:
		stateStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● " + m.Profile)
	case session.Configuring:
		stateStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("◌ no profile")
	default:
		stateStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ offline")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := stateStr
	if m.Endpoint != "" {
		content += sep + theme.StyleDimmed.Render(m.Endpoint)
	}
	content += sep + fmt.Sprintf("%d topics  %d unread", m.Topics, m.Unread)
	if m.Pending != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.Pending+"...")
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
