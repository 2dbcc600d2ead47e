// Package posts renders the retained history of one topic.
package posts

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yamca/yamca/internal/protocol"
	"github.com/yamca/yamca/internal/tui/theme"
)

// Model is the post history overlay for a single topic.
type Model struct {
	Topic   string
	Posts   []protocol.Post
	Err     error
	Loading bool
	Offset  int // posts scrolled back from the newest
}

// Open resets the overlay for topic while its history is fetched.
func (m *Model) Open(topic string) {
	*m = Model{Topic: topic, Loading: true}
}

// Set stores the fetch result.
func (m *Model) Set(posts []protocol.Post, err error) {
	m.Loading = false
	m.Posts = posts
	m.Err = err
	m.Offset = 0
}

// ScrollUp moves towards older posts.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Posts)-1, 0))
}

// ScrollDown moves towards newer posts.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the overlay. Posts written by self are labelled "you".
func (m Model) View(width, height int, self string) string {
	innerW := max(width-4, 20)
	rows := max(height-8, 3)

	title := theme.StyleHeader.Render(fmt.Sprintf(" POSTS · %s ", m.Topic))
	footer := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d posts", len(m.Posts)))

	var body string
	switch {
	case m.Loading:
		body = theme.StyleDimmed.Render("  loading...")
	case m.Err != nil:
		body = theme.StyleError.Render("  " + m.Err.Error())
	case len(m.Posts) == 0:
		body = theme.StyleDimmed.Render("  No posts on this topic yet.")
	default:
		body = m.renderPosts(innerW-2, rows, self)
	}

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorReceived).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer))
}

func (m Model) renderPosts(width, rows int, self string) string {
	end := len(m.Posts) - m.Offset
	start := max(end-rows, 0)

	author := lipgloss.NewStyle().Foreground(theme.ColorAccent).Bold(true)
	mine := lipgloss.NewStyle().Foreground(theme.ColorBright).Bold(true)
	text := lipgloss.NewStyle().Width(max(width-20, 10))

	var lines []string
	for _, p := range m.Posts[start:end] {
		who := author.Render(p.Author)
		if self != "" && p.Author == self {
			who = mine.Render("you")
		}
		head := fmt.Sprintf("%s %s", theme.StyleDimmed.Render(p.At.Local().Format("Jan 02 15:04")), who)
		lines = append(lines, head, "  "+text.Render(p.Body))
	}
	if m.Offset > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("↓ %d newer", m.Offset)))
	}
	return strings.Join(lines, "\n")
}
