// Package topiclist renders the listened topics with unread badges, a fuzzy
// filter and spring-animated scrolling.
package topiclist

import (
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/yamca/yamca/internal/topics"
	"github.com/yamca/yamca/internal/tui/theme"
)

const fps = 60

// FrameMsg advances the scroll animation by one frame.
type FrameMsg struct{}

// Tick schedules the next animation frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

type item struct {
	topics.Row
	matched []int
}

// Model holds the list state.
type Model struct {
	Width  int
	Height int // rows available for topics

	rows    []topics.Row
	filter  string
	visible []item
	cursor  int

	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

// New creates an empty list.
func New() Model {
	return Model{
		Height: 10,
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

// SetRows replaces the rows. The cursor stays on the same topic when it is
// still visible.
func (m *Model) SetRows(rows []topics.Row) {
	current, _ := m.Selected()
	m.rows = rows
	m.refilter(current)
}

// SetFilter narrows the list to topics fuzzy-matching q, best match first.
func (m *Model) SetFilter(q string) {
	m.filter = q
	m.refilter("")
}

// Filter returns the active filter.
func (m Model) Filter() string {
	return m.filter
}

func (m *Model) refilter(keep string) {
	m.visible = m.visible[:0]
	if m.filter == "" {
		for _, r := range m.rows {
			m.visible = append(m.visible, item{Row: r})
		}
	} else {
		names := make([]string, len(m.rows))
		for i, r := range m.rows {
			names[i] = r.Topic
		}
		for _, match := range fuzzy.Find(m.filter, names) {
			m.visible = append(m.visible, item{Row: m.rows[match.Index], matched: match.MatchedIndexes})
		}
	}

	m.cursor = 0
	if keep != "" {
		for i, it := range m.visible {
			if it.Topic == keep {
				m.cursor = i
				break
			}
		}
	}
	m.follow()
}

// Len returns the number of rows passing the filter.
func (m Model) Len() int {
	return len(m.visible)
}

// Selected returns the topic under the cursor.
func (m Model) Selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return "", false
	}
	return m.visible[m.cursor].Topic, true
}

// Down moves the cursor to the next row, wrapping around.
func (m *Model) Down() {
	if len(m.visible) == 0 {
		return
	}
	m.cursor = (m.cursor + 1) % len(m.visible)
	m.follow()
}

// Up moves the cursor to the previous row, wrapping around.
func (m *Model) Up() {
	if len(m.visible) == 0 {
		return
	}
	m.cursor = (m.cursor - 1 + len(m.visible)) % len(m.visible)
	m.follow()
}

// follow moves the scroll target so the cursor row is on screen.
func (m *Model) follow() {
	height := max(m.Height, 1)
	target := int(m.target)
	if m.cursor < target {
		target = m.cursor
	}
	if m.cursor >= target+height {
		target = m.cursor - height + 1
	}
	target = min(target, max(len(m.visible)-height, 0))
	m.target = float64(max(target, 0))
}

// Animating reports whether the scroll position has not reached its target.
func (m Model) Animating() bool {
	return m.pos != m.target || m.vel != 0
}

// Step advances the scroll animation one frame and reports whether further
// frames are needed.
func (m *Model) Step() bool {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.01 && math.Abs(m.vel) < 0.01 {
		m.pos, m.vel = m.target, 0
		return false
	}
	return true
}

// Offset returns the index of the first row on screen.
func (m Model) Offset() int {
	off := int(math.Round(m.pos))
	return max(min(off, len(m.visible)-1), 0)
}

// View renders the list.
func (m Model) View() string {
	header := theme.StyleHeader.Render("TOPICS")
	if m.filter != "" {
		header += theme.StyleDimmed.Render("  filter: " + m.filter)
	}

	if len(m.visible) == 0 {
		msg := "  Not listening to any topics. Press c to create or l to listen."
		if m.filter != "" {
			msg = "  No topics match the filter."
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render(msg))
	}

	lines := []string{header}
	start := m.Offset()
	end := min(start+max(m.Height, 1), len(m.visible))
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(i))
	}
	if end < len(m.visible) {
		lines = append(lines, theme.StyleDimmed.Render("  ↓ more"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderRow(i int) string {
	it := m.visible[i]
	prefix := "  "
	nameStyle := lipgloss.NewStyle()
	if i == m.cursor {
		prefix = "> "
		nameStyle = theme.StyleSelected
	}

	name := nameStyle.Render(it.Topic)
	if len(it.matched) > 0 {
		matched := make(map[int]bool, len(it.matched))
		for _, idx := range it.matched {
			matched[idx] = true
		}
		var b strings.Builder
		for idx, r := range it.Topic {
			if matched[idx] {
				b.WriteString(theme.StyleMatch.Render(string(r)))
			} else {
				b.WriteString(nameStyle.Render(string(r)))
			}
		}
		name = b.String()
	}

	line := prefix + name
	if badge := theme.UnreadBadge(it.Unread); badge != "" {
		line += " " + badge
	}
	return line
}
