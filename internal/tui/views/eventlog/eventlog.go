// Package eventlog provides a scrollable overlay listing lifecycle events
// and UI errors.
package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/yamca/yamca/internal/event"
	"github.com/yamca/yamca/internal/tui/theme"
)

const maxEntries = 200

// Tags used for entries.
const (
	TagEvent = "evt"
	TagError = "err"
	TagInfo  = "sys"
)

// Entry is a single log line. Kind and Topic are set only for lifecycle
// events.
type Entry struct {
	Time    time.Time
	Tag     string
	Event   bool
	Kind    event.Kind
	Topic   string
	Message string // failure cause, UI error or info text
	Color   lipgloss.Color
}

// Model holds the event log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
	Failed  int // failed events seen since the last Clear
}

// New creates an empty event log.
func New() Model {
	return Model{}
}

func (m *Model) add(e Entry) {
	e.Time = time.Now()
	m.Entries = append(m.Entries, e)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// AddEvent logs a lifecycle event.
func (m *Model) AddEvent(e event.Event) {
	en := Entry{Tag: TagEvent, Event: true, Kind: e.Kind, Topic: e.Topic, Color: theme.KindColor(e.Kind)}
	if !e.Success {
		m.Failed++
		en.Tag = TagError
		en.Message = e.Err.Error()
		en.Color = theme.ColorDanger
	}
	m.add(en)
}

// AddError logs an error raised by a UI action.
func (m *Model) AddError(action string, err error) {
	m.add(Entry{Tag: TagError, Message: fmt.Sprintf("%s: %v", action, err), Color: theme.ColorDanger})
}

// Info logs a plain UI message.
func (m *Model) Info(message string) {
	m.add(Entry{Tag: TagInfo, Message: message, Color: theme.ColorDimmed})
}

// Clear resets the failure counter. Entries are kept.
func (m *Model) Clear() {
	m.Failed = 0
}

// ScrollUp moves the viewport towards older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport towards newer entries.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// tally counts successful events, failed events and UI errors.
func (m Model) tally() (ok, failed, errs int) {
	for _, e := range m.Entries {
		switch {
		case e.Event && e.Tag == TagEvent:
			ok++
		case e.Event:
			failed++
		case e.Tag == TagError:
			errs++
		}
	}
	return ok, failed, errs
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-6, 3)

	ok, failed, errs := m.tally()
	title := theme.StyleHeader.Render(" EVENT LOG ")
	if len(m.Entries) > 0 {
		title += theme.StyleDimmed.Render(fmt.Sprintf("  %d ok", ok))
		if failed+errs > 0 {
			title += theme.StyleError.Render(fmt.Sprintf("  %d failed  %d errors", failed, errs))
		}
	}
	footer := theme.StyleDimmed.Render("j/k:scroll  esc:close")

	var body string
	if len(m.Entries) == 0 {
		body = theme.StyleDimmed.Render("  No events recorded yet.")
	} else {
		end := len(m.Entries) - m.Offset
		clip := lipgloss.NewStyle().MaxWidth(innerW - 4)
		var lines []string
		for _, e := range m.Entries[max(end-rows, 0):end] {
			lines = append(lines, clip.Render(renderEntry(e)))
		}
		if m.Offset > 0 {
			lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("↓ %d more", m.Offset)))
		}
		body = strings.Join(lines, "\n")
	}

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer))
}

// renderEntry lays an event out as status, kind, topic and cause; other
// entries are a marker and their text.
func renderEntry(e Entry) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
	mark := lipgloss.NewStyle().Foreground(e.Color)

	if !e.Event {
		glyph := "·"
		if e.Tag == TagError {
			glyph = "✗"
		}
		return fmt.Sprintf("%s %s %s", ts, mark.Render(glyph), mark.Render(e.Message))
	}

	glyph := mark.Render("✓")
	if e.Tag == TagError {
		glyph = mark.Render("✗")
	}
	kind := lipgloss.NewStyle().Foreground(theme.KindColor(e.Kind)).Width(21).Render(e.Kind.String())
	line := fmt.Sprintf("%s %s %s %s", ts, glyph, kind, lipgloss.NewStyle().Bold(true).Render(e.Topic))
	if e.Message != "" {
		line += " " + theme.StyleError.Render(e.Message)
	}
	return line
}
