// Package help renders the key reference overlay from markdown.
package help

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/yamca/yamca/internal/tui/theme"
)

// StyleAuto picks a dark or light glamour style from the terminal.
const StyleAuto = "auto"

// Section is a titled group of key bindings.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Model renders help markdown through glamour, caching each rendering by
// content and width.
type Model struct {
	style string
	cache map[string]string
}

// New creates a help overlay using the named glamour style, or StyleAuto.
func New(style string) *Model {
	if style == "" {
		style = StyleAuto
	}
	return &Model{style: style, cache: make(map[string]string)}
}

// Markdown builds the help document for sections.
func Markdown(sections []Section) string {
	var b strings.Builder
	b.WriteString("# yamca\n\n")
	b.WriteString("Topics you listen to are kept in your profile and re-listened when you log in again.\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Title)
		b.WriteString("| Key | Action |\n|---|---|\n")
		for _, kb := range s.Bindings {
			h := kb.Help()
			if h.Key == "" {
				continue
			}
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	return b.String()
}

// Render returns the terminal rendering of md, falling back to the raw text
// when glamour fails.
func (m *Model) Render(md string, width int) string {
	if md == "" {
		return ""
	}
	k := cacheKey(md, width)
	if cached, ok := m.cache[k]; ok {
		return cached
	}

	opt := glamour.WithAutoStyle()
	if m.style != StyleAuto {
		opt = glamour.WithStandardStyle(m.style)
	}
	renderer, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	rendered = strings.TrimRight(rendered, "\n ")

	m.cache[k] = rendered
	return rendered
}

// View renders the help overlay for sections.
func (m *Model) View(sections []Section, width, height int) string {
	innerW := max(width-4, 20)
	body := m.Render(Markdown(sections), innerW-4)

	lines := strings.Split(body, "\n")
	if limit := height - 4; limit > 3 && len(lines) > limit {
		lines = append(lines[:limit-1], theme.StyleDimmed.Render("  …"))
	}
	footer := theme.StyleDimmed.Render("esc:close")

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), footer))
}

func cacheKey(content string, width int) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x:%d", h[:8], width)
}
