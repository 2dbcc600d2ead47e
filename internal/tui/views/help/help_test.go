package help

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func sections() []Section {
	return []Section{{
		Title: "Topics",
		Bindings: []key.Binding{
			key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "create topic")),
			key.NewBinding(key.WithKeys("x")),
		},
	}}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sections())
	if !strings.Contains(md, "## Topics") || !strings.Contains(md, "| `c` | create topic |") {
		t.Errorf("Markdown:\n%s", md)
	}
	if strings.Contains(md, "`x`") {
		t.Error("bindings without help text should be skipped")
	}
}

func TestRender(t *testing.T) {
	m := New("notty")
	out := m.Render("# Hello World\n\nSome text.", 60)
	if !strings.Contains(out, "Hello World") {
		t.Errorf("rendered output missing heading:\n%s", out)
	}
	if m.Render("", 60) != "" {
		t.Error("empty markdown should render empty")
	}
}

func TestRenderCaches(t *testing.T) {
	m := New("notty")
	first := m.Render("**bold**", 60)
	second := m.Render("**bold**", 60)
	if first != second || len(m.cache) != 1 {
		t.Errorf("cache entries = %d", len(m.cache))
	}
	m.Render("**bold**", 40)
	if len(m.cache) != 2 {
		t.Errorf("width should be part of the cache key, entries = %d", len(m.cache))
	}
}

func TestView(t *testing.T) {
	v := New("notty").View(sections(), 80, 40)
	for _, want := range []string{"create topic", "esc:close"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}
