package eventlog

import (
	"errors"
	"strings"
	"testing"

	"github.com/yamca/yamca/internal/event"
	"github.com/yamca/yamca/internal/tui/theme"
)

func TestAddEvent(t *testing.T) {
	m := New()
	m.AddEvent(event.Succeeded(event.TopicListened, "news"))
	m.AddEvent(event.Failed(event.TopicCreated, "news", errors.New("exists")))

	if len(m.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.Entries))
	}
	if m.Entries[0].Tag != TagEvent || m.Entries[0].Color != theme.ColorListened {
		t.Errorf("success entry = %+v", m.Entries[0])
	}
	if m.Entries[1].Tag != TagError || m.Entries[1].Message != "exists" || m.Entries[1].Topic != "news" {
		t.Errorf("failure entry = %+v", m.Entries[1])
	}
	if m.Failed != 1 {
		t.Errorf("Failed = %d, want 1", m.Failed)
	}
	m.Clear()
	if m.Failed != 0 || len(m.Entries) != 2 {
		t.Errorf("Clear: Failed = %d, entries = %d", m.Failed, len(m.Entries))
	}
}

func TestAddError(t *testing.T) {
	m := New()
	m.AddError("create", errors.New("not ready"))
	if got := m.Entries[0].Message; got != "create: not ready" {
		t.Errorf("Message = %q", got)
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Info("msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Info("msg")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}
	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 19 {
		t.Errorf("expected offset capped at 19, got %d", m.Offset)
	}
	m.Info("new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}

	m.AddEvent(event.Succeeded(event.TopicCreated, "news"))
	m.AddError("post", errors.New("timeout"))
	v := m.View(80, 20)
	for _, want := range []string{"EVENT LOG", "news", "timeout"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewTitleTallies(t *testing.T) {
	m := New()
	m.AddEvent(event.Succeeded(event.TopicListened, "news"))
	m.AddEvent(event.Succeeded(event.MessageReceived, "news"))
	m.AddEvent(event.Failed(event.MessageSent, "news", errors.New("timeout")))
	m.AddError("read news", errors.New("broker down"))
	m.Info("profile loaded")
	m.Clear()

	v := m.View(100, 20)
	for _, want := range []string{"2 ok", "1 failed", "1 errors"} {
		if !strings.Contains(v, want) {
			t.Errorf("title missing %q:\n%s", want, v)
		}
	}
}

func TestViewEventColumns(t *testing.T) {
	m := New()
	m.AddEvent(event.Failed(event.TopicDeleted, "sports", errors.New("not subscribed")))

	v := m.View(100, 20)
	for _, want := range []string{"✗", "topic_deleted", "sports", "not subscribed"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
	if !strings.Contains(v, "0 ok") {
		t.Errorf("title should count no successes:\n%s", v)
	}
}
