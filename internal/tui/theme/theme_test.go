package theme

import (
	"strings"
	"testing"

	"github.com/yamca/yamca/internal/event"
)

func TestKindColor(t *testing.T) {
	seen := map[string]event.Kind{}
	for k := event.TopicCreated; k <= event.MessageReceived; k++ {
		c := KindColor(k)
		if c == ColorDefault {
			t.Errorf("KindColor(%s) fell back to default", k)
		}
		if prev, dup := seen[string(c)]; dup {
			t.Errorf("KindColor(%s) = KindColor(%s) = %s", k, prev, c)
		}
		seen[string(c)] = k
	}
	if KindColor(event.Kind(99)) != ColorDefault {
		t.Error("unknown kind should use the default color")
	}
}

func TestUnreadBadge(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{-1, ""},
		{7, "7"},
		{99, "99"},
		{100, "99+"},
	}
	for _, tt := range tests {
		got := UnreadBadge(tt.n)
		if tt.want == "" {
			if got != "" {
				t.Errorf("UnreadBadge(%d) = %q, want empty", tt.n, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("UnreadBadge(%d) = %q, want it to contain %q", tt.n, got, tt.want)
		}
	}
}
