package profile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "alice", true},
		{"with spaces", "alice smith", true},
		{"unicode", "αλέξανδρος", true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"slash", "a/b", false},
		{"backslash", `a\b`, false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"control", "a\x00b", false},
		{"too long", strings.Repeat("x", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.ok && err != nil {
				t.Errorf("ValidateName(%q) = %v, want nil", tt.input, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", tt.input, err)
			}
		})
	}
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()

	if err := s.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if _, err := s.LoadProfile("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadProfile(missing) = %v, want ErrNotFound", err)
	}
	if err := s.CreateProfile("alice"); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := s.CreateProfile("alice"); !errors.Is(err, ErrExists) {
		t.Fatalf("CreateProfile(dup) = %v, want ErrExists", err)
	}

	for _, topic := range []string{"news", "alerts", "news"} {
		if err := s.AddTopic("alice", topic); err != nil {
			t.Fatalf("AddTopic(%s): %v", topic, err)
		}
	}
	topics, err := s.LoadProfile("alice")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if !slices.Equal(topics, []string{"alerts", "news"}) {
		t.Errorf("topics = %v, want [alerts news]", topics)
	}

	if err := s.RemoveTopic("alice", "news"); err != nil {
		t.Fatalf("RemoveTopic: %v", err)
	}
	if err := s.RemoveTopic("alice", "never-added"); err != nil {
		t.Fatalf("RemoveTopic(absent): %v", err)
	}
	topics, _ = s.LoadProfile("alice")
	if !slices.Equal(topics, []string{"alerts"}) {
		t.Errorf("topics = %v, want [alerts]", topics)
	}

	if err := s.AddTopic("bob", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTopic(missing profile) = %v, want ErrNotFound", err)
	}
	if err := s.CreateProfile("../evil"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("CreateProfile(../evil) = %v, want ErrInvalidName", err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreUnavailable(t *testing.T) {
	s := NewMemoryStore()
	s.Unavailable = true
	if err := s.Check(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Check = %v, want ErrUnavailable", err)
	}
	if err := s.CreateProfile("alice"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CreateProfile = %v, want ErrUnavailable", err)
	}
}

func TestFileStore(t *testing.T) {
	storeContract(t, NewFileStore(t.TempDir()))
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first := NewFileStore(dir)
	if err := first.CreateProfile("alice"); err != nil {
		t.Fatal(err)
	}
	if err := first.AddTopic("alice", "news"); err != nil {
		t.Fatal(err)
	}

	second := NewFileStore(dir)
	topics, err := second.LoadProfile("alice")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if !slices.Equal(topics, []string{"news"}) {
		t.Errorf("topics = %v, want [news]", topics)
	}

	data, err := os.ReadFile(filepath.Join(dir, "alice.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "version: 1") {
		t.Errorf("profile file missing version:\n%s", data)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFileStoreUnavailable(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A regular file where the directory should be makes MkdirAll fail.
	s := NewFileStore(filepath.Join(blocker, "profiles"))

	if err := s.Check(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Check = %v, want ErrUnavailable", err)
	}
	if err := s.CreateProfile("alice"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CreateProfile = %v, want ErrUnavailable", err)
	}
}

func TestFileStoreCorruptProfile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alice.yaml"), []byte("topics: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(dir)
	if _, err := s.LoadProfile("alice"); err == nil {
		t.Error("expected parse error for corrupt profile")
	}
}

func TestDefaultDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	if got, want := DefaultDir(), filepath.Join("/tmp/xdg-state", "yamca", "profiles"); got != want {
		t.Errorf("DefaultDir() = %q, want %q", got, want)
	}
}
