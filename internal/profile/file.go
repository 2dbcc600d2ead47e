package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// fileVersion is bumped when the profile schema changes.
	fileVersion = 1

	profileExt = ".yaml"
	appDirName = "yamca"
)

// document is the on-disk form of a profile.
type document struct {
	Version   int       `yaml:"version"`
	Name      string    `yaml:"name"`
	Topics    []string  `yaml:"topics"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// FileStore keeps one YAML file per profile in a directory
// (default ~/.local/state/yamca/profiles, respecting XDG_STATE_HOME).
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a store rooted at dir. Pass an empty string to use
// the default XDG state path. The directory is created on first use.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileStore{dir: dir}
}

// DefaultDir returns the default profile directory.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName, "profiles")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appDirName, "profiles")
	}
	return filepath.Join(home, ".local", "state", appDirName, "profiles")
}

// Dir returns the directory holding the profile files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+profileExt)
}

// Check makes sure the directory exists and is writable.
func (s *FileStore) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureDir()
}

func (s *FileStore) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f, err := os.CreateTemp(s.dir, ".check-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.Close()
	os.Remove(f.Name())
	return nil
}

func (s *FileStore) CreateProfile(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path(name)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now().UTC()
	return s.write(&document{
		Version:   fileVersion,
		Name:      name,
		Topics:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *FileStore) LoadProfile(name string) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(doc.Topics), nil
}

func (s *FileStore) AddTopic(name, topic string) error {
	return s.update(name, func(doc *document) {
		if !slices.Contains(doc.Topics, topic) {
			doc.Topics = append(doc.Topics, topic)
			slices.Sort(doc.Topics)
		}
	})
}

func (s *FileStore) RemoveTopic(name, topic string) error {
	return s.update(name, func(doc *document) {
		doc.Topics = slices.DeleteFunc(doc.Topics, func(t string) bool { return t == topic })
	})
}

func (s *FileStore) update(name string, fn func(*document)) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(name)
	if err != nil {
		return err
	}
	fn(doc)
	doc.UpdatedAt = time.Now().UTC()
	return s.write(doc)
}

func (s *FileStore) read(name string) (*document, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", name, err)
	}
	if doc.Name == "" {
		doc.Name = name
	}
	return &doc, nil
}

// write saves doc atomically via a temp file and rename.
func (s *FileStore) write(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", doc.Name, err)
	}
	tmp, err := os.CreateTemp(s.dir, doc.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.path(doc.Name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
