package profile

import (
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store. Setting Unavailable makes every call
// fail with ErrUnavailable.
type MemoryStore struct {
	mu          sync.Mutex
	profiles    map[string][]string
	Unavailable bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string][]string)}
}

func (s *MemoryStore) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return ErrUnavailable
	}
	return nil
}

func (s *MemoryStore) CreateProfile(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return ErrUnavailable
	}
	if _, ok := s.profiles[name]; ok {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	s.profiles[name] = []string{}
	return nil
}

func (s *MemoryStore) LoadProfile(name string) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return nil, ErrUnavailable
	}
	topics, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return slices.Clone(topics), nil
}

func (s *MemoryStore) AddTopic(name, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return ErrUnavailable
	}
	topics, ok := s.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !slices.Contains(topics, topic) {
		topics = append(topics, topic)
		slices.Sort(topics)
		s.profiles[name] = topics
	}
	return nil
}

func (s *MemoryStore) RemoveTopic(name, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return ErrUnavailable
	}
	topics, ok := s.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.profiles[name] = slices.DeleteFunc(topics, func(t string) bool { return t == topic })
	return nil
}
