package broker

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/yamca/yamca/internal/protocol"
)

type topic struct {
	name      string
	createdAt time.Time
	posts     []protocol.Post
	listeners map[*client]bool
}

// Store holds the broker's topics, their recent posts and the connections
// listening to each.
type Store struct {
	mu           sync.RWMutex
	topics       map[string]*topic
	historyLimit int
}

func NewStore(historyLimit int) *Store {
	return &Store{
		topics:       make(map[string]*topic),
		historyLimit: historyLimit,
	}
}

func (s *Store) Create(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[name]; ok {
		return protocol.ErrTopicExists
	}
	s.topics[name] = &topic{
		name:      name,
		createdAt: time.Now(),
		listeners: make(map[*client]bool),
	}
	return nil
}

// Listen adds c to name's listeners. Listening twice is not an error.
func (s *Store) Listen(c *client, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if !ok {
		return protocol.ErrTopicNotFound
	}
	t.listeners[c] = true
	return nil
}

// History returns the retained posts of name, oldest first.
func (s *Store) History(name string) ([]protocol.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[name]
	if !ok {
		return nil, protocol.ErrTopicNotFound
	}
	return slices.Clone(t.posts), nil
}

func (s *Store) Stop(c *client, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if !ok {
		return protocol.ErrTopicNotFound
	}
	if !t.listeners[c] {
		return protocol.ErrNotListening
	}
	delete(t.listeners, c)
	return nil
}

// Delete removes name and returns the connections that were listening to it.
func (s *Store) Delete(name string) ([]*client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if !ok {
		return nil, protocol.ErrTopicNotFound
	}
	delete(s.topics, name)
	return listenersOf(t), nil
}

// Post appends p to name's history and returns its listeners.
func (s *Store) Post(name string, p protocol.Post) ([]*client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if !ok {
		return nil, protocol.ErrTopicNotFound
	}
	if s.historyLimit > 0 {
		t.posts = append(t.posts, p)
		if over := len(t.posts) - s.historyLimit; over > 0 {
			t.posts = slices.Delete(t.posts, 0, over)
		}
	}
	return listenersOf(t), nil
}

// Drop removes c from every topic it listens to.
func (s *Store) Drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		delete(t.listeners, c)
	}
}

// List returns every topic ordered by name.
func (s *Store) List() []protocol.TopicInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]protocol.TopicInfo, 0, len(s.topics))
	for _, t := range s.topics {
		result = append(result, protocol.TopicInfo{
			Name:      t.name,
			Listeners: len(t.listeners),
			Posts:     len(t.posts),
			CreatedAt: t.createdAt,
		})
	}
	slices.SortFunc(result, func(a, b protocol.TopicInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics)
}

func listenersOf(t *topic) []*client {
	out := make([]*client, 0, len(t.listeners))
	for c := range t.listeners {
		out = append(out, c)
	}
	return out
}
