// Package topics holds the consumer-side views derived from lifecycle
// events: the sorted set of listened topics and their unread counters.
//
// Set, Unread and View are not safe for concurrent use. They belong to one
// goroutine; events produced elsewhere reach that goroutine through a
// Mailbox.
package topics

import (
	"slices"

	"github.com/yamca/yamca/internal/event"
)

// Set is the sorted, duplicate-free projection of listened topics. Ordering is
// plain byte-wise string comparison.
type Set struct {
	names []string // always sorted ascending
}

// NewSet returns a set seeded with names.
func NewSet(names ...string) *Set {
	s := &Set{}
	s.ReplaceAll(names)
	return s
}

// Apply updates membership from e. Only successful listen, stop and delete
// events change membership.
func (s *Set) Apply(e event.Event) bool {
	if !e.Success {
		return false
	}
	switch e.Kind {
	case event.TopicListened:
		return s.Insert(e.Topic)
	case event.TopicListenStopped, event.TopicDeleted:
		return s.Remove(e.Topic)
	}
	return false
}

// Insert adds name and reports whether the set changed.
func (s *Set) Insert(name string) bool {
	i, found := slices.BinarySearch(s.names, name)
	if found {
		return false
	}
	s.names = slices.Insert(s.names, i, name)
	return true
}

// Remove deletes name and reports whether the set changed.
func (s *Set) Remove(name string) bool {
	i, found := slices.BinarySearch(s.names, name)
	if !found {
		return false
	}
	s.names = slices.Delete(s.names, i, i+1)
	return true
}

// ReplaceAll discards the current contents and seeds the set from names.
func (s *Set) ReplaceAll(names []string) {
	next := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			next = append(next, n)
		}
	}
	slices.Sort(next)
	s.names = slices.Compact(next)
}

// Contains reports whether name is a member.
func (s *Set) Contains(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// Snapshot returns the members in ascending order. The result is a copy.
func (s *Set) Snapshot() []string {
	return slices.Clone(s.names)
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.names)
}

// At returns the i-th member in ascending order.
func (s *Set) At(i int) string {
	return s.names[i]
}
