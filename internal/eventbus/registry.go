// Package eventbus fans lifecycle events out to registered listeners.
package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yamca/yamca/internal/event"
)

// ErrNotRegistered is the registry violation reported when removing a
// registration that is unknown or already removed.
var ErrNotRegistered = errors.New("eventbus: registration is not active")

// Registration identifies one listener in a Registry. The zero value is
// never active.
type Registration struct {
	id uuid.UUID
}

func (r Registration) String() string {
	return r.id.String()
}

type entry struct {
	reg      Registration
	listener event.Listener
}

// Registry delivers every published event to its listeners, in registration
// order, on the publishing goroutine. Publish, Add and Remove are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry // replaced, never mutated in place

	// OnPanic, when set, is called after a listener panic has been recovered.
	OnPanic func(reg Registration, e event.Event, recovered any)

	logger zerolog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		logger: log.With().Str("component", "eventbus").Logger(),
	}
}

// Add registers l for every subsequently published event. Past events are
// not replayed.
func (r *Registry) Add(l event.Listener) Registration {
	reg := Registration{id: uuid.New()}

	r.mu.Lock()
	next := make([]entry, len(r.entries), len(r.entries)+1)
	copy(next, r.entries)
	r.entries = append(next, entry{reg: reg, listener: l})
	r.mu.Unlock()

	r.logger.Debug().Str("registration", reg.String()).Msg("listener added")
	return reg
}

// AddFunc registers a plain function.
func (r *Registry) AddFunc(fn func(event.Event)) Registration {
	return r.Add(event.ListenerFunc(fn))
}

// Remove unregisters reg. It reports false when reg is not active; callers
// that own reg should treat that as a programming error (see MustRemove).
func (r *Registry) Remove(reg Registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.reg != reg {
			continue
		}
		next := make([]entry, 0, len(r.entries)-1)
		next = append(next, r.entries[:i]...)
		next = append(next, r.entries[i+1:]...)
		r.entries = next
		r.logger.Debug().Str("registration", reg.String()).Msg("listener removed")
		return true
	}
	return false
}

// MustRemove removes reg and panics if it was not active.
func (r *Registry) MustRemove(reg Registration) {
	if !r.Remove(reg) {
		panic(fmt.Errorf("%w: %s", ErrNotRegistered, reg))
	}
}

// Publish delivers e to every listener registered at the time of the call.
// A panicking listener is recovered and logged; the remaining listeners still
// receive the event.
func (r *Registry) Publish(e event.Event) {
	r.mu.RLock()
	snapshot := r.entries
	r.mu.RUnlock()

	r.logger.Debug().
		Str("kind", e.Kind.String()).
		Str("topic", e.Topic).
		Bool("success", e.Success).
		Int("listeners", len(snapshot)).
		Msg("publish")

	for _, en := range snapshot {
		r.deliver(en, e)
	}
}

func (r *Registry) deliver(en entry, e event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("registration", en.reg.String()).
				Str("kind", e.Kind.String()).
				Str("topic", e.Topic).
				Interface("panic", rec).
				Msg("listener panicked")
			if r.OnPanic != nil {
				r.OnPanic(en.reg, e, rec)
			}
		}
	}()
	en.listener.OnEvent(e)
}

// Len returns the number of active registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
