// Package session implements the single per-user facade through which every
// topic operation flows. Operations return immediately; their outcome is
// delivered only as a lifecycle event on the session's registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yamca/yamca/internal/event"
	"github.com/yamca/yamca/internal/eventbus"
	"github.com/yamca/yamca/internal/profile"
)

// State is the configuration state of a Session.
type State int

const (
	Empty       State = iota // created, not configured
	Configuring              // endpoint and store set, no active profile
	Ready                    // profile active, topic operations allowed
)

var stateNames = map[State]string{
	Empty:       "empty",
	Configuring: "configuring",
	Ready:       "ready",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Options tunes a Session.
type Options struct {
	// OpTimeout bounds each backend call. Zero means no timeout.
	OpTimeout time.Duration
	// MaxInFlight bounds concurrent backend calls across topics.
	MaxInFlight int
	// AutoListen listens to a topic as soon as creating it succeeds.
	AutoListen bool
	// DialTimeout bounds connecting during a profile switch.
	DialTimeout time.Duration
}

// DefaultOptions returns the options used by the terminal client.
func DefaultOptions() Options {
	return Options{
		OpTimeout:   10 * time.Second,
		MaxInFlight: 8,
		AutoListen:  true,
		DialTimeout: 10 * time.Second,
	}
}

// Session is the current user: endpoint, identity, profile store, and the
// entry point for topic operations. Create one with New and pass it
// explicitly to whoever needs it.
type Session struct {
	bus    *eventbus.Registry
	dialer Dialer
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	gen        uint64 // bumped whenever the backend or profile changes
	endpoint   Endpoint
	store      profile.Store
	identity   string
	subscribed map[string]bool
	backend    Backend
	ops        *dispatcher
}

// New creates an empty session that connects through dialer.
func New(dialer Dialer, opts Options) *Session {
	s := &Session{
		bus:        eventbus.New(),
		dialer:     dialer,
		opts:       opts,
		logger:     log.With().Str("component", "session").Logger(),
		subscribed: make(map[string]bool),
	}
	s.ops = s.newDispatcher(s.gen)
	return s
}

func (s *Session) newDispatcher(gen uint64) *dispatcher {
	return newDispatcher(s.opts.MaxInFlight, s.opts.OpTimeout, func(o op, err error) {
		s.complete(gen, o, err)
	})
}

// AddListener registers l for subsequent lifecycle events.
func (s *Session) AddListener(l event.Listener) eventbus.Registration {
	return s.bus.Add(l)
}

// RemoveListener unregisters reg and reports whether it was active.
func (s *Session) RemoveListener(reg eventbus.Registration) bool {
	return s.bus.Remove(reg)
}

// MustRemoveListener unregisters reg and panics if it was not active.
func (s *Session) MustRemoveListener(reg eventbus.Registration) {
	s.bus.MustRemove(reg)
}

// Configure sets the endpoint and profile store. It must be called exactly
// once per login; use Reset before configuring again. A non-empty identity
// opens that profile (loading it, or creating it if it does not exist) and
// leaves the session Ready.
func (s *Session) Configure(ctx context.Context, ep Endpoint, identity string, store profile.Store) error {
	s.mu.Lock()
	if s.state != Empty {
		s.mu.Unlock()
		return &ConfigurationError{Op: "configure", Err: ErrAlreadyConfigured}
	}
	if err := ep.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if store == nil {
		s.mu.Unlock()
		return &ConfigurationError{Op: "configure", Err: ErrStoreUnavailable}
	}
	if err := store.Check(); err != nil {
		s.mu.Unlock()
		return &ConfigurationError{Op: "configure", Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	}
	s.endpoint = ep
	s.store = store
	s.state = Configuring
	s.mu.Unlock()

	s.logger.Info().Str("endpoint", ep.String()).Msg("session configured")

	if identity == "" {
		return nil
	}
	err := s.SwitchToExistingProfile(ctx, identity)
	if errors.Is(err, profile.ErrNotFound) {
		err = s.SwitchToNewProfile(ctx, identity)
	}
	return err
}

// SwitchToNewProfile creates a profile in the store and makes it current.
func (s *Session) SwitchToNewProfile(ctx context.Context, name string) error {
	return s.switchProfile(ctx, name, "create")
}

// SwitchToExistingProfile loads a stored profile and makes it current. The
// profile's topics are re-listened; each completion emits TopicLoaded.
func (s *Session) SwitchToExistingProfile(ctx context.Context, name string) error {
	return s.switchProfile(ctx, name, "load")
}

func (s *Session) switchProfile(ctx context.Context, name, mode string) error {
	if err := profile.ValidateName(name); err != nil {
		return &ProfileError{Op: mode, Name: name, Err: err}
	}

	s.mu.Lock()
	if s.state == Empty {
		s.mu.Unlock()
		return &ConfigurationError{Op: "switch profile", Err: ErrNotConfigured}
	}
	oldOps, oldBackend := s.detachLocked(Configuring)
	gen := s.gen
	ep, store := s.endpoint, s.store
	s.mu.Unlock()

	s.shutdown(oldOps, oldBackend)

	if err := store.Check(); err != nil {
		return &ProfileError{Op: mode, Name: name, Err: err}
	}

	dialCtx := ctx
	if s.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.opts.DialTimeout)
		defer cancel()
	}
	backend, err := s.dialer.Dial(dialCtx, ep, name, &notifier{s: s, gen: gen})
	if err != nil {
		return &ConfigurationError{Op: "connect", Err: fmt.Errorf("%w: %v", ErrBackendUnreachable, err)}
	}

	var topics []string
	if mode == "create" {
		err = store.CreateProfile(name)
	} else {
		topics, err = store.LoadProfile(name)
	}
	if err != nil {
		backend.Close()
		return &ProfileError{Op: mode, Name: name, Err: err}
	}

	s.mu.Lock()
	if s.gen != gen || s.state != Configuring {
		s.mu.Unlock()
		backend.Close()
		return &ConfigurationError{Op: "switch profile", Err: ErrInterrupted}
	}
	s.identity = name
	s.backend = backend
	s.subscribed = make(map[string]bool, len(topics))
	for _, t := range topics {
		s.subscribed[t] = true
	}
	s.state = Ready
	ops := s.ops
	s.mu.Unlock()

	s.logger.Info().Str("profile", name).Str("mode", mode).Int("topics", len(topics)).Msg("profile active")

	for _, t := range topics {
		ops.submit(op{kind: event.TopicLoaded, topic: t, call: func(ctx context.Context) error {
			return backend.ListenForTopic(ctx, t)
		}})
	}
	return nil
}

// Reset closes the backend, waits for in-flight operations and returns the
// session to Empty so it can be configured for another login.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.state == Empty {
		s.mu.Unlock()
		return
	}
	oldOps, oldBackend := s.detachLocked(Empty)
	s.endpoint = Endpoint{}
	s.store = nil
	s.mu.Unlock()

	s.shutdown(oldOps, oldBackend)
	s.logger.Info().Msg("session reset")
}

// detachLocked moves the session to state with a fresh dispatcher and no
// backend, returning the previous ones for shutdown outside the lock.
func (s *Session) detachLocked(state State) (*dispatcher, Backend) {
	oldOps, oldBackend := s.ops, s.backend
	s.gen++
	s.ops = s.newDispatcher(s.gen)
	s.backend = nil
	s.identity = ""
	s.subscribed = make(map[string]bool)
	s.state = state
	return oldOps, oldBackend
}

func (s *Session) shutdown(ops *dispatcher, backend Backend) {
	if backend != nil {
		if err := backend.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing backend")
		}
	}
	ops.close()
}

// CreateTopic asks the broker to create topic.
func (s *Session) CreateTopic(topic string) error {
	return s.issue(event.TopicCreated, topic, func(b Backend) func(context.Context) error {
		return func(ctx context.Context) error { return b.CreateTopic(ctx, topic) }
	})
}

// ListenForTopic subscribes to topic.
func (s *Session) ListenForTopic(topic string) error {
	return s.issue(event.TopicListened, topic, func(b Backend) func(context.Context) error {
		return func(ctx context.Context) error {
			if s.isSubscribed(topic) {
				return ErrAlreadySubscribed
			}
			return b.ListenForTopic(ctx, topic)
		}
	})
}

// StopListening unsubscribes from topic.
func (s *Session) StopListening(topic string) error {
	return s.issue(event.TopicListenStopped, topic, func(b Backend) func(context.Context) error {
		return func(ctx context.Context) error {
			if !s.isSubscribed(topic) {
				return ErrNotSubscribed
			}
			return b.StopListening(ctx, topic)
		}
	})
}

// DeleteTopic deletes topic on the broker. Only listened topics may be
// deleted.
func (s *Session) DeleteTopic(topic string) error {
	return s.issue(event.TopicDeleted, topic, func(b Backend) func(context.Context) error {
		return func(ctx context.Context) error {
			if !s.isSubscribed(topic) {
				return ErrNotSubscribed
			}
			return b.DeleteTopic(ctx, topic)
		}
	})
}

// Post sends body to a listened topic. The outcome is a MessageSent event.
func (s *Session) Post(topic, body string) error {
	if body == "" {
		return &ValidationError{Field: "post", Value: body, Reason: "empty body"}
	}
	return s.issue(event.MessageSent, topic, func(b Backend) func(context.Context) error {
		return func(ctx context.Context) error {
			if !s.isSubscribed(topic) {
				return ErrNotSubscribed
			}
			return b.Post(ctx, topic, body)
		}
	})
}

// issue checks preconditions synchronously and queues the operation.
func (s *Session) issue(kind event.Kind, topic string, bind func(Backend) func(context.Context) error) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	s.mu.Lock()
	switch s.state {
	case Empty:
		s.mu.Unlock()
		return &ConfigurationError{Op: kind.String(), Err: ErrNotConfigured}
	case Configuring:
		s.mu.Unlock()
		return &ConfigurationError{Op: kind.String(), Err: ErrNotReady}
	}
	ops, backend := s.ops, s.backend
	s.mu.Unlock()

	s.logger.Debug().Str("kind", kind.String()).Str("topic", topic).Msg("issue")
	ops.submit(op{kind: kind, topic: topic, call: bind(backend)})
	return nil
}

// complete runs on a dispatcher lane once an operation resolves. It updates
// the profile bookkeeping, then publishes the event.
func (s *Session) complete(gen uint64, o op, err error) {
	s.mu.Lock()
	stale := gen != s.gen
	subscribed := s.subscribed[o.topic]
	s.mu.Unlock()

	if o.notice {
		if err != nil || stale || !subscribed {
			s.logger.Debug().Str("kind", o.kind.String()).Str("topic", o.topic).Msg("dropping push for unlistened topic")
			return
		}
	}
	if stale && err == nil {
		err = ErrSessionReset
	}

	e := event.FromResult(o.kind, o.topic, err)
	if e.Success {
		s.record(gen, e)
	} else {
		s.logger.Warn().Err(e.Err).Str("kind", e.Kind.String()).Str("topic", e.Topic).Msg("operation failed")
	}

	s.bus.Publish(e)

	if e.Success && e.Kind == event.TopicCreated && s.opts.AutoListen {
		if err := s.ListenForTopic(o.topic); err != nil {
			s.logger.Warn().Err(err).Str("topic", o.topic).Msg("auto-listen after create")
		}
	}
}

// record applies a successful event to the current profile and persists it.
func (s *Session) record(gen uint64, e event.Event) {
	var add bool
	switch e.Kind {
	case event.TopicListened:
		add = true
	case event.TopicListenStopped, event.TopicDeleted:
		add = false
	default:
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if add {
		s.subscribed[e.Topic] = true
	} else {
		delete(s.subscribed, e.Topic)
	}
	store, identity := s.store, s.identity
	s.mu.Unlock()

	var err error
	if add {
		err = store.AddTopic(identity, e.Topic)
	} else {
		err = store.RemoveTopic(identity, e.Topic)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("profile", identity).Str("topic", e.Topic).Msg("persisting profile topics")
	}
}

func (s *Session) isSubscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed[topic]
}

// IsSubscribed reports whether the active profile listens to topic.
func (s *Session) IsSubscribed(topic string) bool {
	return s.isSubscribed(topic)
}

// State returns the current configuration state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Endpoint returns the configured endpoint.
func (s *Session) Endpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// ProfileName returns the active profile, or "" when not Ready.
func (s *Session) ProfileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Topics returns the current profile's listened topics in ascending order.
// It is the snapshot used to seed a topic projection.
func (s *Session) Topics() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.subscribed))
	for t := range s.subscribed {
		out = append(out, t)
	}
	s.mu.Unlock()
	slices.Sort(out)
	return out
}

// notifier turns broker pushes for one connection into events, ordered with
// the topic's pending operations.
type notifier struct {
	s   *Session
	gen uint64
}

func (n *notifier) TopicDeleted(topic string) {
	n.push(event.TopicDeleted, topic)
}

func (n *notifier) MessageReceived(topic string) {
	n.push(event.MessageReceived, topic)
}

// push queues the notification behind the topic's pending operations, so a
// message that races ahead of its listen response is kept. Subscription is
// checked when the notice reaches the front of the lane.
func (n *notifier) push(kind event.Kind, topic string) {
	n.s.mu.Lock()
	if n.gen != n.s.gen {
		n.s.mu.Unlock()
		return
	}
	ops := n.s.ops
	n.s.mu.Unlock()

	ops.submit(op{kind: kind, topic: topic, notice: true})
}
