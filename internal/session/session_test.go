package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/yamca/yamca/internal/event"
	"github.com/yamca/yamca/internal/profile"
	"github.com/yamca/yamca/internal/topics"
)

var errBroker = errors.New("broker said no")

// fakeBackend resolves every call immediately unless the topic has a
// configured failure or a gate to wait on.
type fakeBackend struct {
	mu     sync.Mutex
	fail   map[string]error // "op topic" -> error
	gates  map[string]chan struct{}
	calls  []string
	closed bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{fail: map[string]error{}, gates: map[string]chan struct{}{}}
}

func (b *fakeBackend) failOn(op, topic string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op+" "+topic] = err
}

func (b *fakeBackend) gate(topic string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[topic] = ch
	return ch
}

func (b *fakeBackend) do(ctx context.Context, op, topic string) error {
	b.mu.Lock()
	b.calls = append(b.calls, op+" "+topic)
	err := b.fail[op+" "+topic]
	gate := b.gates[topic]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

func (b *fakeBackend) CreateTopic(ctx context.Context, t string) error {
	return b.do(ctx, "create", t)
}
func (b *fakeBackend) ListenForTopic(ctx context.Context, t string) error {
	return b.do(ctx, "listen", t)
}
func (b *fakeBackend) StopListening(ctx context.Context, t string) error {
	return b.do(ctx, "stop", t)
}
func (b *fakeBackend) DeleteTopic(ctx context.Context, t string) error {
	return b.do(ctx, "delete", t)
}
func (b *fakeBackend) Post(ctx context.Context, t, body string) error {
	return b.do(ctx, "post", t)
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeDialer hands out one backend and remembers the notifier.
type fakeDialer struct {
	mu       sync.Mutex
	backend  *fakeBackend
	notifier Notifier
	err      error
	dials    int
}

func (d *fakeDialer) Dial(ctx context.Context, ep Endpoint, identity string, n Notifier) (Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	d.notifier = n
	return d.backend, nil
}

func (d *fakeDialer) Notifier() Notifier {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notifier
}

// recorder collects events from a session onto a channel.
type recorder struct {
	ch chan event.Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan event.Event, 64)} }

func (r *recorder) OnEvent(e event.Event) { r.ch <- e }

func (r *recorder) next(t *testing.T) event.Event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-r.ch:
		t.Fatalf("unexpected event %s", e)
	case <-time.After(50 * time.Millisecond):
	}
}

var testEndpoint = Endpoint{Host: "10.0.0.5", Port: 5000}

func testOptions() Options {
	return Options{OpTimeout: time.Second, MaxInFlight: 4, DialTimeout: time.Second}
}

func readySession(t *testing.T, opts Options) (*Session, *fakeBackend, *fakeDialer, *profile.MemoryStore, *recorder) {
	t.Helper()
	backend := newFakeBackend()
	dialer := &fakeDialer{backend: backend}
	store := profile.NewMemoryStore()
	s := New(dialer, opts)
	rec := newRecorder()
	s.AddListener(rec)
	if err := s.Configure(context.Background(), testEndpoint, "alice", store); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if s.State() != Ready {
		t.Fatalf("state = %s, want ready", s.State())
	}
	t.Cleanup(s.Reset)
	return s, backend, dialer, store, rec
}

func TestScenarioCreateFailsThenListenAndDelete(t *testing.T) {
	s, backend, _, _, rec := readySession(t, testOptions())
	view := topics.NewView()

	backend.failOn("create", "news", errBroker)
	if err := s.CreateTopic("news"); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	e := rec.next(t)
	if e.Kind != event.TopicCreated || e.Topic != "news" || e.Success {
		t.Fatalf("got %s, want failed topic_created news", e)
	}
	if !errors.Is(e.Cause(), errBroker) {
		t.Errorf("cause = %v, want %v", e.Cause(), errBroker)
	}
	view.Apply(e)
	if got := view.Topics.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot = %v after failed create", got)
	}

	steps := []struct {
		do   func(string) error
		arg  string
		want []string
	}{
		{s.ListenForTopic, "news", []string{"news"}},
		{s.ListenForTopic, "alerts", []string{"alerts", "news"}},
		{s.DeleteTopic, "news", []string{"alerts"}},
	}
	for _, st := range steps {
		if err := st.do(st.arg); err != nil {
			t.Fatalf("op on %q: %v", st.arg, err)
		}
		e := rec.next(t)
		if !e.Success {
			t.Fatalf("event %s failed", e)
		}
		view.Apply(e)
		if got := view.Topics.Snapshot(); !slices.Equal(got, st.want) {
			t.Fatalf("snapshot = %v, want %v", got, st.want)
		}
	}
	if got := s.Topics(); !slices.Equal(got, []string{"alerts"}) {
		t.Errorf("session topics = %v", got)
	}
}

func TestConfigureTwice(t *testing.T) {
	s, _, _, _, _ := readySession(t, testOptions())
	err := s.Configure(context.Background(), testEndpoint, "", profile.NewMemoryStore())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("second Configure = %v, want ErrAlreadyConfigured", err)
	}
}

func TestConfigureTwiceChecksStateFirst(t *testing.T) {
	s, _, _, _, _ := readySession(t, testOptions())
	err := s.Configure(context.Background(), Endpoint{}, "", profile.NewMemoryStore())
	if !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("second Configure with bad endpoint = %v, want ErrAlreadyConfigured", err)
	}
}

func TestConfigureUnavailableStore(t *testing.T) {
	s := New(&fakeDialer{backend: newFakeBackend()}, testOptions())
	store := profile.NewMemoryStore()
	store.Unavailable = true

	err := s.Configure(context.Background(), testEndpoint, "alice", store)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Configure = %v, want ErrStoreUnavailable", err)
	}
	if s.State() != Empty {
		t.Errorf("state = %s, want empty", s.State())
	}
	if err := s.Configure(context.Background(), testEndpoint, "alice", nil); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("nil store: %v", err)
	}
}

func TestConfigureInvalidEndpoint(t *testing.T) {
	s := New(&fakeDialer{backend: newFakeBackend()}, testOptions())
	err := s.Configure(context.Background(), Endpoint{Host: "", Port: 5000}, "", profile.NewMemoryStore())
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Configure = %v, want ValidationError", err)
	}
}

func TestOperationsBeforeReady(t *testing.T) {
	s := New(&fakeDialer{backend: newFakeBackend()}, testOptions())
	if err := s.CreateTopic("news"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("before configure: %v", err)
	}
	if err := s.SwitchToNewProfile(context.Background(), "bob"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("switch before configure: %v", err)
	}

	if err := s.Configure(context.Background(), testEndpoint, "", profile.NewMemoryStore()); err != nil {
		t.Fatal(err)
	}
	defer s.Reset()
	if s.State() != Configuring {
		t.Fatalf("state = %s, want configuring", s.State())
	}
	if err := s.ListenForTopic("news"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("before profile: %v", err)
	}
}

func TestInvalidTopicRejectedSynchronously(t *testing.T) {
	s, backend, _, _, rec := readySession(t, testOptions())
	for _, name := range []string{"", "   ", "bad\nname"} {
		var vErr *ValidationError
		if err := s.CreateTopic(name); !errors.As(err, &vErr) {
			t.Errorf("CreateTopic(%q) = %v, want ValidationError", name, err)
		}
	}
	if err := s.Post("news", ""); err == nil {
		t.Error("empty post accepted")
	}
	rec.none(t)
	if calls := backend.Calls(); len(calls) != 0 {
		t.Errorf("backend called: %v", calls)
	}
}

func TestProfileSwitchErrors(t *testing.T) {
	s, _, _, store, _ := readySession(t, testOptions())

	err := s.SwitchToNewProfile(context.Background(), "alice")
	var pErr *ProfileError
	if !errors.As(err, &pErr) || !errors.Is(err, profile.ErrExists) {
		t.Fatalf("new existing profile = %v", err)
	}
	if err := s.SwitchToExistingProfile(context.Background(), "nobody"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("load missing profile = %v", err)
	}
	if err := s.SwitchToNewProfile(context.Background(), "../x"); !errors.Is(err, profile.ErrInvalidName) {
		t.Fatalf("invalid name = %v", err)
	}

	store.Unavailable = true
	if err := s.SwitchToExistingProfile(context.Background(), "alice"); !errors.Is(err, profile.ErrUnavailable) {
		t.Fatalf("unavailable store = %v", err)
	}
}

func TestBackendUnreachable(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	s := New(dialer, testOptions())
	err := s.Configure(context.Background(), testEndpoint, "alice", profile.NewMemoryStore())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("Configure = %v, want ErrBackendUnreachable", err)
	}
	if s.State() != Configuring {
		t.Errorf("state = %s, want configuring", s.State())
	}
}

func TestSameTopicEventsKeepOrder(t *testing.T) {
	s, backend, _, _, rec := readySession(t, testOptions())

	gate := backend.gate("news")
	if err := s.ListenForTopic("news"); err != nil {
		t.Fatal(err)
	}
	if err := s.StopListening("news"); err != nil {
		t.Fatal(err)
	}
	if err := s.ListenForTopic("other"); err != nil {
		t.Fatal(err)
	}

	if e := rec.next(t); e.Topic != "other" || e.Kind != event.TopicListened {
		t.Fatalf("first event = %s, want other topic unblocked", e)
	}
	close(gate)

	first, second := rec.next(t), rec.next(t)
	if first.Kind != event.TopicListened || !first.Success {
		t.Errorf("first news event = %s", first)
	}
	if second.Kind != event.TopicListenStopped || !second.Success {
		t.Errorf("second news event = %s", second)
	}
}

func TestSubscriptionGuards(t *testing.T) {
	s, backend, _, _, rec := readySession(t, testOptions())

	for _, do := range []func(string) error{s.StopListening, s.DeleteTopic} {
		if err := do("news"); err != nil {
			t.Fatal(err)
		}
		e := rec.next(t)
		if e.Success || !errors.Is(e.Err, ErrNotSubscribed) {
			t.Errorf("event %s, want ErrNotSubscribed", e)
		}
	}
	if err := s.Post("news", "hi"); err != nil {
		t.Fatal(err)
	}
	if e := rec.next(t); e.Kind != event.MessageSent || !errors.Is(e.Err, ErrNotSubscribed) {
		t.Errorf("post event %s", e)
	}

	s.ListenForTopic("news")
	rec.next(t)
	s.ListenForTopic("news")
	if e := rec.next(t); e.Success || !errors.Is(e.Err, ErrAlreadySubscribed) {
		t.Errorf("second listen = %s", e)
	}
	if calls := backend.Calls(); !slices.Equal(calls, []string{"listen news"}) {
		t.Errorf("backend calls = %v", calls)
	}
}

func TestAutoListenAfterCreate(t *testing.T) {
	opts := testOptions()
	opts.AutoListen = true
	s, _, _, _, rec := readySession(t, opts)

	s.CreateTopic("news")
	if e := rec.next(t); e.Kind != event.TopicCreated || !e.Success {
		t.Fatalf("got %s", e)
	}
	if e := rec.next(t); e.Kind != event.TopicListened || !e.Success {
		t.Fatalf("got %s, want auto listen", e)
	}
	if !s.IsSubscribed("news") {
		t.Error("news not subscribed")
	}
}

func TestTopicsPersistAcrossProfileSwitch(t *testing.T) {
	s, backend, _, store, rec := readySession(t, testOptions())

	s.ListenForTopic("news")
	s.ListenForTopic("alerts")
	rec.next(t)
	rec.next(t)

	if got, _ := store.LoadProfile("alice"); !slices.Equal(got, []string{"alerts", "news"}) {
		t.Fatalf("stored topics = %v", got)
	}

	if err := s.SwitchToNewProfile(context.Background(), "bob"); err != nil {
		t.Fatal(err)
	}
	if got := s.Topics(); len(got) != 0 {
		t.Fatalf("bob topics = %v", got)
	}

	backend.failOn("listen", "news", errBroker)
	if err := s.SwitchToExistingProfile(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	if s.ProfileName() != "alice" {
		t.Errorf("profile = %q", s.ProfileName())
	}
	loaded := map[string]bool{}
	for range 2 {
		e := rec.next(t)
		if e.Kind != event.TopicLoaded {
			t.Fatalf("got %s, want topic_loaded", e)
		}
		loaded[e.Topic] = e.Success
	}
	if !loaded["alerts"] || loaded["news"] {
		t.Errorf("loaded = %v", loaded)
	}
	if got, _ := store.LoadProfile("alice"); len(got) != 2 {
		t.Errorf("failed reload dropped a stored topic: %v", got)
	}
}

func TestServerNotifications(t *testing.T) {
	s, _, dialer, store, rec := readySession(t, testOptions())
	s.ListenForTopic("news")
	rec.next(t)

	n := dialer.Notifier()
	n.MessageReceived("news")
	n.MessageReceived("unknown")
	if e := rec.next(t); e.Kind != event.MessageReceived || e.Topic != "news" {
		t.Fatalf("got %s", e)
	}

	n.TopicDeleted("news")
	if e := rec.next(t); e.Kind != event.TopicDeleted || !e.Success {
		t.Fatalf("got %s", e)
	}
	rec.none(t)
	if s.IsSubscribed("news") {
		t.Error("news still subscribed")
	}
	if got, _ := store.LoadProfile("alice"); len(got) != 0 {
		t.Errorf("stored topics = %v", got)
	}
}

func TestMessageDuringPendingListenIsKept(t *testing.T) {
	s, backend, dialer, _, rec := readySession(t, testOptions())

	gate := backend.gate("news")
	if err := s.ListenForTopic("news"); err != nil {
		t.Fatal(err)
	}
	dialer.Notifier().MessageReceived("news")
	rec.none(t)
	close(gate)

	if e := rec.next(t); e.Kind != event.TopicListened || !e.Success {
		t.Fatalf("first event = %s, want topic_listened", e)
	}
	if e := rec.next(t); e.Kind != event.MessageReceived || e.Topic != "news" {
		t.Fatalf("second event = %s, want message_received news", e)
	}
}

func TestMessageAfterFailedListenIsDropped(t *testing.T) {
	s, backend, dialer, _, rec := readySession(t, testOptions())

	backend.failOn("listen", "news", errBroker)
	gate := backend.gate("news")
	s.ListenForTopic("news")
	dialer.Notifier().MessageReceived("news")
	close(gate)

	if e := rec.next(t); e.Kind != event.TopicListened || e.Success {
		t.Fatalf("got %s, want failed topic_listened", e)
	}
	rec.none(t)
}

func TestResetFailsPendingOperations(t *testing.T) {
	s, backend, _, _, rec := readySession(t, testOptions())
	backend.gate("news")
	s.ListenForTopic("news")

	s.Reset()
	e := rec.next(t)
	if e.Success || !errors.Is(e.Err, ErrSessionReset) {
		t.Fatalf("got %s, want ErrSessionReset", e)
	}
	if s.State() != Empty {
		t.Fatalf("state = %s", s.State())
	}
	if !backend.Closed() {
		t.Error("backend not closed")
	}
	if err := s.Configure(context.Background(), testEndpoint, "alice", profile.NewMemoryStore()); err != nil {
		t.Fatalf("configure after reset: %v", err)
	}
}

func TestRemovedListenerStopsReceiving(t *testing.T) {
	s, _, _, _, rec := readySession(t, testOptions())
	other := newRecorder()
	reg := s.AddListener(other)

	s.ListenForTopic("a")
	rec.next(t)
	other.next(t)

	if !s.RemoveListener(reg) {
		t.Fatal("RemoveListener = false")
	}
	if s.RemoveListener(reg) {
		t.Fatal("second RemoveListener = true")
	}
	s.ListenForTopic("b")
	rec.next(t)
	other.none(t)
}
