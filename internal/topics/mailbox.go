package topics

import (
	"context"
	"sync"

	"github.com/yamca/yamca/internal/event"
)

// Delivery is a queued event with its position in the mailbox's stream.
// Seq starts at 1 and increases by one per accepted event.
type Delivery struct {
	Seq   uint64
	Event event.Event
}

// Mailbox is a listener that queues events from any goroutine for a single
// consumer goroutine. OnEvent never blocks on the consumer.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Delivery
	seq    uint64
	ready  chan struct{} // capacity 1; signalled when queue becomes non-empty
	closed bool
	done   chan struct{}
}

// NewMailbox creates a mailbox whose queue starts with room for size events.
func NewMailbox(size int) *Mailbox {
	if size < 0 {
		size = 0
	}
	return &Mailbox{
		queue: make([]Delivery, 0, size),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// OnEvent enqueues e. Events arriving after Close are dropped.
func (m *Mailbox) OnEvent(e event.Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.seq++
	m.queue = append(m.queue, Delivery{Seq: m.seq, Event: e})
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Mark returns the sequence number of the last accepted event, or 0 if none
// has arrived yet. Deliveries with Seq <= Mark() were enqueued before the
// call.
func (m *Mailbox) Mark() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Next blocks until an event is available, the mailbox is closed or ctx is
// done. The boolean is false in the latter two cases.
func (m *Mailbox) Next(ctx context.Context) (Delivery, bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			d := m.queue[0]
			m.queue[0] = Delivery{}
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return d, true
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-m.done:
			return Delivery{}, false
		case <-ctx.Done():
			return Delivery{}, false
		}
	}
}

// Drain removes and returns every queued event without blocking.
func (m *Mailbox) Drain() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// Len returns the number of queued events.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close wakes any blocked Next and drops future events.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}
