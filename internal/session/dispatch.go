package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yamca/yamca/internal/event"
)

// op is one queued topic operation. A notice is a broker push with no call;
// it is queued only to be ordered after the topic's earlier operations.
type op struct {
	kind   event.Kind
	topic  string
	call   func(ctx context.Context) error
	notice bool
}

// dispatcher runs operations asynchronously, one lane per topic. Operations
// on the same topic run and complete in submission order; different topics
// proceed in parallel, bounded by the semaphore.
type dispatcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	sem     *semaphore.Weighted
	group   errgroup.Group
	done    func(op, error)

	mu     sync.Mutex
	lanes  map[string][]op
	closed bool
}

func newDispatcher(maxInFlight int, timeout time.Duration, done func(op, error)) *dispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		done:    done,
		lanes:   make(map[string][]op),
	}
}

// submit queues o on its topic lane. After close it completes o immediately
// with ErrSessionReset.
func (d *dispatcher) submit(o op) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.done(o, ErrSessionReset)
		return
	}
	defer d.mu.Unlock()

	queue, running := d.lanes[o.topic]
	d.lanes[o.topic] = append(queue, o)
	if !running {
		d.group.Go(func() error {
			d.drain(o.topic)
			return nil
		})
	}
}

func (d *dispatcher) drain(topic string) {
	for {
		d.mu.Lock()
		queue := d.lanes[topic]
		if len(queue) == 0 {
			delete(d.lanes, topic)
			d.mu.Unlock()
			return
		}
		next := queue[0]
		d.lanes[topic] = queue[1:]
		d.mu.Unlock()

		d.done(next, d.run(next))
	}
}

func (d *dispatcher) run(o op) error {
	if o.call == nil {
		return nil
	}
	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		return ErrSessionReset
	}
	defer d.sem.Release(1)

	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(d.ctx, d.timeout)
		defer cancel()
	}
	err := o.call(ctx)
	if err != nil && d.ctx.Err() != nil {
		return ErrSessionReset
	}
	return err
}

// close cancels pending operations and waits for every lane to finish. Lanes
// still report each queued operation, as failed.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.group.Wait()
}
