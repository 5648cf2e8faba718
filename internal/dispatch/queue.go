// Package dispatch provides a single-goroutine task queue. Every closure
// posted to a Queue runs on the same goroutine, one at a time, in posting
// order, which makes the queue the only synchronization needed for state it
// owns.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Queue serializes closures onto one worker goroutine.
type Queue struct {
	name   string
	logger *log.Logger

	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// New starts a queue worker. name only shows up in logs.
func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	if q.logger == nil {
		q.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "dispatch"})
	}
	go q.run()
	return q
}

// Dispatch posts fn to the worker. It never blocks and may be called from
// inside a running closure. Returns false once the queue is closed.
func (q *Queue) Dispatch(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every closure posted before the call has run.
func (q *Queue) Sync(ctx context.Context) error {
	ch := make(chan struct{})
	if !q.Dispatch(func() { close(ch) }) {
		return fmt.Errorf("dispatch %s: queue closed", q.name)
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further posts, runs what is already queued and waits for
// the worker to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	already := q.closed
	q.closed = true
	q.mu.Unlock()

	if !already {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	<-q.done
}

// Len returns the number of closures waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			q.call(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

func (q *Queue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("closure panicked", "queue", q.name, "panic", r)
		}
	}()
	fn()
}
