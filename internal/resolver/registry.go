// Package resolver keeps callers waiting on the next value of some state
// (server state, simulator connectivity). Each waiter is released exactly
// once, either by NotifyAll or by RejectAll.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrRejected is passed to reject callbacks when no specific error is given.
var ErrRejected = errors.New("resolver: rejected")

type entry[T any] struct {
	resolve func(T)
	reject  func(error)
}

// Registry holds pending (resolve, reject) pairs.
type Registry[T any] struct {
	mu      sync.Mutex
	entries []entry[T]
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Add registers a waiter. Either callback may be nil.
func (r *Registry[T]) Add(resolve func(T), reject func(error)) {
	r.mu.Lock()
	r.entries = append(r.entries, entry[T]{resolve: resolve, reject: reject})
	r.mu.Unlock()
}

// NotifyAll releases every waiter registered so far with v. Waiters added
// by the callbacks themselves wait for the next notification. Returns the
// number of waiters released.
func (r *Registry[T]) NotifyAll(v T) int {
	entries := r.swap()
	for _, e := range entries {
		if e.resolve != nil {
			e.resolve(v)
		}
	}
	return len(entries)
}

// RejectAll releases every waiter with err (ErrRejected when nil).
func (r *Registry[T]) RejectAll(err error) int {
	if err == nil {
		err = ErrRejected
	}
	entries := r.swap()
	for _, e := range entries {
		if e.reject != nil {
			e.reject(err)
		}
	}
	return len(entries)
}

// Len returns the number of pending waiters.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close panics when waiters are still pending: they must have been
// released with RejectAll first.
func (r *Registry[T]) Close() {
	if n := r.Len(); n != 0 {
		panic(fmt.Sprintf("resolver: closed with %d pending waiters", n))
	}
}

// Wait registers a waiter and blocks until it is resolved or rejected, or
// until ctx is done. A waiter abandoned through ctx stays registered and is
// released silently by the next notification.
func (r *Registry[T]) Wait(ctx context.Context) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	r.Add(
		func(v T) { ch <- result{v: v} },
		func(err error) { ch <- result{err: err} },
	)

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (r *Registry[T]) swap() []entry[T] {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()
	return entries
}
