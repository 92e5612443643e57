// Package stream provides a typed single-producer channel of incremental values
// that ends with exactly one terminal event.
package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Update after the handle has been terminated.
var ErrClosed = errors.New("stream: handle closed")

// Event is one item read from a Handle. A terminal event has Done set or Err non-nil.
type Event[T any] struct {
	Value T
	Done  bool
	Err   error
}

// Terminal reports whether e ends the stream.
func (e Event[T]) Terminal() bool {
	return e.Done || e.Err != nil
}

// Handle carries values from one producer to one consumer. The producer calls
// Update any number of times and then Done or Fail once; the consumer reads
// with Next and calls Cancel if it stops early.
type Handle[T any] struct {
	mu       sync.RWMutex
	events   chan Event[T]
	closed   bool
	quit     chan struct{}
	quitOnce sync.Once
}

// NewHandle creates a handle whose channel buffers up to buffer values.
func NewHandle[T any](buffer int) *Handle[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Handle[T]{
		events: make(chan Event[T], buffer),
		quit:   make(chan struct{}),
	}
}

// Update publishes v. It blocks while the buffer is full and returns ctx.Err()
// if ctx ends first, or ErrClosed once the handle has been terminated.
func (h *Handle[T]) Update(ctx context.Context, v T) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	select {
	case <-h.quit:
		return ErrClosed
	default:
	}

	select {
	case h.events <- Event[T]{Value: v}:
		return nil
	case <-h.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done marks successful completion. Only the first terminal call has effect.
func (h *Handle[T]) Done() bool {
	return h.terminate(Event[T]{Done: true})
}

// Fail terminates the stream with err. Only the first terminal call has effect.
func (h *Handle[T]) Fail(err error) bool {
	if err == nil {
		err = errors.New("stream: failed")
	}
	return h.terminate(Event[T]{Err: err})
}

// Cancel releases a producer blocked in Update when the consumer has gone away.
func (h *Handle[T]) Cancel() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *Handle[T]) terminate(ev Event[T]) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.closed = true
	h.mu.Unlock()

	// Holding the write lock above waited out any in-flight Update.
	select {
	case h.events <- ev:
	case <-h.quit:
	}
	close(h.events)
	return true
}

// Events exposes the underlying channel for range loops.
func (h *Handle[T]) Events() <-chan Event[T] {
	return h.events
}

// Next blocks until the next event. After the channel is drained it returns
// a Done event; a cancelled ctx yields an Err event carrying ctx.Err().
func (h *Handle[T]) Next(ctx context.Context) Event[T] {
	select {
	case ev, ok := <-h.events:
		if !ok {
			return Event[T]{Done: true}
		}
		return ev
	case <-ctx.Done():
		return Event[T]{Err: ctx.Err()}
	}
}
