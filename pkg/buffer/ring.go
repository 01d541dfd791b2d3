// Package buffer provides a bounded, thread-safe ring buffer with
// drop-oldest overflow semantics and drop accounting. The fan-out engine
// uses one ring per subscriber to decouple publishers from slow consumers:
// when a subscriber falls behind, its oldest undelivered message is dropped
// rather than blocking the publisher.
package buffer

import (
	"sync"
	"sync/atomic"
)

// DropCallback is invoked with each item dropped on overflow.
type DropCallback[T any] func(item T)

// Ring is a fixed-capacity FIFO buffer. When full, Push evicts the oldest
// item to make room for the new one.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position

	writes  int64
	reads   int64
	dropped int64

	dropFn DropCallback[T]
}

// Option configures a Ring.
type Option[T any] func(*Ring[T])

// WithDropCallback sets a callback invoked (outside the lock) for each
// item dropped on overflow.
func WithDropCallback[T any](fn DropCallback[T]) Option[T] {
	return func(r *Ring[T]) {
		r.dropFn = fn
	}
}

// NewRing creates a ring buffer with the given capacity. Capacities below
// one are raised to one.
func NewRing[T any](capacity int, opts ...Option[T]) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}

	r := &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Push adds an item. If the buffer is full the oldest item is dropped to
// make room; Push reports whether a drop occurred. Push never blocks.
func (r *Ring[T]) Push(item T) (overflowed bool) {
	var dropped T

	r.mu.Lock()
	if r.size == r.capacity {
		dropped = r.items[r.tail]
		r.tail = (r.tail + 1) % r.capacity
		r.size--
		atomic.AddInt64(&r.dropped, 1)
		overflowed = true
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
	atomic.AddInt64(&r.writes, 1)
	r.mu.Unlock()

	if overflowed && r.dropFn != nil {
		r.dropFn(dropped)
	}

	return overflowed
}

// Pop retrieves and removes the oldest item. Returns false if the buffer
// is empty. Pop never blocks.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // release reference for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--
	atomic.AddInt64(&r.reads, 1)

	return item, true
}

// Len returns the number of items currently buffered.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the buffer capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Dropped returns the total number of items dropped on overflow.
func (r *Ring[T]) Dropped() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Writes returns the total number of successful pushes.
func (r *Ring[T]) Writes() int64 {
	return atomic.LoadInt64(&r.writes)
}

// Reads returns the total number of successful pops.
func (r *Ring[T]) Reads() int64 {
	return atomic.LoadInt64(&r.reads)
}
