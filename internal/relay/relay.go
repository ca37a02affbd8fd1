// Package relay provides the drop-oldest hand-off queue used between every
// producer and consumer in the caption pipeline.
package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Take once the queue is closed and drained.
var ErrClosed = errors.New("relay: queue closed")

// Queue is a fixed-capacity FIFO that never blocks its producer. A Put into a
// full queue evicts the oldest pending item. Put is safe to call from any
// goroutine, including threads owned by a C audio driver.
type Queue[T any] struct {
	items   chan T
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	onDrop  func()
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	onDrop func()
}

// WithDropHook registers fn to run each time an item is evicted. fn runs on
// the producer's goroutine and must not block.
func WithDropHook(fn func()) Option {
	return func(o *options) { o.onDrop = fn }
}

// New creates a queue holding at most capacity items. Capacity below 1 is
// treated as 1.
func New[T any](capacity int, opts ...Option) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[T]{
		items:  make(chan T, capacity),
		done:   make(chan struct{}),
		onDrop: o.onDrop,
	}
}

// Put enqueues item. When the queue is full the oldest item is discarded to
// make room. Items put after Close are discarded.
func (q *Queue[T]) Put(item T) {
	select {
	case <-q.done:
		return
	default:
	}

	for {
		select {
		case q.items <- item:
			return
		default:
		}

		// full: evict the oldest and retry
		select {
		case <-q.items:
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop()
			}
		default:
		}
	}
}

// Take blocks until an item is available, the queue is closed and empty, or
// ctx is done.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	var zero T
	select {
	case item := <-q.items:
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-q.done:
		// closed; hand out whatever is still buffered first
		select {
		case item := <-q.items:
			return item, nil
		default:
			return zero, ErrClosed
		}
	}
}

// TryTake returns the next item without blocking.
func (q *Queue[T]) TryTake() (T, bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// Close marks the end of the stream. Buffered items remain readable. Close is
// idempotent.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.done) })
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.items) }

// Dropped returns how many items have been evicted so far.
func (q *Queue[T]) Dropped() int64 { return q.dropped.Load() }
