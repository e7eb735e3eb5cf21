// Package handoff provides the lock-free channels between the control thread
// and the render thread: a bounded single-producer/single-consumer queue and
// a single-writer triple buffer for status readback.
//
// Neither type allocates or blocks after construction.
package handoff

import "sync/atomic"

const cacheLine = 64

// Queue is a bounded SPSC ring buffer. Exactly one goroutine may push and
// exactly one goroutine may pop.
type Queue[T any] struct {
	head atomic.Uint64
	_    [cacheLine - 8]byte
	tail atomic.Uint64
	_    [cacheLine - 8]byte
	mask uint64
	buf  []T
}

// NewQueue returns a queue holding at least capacity items. Capacity is
// rounded up to a power of two, minimum 2.
func NewQueue[T any](capacity int) *Queue[T] {
	n := 2
	for n < capacity {
		n <<= 1
	}
	return &Queue[T]{
		mask: uint64(n - 1),
		buf:  make([]T, n),
	}
}

// TryPush appends v and reports false if the queue is full.
func (q *Queue[T]) TryPush(v T) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = v
	q.tail.Store(tail + 1)
	return true
}

// TryPop removes the oldest item. It reports false if the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	head := q.head.Load()
	if head == q.tail.Load() {
		return zero, false
	}
	slot := &q.buf[head&q.mask]
	v := *slot
	*slot = zero
	q.head.Store(head + 1)
	return v, true
}

// Len returns the number of queued items. The value is approximate when
// called concurrently with TryPush or TryPop.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}
