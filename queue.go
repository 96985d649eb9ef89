package jobsys

import (
	"sync"

	"github.com/rexengine/jobsys/syncprim"
)

const minQueueCapacity = 16

// WorkStealingQueue is a lock-guarded work-stealing deque
//
// Properties:
// - Owner pushes/pops at the tail (LIFO - newest jobs first, cache-warm)
// - Thieves steal from the head (FIFO - oldest jobs first)
// - Every operation is mutually exclusive under the guarding lock
// - Grows by doubling when full, never shrinks
//
// The default guard is a spinlock since critical sections are a handful of
// loads and stores; the blocking mutex is available for oversubscribed hosts.
type WorkStealingQueue[T any] struct {
	lock sync.Locker

	// head is the steal end, tail is the owner end.
	// Both grow monotonically; len = tail - head.
	head uint64
	tail uint64

	buffer []T
	mask   uint64
}

// NewWorkStealingQueue creates a deque guarded by a lock of the given kind.
// capacity is rounded up to a power of two.
func NewWorkStealingQueue[T any](kind syncprim.LockKind, capacity int) *WorkStealingQueue[T] {
	if capacity < minQueueCapacity {
		capacity = minQueueCapacity
	}
	capacity = nextPowerOfTwo(capacity)

	return &WorkStealingQueue[T]{
		lock:   syncprim.NewLocker(kind),
		buffer: make([]T, capacity),
		mask:   uint64(capacity - 1),
	}
}

// Push adds v at the tail (owner end)
func (q *WorkStealingQueue[T]) Push(v T) {
	q.lock.Lock()
	if q.tail-q.head == uint64(len(q.buffer)) {
		q.grow()
	}
	q.buffer[q.tail&q.mask] = v
	q.tail++
	q.lock.Unlock()
}

// TryPop removes the newest element (owner end, LIFO)
// Returns the zero value and false if empty
func (q *WorkStealingQueue[T]) TryPop() (T, bool) {
	var zero T

	q.lock.Lock()
	if q.tail == q.head {
		q.lock.Unlock()
		return zero, false
	}
	q.tail--
	idx := q.tail & q.mask
	v := q.buffer[idx]
	q.buffer[idx] = zero
	q.lock.Unlock()

	return v, true
}

// TrySteal removes the oldest element (steal end, FIFO)
// Returns the zero value and false if empty
func (q *WorkStealingQueue[T]) TrySteal() (T, bool) {
	var zero T

	q.lock.Lock()
	if q.tail == q.head {
		q.lock.Unlock()
		return zero, false
	}
	idx := q.head & q.mask
	v := q.buffer[idx]
	q.buffer[idx] = zero
	q.head++
	q.lock.Unlock()

	return v, true
}

// Len returns the number of queued elements
// This is a snapshot and may be stale immediately
func (q *WorkStealingQueue[T]) Len() int {
	q.lock.Lock()
	n := int(q.tail - q.head)
	q.lock.Unlock()
	return n
}

// Empty reports whether the deque appears empty
// This is a snapshot and may be stale
func (q *WorkStealingQueue[T]) Empty() bool {
	return q.Len() == 0
}

// Capacity returns the current buffer capacity
func (q *WorkStealingQueue[T]) Capacity() int {
	q.lock.Lock()
	n := len(q.buffer)
	q.lock.Unlock()
	return n
}

// grow doubles the buffer. Caller holds the lock.
// Elements keep their logical positions from head to tail.
func (q *WorkStealingQueue[T]) grow() {
	newCap := uint64(len(q.buffer)) * 2
	buf := make([]T, newCap)
	newMask := newCap - 1

	for i := q.head; i < q.tail; i++ {
		buf[i&newMask] = q.buffer[i&q.mask]
	}

	q.buffer = buf
	q.mask = newMask
}
