// Package eventq moves values produced on worker goroutines to a goroutine
// of the caller's choosing. Producers Enqueue from anywhere; the owner
// calls Flush, typically once per frame, to handle everything queued so far.
package eventq

import (
	"sync/atomic"

	"github.com/rexengine/jobsys/syncprim"
)

// Queue is a multi-producer queue drained in batches. The zero value is
// ready to use.
type Queue[T any] struct {
	lock    syncprim.Spinlock
	pending []T

	// spare is the buffer handed back by the last Flush, reused to avoid
	// reallocating every frame. Only touched under lock.
	spare []T

	enqueued atomic.Uint64
	flushed  atomic.Uint64
}

// New returns a queue with room for capacity values before it grows.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{pending: make([]T, 0, capacity)}
}

// Enqueue appends v. Safe for concurrent use.
func (q *Queue[T]) Enqueue(v T) {
	q.lock.Lock()
	q.pending = append(q.pending, v)
	q.lock.Unlock()
	q.enqueued.Add(1)
}

// Flush takes everything queued so far and calls fn for each value in
// enqueue order, outside the lock. Values enqueued while fn runs, including
// by fn itself, wait for the next Flush. Returns the number delivered.
func (q *Queue[T]) Flush(fn func(T)) int {
	q.lock.Lock()
	batch := q.pending
	q.pending = q.spare[:0]
	q.spare = nil
	q.lock.Unlock()

	for _, v := range batch {
		fn(v)
	}

	var zero T
	for i := range batch {
		batch[i] = zero
	}

	q.lock.Lock()
	if q.spare == nil {
		q.spare = batch[:0]
	}
	q.lock.Unlock()

	q.flushed.Add(uint64(len(batch)))
	return len(batch)
}

// Len returns the number of values waiting for Flush.
func (q *Queue[T]) Len() int {
	q.lock.Lock()
	n := len(q.pending)
	q.lock.Unlock()
	return n
}

// Stats returns the total number of values enqueued and delivered.
func (q *Queue[T]) Stats() (enqueued, flushed uint64) {
	return q.enqueued.Load(), q.flushed.Load()
}
