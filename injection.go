package jobsys

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// injectionSlot pairs a value with its sequence number.
// seq == pos means the slot is free for the producer claiming pos;
// seq == pos+1 means it holds the value for the consumer claiming pos.
type injectionSlot[T any] struct {
	seq   atomic.Uint64
	value T
}

// injectionQueue is a bounded, lock-free, MPMC queue
// Any goroutine may push, any worker may pop. Used for jobs submitted
// without worker affinity so whichever worker goes idle first picks them up.
type injectionQueue[T any] struct {
	// Padding to prevent false sharing
	_ cpu.CacheLinePad

	// head is the consumer index, claimed by workers via CAS
	head atomic.Uint64

	_ cpu.CacheLinePad

	// tail is the producer index, claimed by submitters via CAS
	tail atomic.Uint64

	_ cpu.CacheLinePad

	slots []injectionSlot[T]

	// mask is size-1, used for fast modulo via bitwise AND
	mask uint64
}

// newInjectionQueue creates a ring of the given capacity
// Capacity MUST be a power of 2
func newInjectionQueue[T any](capacity int) *injectionQueue[T] {
	if capacity < 2 || !isPowerOfTwo(capacity) {
		panic("jobsys: injection queue capacity must be a power of 2 >= 2")
	}

	q := &injectionQueue[T]{
		slots: make([]injectionSlot[T], capacity),
		mask:  uint64(capacity - 1),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// TryPush appends v. Returns false if the ring is full.
func (q *injectionQueue[T]) TryPush(v T) bool {
	pos := q.tail.Load()
	for {
		slot := &q.slots[pos&q.mask]
		seq := slot.seq.Load()

		switch {
		case seq == pos:
			if q.tail.CompareAndSwap(pos, pos+1) {
				slot.value = v
				slot.seq.Store(pos + 1)
				return true
			}
			pos = q.tail.Load()
		case seq < pos:
			// Consumer one lap behind still owns this slot.
			return false
		default:
			pos = q.tail.Load()
			runtime.Gosched()
		}
	}
}

// TryPop removes the oldest element. Returns false if empty.
func (q *injectionQueue[T]) TryPop() (T, bool) {
	var zero T

	pos := q.head.Load()
	for {
		slot := &q.slots[pos&q.mask]
		seq := slot.seq.Load()

		switch {
		case seq == pos+1:
			if q.head.CompareAndSwap(pos, pos+1) {
				v := slot.value
				slot.value = zero
				slot.seq.Store(pos + q.mask + 1)
				return v, true
			}
			pos = q.head.Load()
		case seq < pos+1:
			return zero, false
		default:
			pos = q.head.Load()
			runtime.Gosched()
		}
	}
}

// Len returns the approximate queue length
// This is a snapshot and may be stale during concurrent operations
func (q *injectionQueue[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the queue's maximum capacity
func (q *injectionQueue[T]) Cap() int {
	return len(q.slots)
}
