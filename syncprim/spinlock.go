package syncprim

import (
	"runtime"
	"sync/atomic"
)

// activeSpins is how many failed acquisition rounds a Spinlock burns before
// it starts yielding the processor between attempts.
const activeSpins = 16

// Spinlock is a test-and-test-and-set lock. The zero value is unlocked.
//
// Contract: never hold it across a blocking call; sections guarded by it
// should be a few memory accesses long.
type Spinlock struct {
	state atomic.Uint32
}

// Lock acquires the lock, spinning until it is free.
func (l *Spinlock) Lock() {
	spins := 0
	for {
		if l.state.Load() == 0 && l.state.CompareAndSwap(0, 1) {
			return
		}
		spins++
		if spins > activeSpins {
			runtime.Gosched()
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *Spinlock) TryLock() bool {
	return l.state.Load() == 0 && l.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked Spinlock panics.
func (l *Spinlock) Unlock() {
	if l.state.Swap(0) == 0 {
		panic("syncprim: unlock of unlocked spinlock")
	}
}
