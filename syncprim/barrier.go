package syncprim

import "sync"

// Barrier blocks goroutines until a fixed number of them have arrived, then
// releases them all and resets for the next phase.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	arity int
	count int
	phase uint64
}

// NewBarrier returns a barrier for n participants. It panics if n < 1.
func NewBarrier(n int) *Barrier {
	if n < 1 {
		panic("syncprim: barrier arity must be >= 1")
	}
	b := &Barrier{arity: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until Arity callers (including this one) have called Wait in
// the current phase. Exactly one caller per phase, the last to arrive,
// gets true.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	phase := b.phase
	b.count++
	if b.count == b.arity {
		b.count = 0
		b.phase++
		b.cond.Broadcast()
		return true
	}

	// Phase, not count, is the predicate: count is already reset by the
	// time early arrivals wake.
	for phase == b.phase {
		b.cond.Wait()
	}
	return false
}

// Arity returns the number of participants per phase.
func (b *Barrier) Arity() int {
	return b.arity
}

// Phase returns how many times the barrier has released.
func (b *Barrier) Phase() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}
