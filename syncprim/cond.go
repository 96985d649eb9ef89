package syncprim

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cond is a condition variable bound to a Locker. It adds a timed wait on
// top of sync.Cond. As with sync.Cond, callers must re-check their
// predicate in a loop: wakeups may be spurious.
type Cond struct {
	L sync.Locker
	c *sync.Cond
}

// NewCond returns a Cond that waits with l held.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l, c: sync.NewCond(l)}
}

// Wait atomically unlocks L and suspends the caller until woken, then
// re-locks L before returning.
func (c *Cond) Wait() {
	c.c.Wait()
}

// WaitTimeout is Wait bounded by d. It returns false if the timeout fired
// before the caller was woken by Signal or Broadcast.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return false
	}

	var fired atomic.Bool
	timer := time.AfterFunc(d, func() {
		fired.Store(true)
		// Broadcast rather than Signal: a Signal could land on a different
		// waiter and leave this one parked.
		c.L.Lock()
		c.c.Broadcast()
		c.L.Unlock()
	})

	c.c.Wait()
	timer.Stop()
	return !fired.Load()
}

// Signal wakes one waiter, if any.
func (c *Cond) Signal() {
	c.c.Signal()
}

// Broadcast wakes all waiters.
func (c *Cond) Broadcast() {
	c.c.Broadcast()
}
