package syncprim

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Lockers
// ============================================================================

func TestSetDeadlockTimeout(t *testing.T) {
	prev := deadlock.Opts.DeadlockTimeout
	t.Cleanup(func() { SetDeadlockTimeout(prev) })

	SetDeadlockTimeout(3 * time.Second)
	assert.Equal(t, 3*time.Second, deadlock.Opts.DeadlockTimeout)
}

func TestNewLocker_MutualExclusion(t *testing.T) {
	for _, kind := range []LockKind{Spin, Blocking, DeadlockChecked} {
		t.Run(kind.String(), func(t *testing.T) {
			l := NewLocker(kind)

			const goroutines = 8
			const iterations = 2000

			counter := 0
			var wg sync.WaitGroup
			wg.Add(goroutines)
			for g := 0; g < goroutines; g++ {
				go func() {
					defer wg.Done()
					for i := 0; i < iterations; i++ {
						l.Lock()
						counter++
						l.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, goroutines*iterations, counter)
		})
	}
}

func TestParseLockKind(t *testing.T) {
	tests := []struct {
		in      string
		want    LockKind
		wantErr bool
	}{
		{"spin", Spin, false},
		{"", Spin, false},
		{"blocking", Blocking, false},
		{"MUTEX", Blocking, false},
		{"deadlock", DeadlockChecked, false},
		{"futex", Spin, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLockKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpinlock_TryLock(t *testing.T) {
	var l Spinlock
	require.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
	l.Unlock()
}

func TestSpinlock_UnlockUnlocked(t *testing.T) {
	var l Spinlock
	assert.Panics(t, func() { l.Unlock() })
}

// ============================================================================
// Cond
// ============================================================================

func TestCond_WaitTimeoutExpires(t *testing.T) {
	var mu Mutex
	c := NewCond(&mu)

	mu.Lock()
	start := time.Now()
	woken := c.WaitTimeout(20 * time.Millisecond)
	mu.Unlock()

	assert.False(t, woken)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCond_WaitTimeoutNonPositive(t *testing.T) {
	var mu Mutex
	c := NewCond(&mu)

	mu.Lock()
	assert.False(t, c.WaitTimeout(0))
	mu.Unlock()
}

func TestCond_SignalWakesWaiter(t *testing.T) {
	var mu Mutex
	c := NewCond(&mu)
	ready := false

	done := make(chan bool, 1)
	go func() {
		mu.Lock()
		for !ready {
			if !c.WaitTimeout(5 * time.Second) && !ready {
				mu.Unlock()
				done <- false
				return
			}
		}
		mu.Unlock()
		done <- true
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	ready = true
	c.Signal()
	mu.Unlock()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestCond_WithSpinlock(t *testing.T) {
	var l Spinlock
	c := NewCond(&l)
	var flag atomic.Bool

	go func() {
		time.Sleep(5 * time.Millisecond)
		l.Lock()
		flag.Store(true)
		c.Broadcast()
		l.Unlock()
	}()

	l.Lock()
	for !flag.Load() {
		c.WaitTimeout(time.Second)
	}
	l.Unlock()
	assert.True(t, flag.Load())
}

// ============================================================================
// Barrier
// ============================================================================

func TestBarrier_ReleasesOnlyAtArity(t *testing.T) {
	const k = 4
	b := NewBarrier(k)

	var released atomic.Int32
	var wg sync.WaitGroup

	wg.Add(k - 1)
	for i := 0; i < k-1; i++ {
		go func() {
			defer wg.Done()
			b.Wait()
			released.Add(1)
		}()
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), released.Load(), "barrier released before arity reached")

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Wait()
		released.Add(1)
	}()
	wg.Wait()

	assert.Equal(t, int32(k), released.Load())
	assert.Equal(t, uint64(1), b.Phase())
}

func TestBarrier_Reusable(t *testing.T) {
	const k = 3
	const phases = 5
	b := NewBarrier(k)

	var serial atomic.Int32
	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			for p := 0; p < phases; p++ {
				if b.Wait() {
					serial.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(phases), serial.Load(), "exactly one serial arrival per phase")
	assert.Equal(t, uint64(phases), b.Phase())
}

func TestBarrier_ArityOne(t *testing.T) {
	b := NewBarrier(1)
	assert.True(t, b.Wait())
	assert.True(t, b.Wait())
	assert.Equal(t, 1, b.Arity())
}

func TestNewBarrier_InvalidArity(t *testing.T) {
	assert.Panics(t, func() { NewBarrier(0) })
}
