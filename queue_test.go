package jobsys

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rexengine/jobsys/syncprim"
)

var lockKinds = []syncprim.LockKind{syncprim.Spin, syncprim.Blocking, syncprim.DeadlockChecked}

// ============================================================================
// BASIC FUNCTIONALITY TESTS
// ============================================================================

func TestWorkStealingQueue_PushPop(t *testing.T) {
	q := NewWorkStealingQueue[int](syncprim.Spin, 16)

	q.Push(7)
	if q.Len() != 1 {
		t.Errorf("Expected len 1, got %d", q.Len())
	}

	v, ok := q.TryPop()
	if !ok || v != 7 {
		t.Fatalf("Expected (7, true), got (%d, %v)", v, ok)
	}

	if !q.Empty() {
		t.Errorf("Expected empty after pop, got len %d", q.Len())
	}
}

func TestWorkStealingQueue_Empty(t *testing.T) {
	q := NewWorkStealingQueue[*int](syncprim.Spin, 16)

	if v, ok := q.TryPop(); ok || v != nil {
		t.Errorf("Expected (nil, false) from empty pop, got (%v, %v)", v, ok)
	}
	if v, ok := q.TrySteal(); ok || v != nil {
		t.Errorf("Expected (nil, false) from empty steal, got (%v, %v)", v, ok)
	}
}

func TestWorkStealingQueue_LIFO_Order(t *testing.T) {
	q := NewWorkStealingQueue[int](syncprim.Spin, 16)
	for i := 1; i <= 3; i++ {
		q.Push(i)
	}

	for _, want := range []int{3, 2, 1} {
		v, ok := q.TryPop()
		if !ok || v != want {
			t.Fatalf("Expected %d, got (%d, %v)", want, v, ok)
		}
	}
}

func TestWorkStealingQueue_FIFO_StealOrder(t *testing.T) {
	q := NewWorkStealingQueue[int](syncprim.Spin, 16)
	for i := 1; i <= 3; i++ {
		q.Push(i)
	}

	for _, want := range []int{1, 2, 3} {
		v, ok := q.TrySteal()
		if !ok || v != want {
			t.Fatalf("Expected %d, got (%d, %v)", want, v, ok)
		}
	}
}

func TestWorkStealingQueue_MixedEnds(t *testing.T) {
	q := NewWorkStealingQueue[int](syncprim.Blocking, 16)
	for i := 1; i <= 4; i++ {
		q.Push(i)
	}

	if v, _ := q.TrySteal(); v != 1 {
		t.Errorf("Expected steal 1, got %d", v)
	}
	if v, _ := q.TryPop(); v != 4 {
		t.Errorf("Expected pop 4, got %d", v)
	}
	if q.Len() != 2 {
		t.Errorf("Expected len 2, got %d", q.Len())
	}
}

func TestWorkStealingQueue_Grow(t *testing.T) {
	q := NewWorkStealingQueue[int](syncprim.Spin, 16)

	initialCap := q.Capacity()
	if initialCap != 16 {
		t.Errorf("Expected initial capacity 16, got %d", initialCap)
	}

	// Wrap the ring before growing so the copy has to unwrap it.
	for i := 0; i < 10; i++ {
		q.Push(-1)
	}
	for i := 0; i < 10; i++ {
		q.TrySteal()
	}
	for i := 0; i < 40; i++ {
		q.Push(i)
	}

	if q.Capacity() <= initialCap {
		t.Errorf("Expected capacity to increase from %d, got %d", initialCap, q.Capacity())
	}

	for want := 0; want < 40; want++ {
		v, ok := q.TrySteal()
		if !ok || v != want {
			t.Fatalf("After grow expected %d, got (%d, %v)", want, v, ok)
		}
	}
}

func TestWorkStealingQueue_CapacityRounding(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, minQueueCapacity},
		{3, minQueueCapacity},
		{16, 16},
		{100, 128},
		{256, 256},
	}

	for _, tt := range tests {
		q := NewWorkStealingQueue[int](syncprim.Spin, tt.in)
		if q.Capacity() != tt.want {
			t.Errorf("capacity(%d) = %d, want %d", tt.in, q.Capacity(), tt.want)
		}
	}
}

func TestWorkStealingQueue_ZeroesPoppedSlots(t *testing.T) {
	q := NewWorkStealingQueue[*int](syncprim.Spin, 16)
	x, y := 1, 2
	q.Push(&x)
	q.Push(&y)

	q.TryPop()
	q.TrySteal()

	for i, p := range q.buffer {
		if p != nil {
			t.Errorf("slot %d still references a popped element", i)
		}
	}
}

// ============================================================================
// CONCURRENT TESTS - Owner vs Thieves
// ============================================================================

func TestWorkStealingQueue_PopAndStealLastElement(t *testing.T) {
	const iterations = 2000

	for _, kind := range lockKinds {
		t.Run(kind.String(), func(t *testing.T) {
			for iter := 0; iter < iterations; iter++ {
				q := NewWorkStealingQueue[int](kind, 16)
				q.Push(1)

				var popGot, stealGot int32
				var wg sync.WaitGroup
				wg.Add(2)

				go func() {
					defer wg.Done()
					if _, ok := q.TryPop(); ok {
						atomic.StoreInt32(&popGot, 1)
					}
				}()
				go func() {
					defer wg.Done()
					if _, ok := q.TrySteal(); ok {
						atomic.StoreInt32(&stealGot, 1)
					}
				}()

				wg.Wait()

				if total := popGot + stealGot; total != 1 {
					t.Fatalf("Iteration %d: expected exactly 1 taker, got %d", iter, total)
				}
			}
		})
	}
}

// Owner pushes M items while popping some, K thieves steal the rest.
// Every item must be taken exactly once.
func TestWorkStealingQueue_OwnerAndThievesNoDuplicates(t *testing.T) {
	const numItems = 20000
	const numThieves = 4

	for _, kind := range lockKinds {
		t.Run(kind.String(), func(t *testing.T) {
			q := NewWorkStealingQueue[int](kind, 16)
			seen := make([]int32, numItems)

			var taken atomic.Int64
			var pushing atomic.Bool
			pushing.Store(true)

			var wg sync.WaitGroup
			for i := 0; i < numThieves; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for pushing.Load() || !q.Empty() {
						v, ok := q.TrySteal()
						if !ok {
							runtime.Gosched()
							continue
						}
						atomic.AddInt32(&seen[v], 1)
						taken.Add(1)
					}
				}()
			}

			for i := 0; i < numItems; i++ {
				q.Push(i)
				if i%3 == 0 {
					if v, ok := q.TryPop(); ok {
						atomic.AddInt32(&seen[v], 1)
						taken.Add(1)
					}
				}
			}
			pushing.Store(false)

			for {
				v, ok := q.TryPop()
				if !ok {
					break
				}
				atomic.AddInt32(&seen[v], 1)
				taken.Add(1)
			}
			wg.Wait()

			if got := taken.Load(); got != numItems {
				t.Errorf("Expected %d items taken, got %d", numItems, got)
			}
			for i := range seen {
				if c := atomic.LoadInt32(&seen[i]); c != 1 {
					t.Fatalf("item %d taken %d times", i, c)
				}
			}
		})
	}
}
