package jobsys

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// ============================================================================
// Basic Operations
// ============================================================================

func TestInjectionQueue_PushPop(t *testing.T) {
	q := newInjectionQueue[int](8)

	for i := 0; i < 5; i++ {
		if !q.TryPush(i) {
			t.Fatalf("TryPush(%d) failed", i)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Expected len 5, got %d", q.Len())
	}

	for want := 0; want < 5; want++ {
		v, ok := q.TryPop()
		if !ok || v != want {
			t.Fatalf("Expected %d, got (%d, %v)", want, v, ok)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("Expected empty queue")
	}
}

func TestInjectionQueue_Full(t *testing.T) {
	q := newInjectionQueue[int](4)

	for i := 0; i < 4; i++ {
		if !q.TryPush(i) {
			t.Fatalf("TryPush(%d) failed before capacity", i)
		}
	}
	if q.TryPush(99) {
		t.Error("TryPush on a full ring should fail")
	}

	q.TryPop()
	if !q.TryPush(4) {
		t.Error("TryPush after a pop should succeed")
	}
}

func TestInjectionQueue_Wraparound(t *testing.T) {
	q := newInjectionQueue[int](4)

	for i := 0; i < 100; i++ {
		if !q.TryPush(i) {
			t.Fatalf("TryPush(%d) failed", i)
		}
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("Expected %d, got (%d, %v)", i, v, ok)
		}
	}
}

func TestInjectionQueue_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, 1, 3, 100} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for capacity %d", c)
				}
			}()
			newInjectionQueue[int](c)
		}()
	}
}

// ============================================================================
// Concurrency
// ============================================================================

func TestInjectionQueue_MPMC(t *testing.T) {
	const producers = 4
	const consumers = 4
	const perProducer = 5000
	const total = producers * perProducer

	q := newInjectionQueue[int](64)
	seen := make([]int32, total)

	var consumed atomic.Int64
	var pwg, cwg sync.WaitGroup

	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(base int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.TryPush(base + i) {
					runtime.Gosched()
				}
			}
		}(p * perProducer)
	}

	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for consumed.Load() < total {
				v, ok := q.TryPop()
				if !ok {
					runtime.Gosched()
					continue
				}
				atomic.AddInt32(&seen[v], 1)
				consumed.Add(1)
			}
		}()
	}

	pwg.Wait()
	cwg.Wait()

	for i := range seen {
		if seen[i] != 1 {
			t.Fatalf("item %d seen %d times", i, seen[i])
		}
	}
}
