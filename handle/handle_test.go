package handle

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type texture struct{}

type mesh struct{}

// ============================================================================
// Pool
// ============================================================================

func TestPool_ReuseBumpsGeneration(t *testing.T) {
	p := NewPool[texture](0)

	h1 := p.Allocate()
	assert.Equal(t, uint32(0), h1.Index())
	assert.Equal(t, uint32(1), h1.Generation())
	assert.True(t, p.IsValid(h1))

	require.True(t, p.Release(h1))
	assert.False(t, p.IsValid(h1))

	h2 := p.Allocate()
	assert.Equal(t, uint32(0), h2.Index())
	assert.Equal(t, uint32(2), h2.Generation())
	assert.False(t, p.IsValid(h1), "stale handle must not alias the reused slot")
	assert.True(t, p.IsValid(h2))
}

func TestPool_StaleHandlesStayInvalid(t *testing.T) {
	p := NewPool[texture](4)

	var issued []Strong[texture]
	for i := 0; i < 10; i++ {
		h := p.Allocate()
		issued = append(issued, h)
		require.True(t, p.IsValid(h))
		require.True(t, p.Release(h))
	}

	for _, h := range issued {
		assert.False(t, p.IsValid(h), "handle %s", h)
		assert.True(t, p.Expired(h), "handle %s", h)
	}
	assert.Equal(t, 1, p.Cap(), "LIFO reuse keeps a single slot")
}

func TestPool_LIFOFreeList(t *testing.T) {
	p := NewPool[texture](0)
	a := p.Allocate()
	b := p.Allocate()
	c := p.Allocate()

	p.Release(a)
	p.Release(c)

	assert.Equal(t, c.Index(), p.Allocate().Index())
	assert.Equal(t, a.Index(), p.Allocate().Index())
	assert.True(t, p.IsValid(b))
	assert.Equal(t, 3, p.Len())
}

func TestPool_ReleaseInvalidIsNoop(t *testing.T) {
	p := NewPool[texture](0)
	h := p.Allocate()

	assert.False(t, p.Release(Strong[texture]{}))
	assert.False(t, p.Release(Make[texture](42, 1)))
	require.True(t, p.Release(h))
	assert.False(t, p.Release(h), "double release")

	next := p.Allocate()
	assert.Equal(t, uint32(2), next.Generation(), "double release must not bump twice")
}

func TestPool_ZeroHandle(t *testing.T) {
	p := NewPool[texture](0)
	p.Allocate()

	var zero Strong[texture]
	assert.True(t, zero.IsZero())
	assert.False(t, p.IsValid(zero))
	assert.False(t, p.Expired(zero))
	assert.True(t, p.Lock(Weak[texture]{}).IsZero())
}

func TestPool_ExpiredVersusNeverIssued(t *testing.T) {
	p := NewPool[texture](0)
	h := p.Allocate()

	assert.False(t, p.Expired(h))
	assert.False(t, p.Expired(Make[texture](0, 7)), "future generation was never issued")
	assert.False(t, p.Expired(Make[texture](5, 1)), "index past the table")

	p.Release(h)
	assert.True(t, p.Expired(h))
}

func TestPool_WeakLock(t *testing.T) {
	p := NewPool[texture](0)
	h := p.Allocate()
	w := p.Weaken(h)

	assert.Equal(t, h.ID(), w.ID())
	assert.Equal(t, h, p.Lock(w))

	p.Release(h)
	assert.True(t, p.Lock(w).IsZero())

	reused := p.Allocate()
	assert.Equal(t, h.Index(), reused.Index())
	assert.True(t, p.Lock(w).IsZero(), "weak handle must not resolve to the reused slot")
}

func TestPool_GenerationOverflowRetiresSlot(t *testing.T) {
	p := NewPool[texture](0)
	h := p.Allocate()
	p.Release(h)

	// Jump the slot to the last generation it can carry.
	p.s.generations[0] = math.MaxUint32
	last := p.Allocate()
	require.Equal(t, uint32(0), last.Index())
	require.Equal(t, uint32(math.MaxUint32), last.Generation())

	require.True(t, p.Release(last))
	assert.Equal(t, 1, p.Retired())
	assert.False(t, p.IsValid(last))
	assert.True(t, p.Expired(last))

	fresh := p.Allocate()
	assert.Equal(t, uint32(1), fresh.Index(), "retired index must never be reused")
	assert.Equal(t, uint32(1), fresh.Generation())
}

func TestPool_ConcurrentAllocateRelease(t *testing.T) {
	p := NewPool[texture](0)

	const goroutines = 8
	const iterations = 1000

	var mu sync.Mutex
	live := make(map[ID]bool)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				h := p.Allocate()

				mu.Lock()
				if live[h.ID()] {
					mu.Unlock()
					t.Errorf("duplicate live handle %s", h)
					return
				}
				live[h.ID()] = true
				mu.Unlock()

				mu.Lock()
				delete(live, h.ID())
				mu.Unlock()

				if !p.Release(h) {
					t.Errorf("release of live handle %s failed", h)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, p.Len())
}

// ============================================================================
// Map
// ============================================================================

func TestMap_InsertGetRemove(t *testing.T) {
	m := NewMap[mesh, string](2)

	a := m.Insert("cube")
	b := m.Insert("sphere")

	v, ok := m.Get(a)
	require.True(t, ok)
	assert.Equal(t, "cube", v)

	v, ok = m.Remove(a)
	require.True(t, ok)
	assert.Equal(t, "cube", v)

	_, ok = m.Get(a)
	assert.False(t, ok)
	assert.True(t, m.Expired(a))

	c := m.Insert("plane")
	assert.Equal(t, a.Index(), c.Index())
	_, ok = m.Get(a)
	assert.False(t, ok, "stale handle must not read the new value")

	v, ok = m.Get(c)
	require.True(t, ok)
	assert.Equal(t, "plane", v)
	assert.True(t, m.IsValid(b))
	assert.Equal(t, 2, m.Len())
}

func TestMap_RemoveInvalid(t *testing.T) {
	m := NewMap[mesh, int](0)
	_, ok := m.Remove(Strong[mesh]{})
	assert.False(t, ok)
}

func TestMap_Range(t *testing.T) {
	m := NewMap[mesh, int](0)
	hs := []Strong[mesh]{m.Insert(10), m.Insert(20), m.Insert(30)}
	m.Remove(hs[1])

	seen := map[int]Strong[mesh]{}
	m.Range(func(h Strong[mesh], v int) bool {
		seen[v] = h
		return true
	})

	assert.Len(t, seen, 2)
	assert.Equal(t, hs[0], seen[10])
	assert.Equal(t, hs[2], seen[30])

	count := 0
	m.Range(func(Strong[mesh], int) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestID_String(t *testing.T) {
	assert.Equal(t, "3:7", Make[mesh](3, 7).String())
	assert.Equal(t, "0:0", Weak[mesh]{}.String())
}
