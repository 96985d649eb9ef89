package handle

import "github.com/rexengine/jobsys/syncprim"

// Pool hands out Strong handles. Allocate and Release are O(1) amortized.
// All methods are safe for concurrent use; the zero value is ready to use.
type Pool[Tag any] struct {
	mu syncprim.Mutex
	s  slots
}

// NewPool returns a Pool with room for capacity slots before it grows.
func NewPool[Tag any](capacity int) *Pool[Tag] {
	p := &Pool[Tag]{}
	if capacity > 0 {
		p.s.generations = make([]uint32, 0, capacity)
		p.s.occupied = make([]bool, 0, capacity)
	}
	return p
}

// Allocate returns a fresh handle, reusing the most recently released slot
// if there is one.
func (p *Pool[Tag]) Allocate() Strong[Tag] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Strong[Tag]{id: p.s.allocate()}
}

// Release invalidates h and returns its slot to the pool. It reports false,
// and does nothing, if h is not currently valid.
func (p *Pool[Tag]) Release(h Strong[Tag]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.release(h.id)
}

// IsValid reports whether h names a live slot.
func (p *Pool[Tag]) IsValid(h Strong[Tag]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.valid(h.id)
}

// Expired reports whether h was issued by this pool and released since.
// The zero handle and handles past the end of the table are not expired,
// just invalid.
func (p *Pool[Tag]) Expired(h Strong[Tag]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.expired(h.id)
}

// Weaken copies h into a Weak handle without extending its lifetime.
func (p *Pool[Tag]) Weaken(h Strong[Tag]) Weak[Tag] {
	return Weak[Tag]{id: h.id}
}

// Lock upgrades w to a Strong handle if its slot is still live, and
// returns the zero handle otherwise.
func (p *Pool[Tag]) Lock(w Weak[Tag]) Strong[Tag] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.s.valid(w.id) {
		return Strong[Tag]{}
	}
	return Strong[Tag]{id: w.id}
}

// Len returns the number of live handles.
func (p *Pool[Tag]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.live
}

// Cap returns the number of slots ever created, live or not.
func (p *Pool[Tag]) Cap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.s.generations)
}

// Retired returns how many slots were taken out of circulation because
// their generation counter was exhausted.
func (p *Pool[Tag]) Retired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s.retired
}
