// Package handle implements generation-tagged handles: small value types
// that name a slot in a pool and stop resolving the moment that slot is
// released, even if the slot is later reused.
//
// A handle is an (index, generation) pair. Generation 0 is never issued, so
// the zero handle is always invalid. Every release bumps the slot's
// generation before the index goes back on the free list, which is the only
// thing that keeps a stale handle from aliasing a newer allocation. When a
// slot's generation would overflow, the slot is retired instead of wrapped.
//
// The Tag type parameter keeps handles from different pools apart at
// compile time; it is never instantiated.
//
// The package has no knowledge of jobs and is meant to be shared by any
// subsystem that hands out references to pooled resources.
package handle

import "fmt"

// ID is the raw (index, generation) pair behind a handle.
type ID struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether id is the never-valid zero ID.
func (id ID) IsZero() bool {
	return id.Generation == 0
}

// String renders id as "index:generation".
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Index, id.Generation)
}

// Strong is an owning reference to a pooled slot.
type Strong[Tag any] struct {
	id ID
}

// Weak is a non-owning reference. Turn it back into a Strong with the
// owning pool's Lock, which re-validates it.
type Weak[Tag any] struct {
	id ID
}

// Make rebuilds a Strong handle from a raw index and generation, e.g. after
// it crossed a serialization boundary. The result is not checked against any
// pool.
func Make[Tag any](index, generation uint32) Strong[Tag] {
	return Strong[Tag]{id: ID{Index: index, Generation: generation}}
}

// ID returns the raw pair.
func (h Strong[Tag]) ID() ID { return h.id }

// Index returns the slot index.
func (h Strong[Tag]) Index() uint32 { return h.id.Index }

// Generation returns the slot generation the handle was issued with.
func (h Strong[Tag]) Generation() uint32 { return h.id.Generation }

// IsZero reports whether h is the zero handle.
func (h Strong[Tag]) IsZero() bool { return h.id.IsZero() }

func (h Strong[Tag]) String() string { return h.id.String() }

// ID returns the raw pair.
func (w Weak[Tag]) ID() ID { return w.id }

// Index returns the slot index.
func (w Weak[Tag]) Index() uint32 { return w.id.Index }

// Generation returns the slot generation the handle was issued with.
func (w Weak[Tag]) Generation() uint32 { return w.id.Generation }

// IsZero reports whether w is the zero handle.
func (w Weak[Tag]) IsZero() bool { return w.id.IsZero() }

func (w Weak[Tag]) String() string { return w.id.String() }
