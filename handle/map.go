package handle

import "sync"

// Map is a Pool that also stores one value per live slot. It is the
// building block for handle-addressed tables: the value is reachable only
// through a handle whose generation still matches.
type Map[Tag any, V any] struct {
	mu     sync.RWMutex
	s      slots
	values []V
}

// NewMap returns a Map with room for capacity entries before it grows.
func NewMap[Tag any, V any](capacity int) *Map[Tag, V] {
	m := &Map[Tag, V]{}
	if capacity > 0 {
		m.s.generations = make([]uint32, 0, capacity)
		m.s.occupied = make([]bool, 0, capacity)
		m.values = make([]V, 0, capacity)
	}
	return m
}

// Insert stores v in a fresh slot and returns its handle.
func (m *Map[Tag, V]) Insert(v V) Strong[Tag] {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.s.allocate()
	if int(id.Index) == len(m.values) {
		m.values = append(m.values, v)
	} else {
		m.values[id.Index] = v
	}
	return Strong[Tag]{id: id}
}

// Get returns the value stored under h.
func (m *Map[Tag, V]) Get(h Strong[Tag]) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.s.valid(h.id) {
		var zero V
		return zero, false
	}
	return m.values[h.id.Index], true
}

// Remove deletes the entry under h, invalidating h, and returns the value
// it held.
func (m *Map[Tag, V]) Remove(h Strong[Tag]) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	if !m.s.release(h.id) {
		return zero, false
	}
	v := m.values[h.id.Index]
	m.values[h.id.Index] = zero
	return v, true
}

// IsValid reports whether h names a live entry.
func (m *Map[Tag, V]) IsValid(h Strong[Tag]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.valid(h.id)
}

// Expired reports whether h was issued by this map and removed since.
func (m *Map[Tag, V]) Expired(h Strong[Tag]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.expired(h.id)
}

// Len returns the number of live entries.
func (m *Map[Tag, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.live
}

// Range calls fn for each live entry until fn returns false. fn must not
// call back into m.
func (m *Map[Tag, V]) Range(fn func(Strong[Tag], V) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, live := range m.s.occupied {
		if !live {
			continue
		}
		h := Strong[Tag]{id: ID{Index: uint32(i), Generation: m.s.generations[i]}}
		if !fn(h, m.values[i]) {
			return
		}
	}
}
