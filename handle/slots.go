package handle

import "math"

// retiredGeneration marks a slot whose generation counter ran out. It is
// never issued, so no handle can match a retired slot.
const retiredGeneration = 0

// slots is the unsynchronized allocator shared by Pool and Map.
type slots struct {
	generations []uint32
	occupied    []bool
	free        []uint32 // LIFO
	live        int
	retired     int
}

func (s *slots) allocate() ID {
	if n := len(s.free); n > 0 {
		index := s.free[n-1]
		s.free = s.free[:n-1]
		s.occupied[index] = true
		s.live++
		return ID{Index: index, Generation: s.generations[index]}
	}

	index := uint32(len(s.generations))
	s.generations = append(s.generations, 1)
	s.occupied = append(s.occupied, true)
	s.live++
	return ID{Index: index, Generation: 1}
}

func (s *slots) valid(id ID) bool {
	if id.Generation == 0 || int(id.Index) >= len(s.generations) {
		return false
	}
	return s.generations[id.Index] == id.Generation
}

// expired reports whether id was issued by this allocator and has since
// been released.
func (s *slots) expired(id ID) bool {
	if id.Generation == 0 || int(id.Index) >= len(s.generations) {
		return false
	}
	stored := s.generations[id.Index]
	return stored == retiredGeneration || id.Generation < stored
}

func (s *slots) release(id ID) bool {
	if !s.valid(id) {
		return false
	}

	s.occupied[id.Index] = false
	s.live--

	if id.Generation == math.MaxUint32 {
		s.generations[id.Index] = retiredGeneration
		s.retired++
		return true
	}

	s.generations[id.Index]++
	s.free = append(s.free, id.Index)
	return true
}
