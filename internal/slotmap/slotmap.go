// Package slotmap is an arena collection addressed by generation-checked handles.
//
// Members keep insertion order in an index-linked list, so insert, remove and
// membership checks are O(1) and forward traversal visits members oldest first.
package slotmap

// Handle refers to one member of a Map. The zero Handle is never valid.
type Handle struct {
	index uint16
	gen   uint16
}

// Valid reports whether h was ever issued (it may still be stale).
func (h Handle) Valid() bool { return h.gen != 0 }

// Index returns the slot index, stable for the lifetime of the member.
func (h Handle) Index() int { return int(h.index) }

const none = -1

type slot[T any] struct {
	val  T
	gen  uint16
	used bool
	prev int
	next int
}

// Map stores values of type T.
type Map[T any] struct {
	slots []slot[T]
	free  []int
	head  int
	tail  int
	n     int
	limit int
}

// New returns an empty map that holds at most limit members (0 = unbounded).
func New[T any](limit int) *Map[T] {
	return &Map[T]{head: none, tail: none, limit: limit}
}

// Len returns the number of members.
func (m *Map[T]) Len() int { return m.n }

// Insert appends v and returns its handle. ok is false when the map is full.
func (m *Map[T]) Insert(v T) (h Handle, ok bool) {
	if m.limit > 0 && m.n >= m.limit {
		return Handle{}, false
	}
	var i int
	if n := len(m.free); n > 0 {
		i = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		if len(m.slots) > 0xFFFF {
			return Handle{}, false
		}
		m.slots = append(m.slots, slot[T]{})
		i = len(m.slots) - 1
	}
	s := &m.slots[i]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.val = v
	s.used = true
	s.prev = m.tail
	s.next = none
	if m.tail != none {
		m.slots[m.tail].next = i
	} else {
		m.head = i
	}
	m.tail = i
	m.n++
	return Handle{index: uint16(i), gen: s.gen}, true
}

// Contains reports whether h refers to a live member.
func (m *Map[T]) Contains(h Handle) bool {
	if !h.Valid() || int(h.index) >= len(m.slots) {
		return false
	}
	s := &m.slots[h.index]
	return s.used && s.gen == h.gen
}

// Get returns the value for h.
func (m *Map[T]) Get(h Handle) (T, bool) {
	if !m.Contains(h) {
		var zero T
		return zero, false
	}
	return m.slots[h.index].val, true
}

// Remove deletes h and returns its value.
func (m *Map[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !m.Contains(h) {
		return zero, false
	}
	i := int(h.index)
	s := &m.slots[i]
	if s.prev != none {
		m.slots[s.prev].next = s.next
	} else {
		m.head = s.next
	}
	if s.next != none {
		m.slots[s.next].prev = s.prev
	} else {
		m.tail = s.prev
	}
	v := s.val
	s.val = zero
	s.used = false
	s.prev, s.next = none, none
	m.free = append(m.free, i)
	m.n--
	return v, true
}

// Front returns the oldest member.
func (m *Map[T]) Front() (Handle, bool) {
	if m.head == none {
		return Handle{}, false
	}
	return m.handle(m.head), true
}

// Next returns the member after h, wrapping to the front after the last one.
func (m *Map[T]) Next(h Handle) (Handle, bool) {
	if !m.Contains(h) {
		return Handle{}, false
	}
	i := m.slots[h.index].next
	if i == none {
		i = m.head
	}
	return m.handle(i), true
}

// Each calls fn for every member in insertion order until fn returns false.
// fn must not insert into or remove from the map.
func (m *Map[T]) Each(fn func(Handle, T) bool) {
	for i := m.head; i != none; i = m.slots[i].next {
		if !fn(m.handle(i), m.slots[i].val) {
			return
		}
	}
}

// Drain removes every member in insertion order, calling fn for each.
func (m *Map[T]) Drain(fn func(T)) {
	for m.head != none {
		v, _ := m.Remove(m.handle(m.head))
		if fn != nil {
			fn(v)
		}
	}
}

func (m *Map[T]) handle(i int) Handle {
	return Handle{index: uint16(i), gen: m.slots[i].gen}
}
