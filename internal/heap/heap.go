// Package heap is a bounded first-fit allocator over a fixed byte arena.
//
// It models the microcontroller's SRAM heap: allocations fail once the arena
// is exhausted instead of growing.
package heap

import "errors"

var (
	ErrOutOfMemory = errors.New("heap: out of memory")
	ErrBadPointer  = errors.New("heap: bad pointer")
)

// Ptr addresses an allocation. The zero Ptr is nil.
type Ptr uint32

const align = 4

type span struct {
	off  uint32
	size uint32
}

// Heap is not safe for concurrent use; the kernel serialises access.
type Heap struct {
	arena []byte
	free  []span // sorted by offset, coalesced
	used  map[uint32]uint32
	inUse uint32
	peak  uint32
}

// New returns a heap backed by size bytes.
func New(size int) *Heap {
	h := &Heap{
		arena: make([]byte, size),
		used:  make(map[uint32]uint32),
	}
	if size > 0 {
		h.free = []span{{off: 0, size: uint32(size)}}
	}
	return h
}

// Alloc returns a zeroed block of n bytes.
func (h *Heap) Alloc(n int) (Ptr, error) {
	if n <= 0 {
		return 0, ErrBadPointer
	}
	need := (uint32(n) + align - 1) &^ (align - 1)
	for i := range h.free {
		sp := &h.free[i]
		if sp.size < need {
			continue
		}
		off := sp.off
		sp.off += need
		sp.size -= need
		if sp.size == 0 {
			h.free = append(h.free[:i], h.free[i+1:]...)
		}
		h.used[off] = need
		h.inUse += need
		if h.inUse > h.peak {
			h.peak = h.inUse
		}
		clear(h.arena[off : off+need])
		return Ptr(off + 1), nil
	}
	return 0, ErrOutOfMemory
}

// Free returns p to the heap. Freeing the nil Ptr is a no-op.
func (h *Heap) Free(p Ptr) error {
	if p == 0 {
		return nil
	}
	off := uint32(p) - 1
	size, ok := h.used[off]
	if !ok {
		return ErrBadPointer
	}
	delete(h.used, off)
	h.inUse -= size

	i := 0
	for i < len(h.free) && h.free[i].off < off {
		i++
	}
	h.free = append(h.free, span{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = span{off: off, size: size}

	if i+1 < len(h.free) && h.free[i].off+h.free[i].size == h.free[i+1].off {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].off+h.free[i-1].size == h.free[i].off {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
	return nil
}

// Bytes returns the requested length of the block at p, or nil.
func (h *Heap) Bytes(p Ptr, n int) []byte {
	if p == 0 {
		return nil
	}
	off := uint32(p) - 1
	size, ok := h.used[off]
	if !ok || uint32(n) > size {
		return nil
	}
	return h.arena[off : off+uint32(n) : off+size]
}

// Offset returns the arena offset of p, used for stack bounds.
func (h *Heap) Offset(p Ptr) uint32 {
	if p == 0 {
		return 0
	}
	return uint32(p) - 1
}

// Stats reports arena usage in bytes.
type Stats struct {
	Size  int
	InUse int
	Peak  int
	Free  int
}

func (h *Heap) Stats() Stats {
	return Stats{
		Size:  len(h.arena),
		InUse: int(h.inUse),
		Peak:  int(h.peak),
		Free:  len(h.arena) - int(h.inUse),
	}
}
