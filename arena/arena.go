// Package arena implements a bump-pointer allocator over a single
// contiguous buffer. It is the Go realization of the original
// ArenaAllocator: no per-block metadata, no individual free, and no
// internal locking — callers serialize access themselves.
package arena

import "marketforge/core"

// DefaultAlignment matches alignof(std::max_align_t) on common 64-bit
// platforms: 8-byte alignment is sufficient for every type this arena
// backs (float64 slots in an OrderBook).
const DefaultAlignment = 8

// Arena is a bump-pointer allocator. It is not safe for concurrent use;
// the OrderBook that owns one binds it to its own mutex.
type Arena struct {
	buf    []byte
	offset int
}

// New allocates a buffer of the given size and returns an Arena bound to
// it. size must be > 0.
func New(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Allocate reserves size bytes aligned to alignment (must be a power of
// two) and returns a slice view into the arena's backing buffer, or
// ErrOutOfMemory if the arena cannot satisfy the request.
func (a *Arena) Allocate(size int, alignment int) ([]byte, error) {
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	aligned := (a.offset + alignment - 1) &^ (alignment - 1)
	next := aligned + size
	if next > len(a.buf) || next < 0 {
		return nil, core.ErrOutOfMemory
	}
	a.offset = next
	return a.buf[aligned:next], nil
}

// Reset returns the bump pointer to zero. Previously allocated slices
// remain valid Go slices but are logically free for reuse; callers must
// not rely on their contents surviving a Reset followed by further
// allocation.
func (a *Arena) Reset() {
	a.offset = 0
}

// Used returns the number of bytes allocated since construction or the
// last Reset.
func (a *Arena) Used() int {
	return a.offset
}

// Available returns the number of bytes that can still be allocated
// before the arena is exhausted, ignoring alignment padding.
func (a *Arena) Available() int {
	return len(a.buf) - a.offset
}

// Capacity returns the total size of the backing buffer.
func (a *Arena) Capacity() int {
	return len(a.buf)
}
