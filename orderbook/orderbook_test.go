package orderbook

import (
	"testing"

	"marketforge/arena"
	"marketforge/core"
)

func mustOrder(t *testing.T, price, amount float64, ts int64) core.Order {
	t.Helper()
	o, err := core.NewOrder(price, amount, ts)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return o
}

func TestFallbackInsertAndSize(t *testing.T) {
	b := NewFallback()
	b.Insert(mustOrder(t, 10, 1, 1_500_000_001))
	b.Insert(mustOrder(t, 20, 1, 1_500_000_002))
	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", b.Size())
	}
	if b.Capacity() != -1 {
		t.Fatalf("Capacity() = %d, want -1 for fallback", b.Capacity())
	}
}

func TestFallbackInsertDedup(t *testing.T) {
	b := NewFallback()
	o := mustOrder(t, 10, 1, 1_500_000_001)
	b.Insert(o)
	b.Insert(o)
	if b.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 after duplicate insert", b.Size())
	}
}

func TestArenaInsertUpToCapacity(t *testing.T) {
	a := arena.New(1024)
	b := NewArena(a, 2)
	b.Insert(mustOrder(t, 10, 1, 1_500_000_001))
	b.Insert(mustOrder(t, 20, 1, 1_500_000_002))
	if !b.IsArenaFull() {
		t.Fatal("expected arena book to report full at capacity")
	}
	b.Insert(mustOrder(t, 30, 1, 1_500_000_003))
	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (third insert should be rejected)", b.Size())
	}
	if b.FailedArenaInserts() != 1 {
		t.Fatalf("FailedArenaInserts() = %d, want 1", b.FailedArenaInserts())
	}
}

func TestArenaInsertGracefulDegradationOnExhaustion(t *testing.T) {
	a := arena.New(8)
	b := NewArena(a, 100)
	b.Insert(mustOrder(t, 10, 1, 1_500_000_001))
	b.Insert(mustOrder(t, 20, 1, 1_500_000_002))
	if b.FailedArenaInserts() == 0 {
		t.Fatal("expected at least one failed insert once the small arena is exhausted")
	}
}

func TestSortByPriceDesc(t *testing.T) {
	b := NewFallback()
	b.Insert(mustOrder(t, 10, 1, 1_500_000_001))
	b.Insert(mustOrder(t, 30, 1, 1_500_000_002))
	b.Insert(mustOrder(t, 20, 1, 1_500_000_003))
	b.SortByPriceDesc()
	snap := b.Snapshot()
	want := []float64{30, 20, 10}
	for i, price := range want {
		if snap[i].Price != price {
			t.Fatalf("snapshot[%d].Price = %g, want %g", i, snap[i].Price, price)
		}
	}
}
