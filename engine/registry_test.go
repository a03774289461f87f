package engine

import (
	"testing"

	"marketforge/core"
	"marketforge/logger"
)

func TestRegistryUpdateAllCallsEveryIndicator(t *testing.T) {
	r := NewIndicatorRegistry(logger.Logger())
	a := &fakeIndicator{}
	b := &fakeIndicator{}
	r.Register("a", a)
	r.Register("b", b)

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}

	candle, err := core.NewCandlestick(1, 2, 0, 1, 1, 1_500_000_000, 1_500_000_010)
	if err != nil {
		t.Fatalf("NewCandlestick: %v", err)
	}
	r.UpdateAll(candle)

	if !a.updated() || !b.updated() {
		t.Fatal("expected both indicators to be updated")
	}
}

func TestRegistryCurrentSignals(t *testing.T) {
	r := NewIndicatorRegistry(logger.Logger())
	r.Register("a", &fakeIndicator{})
	signals := r.CurrentSignals()
	if signals["a"] != SignalHold {
		t.Fatalf("signals[a] = %q, want %q", signals["a"], SignalHold)
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewIndicatorRegistry(logger.Logger())
	r.Register("a", &fakeIndicator{})
	r.Reset()
	if r.Count() != 0 {
		t.Fatalf("Count() after Reset = %d, want 0", r.Count())
	}
}
