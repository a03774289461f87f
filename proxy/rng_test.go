package proxy

import "testing"

func TestNewConnectionRNGDeterministicForSameSeed(t *testing.T) {
	a := newConnectionRNG(42, 7, 9)
	b := newConnectionRNG(42, 7, 9)
	for i := 0; i < 10; i++ {
		if va, vb := a.Int63(), b.Int63(); va != vb {
			t.Fatalf("expected identical sequences for identical seed inputs, diverged at %d: %d != %d", i, va, vb)
		}
	}
}

func TestNewConnectionRNGVariesByConnection(t *testing.T) {
	a := newConnectionRNG(42, 7, 9)
	b := newConnectionRNG(42, 7, 10)
	same := true
	for i := 0; i < 10; i++ {
		if a.Int63() != b.Int63() {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different connection-derived ids to produce different sequences")
	}
}

func TestNewConnectionRNGZeroSeedIsNotFixed(t *testing.T) {
	a := newConnectionRNG(0, 7, 9)
	if a == nil {
		t.Fatal("expected a non-nil RNG even with seed 0")
	}
}
