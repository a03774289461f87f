package arena

import (
	"errors"
	"testing"

	"marketforge/core"
)

func TestArenaAllocate(t *testing.T) {
	a := New(64)
	buf, err := a.Allocate(16, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("len = %d, want 16", len(buf))
	}
	if a.Used() != 16 {
		t.Fatalf("Used() = %d, want 16", a.Used())
	}
	if a.Available() != 48 {
		t.Fatalf("Available() = %d, want 48", a.Available())
	}
}

func TestArenaAlignment(t *testing.T) {
	a := New(64)
	if _, err := a.Allocate(3, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Used() != 3 {
		t.Fatalf("Used() after first alloc = %d, want 3", a.Used())
	}
	buf, err := a.Allocate(8, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) != 8 {
		t.Fatalf("len = %d, want 8", len(buf))
	}
	if a.Used() != 16 {
		t.Fatalf("Used() after aligned alloc = %d, want 16 (got padding wrong)", a.Used())
	}
}

func TestArenaOutOfMemory(t *testing.T) {
	a := New(8)
	if _, err := a.Allocate(16, 8); !errors.Is(err, core.ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestArenaReset(t *testing.T) {
	a := New(16)
	if _, err := a.Allocate(16, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", a.Available())
	}
	a.Reset()
	if a.Used() != 0 {
		t.Fatalf("Used() after Reset = %d, want 0", a.Used())
	}
	if _, err := a.Allocate(16, 8); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestArenaCapacity(t *testing.T) {
	a := New(128)
	if a.Capacity() != 128 {
		t.Fatalf("Capacity() = %d, want 128", a.Capacity())
	}
}
