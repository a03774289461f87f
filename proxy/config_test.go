package proxy

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsBadDirection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Direction = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestValidateRejectsOutOfRangeTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeoutSec = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for idle timeout below minimum")
	}

	cfg = DefaultConfig()
	cfg.ConnectTimeoutSec = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for connect timeout above maximum")
	}
}

func TestClampBufferSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, minBufferBytes},
		{100, minBufferBytes},
		{1025, 2048},
		{1 << 20, maxBufferBytes},
		{1 << 25, maxBufferBytes},
	}
	for _, c := range cases {
		if got := clampBufferSize(c.in); got != c.want {
			t.Errorf("clampBufferSize(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
