// Package proxy implements the TCP latency-impairment proxy: a
// per-connection stateful forwarder with token-bucket bandwidth shaping,
// randomized drop/duplicate/latency injection, and connection lifecycle
// management, architecturally adjacent to the feed ingestion engine but
// standing on its own as a resilience-testing tool.
package proxy

import (
	"fmt"
	"time"
)

// Direction selects which forwarding directions are active for a
// connection. A disabled direction has its write side half-closed
// immediately instead of being forwarded.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionBoth Direction = "both"
)

// Config holds every tunable of the proxy, mirroring the CLI flag set
// documented in the external interfaces: listen/upstream endpoints,
// impairment parameters, bandwidth shaping, connection lifecycle, and
// reproducibility.
type Config struct {
	ListenHost     string
	ListenPort     int
	UpstreamHost   string
	UpstreamPort   int

	LatencyMs    int
	JitterMs     int
	DropRate     float64
	DupRate      float64
	MaxLatencyMs int

	BandwidthKbps int
	BufferBytes   int
	EnableBurst   bool
	BurstSeconds  int

	Direction     Direction
	MaxConns      int
	HalfClose     bool
	ConnectTimeoutSec int
	SocketTimeoutSec  int
	IdleTimeoutSec    int

	HTTPFriendlyErrors      bool
	RSTOnUpstreamConnectFail bool
	RSTOnMidstreamErrors     bool

	V6Only  bool
	Verbose bool
	Seed    int64
}

// DefaultConfig returns the proxy's documented defaults, overridable by
// CLI flags in cmd/proxy.
func DefaultConfig() Config {
	return Config{
		ListenHost:   "0.0.0.0",
		ListenPort:   8080,
		UpstreamHost: "127.0.0.1",
		UpstreamPort: 9090,

		LatencyMs:    0,
		JitterMs:     0,
		DropRate:     0,
		DupRate:      0,
		MaxLatencyMs: 2000,

		BandwidthKbps: 0,
		BufferBytes:   65536,
		EnableBurst:   false,
		BurstSeconds:  1,

		Direction:         DirectionBoth,
		MaxConns:          256,
		HalfClose:         true,
		ConnectTimeoutSec: 10,
		SocketTimeoutSec:  30,
		IdleTimeoutSec:    300,

		HTTPFriendlyErrors:       false,
		RSTOnUpstreamConnectFail: false,
		RSTOnMidstreamErrors:     false,

		V6Only:  false,
		Verbose: false,
		Seed:    0,
	}
}

// Validate checks the configuration against the documented bounds
// (connect timeout 1-300s, idle timeout 10-3600s, a power-of-two
// buffer size clamped to [1KiB, 1MiB]) and normalizes BufferBytes by
// rounding it up to the next power of two within that range. A fatal misconfiguration here is what
// gives the proxy's CLI its documented exit code 1 behavior.
func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen port %d out of range", c.ListenPort)
	}
	if c.UpstreamPort <= 0 || c.UpstreamPort > 65535 {
		return fmt.Errorf("upstream port %d out of range", c.UpstreamPort)
	}
	switch c.Direction {
	case DirectionUp, DirectionDown, DirectionBoth:
	default:
		return fmt.Errorf("invalid direction %q: must be up, down, or both", c.Direction)
	}
	if c.ConnectTimeoutSec < 1 || c.ConnectTimeoutSec > 300 {
		return fmt.Errorf("connect timeout %ds out of range [1, 300]", c.ConnectTimeoutSec)
	}
	if c.IdleTimeoutSec < 10 || c.IdleTimeoutSec > 3600 {
		return fmt.Errorf("idle timeout %ds out of range [10, 3600]", c.IdleTimeoutSec)
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate %g out of range [0, 1]", c.DropRate)
	}
	if c.DupRate < 0 || c.DupRate > 1 {
		return fmt.Errorf("dup rate %g out of range [0, 1]", c.DupRate)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections %d must be positive", c.MaxConns)
	}
	c.BufferBytes = clampBufferSize(c.BufferBytes)
	return nil
}

const (
	minBufferBytes = 1 << 10 // 1 KiB
	maxBufferBytes = 1 << 20 // 1 MiB
)

// clampBufferSize rounds size up to the next power of two and clamps it
// to [minBufferBytes, maxBufferBytes].
func clampBufferSize(size int) int {
	if size <= minBufferBytes {
		return minBufferBytes
	}
	if size >= maxBufferBytes {
		return maxBufferBytes
	}
	n := minBufferBytes
	for n < size {
		n <<= 1
	}
	return n
}

func (c Config) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

func (c Config) idleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

func (c Config) forwardsUp() bool {
	return c.Direction == DirectionUp || c.Direction == DirectionBoth
}

func (c Config) forwardsDown() bool {
	return c.Direction == DirectionDown || c.Direction == DirectionBoth
}
