package proxy

import (
	"sync"
	"time"
)

// Throttle is the bandwidth token bucket: tokens accrue continuously at
// rateBytesPerSec, clamped to maxTokens, with a fractional accumulator
// so sub-byte accrual isn't lost to rounding at low bit rates. It is the
// most delicate part of the proxy per the design notes, so every field
// here maps directly to the specified invariant: 0 <= tokens <=
// maxTokens.
type Throttle struct {
	mu sync.Mutex

	rateBytesPerSec float64
	maxTokens       float64
	tokens          float64
	fractional      float64
	lastRefill      time.Time

	// minQuantum is the smallest allowance ever returned when the rate
	// is positive (capped at maxTokens), so tiny sends still make
	// progress at extremely low configured rates.
	minQuantum float64
}

// NewThrottle constructs a token bucket. rateKbps <= 0 disables shaping
// entirely (Allowance returns the full requested amount). When burst is enabled,
// maxTokens = rate * burstSeconds; otherwise maxTokens = rate * 1s.
func NewThrottle(rateKbps int, burst bool, burstSeconds int) *Throttle {
	rate := float64(rateKbps) * 1000 / 8 // kbps -> bytes/sec
	window := 1.0
	if burst && burstSeconds > 0 {
		window = float64(burstSeconds)
	}
	max := rate * window
	t := &Throttle{
		rateBytesPerSec: rate,
		maxTokens:       max,
		tokens:          max,
		lastRefill:      time.Now(),
		minQuantum:      1024,
	}
	return t
}

// Unlimited reports whether this throttle performs no shaping at all.
func (t *Throttle) Unlimited() bool {
	return t.rateBytesPerSec <= 0
}

// Allowance advances the clock, refills tokens, clamps to max, and
// returns how many bytes (at most requested) may be sent right now. A
// minimum quantum (1 KiB, or maxTokens when that is smaller) is always
// returned when the configured rate is positive, even if the strict
// token math would round to zero, so low-bit-rate connections still
// make forward progress.
func (t *Throttle) Allowance(requested int) int {
	if t.Unlimited() {
		return requested
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastRefill).Seconds()
	t.lastRefill = now

	accrued := t.rateBytesPerSec*elapsed + t.fractional
	whole := float64(int64(accrued))
	t.fractional = accrued - whole
	t.tokens += whole
	if t.tokens > t.maxTokens {
		t.tokens = t.maxTokens
		t.fractional = 0
	}

	avail := t.tokens
	quantum := t.minQuantum
	if quantum > t.maxTokens {
		quantum = t.maxTokens
	}
	if avail < quantum {
		avail = quantum
	}
	if float64(requested) < avail {
		avail = float64(requested)
	}
	return int(avail)
}

// Consume deducts n bytes from the bucket after a successful send. It is
// never called before the send succeeds, matching the "consumes throttle
// tokens only after a successful send" contract.
func (t *Throttle) Consume(n int) {
	if t.Unlimited() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens -= float64(n)
	if t.tokens < 0 {
		t.tokens = 0
	}
}
