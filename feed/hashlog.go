package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// HashLogger is the integrity log: an append-only file receiving one
// [FEED] line per successfully parsed record and one [ANOMALY] line per
// hash mismatch between the raw payload and its parsed-and-restringified
// form. Hashing itself is treated as external, trivial plumbing (the
// specification explicitly scopes it out) — crypto/sha256 is the
// standard library's own implementation and needs no third-party
// substitute here.
type HashLogger struct {
	mu  sync.Mutex
	out io.Writer
	closer io.Closer
}

// NewHashLogger opens (creating if necessary) the append-only log file
// at path.
func NewHashLogger(path string) (*HashLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open hash log: %w", err)
	}
	return &HashLogger{out: f, closer: f}, nil
}

// NewHashLoggerWriter wraps an arbitrary writer (used by tests to avoid
// touching the filesystem).
func NewHashLoggerWriter(w io.Writer) *HashLogger {
	return &HashLogger{out: w}
}

// Close releases the underlying file, if any.
func (h *HashLogger) Close() error {
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

// ComputeSHA256 hashes s and returns the lowercase hex digest.
func ComputeSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// LogPacket writes a [FEED] line recording a successfully parsed,
// hash-matched record.
func (h *HashLogger) LogPacket(tag, rawLine, hash string) {
	h.writeLine(fmt.Sprintf("[FEED] [%s] SHA256=%s line=%s", tag, hash, singleLine(rawLine)))
}

// LogAnomaly writes an [ANOMALY] line recording a hash mismatch between
// the raw payload and its parsed-and-restringified form.
func (h *HashLogger) LogAnomaly(tag, expected, got string) {
	h.writeLine(fmt.Sprintf("[ANOMALY] [%s] Expected=%s Got=%s", tag, expected, got))
}

func (h *HashLogger) writeLine(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, line)
}

// singleLine strips carriage returns and newlines so a malicious or
// malformed payload can never break the log's one-line-per-record
// invariant.
func singleLine(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
