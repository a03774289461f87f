package feed

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketforge/core"
	"marketforge/logger"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

// TestCSVSourceAnomalyCounting exercises the five-line fixture from the
// happy-path/anomaly-counting scenario: three well-formed lines and two
// malformed ones (an unparseable line and a semicolon-delimited line).
func TestCSVSourceAnomalyCounting(t *testing.T) {
	contents := "100.0,1.0,1725621000\n" +
		"INVALID\n" +
		"102.0,1.0,1725621002\n" +
		"100.0;1.0;1725621003\n" +
		"103.0,1.0,1725621004\n"
	path := writeTempFile(t, contents)

	src := NewCSVSource(path, 0, nil, logger.GetLogger())

	var received []core.Order
	src.Run(func(o core.Order, auth core.AuthFlags) {
		received = append(received, o)
		if auth != core.Trusted {
			t.Fatalf("expected Trusted auth flag, got %v", auth)
		}
	})

	if got := src.Telemetry().OrdersReceived.Load(); got != 3 {
		t.Fatalf("OrdersReceived = %d, want 3", got)
	}
	if got := src.Telemetry().Anomalies.Load(); got != 2 {
		t.Fatalf("Anomalies = %d, want 2", got)
	}
	if len(received) != 3 {
		t.Fatalf("enqueued %d orders, want 3", len(received))
	}
}

func TestCSVSourceRejectsNonAsciiPrintable(t *testing.T) {
	path := writeTempFile(t, "100.0,1.0,1725621000\n1\x0100.0,1.0,1725621005\n")
	src := NewCSVSource(path, 0, nil, logger.GetLogger())

	var n int
	src.Run(func(core.Order, core.AuthFlags) { n++ })

	if n != 1 {
		t.Fatalf("enqueued %d orders, want 1", n)
	}
	if got := src.Telemetry().Anomalies.Load(); got != 1 {
		t.Fatalf("Anomalies = %d, want 1", got)
	}
}

func TestCSVSourceRejectsNonMonotonicTimestamp(t *testing.T) {
	path := writeTempFile(t, "100.0,1.0,1725621000\n101.0,1.0,1725620999\n102.0,1.0,1725621001\n")
	src := NewCSVSource(path, 0, nil, logger.GetLogger())

	var timestamps []int64
	src.Run(func(o core.Order, _ core.AuthFlags) { timestamps = append(timestamps, o.Timestamp) })

	if len(timestamps) != 2 {
		t.Fatalf("enqueued %d orders, want 2 (replay must be rejected)", len(timestamps))
	}
	if got := src.Telemetry().Anomalies.Load(); got != 1 {
		t.Fatalf("Anomalies = %d, want 1", got)
	}
}

func TestCSVSourceHashLogMatchesCanonicalLine(t *testing.T) {
	path := writeTempFile(t, "100,1,1725621000\n")
	var buf bytes.Buffer
	hashLog := NewHashLoggerWriter(&buf)
	src := NewCSVSource(path, 0, hashLog, logger.GetLogger())
	src.Run(func(core.Order, core.AuthFlags) {})

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("[FEED]")) {
		t.Fatalf("expected a [FEED] line for a canonical CSV line, got: %q", out)
	}
}

func TestCSVSourceStatusReachesCompletedOnEOF(t *testing.T) {
	path := writeTempFile(t, "100.0,1.0,1725621000\n")
	src := NewCSVSource(path, 0, nil, logger.GetLogger())
	m := NewManager(logger.GetLogger())
	m.AddSource(src)
	if err := m.StartAll(func(core.Order, core.AuthFlags) {}, false); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if !m.WaitForCompletion(time.Second) {
		t.Fatal("CSV source did not reach EOF before the timeout")
	}
	if src.Status() != Completed {
		t.Fatalf("Status() = %v, want Completed", src.Status())
	}
}
