package feed

import (
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"marketforge/core"
	"marketforge/logger"
)

// writeSHMPacket writes payload into ring slot `seq % capacity` and
// advances head, mimicking an external single producer.
func writeSHMPacket(t *testing.T, src *ShmSource, seq uint32, payload string) {
	t.Helper()
	slot := seq % uint32(src.capacity)
	base := ringHeaderSize + int(slot)*packetStride
	copy(src.mem[base:base+PacketSize], make([]byte, PacketSize))
	copy(src.mem[base:base+len(payload)], []byte(payload))
	src.mem[base+PacketSize] = byte(len(payload))
	src.mem[base+PacketSize+1] = byte(len(payload) >> 8)
	atomic.StoreUint32(src.headPtr(), seq+1)
}

// TestShmSourceDrainsAcrossMultipleWraps exercises testable property 8:
// tail stays a monotonic sequence number that never desyncs from head
// once the ring wraps around capacity more than once.
func TestShmSourceDrainsAcrossMultipleWraps(t *testing.T) {
	const capacity = 4
	path := filepath.Join(t.TempDir(), "ring")

	src, err := NewShmSource(path, capacity, nil, logger.GetLogger())
	if err != nil {
		t.Fatalf("NewShmSource: %v", err)
	}
	defer src.Close()

	orders := make(chan core.Order, 32)
	go src.Run(func(o core.Order, _ core.AuthFlags) { orders <- o })
	defer src.Stop()

	const total = 10 // more than 2x capacity, forcing multiple wraps
	for i := 0; i < total; i++ {
		writeSHMPacket(t, src, uint32(i), "100,1,"+strconv.Itoa(1725621000+i))
		select {
		case o := <-orders:
			if o.Timestamp != int64(1725621000+i) {
				t.Fatalf("packet %d: got timestamp %d, want %d", i, o.Timestamp, 1725621000+i)
			}
		case <-time.After(time.Second):
			t.Fatalf("packet %d: timed out waiting for consumer to drain it", i)
		}
	}

	if got := src.Telemetry().OrdersReceived.Load(); got != total {
		t.Fatalf("OrdersReceived = %d, want %d", got, total)
	}

	finalTail := atomic.LoadUint32(src.tailPtr())
	if finalTail != total {
		t.Fatalf("tail = %d, want %d (must stay a monotonic sequence number, not wrap at capacity)", finalTail, total)
	}
}

func TestShmSourceRejectsNonPrintablePacket(t *testing.T) {
	const capacity = 4
	path := filepath.Join(t.TempDir(), "ring")

	src, err := NewShmSource(path, capacity, nil, logger.GetLogger())
	if err != nil {
		t.Fatalf("NewShmSource: %v", err)
	}
	defer src.Close()

	orders := make(chan core.Order, 4)
	go src.Run(func(o core.Order, _ core.AuthFlags) { orders <- o })
	defer src.Stop()

	writeSHMPacket(t, src, 0, "100,1,\x0177562100")

	deadline := time.Now().Add(time.Second)
	for src.Telemetry().Anomalies.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := src.Telemetry().Anomalies.Load(); got != 1 {
		t.Fatalf("Anomalies = %d, want 1", got)
	}
	select {
	case o := <-orders:
		t.Fatalf("unexpected enqueued order for a non-printable packet: %+v", o)
	default:
	}
}
