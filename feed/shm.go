package feed

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"marketforge/core"
	"marketforge/logger"
)

// PacketSize is the fixed payload size of one SHM ring slot, matching
// the original struct Packet{ data[256]; len; padding }.
const PacketSize = 256

// packetStride is the on-disk size of one Packet: 256 data bytes + a
// uint16 length + a uint16 padding field, matching the C struct layout.
const packetStride = PacketSize + 2 + 2

const (
	headOffset = 0
	tailOffset = 4
	ringHeaderSize = 8 // two uint32 atomics: head, tail
)

// shmRegionSize computes the correct mmap byte size for a ring of the
// given capacity. This fixes the original's latent sizing bug: the
// original opened the region with ftruncate(sizeof(RingBuffer)), which
// only reserves space for a single Packet regardless of capacity. The
// correct size is the header plus capacity*packetStride, computed
// explicitly.
func shmRegionSize(capacity int) int64 {
	return int64(ringHeaderSize) + int64(capacity)*int64(packetStride)
}

// ShmSource attaches to a named memory-mapped ring buffer and drains it
// as a single consumer. The ring must have exactly one producer and one
// consumer; head/tail are paired with acquire/release atomics.
type ShmSource struct {
	StatusMachine
	path      string
	capacity  int
	telemetry *Telemetry
	hashLog   *HashLogger
	log       *logger.Entry

	stop chan struct{}
	file *os.File
	mem  []byte
}

// NewShmSource opens (creating if necessary) the mmap-backed region at
// path sized for capacity packets.
func NewShmSource(path string, capacity int, hashLog *HashLogger, log *logger.Log) (*ShmSource, error) {
	size := shmRegionSize(capacity)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open shm region: %w", err)
	}
	if info, statErr := f.Stat(); statErr == nil && info.Size() < size {
		if truncErr := f.Truncate(size); truncErr != nil {
			f.Close()
			return nil, fmt.Errorf("truncate shm region: %w", truncErr)
		}
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shm region: %w", err)
	}

	return &ShmSource{
		path:      path,
		capacity:  capacity,
		telemetry: NewTelemetry(),
		hashLog:   hashLog,
		log:       log.WithComponent("feed-shm"),
		stop:      make(chan struct{}),
		file:      f,
		mem:       mem,
	}, nil
}

func (s *ShmSource) SourceTag() string { return "SRC_SHM_" + s.path }

func (s *ShmSource) HasTelemetry() bool    { return true }
func (s *ShmSource) Telemetry() *Telemetry { return s.telemetry }

func (s *ShmSource) ResetStream() error    { return nil }
func (s *ShmSource) ResetForRestart() {
	s.StatusMachine.ResetForRestart()
	s.stop = make(chan struct{})
}

func (s *ShmSource) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Close releases the mmap and the backing file descriptor.
func (s *ShmSource) Close() error {
	if s.mem != nil {
		unix.Munmap(s.mem)
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *ShmSource) headPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&s.mem[headOffset]))
}

func (s *ShmSource) tailPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&s.mem[tailOffset]))
}

func (s *ShmSource) packetAt(slot uint32) (data []byte, length uint16) {
	base := ringHeaderSize + int(slot)*packetStride
	length = uint16(s.mem[base+PacketSize]) | uint16(s.mem[base+PacketSize+1])<<8
	return s.mem[base : base+PacketSize], length
}

// Run drains the ring until Stop is called. Between empty-ring checks it
// sleeps ~100us to avoid busy-spinning, matching the original's
// backoff.
//
// localTail and head are monotonically increasing sequence numbers
// (wrapping only at the uint32 boundary, per the testable property that
// tail <= head mod 2^32), never wrapped at capacity: only the slot index
// derived from them (localTail % capacity) wraps. Storing a
// capacity-wrapped value into tail would make it indistinguishable from
// an equal-looking sequence number one or more full laps behind, and
// would desync permanently from a producer that keeps incrementing head
// past capacity.
func (s *ShmSource) Run(enqueue func(core.Order, core.AuthFlags)) {
	localTail := atomic.LoadUint32(s.tailPtr())

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		head := atomic.LoadUint32(s.headPtr())

		for localTail != head {
			data, length := s.packetAt(localTail % uint32(s.capacity))
			payload := data[:length]

			if !isASCIIPrintable(payload) {
				s.telemetry.Anomalies.Add(1)
			} else if order, ok := parseCSVBytes(payload); ok {
				if s.hashLog != nil {
					originalHash := ComputeSHA256(string(payload))
					parsedHash := ComputeSHA256(order.CanonicalCSV())
					if parsedHash != originalHash {
						s.hashLog.LogAnomaly(s.SourceTag(), originalHash, parsedHash)
					} else {
						s.hashLog.LogPacket(s.SourceTag(), string(payload), originalHash)
					}
				}
				enqueue(order, core.Trusted)
				s.telemetry.OrdersReceived.Add(1)
			} else {
				s.telemetry.Anomalies.Add(1)
			}

			localTail++
			atomic.StoreUint32(s.tailPtr(), localTail)
		}

		time.Sleep(100 * time.Microsecond)
	}
}

func isASCIIPrintable(b []byte) bool {
	for _, c := range b {
		if c < 32 || c > 126 {
			return false
		}
	}
	return true
}
