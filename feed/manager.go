package feed

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"marketforge/core"
	"marketforge/logger"
)

// ShutdownTimeout bounds how long StopAll waits for any single source's
// run loop to return after Stop() is called. A source that blows past
// this deadline is reported via ErrShutdownTimeout instead of being
// silently detached: an orphaned goroutine holding a file handle or a
// socket is worse than a slow, visible shutdown.
const ShutdownTimeout = 5 * time.Second

type handle struct {
	source  Source
	id      string
	done    chan struct{}
	stopReq atomic.Bool
}

// Manager owns a set of feed sources, minting each a stable string id at
// registration time (never a pointer or goroutine identity, since both
// are meaningless across a restart). It starts and stops them as a
// group and aggregates their dispatch into a single enqueue callback.
type Manager struct {
	mu      sync.Mutex
	handles []*handle
	log     *logger.Entry
	nextID  int64
}

// NewManager constructs an empty feed manager.
func NewManager(log *logger.Log) *Manager {
	return &Manager{
		log: log.WithComponent("feed-manager"),
	}
}

// AddSource registers source under a stable id, returning that id. If
// uniqueTags is later requested at StartAll time, duplicate SourceTags
// are rejected there rather than here, since a manager may legitimately
// hold sources before deciding how to start them.
func (m *Manager) AddSource(source Source) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := "feed-" + strconv.FormatInt(m.nextID, 10)
	m.handles = append(m.handles, &handle{source: source, id: id})
	return id
}

// StartAll launches every registered source that is not already
// Running, via the TrySetRunning CAS (so a repeated StartAll call is
// idempotent — sources already running are skipped, not restarted). If
// uniqueTags is true and two registered sources share a SourceTag,
// StartAll returns an error and starts nothing.
func (m *Manager) StartAll(enqueue func(core.Order, core.AuthFlags), uniqueTags bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uniqueTags {
		seen := make(map[string]bool, len(m.handles))
		for _, h := range m.handles {
			tag := h.source.SourceTag()
			if seen[tag] {
				return core.ErrDuplicateSourceTag
			}
			seen[tag] = true
		}
	}

	for _, h := range m.handles {
		if !h.source.TrySetRunning() {
			continue
		}
		h.stopReq.Store(false)
		h.done = make(chan struct{})
		go m.runSource(h, enqueue)
	}
	return nil
}

func (m *Manager) runSource(h *handle, enqueue func(core.Order, core.AuthFlags)) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logger.Fields{"source": h.source.SourceTag(), "panic": r}).Error("feed source panicked")
			if h.source.HasTelemetry() {
				h.source.Telemetry().Stamina.ThreadFailures.Add(1)
			}
			h.source.SetStatus(Stopped)
			return
		}
		if h.stopReq.Load() {
			h.source.SetStatus(Stopped)
		} else {
			h.source.SetStatus(Completed)
		}
	}()

	h.source.Run(enqueue)
}

// StopAll requests every running source to stop, then waits up to
// ShutdownTimeout for each one individually to confirm its run loop has
// returned. A source that misses its deadline is never detached: it is
// reported back to the caller so the operator knows a goroutine is
// still live, holding whatever resources it was using.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	handles := make([]*handle, len(m.handles))
	copy(handles, m.handles)
	m.mu.Unlock()

	for _, h := range handles {
		if h.source.Status() != Running {
			continue
		}
		h.stopReq.Store(true)
		h.source.Stop()
	}

	var timedOut []string
	for _, h := range handles {
		if h.done == nil {
			continue
		}
		select {
		case <-h.done:
		case <-time.After(ShutdownTimeout):
			timedOut = append(timedOut, h.source.SourceTag())
		}
	}

	if len(timedOut) > 0 {
		m.log.WithFields(logger.Fields{"sources": timedOut}).Error("sources missed shutdown deadline")
		return core.ErrShutdownTimeout
	}
	return nil
}

// ResetAllSources stops every running source, then rewinds each one back
// to Idle: ResetForRestart flips the status CAS (a no-op unless the
// source is already Stopped or Completed, hence the leading StopAll),
// ResetStream clears any source-local read state (e.g. a CSV source's
// monotonic timestamp watermark), and the restart counter in Stamina is
// zeroed so it reports restarts since the last reset rather than an
// unbounded lifetime total.
func (m *Manager) ResetAllSources() {
	if err := m.StopAll(); err != nil {
		m.log.WithError(err).Warn("not all sources stopped cleanly before reset")
	}

	m.mu.Lock()
	handles := make([]*handle, len(m.handles))
	copy(handles, m.handles)
	m.mu.Unlock()

	for _, h := range handles {
		h.source.ResetForRestart()
		if err := h.source.ResetStream(); err != nil {
			m.log.WithError(err).WithFields(logger.Fields{"source": h.source.SourceTag()}).Warn("failed to reset source stream")
		}
		if h.source.HasTelemetry() {
			h.source.Telemetry().Stamina.SuccessfulRestarts.Store(0)
		}
	}
}

// WaitForCompletion blocks until every started source's run loop has
// returned or timeout elapses, reporting which outcome occurred.
func (m *Manager) WaitForCompletion(timeout time.Duration) bool {
	m.mu.Lock()
	handles := make([]*handle, len(m.handles))
	copy(handles, m.handles)
	m.mu.Unlock()

	deadline := time.After(timeout)
	for _, h := range handles {
		if h.done == nil {
			continue
		}
		select {
		case <-h.done:
		case <-deadline:
			return false
		}
	}
	return true
}

// ActiveSourceCount reports how many registered sources are currently
// in the Running state.
func (m *Manager) ActiveSourceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, h := range m.handles {
		if h.source.Status() == Running {
			count++
		}
	}
	return count
}

// Snapshots returns a telemetry snapshot for every registered source
// that exposes one, keyed by its SourceTag.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshots := make([]Snapshot, 0, len(m.handles))
	for _, h := range m.handles {
		if !h.source.HasTelemetry() {
			continue
		}
		snapshots = append(snapshots, h.source.Telemetry().Snapshot(h.source.SourceTag(), h.source.Status()))
	}
	return snapshots
}
