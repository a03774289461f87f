// Package feed implements the multi-source producer pool: the Source
// contract, per-source telemetry, the four transport variants (CSV, SHM,
// Socket, Injector, plus a supplemental live-websocket variant), the
// integrity hash logger, and the FeedManager lifecycle orchestrator.
package feed

import "sync/atomic"

// Status is the feed source lifecycle state machine.
type Status int32

const (
	Idle Status = iota
	Running
	Stopped
	Completed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

// StatusMachine is embedded by every Source implementation. It realizes
// the atomic CAS lifecycle from the original IFeedSource: Idle->Running
// on accepted start, {Stopped, Completed}->Idle on explicit reset.
// Completed never auto-restarts.
type StatusMachine struct {
	status atomic.Int32
}

// Status returns the current lifecycle state (acquire semantics via
// atomic load).
func (m *StatusMachine) Status() Status {
	return Status(m.status.Load())
}

// SetStatus unconditionally stores s (release semantics via atomic
// store). Used for the Running->Stopped and Running->Completed
// transitions, which are not gated by a CAS.
func (m *StatusMachine) SetStatus(s Status) {
	m.status.Store(int32(s))
}

// TrySetRunning performs the Idle->Running CAS and reports success. This
// is the mechanism that makes FeedManager.StartAll idempotent: a second
// call while a source is already Running is a no-op for that source.
func (m *StatusMachine) TrySetRunning() bool {
	return m.status.CompareAndSwap(int32(Idle), int32(Running))
}

// ResetForRestart transitions a terminal state (Stopped or Completed)
// back to Idle. It is a no-op if the source is not currently in a
// terminal state.
func (m *StatusMachine) ResetForRestart() {
	if m.status.CompareAndSwap(int32(Completed), int32(Idle)) {
		return
	}
	m.status.CompareAndSwap(int32(Stopped), int32(Idle))
}
