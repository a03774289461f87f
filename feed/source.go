package feed

import "marketforge/core"

// Source is the contract every feed transport implements. Run blocks
// until Stop is called or the transport reaches EOF; it must never
// propagate a transport error out of the call — malformed input is
// counted, not raised. The Manager running it sets the status to
// Completed when Run returns on its own, or Stopped after a requested
// stop.
type Source interface {
	// Run executes the blocking ingestion loop. enqueue is called once
	// per successfully parsed order; it must not block for long (it
	// typically pushes onto a bounded channel with a non-blocking send).
	Run(enqueue func(core.Order, core.AuthFlags))
	// Stop requests the run loop to exit at its next checkpoint.
	Stop()
	// SourceTag returns a stable identifier for logs and the
	// Manager's duplicate-tag check in StartAll.
	SourceTag() string
	// ResetStream rewinds or reopens the underlying transport.
	ResetStream() error
	// ResetForRestart clears the stop flag and resets status from a
	// terminal state back to Idle.
	ResetForRestart()
	Status() Status
	SetStatus(s Status)
	TrySetRunning() bool
	// HasTelemetry reports whether Telemetry returns a usable handle.
	HasTelemetry() bool
	Telemetry() *Telemetry
}
