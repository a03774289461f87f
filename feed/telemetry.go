package feed

import "sync/atomic"

// Stamina carries restart and recovery metrics for a source, all
// lock-free atomics updated with relaxed counter semantics.
type Stamina struct {
	SuccessfulRestarts atomic.Int64
	StallsDetected     atomic.Int64
	ThreadFailures      atomic.Int64
	RecoveryLatencyMs  atomic.Int64
	LiveProcessingRate atomic.Int64
}

// Telemetry is the per-source set of atomic counters.
type Telemetry struct {
	OrdersReceived atomic.Int64
	Anomalies      atomic.Int64
	DroppedPackets atomic.Int64
	Stamina        Stamina
}

// NewTelemetry constructs a zeroed Telemetry block.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// Snapshot is a point-in-time copy of a Telemetry block's counters,
// suitable for logging or streaming to the dashboard without holding a
// reference to the live atomics.
type Snapshot struct {
	SourceTag          string `json:"source_tag"`
	OrdersReceived     int64  `json:"orders_received"`
	Anomalies          int64  `json:"anomalies"`
	DroppedPackets     int64  `json:"dropped_packets"`
	SuccessfulRestarts int64  `json:"successful_restarts"`
	StallsDetected     int64  `json:"stalls_detected"`
	ThreadFailures     int64  `json:"thread_failures"`
	RecoveryLatencyMs  int64  `json:"recovery_latency_ms"`
	LiveProcessingRate int64  `json:"live_processing_rate"`
	Status             string `json:"status"`
}

// Snapshot reads every counter into a Snapshot value.
func (t *Telemetry) Snapshot(tag string, status Status) Snapshot {
	return Snapshot{
		SourceTag:          tag,
		OrdersReceived:     t.OrdersReceived.Load(),
		Anomalies:          t.Anomalies.Load(),
		DroppedPackets:     t.DroppedPackets.Load(),
		SuccessfulRestarts: t.Stamina.SuccessfulRestarts.Load(),
		StallsDetected:     t.Stamina.StallsDetected.Load(),
		ThreadFailures:     t.Stamina.ThreadFailures.Load(),
		RecoveryLatencyMs:  t.Stamina.RecoveryLatencyMs.Load(),
		LiveProcessingRate: t.Stamina.LiveProcessingRate.Load(),
		Status:             status.String(),
	}
}
