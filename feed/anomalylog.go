package feed

import (
	"golang.org/x/time/rate"

	"marketforge/logger"
)

// anomalyLogRate caps how often a single source logs an anomaly line at
// warn level. A feed replaying a corrupt file can produce anomalies at
// line rate; the counter in Telemetry.Anomalies still tracks every one,
// but the log itself must not scale with input size.
const anomalyLogRate = 5 // per second, per source

// anomalyLogger rate-limits a single source's anomaly log lines while
// leaving its Telemetry.Anomalies counter (incremented by the caller,
// unconditionally) unaffected.
type anomalyLogger struct {
	limiter *rate.Limiter
	log     *logger.Entry
}

func newAnomalyLogger(log *logger.Entry) *anomalyLogger {
	return &anomalyLogger{limiter: rate.NewLimiter(rate.Limit(anomalyLogRate), anomalyLogRate), log: log}
}

// logf logs msg with fields if the rate limiter currently has a token
// available; otherwise it is silently skipped.
func (a *anomalyLogger) logf(msg string, fields logger.Fields) {
	if a == nil || a.log == nil {
		return
	}
	if !a.limiter.Allow() {
		return
	}
	a.log.WithFields(fields).Warn(msg)
}
