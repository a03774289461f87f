package engine

import (
	"sync"

	"marketforge/core"
	"marketforge/logger"
)

// IndicatorRegistry owns a name -> Indicator mapping behind a single
// mutex. Updates are serial, so indicators need no internal locking of
// their own.
type IndicatorRegistry struct {
	mu         sync.Mutex
	indicators map[string]Indicator
	order      []string
	log        *logger.Entry
}

// NewIndicatorRegistry constructs an empty registry.
func NewIndicatorRegistry(log *logger.Log) *IndicatorRegistry {
	return &IndicatorRegistry{
		indicators: make(map[string]Indicator),
		log:        log.WithComponent("indicator-registry"),
	}
}

// Register adds or replaces the indicator under name.
func (r *IndicatorRegistry) Register(name string, indicator Indicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.indicators[name]; !exists {
		r.order = append(r.order, name)
	}
	r.indicators[name] = indicator
	r.log.WithFields(logger.Fields{"indicator": name}).Info("indicator registered")
}

// UpdateAll calls Update on every registered indicator exactly once.
// Iteration order is insertion order, which is not required to equal
// registration order across concurrent registrations — callers must not
// depend on a particular ordering beyond "each called exactly once".
func (r *IndicatorRegistry) UpdateAll(candle core.Candlestick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		ind, ok := r.indicators[name]
		if !ok {
			continue
		}
		ind.Update(candle)
	}
}

// CurrentSignals returns a snapshot of name -> signal pairs.
func (r *IndicatorRegistry) CurrentSignals() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.indicators))
	for _, name := range r.order {
		ind, ok := r.indicators[name]
		if !ok {
			continue
		}
		out[name] = ind.Signal()
	}
	return out
}

// Reset clears every registered indicator.
func (r *IndicatorRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indicators = make(map[string]Indicator)
	r.order = nil
	r.log.Info("registry reset")
}

// Count returns the number of registered indicators.
func (r *IndicatorRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indicators)
}
