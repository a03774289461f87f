package engine

import (
	"math"
	"sync"

	"marketforge/core"
)

// CandleGenerator performs windowed time-bucketing of orders into OHLCV
// candlesticks with strict temporal semantics and asynchronous dispatch
// to indicators.
type CandleGenerator struct {
	mu             sync.Mutex
	windowDuration int64
	windowStart    int64
	window         []core.Order
	accepted       int
	late           int
	dropped        int
	dispatch       func(core.Candlestick)
	registry       *IndicatorRegistry
	pool           *ThreadPool
}

// NewCandleGenerator constructs a generator with the given window
// duration in seconds. dispatch, registry, and pool are all optional: a
// nil dispatch callback is simply not invoked, and registry/pool
// dispatch to the indicator fan-out only fires when both are set.
func NewCandleGenerator(windowDuration int64, dispatch func(core.Candlestick), registry *IndicatorRegistry, pool *ThreadPool) *CandleGenerator {
	return &CandleGenerator{
		windowDuration: windowDuration,
		dispatch:       dispatch,
		registry:       registry,
		pool:           pool,
	}
}

// Insert adds order to the current window, opening a new window on the
// first order seen. Orders past the current window's end are counted as
// late and dropped silently rather than raised.
func (g *CandleGenerator) Insert(order core.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.window) == 0 {
		g.windowStart = order.Timestamp
	}

	if order.Timestamp < g.windowStart+g.windowDuration {
		g.window = append(g.window, order)
		g.accepted++
	} else {
		g.late++
	}
}

// Counters returns the accepted/late/dropped counts for the in-progress
// window (reset on every successful flush).
func (g *CandleGenerator) Counters() (accepted, late, dropped int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accepted, g.late, g.dropped
}

// FlushIfReady closes the window if current_time has reached its end,
// returning the resulting candlestick. It returns (zero, false, nil) if
// the window is empty or not yet due, and (zero, false, ErrVolumeOverflow)
// if volume summation goes non-finite — in which case the window is left
// intact for the caller to retry or inspect.
//
// The returned candlestick is fully owned by the caller. If both a
// registry and a thread pool are bound, an independent copy is submitted
// as a pool task so the generator's own state is never aliased into a
// worker goroutine.
func (g *CandleGenerator) FlushIfReady(currentTime int64) (core.Candlestick, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.window) == 0 {
		return core.Candlestick{}, false, nil
	}
	if currentTime < g.windowStart+g.windowDuration {
		return core.Candlestick{}, false, nil
	}

	open := g.window[0].Price
	close := g.window[len(g.window)-1].Price
	high, low := open, open
	var volume float64

	for _, o := range g.window {
		if o.Price > high {
			high = o.Price
		}
		if o.Price < low {
			low = o.Price
		}
		volume += o.Amount
		if math.IsNaN(volume) || math.IsInf(volume, 0) {
			return core.Candlestick{}, false, core.ErrVolumeOverflow
		}
	}

	candle, err := core.NewCandlestick(open, high, low, close, volume, g.windowStart, g.windowStart+g.windowDuration)
	if err != nil {
		return core.Candlestick{}, false, err
	}

	if g.dispatch != nil {
		g.dispatch(candle)
	}

	if g.registry != nil && g.pool != nil {
		taskCandle := candle // independent copy captured by the closure
		g.pool.Submit(func() {
			g.registry.UpdateAll(taskCandle)
		})
	}

	g.window = nil
	g.accepted = 0
	g.late = 0
	g.dropped = 0

	return candle, true, nil
}
