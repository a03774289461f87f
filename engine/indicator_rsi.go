package engine

import (
	"sync"

	talib "github.com/markcheno/go-talib"

	"marketforge/core"
)

// RSIIndicator wraps go-talib's RSI and maps the textbook 30/70
// oversold/overbought bands onto the signal vocabulary.
type RSIIndicator struct {
	mu     sync.Mutex
	period int
	closes []float64
	value  float64
	signal string
}

// NewRSIIndicator constructs an RSI indicator over the given period.
func NewRSIIndicator(period int) *RSIIndicator {
	return &RSIIndicator{period: period, signal: SignalHold}
}

func (r *RSIIndicator) Update(candle core.Candlestick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = appendBounded(r.closes, candle.Close, 500)
	if len(r.closes) < r.period+1 {
		return
	}
	rsi := talib.Rsi(r.closes, r.period)
	r.value = rsi[len(rsi)-1]
	switch {
	case r.value <= 30:
		r.signal = SignalBuy
	case r.value >= 70:
		r.signal = SignalSell
	default:
		r.signal = SignalHold
	}
}

func (r *RSIIndicator) Signal() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signal
}

func (r *RSIIndicator) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}
