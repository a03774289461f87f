package engine

import (
	"sync"

	talib "github.com/markcheno/go-talib"

	"marketforge/core"
)

// BollingerIndicator wraps go-talib's Bollinger Bands; a close beyond
// either band is treated as a mean-reversion signal.
type BollingerIndicator struct {
	mu         sync.Mutex
	period     int
	devUp      float64
	devDown    float64
	closes     []float64
	upper      float64
	lower      float64
	signal     string
}

// NewBollingerIndicator constructs a Bollinger Bands indicator over the
// given period and standard-deviation multipliers.
func NewBollingerIndicator(period int, devUp, devDown float64) *BollingerIndicator {
	return &BollingerIndicator{period: period, devUp: devUp, devDown: devDown, signal: SignalHold}
}

func (b *BollingerIndicator) Update(candle core.Candlestick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes = appendBounded(b.closes, candle.Close, 500)
	if len(b.closes) < b.period {
		return
	}
	upper, _, lower := talib.BBands(b.closes, b.period, b.devUp, b.devDown, talib.SMA)
	b.upper = upper[len(upper)-1]
	b.lower = lower[len(lower)-1]

	switch {
	case candle.Close >= b.upper:
		b.signal = SignalSell
	case candle.Close <= b.lower:
		b.signal = SignalBuy
	default:
		b.signal = SignalHold
	}
}

func (b *BollingerIndicator) Signal() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signal
}

// Value returns the upper band as the indicator's representative scalar
// value; Signal() carries the mean-reversion call.
func (b *BollingerIndicator) Value() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upper
}
