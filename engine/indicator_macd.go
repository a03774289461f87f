package engine

import (
	"sync"

	talib "github.com/markcheno/go-talib"

	"marketforge/core"
)

// MACDIndicator wraps go-talib's MACD; a histogram crossing zero from
// below is a buy, from above is a sell.
type MACDIndicator struct {
	mu                     sync.Mutex
	fast, slow, signalPer  int
	closes                 []float64
	macd, histogram        float64
	prevHistogram          float64
	haveHistory            bool
	signal                 string
}

// NewMACDIndicator constructs a MACD indicator with the given fast, slow
// and signal periods (cmd/marketforge passes the standard 12/26/9).
func NewMACDIndicator(fast, slow, signalPeriod int) *MACDIndicator {
	return &MACDIndicator{fast: fast, slow: slow, signalPer: signalPeriod, signal: SignalHold}
}

func (m *MACDIndicator) Update(candle core.Candlestick) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = appendBounded(m.closes, candle.Close, 500)
	minLen := m.slow + m.signalPer
	if len(m.closes) < minLen {
		return
	}
	macdLine, _, hist := talib.Macd(m.closes, m.fast, m.slow, m.signalPer)
	m.macd = macdLine[len(macdLine)-1]
	latestHist := hist[len(hist)-1]

	if m.haveHistory {
		switch {
		case m.prevHistogram <= 0 && latestHist > 0:
			m.signal = SignalBuy
		case m.prevHistogram >= 0 && latestHist < 0:
			m.signal = SignalSell
		default:
			m.signal = SignalHold
		}
	}
	m.prevHistogram = latestHist
	m.histogram = latestHist
	m.haveHistory = true
}

func (m *MACDIndicator) Signal() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signal
}

func (m *MACDIndicator) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.macd
}
