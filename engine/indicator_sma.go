package engine

import (
	"sync"

	talib "github.com/markcheno/go-talib"

	"marketforge/core"
)

// SMAIndicator is a simple-moving-average crossover signal: price above
// the average is a buy bias, below is a sell bias. The math is delegated
// to go-talib; this type only tracks history and maps the result onto
// the {"buy", "sell", "hold"} vocabulary.
type SMAIndicator struct {
	mu     sync.Mutex
	period int
	closes []float64
	value  float64
	signal string
}

// NewSMAIndicator constructs an SMA indicator over the given period.
func NewSMAIndicator(period int) *SMAIndicator {
	return &SMAIndicator{period: period, signal: SignalHold}
}

func (s *SMAIndicator) Update(candle core.Candlestick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes = appendBounded(s.closes, candle.Close, 500)
	if len(s.closes) < s.period {
		return
	}
	sma := talib.Sma(s.closes, s.period)
	s.value = sma[len(sma)-1]
	switch {
	case candle.Close > s.value:
		s.signal = SignalBuy
	case candle.Close < s.value:
		s.signal = SignalSell
	default:
		s.signal = SignalHold
	}
}

func (s *SMAIndicator) Signal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signal
}

func (s *SMAIndicator) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// appendBounded appends v to series, trimming from the front once maxLen
// is exceeded so indicator history does not grow unbounded over a long
// ingestion run.
func appendBounded(series []float64, v float64, maxLen int) []float64 {
	series = append(series, v)
	if len(series) > maxLen {
		series = series[len(series)-maxLen:]
	}
	return series
}
