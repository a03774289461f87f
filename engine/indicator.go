package engine

import "marketforge/core"

// Signal vocabulary every indicator must emit from Signal().
const (
	SignalBuy  = "buy"
	SignalSell = "sell"
	SignalHold = "hold"
)

// Indicator is the polymorphic signal-producer contract. Internal math is
// out of scope for this specification; implementations are expected to
// delegate to a well-known formula library (see SMAIndicator et al.).
type Indicator interface {
	Update(candle core.Candlestick)
	Signal() string
	Value() float64
}
