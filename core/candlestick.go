package core

import "fmt"

// Candlestick is an immutable OHLCV aggregate over [StartTime, EndTime).
type Candlestick struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	StartTime int64
	EndTime   int64
}

// NewCandlestick validates the OHLC and window invariants documented in
// the data model: low <= open <= high, low <= close <= high,
// start < end, volume >= 0.
func NewCandlestick(open, high, low, close, volume float64, start, end int64) (Candlestick, error) {
	if !(low <= open && open <= high) {
		return Candlestick{}, fmt.Errorf("%w: low(%g) <= open(%g) <= high(%g) violated", ErrInvalidCandle, low, open, high)
	}
	if !(low <= close && close <= high) {
		return Candlestick{}, fmt.Errorf("%w: low(%g) <= close(%g) <= high(%g) violated", ErrInvalidCandle, low, close, high)
	}
	if !(start < end) {
		return Candlestick{}, fmt.Errorf("%w: start(%d) < end(%d) violated", ErrInvalidCandle, start, end)
	}
	if volume < 0 {
		return Candlestick{}, fmt.Errorf("%w: volume(%g) < 0", ErrInvalidCandle, volume)
	}
	return Candlestick{
		Open: open, High: high, Low: low, Close: close,
		Volume: volume, StartTime: start, EndTime: end,
	}, nil
}

func (c Candlestick) String() string {
	return fmt.Sprintf("Candle(open=%.2f, high=%.2f, low=%.2f, close=%.2f, volume=%.2f, start=%d, end=%d)",
		c.Open, c.High, c.Low, c.Close, c.Volume, c.StartTime, c.EndTime)
}
