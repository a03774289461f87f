// Package core holds the validated value types shared across the
// ingestion, aggregation, and storage layers: Order, Candlestick, and the
// AuthFlags provenance tag.
package core

import (
	"fmt"
	"math"
	"strconv"
)

// Order bounds. Construction fails outside these ranges.
const (
	MinPrice     = 1e-4
	MaxPrice     = 1e6
	MinAmount    = 1e-4
	MaxAmount    = 1e5
	MinTimestamp = 1_000_000_000
	MaxTimestamp = 2_000_000_000
)

// Order is an immutable, validated trade record. The zero value is not
// valid; always construct via NewOrder.
type Order struct {
	Price     float64
	Amount    float64
	Timestamp int64
}

// NewOrder validates price, amount, and timestamp against the documented
// bounds and returns ErrInvalidOrder (wrapped with detail) on violation.
func NewOrder(price, amount float64, timestamp int64) (Order, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return Order{}, fmt.Errorf("%w: price is not finite", ErrInvalidOrder)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Order{}, fmt.Errorf("%w: amount is not finite", ErrInvalidOrder)
	}
	if price < MinPrice || price > MaxPrice {
		return Order{}, fmt.Errorf("%w: price %g out of range [%g, %g]", ErrInvalidOrder, price, MinPrice, MaxPrice)
	}
	if amount < MinAmount || amount > MaxAmount {
		return Order{}, fmt.Errorf("%w: amount %g out of range [%g, %g]", ErrInvalidOrder, amount, MinAmount, MaxAmount)
	}
	if timestamp < MinTimestamp || timestamp > MaxTimestamp {
		return Order{}, fmt.Errorf("%w: timestamp %d out of range [%d, %d]", ErrInvalidOrder, timestamp, MinTimestamp, MaxTimestamp)
	}
	return Order{Price: price, Amount: amount, Timestamp: timestamp}, nil
}

// String renders the order for logging: a single debug-oriented line,
// fixed to two decimal places for price and amount.
func (o Order) String() string {
	return fmt.Sprintf("Order(price=%.2f, amount=%.2f, ts=%d)", o.Price, o.Amount, o.Timestamp)
}

// CanonicalCSV renders the order in the wire shape a CSV/SHM feed
// carries it in: "price,amount,timestamp" using the shortest decimal
// representation that round-trips through strconv.ParseFloat. Feed
// sources hash this (not String, which is a debug format) against the
// raw line to detect tampering between wire and parsed representation.
func (o Order) CanonicalCSV() string {
	price := strconv.FormatFloat(o.Price, 'f', -1, 64)
	amount := strconv.FormatFloat(o.Amount, 'f', -1, 64)
	return price + "," + amount + "," + strconv.FormatInt(o.Timestamp, 10)
}
