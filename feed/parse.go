package feed

import (
	"strconv"
	"strings"

	"marketforge/core"
)

// parseCSVBytes parses a "price,amount,timestamp" payload into a
// validated Order, trimming whitespace around each field. It does no
// ASCII-printable check of its own; ShmSource runs that before calling
// it (the SHM ring is, per the external interfaces section,
// CSV-over-bytes).
func parseCSVBytes(payload []byte) (core.Order, bool) {
	fields := strings.Split(string(payload), ",")
	if len(fields) != 3 {
		return core.Order{}, false
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return core.Order{}, false
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return core.Order{}, false
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return core.Order{}, false
	}
	order, err := core.NewOrder(price, amount, ts)
	if err != nil {
		return core.Order{}, false
	}
	return order, true
}
