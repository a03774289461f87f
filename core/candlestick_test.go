package core

import (
	"errors"
	"testing"
)

func TestNewCandlestickValid(t *testing.T) {
	c, err := NewCandlestick(10, 12, 9, 11, 5, 1000, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Open != 10 || c.High != 12 || c.Low != 9 || c.Close != 11 || c.Volume != 5 {
		t.Fatalf("unexpected candle: %+v", c)
	}
}

func TestNewCandlestickInvariants(t *testing.T) {
	cases := []struct {
		name                          string
		open, high, low, close, vol   float64
		start, end                    int64
	}{
		{"open above high", 20, 12, 9, 11, 5, 1000, 2000},
		{"close below low", 10, 12, 9, 5, 5, 1000, 2000},
		{"start not before end", 10, 12, 9, 11, 5, 2000, 2000},
		{"negative volume", 10, 12, 9, 11, -1, 1000, 2000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCandlestick(tc.open, tc.high, tc.low, tc.close, tc.vol, tc.start, tc.end)
			if !errors.Is(err, ErrInvalidCandle) {
				t.Fatalf("expected ErrInvalidCandle, got %v", err)
			}
		})
	}
}
