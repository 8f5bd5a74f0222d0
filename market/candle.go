package market

import (
	"errors"
	"time"
)

var (
	// ErrDataInsufficient is returned when a series is shorter than the
	// minimum an operation needs.
	ErrDataInsufficient = errors.New("insufficient candle data")

	// ErrMalformedCandles is returned for unordered, duplicated or
	// internally inconsistent candles.
	ErrMalformedCandles = errors.New("malformed candle data")
)

// Candle represents OHLCV candlestick data. Time is the bar open time in UTC.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

func (c Candle) Range() float64 {
	return c.High - c.Low
}

func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }
