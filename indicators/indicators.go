// Package indicators computes the candle statistics the SMC analyzer and the
// backtest engine lean on: ATR for stop buffers and trailing, ADX for the
// regime filter, and average body size for displacement and order blocks.
package indicators

import "github.com/mglavinic86/Ai-Trader-sub000/market"

// Streaming is a bar-by-bar indicator fed closed candles in time order.
type Streaming interface {
	Name() string
	// Warmup is the number of candles needed before Ready.
	Warmup() int
	Reset()
	Update(c market.Candle)
	Ready() bool
	Value() float64
}

// Replay resets s, feeds it every candle and returns the final value.
func Replay(s Streaming, candles []market.Candle) (float64, bool) {
	s.Reset()
	for _, c := range candles {
		s.Update(c)
	}
	return s.Value(), s.Ready()
}

// AverageBody is the mean |close-open| of candles, 0 for none.
func AverageBody(candles []market.Candle) float64 {
	var total float64
	for _, c := range candles {
		total += c.Body()
	}
	if n := len(candles); n > 0 {
		return total / float64(n)
	}
	return 0
}
