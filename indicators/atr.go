package indicators

import (
	"fmt"
	"math"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// TrueRanges returns len(candles)-1 true ranges; element i belongs to
// candles[i+1].
func TrueRanges(candles []market.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		out[i-1] = trueRange(candles[i], candles[i-1])
	}
	return out
}

// ATR is the plain mean of the last period true ranges. It returns 0
// until period+1 candles are available.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) <= period {
		return 0
	}
	trs := TrueRanges(candles[len(candles)-period-1:])
	var sum float64
	for _, tr := range trs {
		sum += tr
	}
	return sum / float64(period)
}

// WilderATR seeds with the mean of the first period true ranges and then
// applies Wilder smoothing over the rest.
func WilderATR(candles []market.Candle, period int) (float64, error) {
	switch {
	case period <= 0:
		return 0, fmt.Errorf("atr: period %d must be positive", period)
	case len(candles) <= period:
		return 0, fmt.Errorf("atr: %d candles, need at least %d", len(candles), period+1)
	}

	trs := TrueRanges(candles)
	n := float64(period)
	var atr float64
	for _, tr := range trs[:period] {
		atr += tr / n
	}
	for _, tr := range trs[period:] {
		atr += (tr - atr) / n
	}
	return atr, nil
}

// trueRange widens the bar's own range to cover a gap from prev's close.
func trueRange(c, prev market.Candle) float64 {
	hi := math.Max(c.High, prev.Close)
	lo := math.Min(c.Low, prev.Close)
	return hi - lo
}
