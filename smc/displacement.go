package smc

import (
	"github.com/mglavinic86/Ai-Trader-sub000/indicators"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// DisplacementParams configures DetectDisplacements.
type DisplacementParams struct {
	BodyRatio float64 `json:"body_ratio" yaml:"body_ratio"`
	MaxWick   float64 `json:"max_wick" yaml:"max_wick"`
	Lookback  int     `json:"lookback" yaml:"lookback"`
}

var DefaultDisplacement = DisplacementParams{BodyRatio: 2, MaxWick: 0.3, Lookback: 20}

// DetectDisplacements returns candles whose body is at least BodyRatio times
// the average body of the Lookback candles before them and whose wicks make
// up no more than MaxWick of their range.
func DetectDisplacements(candles []market.Candle, p DisplacementParams) []Displacement {
	var out []Displacement
	for i := p.Lookback; i < len(candles); i++ {
		c := candles[i]
		avg := indicators.AverageBody(candles[i-p.Lookback : i])
		rng := c.Range()
		if avg == 0 || rng == 0 {
			continue
		}
		ratio := c.Body() / avg
		wick := (rng - c.Body()) / rng
		if ratio < p.BodyRatio || wick > p.MaxWick {
			continue
		}
		dir := Bullish
		if c.Bearish() {
			dir = Bearish
		}
		out = append(out, Displacement{Direction: dir, Index: i, BodyRatio: ratio, WickPct: wick})
	}
	return out
}
