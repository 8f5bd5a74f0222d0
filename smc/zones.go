package smc

import (
	"math"

	"github.com/mglavinic86/Ai-Trader-sub000/indicators"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// DetectFVGs returns the three-candle imbalances in candles. Fill is
// measured from the candle after the gap onward.
func DetectFVGs(candles []market.Candle) []FairValueGap {
	var out []FairValueGap
	for i := 1; i < len(candles)-1; i++ {
		prev, next := candles[i-1], candles[i+1]
		switch {
		case prev.High < next.Low:
			g := FairValueGap{Direction: Bullish, Low: prev.High, High: next.Low, Index: i}
			g.measureFill(candles[i+1:])
			out = append(out, g)
		case prev.Low > next.High:
			g := FairValueGap{Direction: Bearish, Low: next.High, High: prev.Low, Index: i}
			g.measureFill(candles[i+1:])
			out = append(out, g)
		}
	}
	return out
}

func (g *FairValueGap) measureFill(after []market.Candle) {
	size := g.High - g.Low
	if size <= 0 {
		g.FillPct, g.Filled = 100, true
		return
	}
	best := 0.0
	for _, c := range after {
		var pen float64
		if g.Direction == Bullish {
			if c.Low > g.High {
				continue
			}
			pen = g.High - math.Max(c.Low, g.Low)
		} else {
			if c.High < g.Low {
				continue
			}
			pen = math.Min(c.High, g.High) - g.Low
		}
		best = math.Max(best, pen/size*100)
	}
	g.FillPct = math.Min(best, 100)
	g.Filled = g.FillPct >= 100
}

// OrderBlockWindow is the number of trailing candles averaged to size
// displacement bodies for order blocks.
const OrderBlockWindow = 30

// DetectOrderBlocks returns the last opposite-colored candle before each
// strong move whose body is at least ratio times the average body of the
// last OrderBlockWindow candles. A block is mitigated once a close from two
// candles later onward goes through it.
func DetectOrderBlocks(candles []market.Candle, ratio float64) []OrderBlock {
	if len(candles) < 5 {
		return nil
	}
	avg := indicators.AverageBody(market.Tail(candles, OrderBlockWindow))
	if avg == 0 {
		return nil
	}
	var out []OrderBlock
	for i := 1; i < len(candles)-1; i++ {
		cur, next := candles[i], candles[i+1]
		if next.Body() < avg*ratio {
			continue
		}
		var ob OrderBlock
		switch {
		case cur.Bearish() && next.Bullish():
			ob = OrderBlock{Direction: Bullish, Low: cur.Low, High: cur.High, Index: i, Strength: next.Body() / avg}
		case cur.Bullish() && next.Bearish():
			ob = OrderBlock{Direction: Bearish, Low: cur.Low, High: cur.High, Index: i, Strength: next.Body() / avg}
		default:
			continue
		}
		for _, c := range candles[min(i+2, len(candles)):] {
			if (ob.Direction == Bullish && c.Close < ob.Low) || (ob.Direction == Bearish && c.Close > ob.High) {
				ob.Mitigated = true
				break
			}
		}
		out = append(out, ob)
	}
	return out
}

// CalculatePremiumDiscount places price within the high-low range. The
// upper third is premium, the lower third discount.
func CalculatePremiumDiscount(high, low, price float64) PremiumDiscount {
	pd := PremiumDiscount{High: high, Low: low}
	if high <= low {
		return pd
	}
	pd.Equilibrium = (high + low) / 2
	f := (price - low) / (high - low)
	pd.Pct = f * 100
	switch {
	case f >= 2.0/3:
		pd.Zone = Premium
	case f <= 1.0/3:
		pd.Zone = Discount
	default:
		pd.Zone = Equilibrium
	}
	return pd
}
