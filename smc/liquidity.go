package smc

import (
	"math"
	"sort"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

const (
	// minEqualLevelCandles is the smallest series searched for equal
	// highs and lows.
	minEqualLevelCandles = 10
	minEqualTouches      = 2
)

// MapLiquidity builds the resting liquidity around price. Swing highs that
// no later close has broken become buyside levels and unbroken swing lows
// become sellside levels. Clusters of highs or lows within tolPips add
// EQUAL_HIGHS and EQUAL_LOWS levels at the cluster average.
func MapLiquidity(candles []market.Candle, tf market.Timeframe, swings []SwingPoint, instrument string, tolPips, price float64) LiquidityMap {
	var m LiquidityMap
	d := tf.Duration()

	for _, s := range swings {
		lvl := LiquidityLevel{Price: s.Price, Source: SourceSwing, Strength: 1, Formed: s.Time.Add(d)}
		if s.Type == SwingHigh {
			if firstCloseAbove(candles, s.Index+1, s.Price) >= 0 {
				continue
			}
			lvl.Side = Buyside
			m.Buyside = append(m.Buyside, lvl)
		} else {
			if firstCloseBelow(candles, s.Index+1, s.Price) >= 0 {
				continue
			}
			lvl.Side = Sellside
			m.Sellside = append(m.Sellside, lvl)
		}
	}

	if len(candles) >= minEqualLevelCandles {
		tol := market.FromPips(instrument, tolPips)
		highs := make([]indexedPrice, len(candles))
		lows := make([]indexedPrice, len(candles))
		for i, c := range candles {
			highs[i] = indexedPrice{i, c.High}
			lows[i] = indexedPrice{i, c.Low}
		}
		for _, g := range equalLevels(highs, tol) {
			avg, last := g.stats()
			if firstCloseAbove(candles, last+1, avg) >= 0 {
				continue
			}
			m.Buyside = append(m.Buyside, LiquidityLevel{
				Price: avg, Side: Buyside, Source: SourceEqualHighs,
				Strength: len(g), Formed: candles[last].Time.Add(d),
			})
		}
		for _, g := range equalLevels(lows, tol) {
			avg, last := g.stats()
			if firstCloseBelow(candles, last+1, avg) >= 0 {
				continue
			}
			m.Sellside = append(m.Sellside, LiquidityLevel{
				Price: avg, Side: Sellside, Source: SourceEqualLows,
				Strength: len(g), Formed: candles[last].Time.Add(d),
			})
		}
	}

	sort.SliceStable(m.Buyside, func(i, j int) bool { return m.Buyside[i].Price < m.Buyside[j].Price })
	sort.SliceStable(m.Sellside, func(i, j int) bool { return m.Sellside[i].Price > m.Sellside[j].Price })

	for i := range m.Buyside {
		if m.Buyside[i].Price > price {
			m.NearestBuyside = &m.Buyside[i]
			break
		}
	}
	for i := range m.Sellside {
		if m.Sellside[i].Price < price {
			m.NearestSellside = &m.Sellside[i]
			break
		}
	}
	return m
}

type indexedPrice struct {
	index int
	price float64
}

type priceGroup []indexedPrice

func (g priceGroup) stats() (avg float64, last int) {
	for _, p := range g {
		avg += p.price
		if p.index > last {
			last = p.index
		}
	}
	return avg / float64(len(g)), last
}

// equalLevels groups prices lying within tol of the lowest member of each
// group.
func equalLevels(points []indexedPrice, tol float64) []priceGroup {
	sorted := append([]indexedPrice(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].price < sorted[j].price })

	var groups []priceGroup
	for i := 0; i < len(sorted); {
		g := priceGroup{sorted[i]}
		j := i + 1
		for ; j < len(sorted) && sorted[j].price-sorted[i].price <= tol; j++ {
			g = append(g, sorted[j])
		}
		if len(g) >= minEqualTouches {
			groups = append(groups, g)
		}
		i = j
	}
	return groups
}

// SessionLevels returns the high and low of the most recent fully closed
// occurrence of each tracked session. Sessions with no candles in their
// last occurrence within a week are omitted.
func SessionLevels(candles []market.Candle, tf market.Timeframe) []SessionLevel {
	if len(candles) == 0 {
		return nil
	}
	d := tf.Duration()
	lastClose := candles[len(candles)-1].Time.Add(d)
	day := lastClose.Truncate(24 * time.Hour)

	var out []SessionLevel
	for _, s := range market.Sessions {
		for k := 0; k < 7; k++ {
			d0 := day.AddDate(0, 0, -k)
			start := d0.Add(time.Duration(s.Start) * time.Hour)
			end := d0.Add(time.Duration(s.End) * time.Hour)
			if end.After(lastClose) {
				continue
			}
			window := market.Between(candles, start, end)
			if len(window) == 0 {
				continue
			}
			lvl := SessionLevel{Session: s.Name, High: window[0].High, Low: window[0].Low, End: end}
			for _, c := range window[1:] {
				lvl.High = math.Max(lvl.High, c.High)
				lvl.Low = math.Min(lvl.Low, c.Low)
			}
			out = append(out, lvl)
			break
		}
	}
	return out
}

// SweepParams configures DetectSweep.
type SweepParams struct {
	Source   SweepSource `json:"source" yaml:"source"`
	Lookback int         `json:"lookback" yaml:"lookback"`
	MinPips  float64     `json:"min_pips" yaml:"min_pips"`
}

func sweepLevels(m LiquidityMap, sessions []SessionLevel, src SweepSource) []LiquidityLevel {
	var levels []LiquidityLevel
	for _, name := range src.sessions() {
		for _, s := range sessions {
			if s.Session != name {
				continue
			}
			strength := 2
			if name == "asian" {
				strength = 1
			}
			levels = append(levels,
				LiquidityLevel{Price: s.High, Side: Buyside, Source: SourceSession, Strength: strength, Session: name, Formed: s.End},
				LiquidityLevel{Price: s.Low, Side: Sellside, Source: SourceSession, Strength: strength, Session: name, Formed: s.End},
			)
		}
	}
	levels = append(levels, m.Buyside...)
	return append(levels, m.Sellside...)
}

// DetectSweep finds the most recent candle within the lookback that pierced
// a level by at least MinPips and closed back on the origin side. Ties on
// the candle index go to the deeper sweep.
func DetectSweep(candles []market.Candle, m LiquidityMap, sessions []SessionLevel, instrument string, p SweepParams) *Sweep {
	if len(candles) < 3 {
		return nil
	}
	start := max(0, len(candles)-p.Lookback)

	var best *Sweep
	for _, lvl := range sweepLevels(m, sessions, p.Source) {
		for i := len(candles) - 1; i > start; i-- {
			c := candles[i]
			if c.Time.Before(lvl.Formed) {
				break
			}
			var depth float64
			switch lvl.Side {
			case Buyside:
				if !(c.High > lvl.Price && c.Close < lvl.Price) {
					continue
				}
				depth = market.ToPips(instrument, c.High-lvl.Price)
			case Sellside:
				if !(c.Low < lvl.Price && c.Close > lvl.Price) {
					continue
				}
				depth = market.ToPips(instrument, lvl.Price-c.Low)
			}
			if depth < p.MinPips {
				continue
			}
			if best == nil || i > best.Index || (i == best.Index && depth > best.DepthPips) {
				best = &Sweep{
					Level:             lvl,
					Side:              lvl.Side,
					Index:             i,
					ReversalConfirmed: reversal(candles, i, lvl.Side),
					DepthPips:         depth,
				}
			}
			break
		}
	}
	return best
}

// reversal reads the next candle's color, or the sweep candle's own color
// when it is the last one.
func reversal(candles []market.Candle, i int, side Side) bool {
	c := candles[i]
	if i+1 < len(candles) {
		c = candles[i+1]
	}
	if side == Sellside {
		return c.Bullish()
	}
	return c.Bearish()
}
