package smc

import "github.com/mglavinic86/Ai-Trader-sub000/market"

// SwingParams are the pivot widths used by DetectSwings.
type SwingParams struct {
	Left  int `json:"left" yaml:"left"`
	Right int `json:"right" yaml:"right"`
}

var (
	HTFSwings = SwingParams{Left: 5, Right: 2}
	LTFSwings = SwingParams{Left: 3, Right: 2}
)

// DetectSwings returns strict pivot highs and lows ordered by index. A swing
// high must exceed the Left highs before it and the Right highs after it;
// lows mirror that. The last Right candles can never be swings.
func DetectSwings(candles []market.Candle, p SwingParams) []SwingPoint {
	var out []SwingPoint
	for i := p.Left; i < len(candles)-p.Right; i++ {
		c := candles[i]
		high, low := true, true
		for j := i - p.Left; j <= i+p.Right; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= c.High {
				high = false
			}
			if candles[j].Low <= c.Low {
				low = false
			}
			if !high && !low {
				break
			}
		}
		if high {
			out = append(out, SwingPoint{Type: SwingHigh, Price: c.High, Index: i, Time: c.Time})
		}
		if low {
			out = append(out, SwingPoint{Type: SwingLow, Price: c.Low, Index: i, Time: c.Time})
		}
	}
	return out
}

func splitSwings(swings []SwingPoint) (highs, lows []SwingPoint) {
	for _, s := range swings {
		if s.Type == SwingHigh {
			highs = append(highs, s)
		} else {
			lows = append(lows, s)
		}
	}
	return highs, lows
}

// ClassifyStructure compares the last two swing highs and the last two
// swing lows.
func ClassifyStructure(swings []SwingPoint) Structure {
	highs, lows := splitSwings(swings)
	if len(highs) < 2 || len(lows) < 2 {
		return Ranging
	}
	h1, h2 := highs[len(highs)-2], highs[len(highs)-1]
	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]
	switch {
	case h2.Price > h1.Price && l2.Price > l1.Price:
		return HigherHighsHigherLows
	case h2.Price < h1.Price && l2.Price < l1.Price:
		return LowerHighsLowerLows
	default:
		return Ranging
	}
}

// DetectCHoCH looks for the first close through the most recent swing that
// defends the current structure: above the last lower high in LH_LL, below
// the last higher low in HH_HL.
func DetectCHoCH(candles []market.Candle, swings []SwingPoint, st Structure) *StructureShift {
	highs, lows := splitSwings(swings)
	switch st {
	case LowerHighsLowerLows:
		if len(highs) == 0 {
			return nil
		}
		ref := highs[len(highs)-1]
		if i := firstCloseAbove(candles, ref.Index+1, ref.Price); i >= 0 {
			return &StructureShift{Kind: CHoCH, Direction: Bullish, BreakLevel: ref.Price, Swing: ref, ConfirmIndex: i}
		}
	case HigherHighsHigherLows:
		if len(lows) == 0 {
			return nil
		}
		ref := lows[len(lows)-1]
		if i := firstCloseBelow(candles, ref.Index+1, ref.Price); i >= 0 {
			return &StructureShift{Kind: CHoCH, Direction: Bearish, BreakLevel: ref.Price, Swing: ref, ConfirmIndex: i}
		}
	}
	return nil
}

// DetectBOS looks for the first close beyond the last swing in the trend
// direction.
func DetectBOS(candles []market.Candle, swings []SwingPoint, st Structure) *StructureShift {
	highs, lows := splitSwings(swings)
	switch st {
	case HigherHighsHigherLows:
		if len(highs) == 0 {
			return nil
		}
		ref := highs[len(highs)-1]
		if i := firstCloseAbove(candles, ref.Index+1, ref.Price); i >= 0 {
			return &StructureShift{Kind: BOS, Direction: Bullish, BreakLevel: ref.Price, Swing: ref, ConfirmIndex: i}
		}
	case LowerHighsLowerLows:
		if len(lows) == 0 {
			return nil
		}
		ref := lows[len(lows)-1]
		if i := firstCloseBelow(candles, ref.Index+1, ref.Price); i >= 0 {
			return &StructureShift{Kind: BOS, Direction: Bearish, BreakLevel: ref.Price, Swing: ref, ConfirmIndex: i}
		}
	}
	return nil
}

func firstCloseAbove(candles []market.Candle, from int, level float64) int {
	for i := from; i < len(candles); i++ {
		if candles[i].Close > level {
			return i
		}
	}
	return -1
}

func firstCloseBelow(candles []market.Candle, from int, level float64) int {
	for i := from; i < len(candles); i++ {
		if candles[i].Close < level {
			return i
		}
	}
	return -1
}
