package smc

import (
	"fmt"
	"math"

	"github.com/mglavinic86/Ai-Trader-sub000/indicators"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// Rubric weights.
const (
	scoreSweep        = 25
	scoreReversal     = 5
	scoreShift        = 20
	scoreHTFAligned   = 15
	scoreDisplacement = 10
	scoreFVG          = 10
	scoreOrderBlock   = 10
	scorePDAligned    = 10
	scoreEquilibrium  = -5

	scoreInZone   = 10
	scoreNearZone = 5
	scoreFarZone  = -15

	nearZonePips = 5
	farZonePips  = 10
)

// grade applies the hard gates in order (sweep, structure shift, direction)
// and then the quality rubric. Any failed gate is NO_TRADE regardless of
// the other factors.
func (a *Analyzer) grade(res *Analysis, m5 []market.Candle) {
	defer func() { res.Confidence = res.Grade.Confidence() }()
	res.Grade = NoTrade

	if res.Sweep == nil {
		res.Reasons = append(res.Reasons, "no sweep")
		return
	}
	score := scoreSweep
	res.Reasons = append(res.Reasons, fmt.Sprintf("%s sweep of %.5f (%s)", res.Sweep.Side, res.Sweep.Level.Price, res.Sweep.Level.Source))
	if res.Sweep.ReversalConfirmed {
		score += scoreReversal
		res.Reasons = append(res.Reasons, "sweep reversal confirmed")
	}

	if res.Shift() == nil {
		res.Score = score
		res.Reasons = append(res.Reasons, "no CHoCH/BOS")
		return
	}
	score += scoreShift
	if res.CHoCH != nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("CHoCH %s", res.CHoCH.Direction))
	}
	if res.BOS != nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("BOS %s", res.BOS.Direction))
	}

	if res.Direction == NoDirection {
		res.Score = score
		res.Reasons = append(res.Reasons, "no clear direction")
		return
	}
	want := res.Direction.Bias()

	if res.HTFBias == want {
		score += scoreHTFAligned
		res.Reasons = append(res.Reasons, fmt.Sprintf("HTF aligned (%s)", res.HTFBias))
	} else {
		res.Reasons = append(res.Reasons, "HTF neutral")
	}

	if d := res.Displacement; d != nil && d.Direction == want {
		score += scoreDisplacement
		res.Reasons = append(res.Reasons, fmt.Sprintf("displacement %s (%.1fx)", d.Direction, d.BodyRatio))
	}

	if n := countFVGs(res.FVGs, want); n > 0 {
		score += scoreFVG
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d unfilled FVG(s)", n))
	}
	if n := countOrderBlocks(res.OrderBlocks, want); n > 0 {
		score += scoreOrderBlock
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d fresh OB(s)", n))
	}

	switch pd := res.PremiumDiscount; {
	case (res.Direction == Long && pd.Zone == Discount) || (res.Direction == Short && pd.Zone == Premium):
		score += scorePDAligned
		res.Reasons = append(res.Reasons, fmt.Sprintf("price in %s (%.0f%%)", pd.Zone, pd.Pct))
	case pd.Zone == Equilibrium:
		score += scoreEquilibrium
		res.Reasons = append(res.Reasons, "price in equilibrium")
	}

	res.EntryZone = entryZone(res, want)
	if res.EntryZone != nil {
		mod, reason := proximity(res.EntryZone, res.Price, res.Instrument)
		score += mod
		res.Reasons = append(res.Reasons, reason)
	}

	res.Score = score
	res.Grade = gradeForScore(score)
	if res.Grade != NoTrade {
		a.levels(res, m5)
	}
}

func countFVGs(gaps []FairValueGap, dir Bias) int {
	n := 0
	for _, g := range gaps {
		if !g.Filled && g.Direction == dir {
			n++
		}
	}
	return n
}

func countOrderBlocks(obs []OrderBlock, dir Bias) int {
	n := 0
	for _, ob := range obs {
		if !ob.Mitigated && ob.Direction == dir {
			n++
		}
	}
	return n
}

// entryZone picks the most recent unfilled FVG in the trade direction, or
// failing that the most recent fresh order block.
func entryZone(res *Analysis, dir Bias) *Zone {
	for i := len(res.FVGs) - 1; i >= 0; i-- {
		if g := res.FVGs[i]; !g.Filled && g.Direction == dir {
			return &Zone{Kind: ZoneFVG, Low: g.Low, High: g.High}
		}
	}
	for i := len(res.OrderBlocks) - 1; i >= 0; i-- {
		if ob := res.OrderBlocks[i]; !ob.Mitigated && ob.Direction == dir {
			return &Zone{Kind: ZoneOrderBlock, Low: ob.Low, High: ob.High}
		}
	}
	return nil
}

func proximity(z *Zone, price float64, instrument string) (int, string) {
	if z.Contains(price) {
		return scoreInZone, "price inside entry zone"
	}
	dist := math.Abs(market.ToPips(instrument, price-z.Midpoint()))
	switch {
	case dist <= nearZonePips:
		return scoreNearZone, fmt.Sprintf("price near entry zone (%.1f pips)", dist)
	case dist > farZonePips:
		return scoreFarZone, fmt.Sprintf("price far from entry zone (%.1f pips)", dist)
	default:
		return 0, fmt.Sprintf("price at moderate distance from entry zone (%.1f pips)", dist)
	}
}

// levels places the stop behind the swept level with an ATR-scaled buffer
// and the target at the nearest opposing liquidity. The stop is pulled in
// to the maximum distance only while it stays behind the swept level.
func (a *Analyzer) levels(res *Analysis, m5 []market.Candle) {
	cfg := a.cfg
	inst := res.Instrument
	price := res.Price
	sign := res.Direction.Sign()

	maxSL := cfg.MaxSLPips
	if maxSL == 0 {
		maxSL = market.Lookup(inst).MaxSLPips
	}
	buffer := cfg.MinSLPips
	if atrPips := market.ToPips(inst, indicators.ATR(m5, cfg.ATRPeriod)); atrPips > 0 {
		buffer = math.Max(cfg.MinSLPips, atrPips*cfg.SLATRMultiplier)
	}

	level := res.Sweep.Level.Price
	sl := level - sign*market.FromPips(inst, buffer)
	if market.ToPips(inst, sign*(price-sl)) > maxSL {
		capped := price - sign*market.FromPips(inst, maxSL)
		if sign*(level-capped) > 0 {
			sl = capped
		}
	}
	risk := sign * (price - sl)

	var tp float64
	if res.Direction == Long && res.Liquidity.NearestBuyside != nil {
		tp = res.Liquidity.NearestBuyside.Price
	}
	if res.Direction == Short && res.Liquidity.NearestSellside != nil {
		tp = res.Liquidity.NearestSellside.Price
	}
	if tp == 0 || sign*(tp-price) <= 0 {
		tp = price + sign*risk*cfg.TargetRR
	}

	res.StopLoss = sl
	res.TakeProfit = tp
	res.SLPips = market.ToPips(inst, math.Abs(price-sl))
	if risk > 0 {
		res.RiskReward = sign * (tp - price) / risk
	}
}
