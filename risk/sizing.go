// Package risk turns a stop distance and a risk budget into a unit count
// and rejects trades whose geometry or size breaks the policy.
package risk

import "math"

// Budget describes one sizing request. QuoteToAccount converts one unit of
// quote currency to the account currency: 1 for EUR_USD in a USD account,
// 1/price for USD_JPY.
type Budget struct {
	Equity   float64
	Fraction float64 // 0.01 risks 1% of equity
	Entry    float64
	Stop     float64

	PipLocation    int
	QuoteToAccount float64
}

// Amount is the account-currency loss the budget allows.
func (b Budget) Amount() float64 { return b.Equity * b.Fraction }

// StopPips is the entry-to-stop distance in pips.
func (b Budget) StopPips() float64 {
	return math.Abs(b.Entry-b.Stop) / pipSize(b.PipLocation)
}

type Result struct {
	Units      float64
	StopPips   float64
	RiskAmount float64
}

func pipSize(loc int) float64 { return math.Pow10(loc) }

// Size floors units so that a stop-out costs at most Amount. Degenerate
// inputs (flat stop, no budget, unknown conversion) size to zero units.
func Size(b Budget) Result {
	res := Result{StopPips: b.StopPips(), RiskAmount: b.Amount()}
	perUnit := math.Abs(b.Entry-b.Stop) * b.QuoteToAccount
	if perUnit <= 0 || res.RiskAmount <= 0 {
		return res
	}
	res.Units = math.Floor(res.RiskAmount / perUnit)
	return res
}

// TierRiskPct maps setup confidence to the risk fraction used when a fixed
// risk percent is not configured.
func TierRiskPct(confidence int) float64 {
	tiers := []struct {
		min  int
		frac float64
	}{{90, 0.03}, {70, 0.02}, {50, 0.01}}
	for _, t := range tiers {
		if confidence >= t.min {
			return t.frac
		}
	}
	return 0
}

// PlannedRisk is the account-currency loss of units stopped out.
func PlannedRisk(units, entry, stop, quoteToAccount float64) float64 {
	return units * math.Abs(entry-stop) * quoteToAccount
}

// RR is reward over risk, 0 for a flat stop.
func RR(entry, stop, takeProfit float64) float64 {
	d := math.Abs(entry - stop)
	if d == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / d
}

// RiskPct is plannedRisk as a fraction of equity; +Inf when equity is gone.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}
