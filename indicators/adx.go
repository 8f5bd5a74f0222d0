package indicators

import (
	"fmt"
	"math"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// ADX implements Wilder's Average Directional Index (trend strength).
// Usage:
//
//	adx := indicators.NewADX(14)
//	for _, c := range candles { adx.Update(c) }
//	if adx.Ready() && adx.Value() >= 20 { ... }
type ADX struct {
	Period int

	prev     market.Candle
	havePrev bool

	// Wilder-smoothed values after warmup
	tr    float64
	pdm   float64
	mdm   float64
	adx   float64
	dxSum float64

	// candles processed, including the first prev seed
	count int
	ready bool
}

func NewADX(period int) *ADX {
	return &ADX{Period: period}
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.Period) }

// Warmup is 2*Period candles after the seed candle.
func (a *ADX) Warmup() int { return 2*a.Period + 1 }

func (a *ADX) Reset() { *a = ADX{Period: a.Period} }

func (a *ADX) Ready() bool { return a.ready }

func (a *ADX) Value() float64 { return a.adx }

func (a *ADX) Update(c market.Candle) {
	if !a.havePrev {
		a.prev = c
		a.havePrev = true
		a.count = 1
		return
	}

	upMove := c.High - a.prev.High
	downMove := a.prev.Low - c.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}

	tr := trueRange(c, a.prev)
	a.prev = c
	a.count++

	p := float64(a.Period)

	// Phase A: average the first Period TR/DM samples to seed smoothing.
	if a.count <= a.Period+1 {
		a.tr += tr
		a.pdm += pdm
		a.mdm += mdm
		if a.count == a.Period+1 {
			a.tr /= p
			a.pdm /= p
			a.mdm /= p
		}
		return
	}

	a.tr = (a.tr*(p-1) + tr) / p
	a.pdm = (a.pdm*(p-1) + pdm) / p
	a.mdm = (a.mdm*(p-1) + mdm) / p

	if a.tr == 0 {
		return
	}

	pdi := 100 * a.pdm / a.tr
	mdi := 100 * a.mdm / a.tr
	den := pdi + mdi
	if den == 0 {
		return
	}
	dx := 100 * math.Abs(pdi-mdi) / den

	// Phase B: seed ADX with the mean of the first Period DX values.
	if !a.ready {
		if a.count >= a.Period+2 && a.count <= 2*a.Period+1 {
			a.dxSum += dx
		}
		if a.count == 2*a.Period+1 {
			a.adx = a.dxSum / p
			a.ready = true
		}
		return
	}

	a.adx = (a.adx*(p-1) + dx) / p
}

var _ Streaming = (*ADX)(nil)

// ADXOf runs a fresh ADX over candles and returns the last value.
func ADXOf(candles []market.Candle, period int) (float64, bool) {
	return Replay(NewADX(period), candles)
}
