package smc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

func TestDetectFVGs_Fill(t *testing.T) {
	m5 := series(tuesday, market.M5, longSetupM5())
	var gap *FairValueGap
	for _, g := range DetectFVGs(m5) {
		if g.Index == 31 {
			gap = &g
		}
	}
	require.NotNil(t, gap)
	assert.Equal(t, Bullish, gap.Direction)
	assert.InDelta(t, px(72), gap.Low, 1e-12)
	assert.InDelta(t, px(85), gap.High, 1e-12)
	assert.InDelta(t, 6.0/13*100, gap.FillPct, 1e-6)
	assert.False(t, gap.Filled)

	filled := DetectFVGs(series(tuesday, market.M5, []ohlc{
		{10, 12, 8, 11}, {11, 20, 11, 19}, {19, 22, 15, 21}, {21, 21, 9, 10},
	}))
	require.Len(t, filled, 1)
	assert.True(t, filled[0].Filled)
	assert.Equal(t, 100.0, filled[0].FillPct)
}

func TestDetectOrderBlocks(t *testing.T) {
	m5 := series(tuesday, market.M5, longSetupM5())
	obs := DetectOrderBlocks(m5, 2)

	byIndex := map[int]OrderBlock{}
	for _, ob := range obs {
		byIndex[ob.Index] = ob
	}
	require.Contains(t, byIndex, 23)
	assert.Equal(t, Bullish, byIndex[23].Direction)
	assert.True(t, byIndex[23].Mitigated, "bar 28 closed under it")

	require.Contains(t, byIndex, 28)
	assert.False(t, byIndex[28].Mitigated)

	require.Contains(t, byIndex, 20)
	assert.Equal(t, Bearish, byIndex[20].Direction)
	assert.True(t, byIndex[20].Mitigated)
}

func TestDetectDisplacements(t *testing.T) {
	m5 := series(tuesday, market.M5, longSetupM5())
	ds := DetectDisplacements(m5, DefaultDisplacement)
	require.NotEmpty(t, ds)
	last := ds[len(ds)-1]
	assert.Equal(t, 31, last.Index)
	assert.Equal(t, Bullish, last.Direction)
	assert.Greater(t, last.BodyRatio, 2.0)
	assert.LessOrEqual(t, last.WickPct, 0.3)
}

func TestCalculatePremiumDiscount(t *testing.T) {
	assert.Equal(t, Premium, CalculatePremiumDiscount(2, 1, 1.9).Zone)
	assert.Equal(t, Discount, CalculatePremiumDiscount(2, 1, 1.1).Zone)
	eq := CalculatePremiumDiscount(2, 1, 1.5)
	assert.Equal(t, Equilibrium, eq.Zone)
	assert.InDelta(t, 1.5, eq.Equilibrium, 1e-12)
	assert.InDelta(t, 50, eq.Pct, 1e-9)
	assert.Equal(t, PDUnknown, CalculatePremiumDiscount(1, 1, 1).Zone)
}
