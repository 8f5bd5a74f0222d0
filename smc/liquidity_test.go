package smc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

func TestMapLiquidity(t *testing.T) {
	h1 := sweepH1()
	swings := DetectSwings(h1, HTFSwings)
	m := MapLiquidity(h1, market.H1, swings, inst, 3, px(81))

	require.Len(t, m.Buyside, 1)
	assert.Equal(t, SourceEqualHighs, m.Buyside[0].Source)
	assert.Equal(t, 30, m.Buyside[0].Strength)
	assert.InDelta(t, px(110), m.Buyside[0].Price, 1e-9)

	require.Len(t, m.Sellside, 2)
	assert.Greater(t, m.Sellside[0].Price, m.Sellside[1].Price, "sellside sorted descending")
	assert.Equal(t, SourceEqualLows, m.Sellside[0].Source)
	assert.Equal(t, SourceSwing, m.Sellside[1].Source)
	assert.Equal(t, monday.Add(11*time.Hour), m.Sellside[1].Formed)

	require.NotNil(t, m.NearestBuyside)
	assert.InDelta(t, px(110), m.NearestBuyside.Price, 1e-9)
	require.NotNil(t, m.NearestSellside)
	assert.InDelta(t, px(50), m.NearestSellside.Price, 1e-9)
}

func TestMapLiquidity_DropsBrokenSwings(t *testing.T) {
	h1 := sweepH1()
	h1[29].Close = px(45)
	h1[29].Low = px(45)
	swings := DetectSwings(h1, HTFSwings)
	m := MapLiquidity(h1, market.H1, swings, inst, 3, px(81))
	for _, l := range m.Sellside {
		assert.NotEqual(t, SourceSwing, l.Source)
	}
}

func TestEqualLevels(t *testing.T) {
	pts := []indexedPrice{{0, 1.1000}, {1, 1.1002}, {2, 1.1010}, {3, 1.1003}, {4, 1.1020}, {5, 1.1021}}
	groups := equalLevels(pts, 0.00035)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 3)
	avg, last := groups[0].stats()
	assert.InDelta(t, 1.100166, avg, 1e-6)
	assert.Equal(t, 3, last)
	assert.Len(t, groups[1], 2)
}

func TestSessionLevels_MostRecentClosed(t *testing.T) {
	levels := SessionLevels(sweepH1(), market.H1)
	byName := map[string]SessionLevel{}
	for _, l := range levels {
		byName[l.Session] = l
	}
	require.Len(t, byName, 3)

	// The series ends at 06:00 Tuesday, so every session resolves to Monday.
	assert.Equal(t, monday.Add(8*time.Hour), byName["asian"].End)
	assert.Equal(t, monday.Add(16*time.Hour), byName["london"].End)
	assert.InDelta(t, px(50), byName["london"].Low, 1e-12)
	assert.InDelta(t, px(100), byName["ny"].Low, 1e-12)
	assert.InDelta(t, px(110), byName["ny"].High, 1e-12)
}

func TestDetectSweep(t *testing.T) {
	h1 := sweepH1()
	m := MapLiquidity(h1, market.H1, DetectSwings(h1, HTFSwings), inst, 3, px(81))
	sessions := SessionLevels(h1, market.H1)
	m5 := series(tuesday.Add(6*time.Hour), market.M5, longSetupM5())
	p := DefaultConfig().Sweep

	sw := DetectSweep(m5, m, sessions, inst, p)
	require.NotNil(t, sw)
	assert.Equal(t, 28, sw.Index)
	assert.InDelta(t, 5, sw.DepthPips, 1e-6)
	assert.Equal(t, Long, sw.Direction())

	t.Run("outside lookback", func(t *testing.T) {
		p := p
		p.Lookback = 5
		assert.Nil(t, DetectSweep(m5, m, sessions, inst, p))
	})

	t.Run("too shallow", func(t *testing.T) {
		p := p
		p.MinPips = 6
		assert.Nil(t, DetectSweep(m5, m, sessions, inst, p))
	})

	t.Run("last candle uses own color", func(t *testing.T) {
		sw := DetectSweep(m5[:29], m, sessions, inst, p)
		require.NotNil(t, sw)
		assert.False(t, sw.ReversalConfirmed, "bar 28 closed below its open")
	})

	t.Run("level formed after the candle", func(t *testing.T) {
		early := series(monday.Add(8*time.Hour), market.M5, longSetupM5())
		only := LiquidityMap{Sellside: []LiquidityLevel{m.Sellside[1]}}
		assert.Nil(t, DetectSweep(early, only, nil, inst, p))
	})
}
