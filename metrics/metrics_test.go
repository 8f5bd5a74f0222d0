package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

func trade(pnl float64, d smc.Direction, g smc.Grade, reason backtest.ExitReason) backtest.Position {
	return backtest.Position{
		Direction:  d,
		State:      backtest.StateClosed,
		Realized:   decimal.NewFromFloat(pnl),
		ExitReason: reason,
		EntryBar:   10,
		ExitBar:    16,
		Setup:      backtest.Setup{Grade: g},
	}
}

func curve(values ...float64) []backtest.EquitySample {
	out := make([]backtest.EquitySample, len(values))
	for i, v := range values {
		out[i] = backtest.EquitySample{Bar: i, Equity: v, Cash: v}
	}
	return out
}

func TestDrawdown(t *testing.T) {
	pct, abs, dur := Drawdown([]float64{100, 110, 99, 105, 120, 114, 118})
	assert.InDelta(t, 10.0, pct, 1e-9)
	assert.InDelta(t, 11.0, abs, 1e-9)
	assert.Equal(t, 2, dur)

	pct, abs, dur = Drawdown(nil)
	assert.Zero(t, pct)
	assert.Zero(t, abs)
	assert.Zero(t, dur)
}

func TestRiskAdjusted(t *testing.T) {
	t.Run("too few returns", func(t *testing.T) {
		s, so := RiskAdjusted([]float64{0.01}, 0.04, 252)
		assert.Nil(t, s)
		assert.Nil(t, so)
	})

	t.Run("no losing samples leaves sortino undefined", func(t *testing.T) {
		s, so := RiskAdjusted([]float64{0.01, 0.02, 0.03}, 0.04, 252)
		require.NotNil(t, s)
		assert.Nil(t, so)
	})

	t.Run("flat curve has no sharpe", func(t *testing.T) {
		s, _ := RiskAdjusted([]float64{0, 0, 0}, 0, 252)
		assert.Nil(t, s)
	})

	t.Run("values", func(t *testing.T) {
		r := []float64{0.02, -0.01, 0.03, -0.02}
		s, so := RiskAdjusted(r, 0, 4)
		require.NotNil(t, s)
		require.NotNil(t, so)
		// mean 0.005, population variance 0.000425, downside 0.000125
		assert.InDelta(t, 0.005/math.Sqrt(0.000425)*2, *s, 1e-9)
		assert.InDelta(t, 0.005/math.Sqrt(0.000125)*2, *so, 1e-9)
	})
}

func TestStreaks(t *testing.T) {
	ts := []backtest.Position{
		trade(10, smc.Long, smc.GradeA, backtest.ExitTakeProfit),
		trade(10, smc.Long, smc.GradeA, backtest.ExitTakeProfit),
		trade(-5, smc.Long, smc.GradeA, backtest.ExitStopLoss),
		trade(0, smc.Long, smc.GradeA, backtest.ExitBreakevenStop),
		trade(-5, smc.Long, smc.GradeA, backtest.ExitStopLoss),
		trade(10, smc.Long, smc.GradeA, backtest.ExitTakeProfit),
	}
	w, l := Streaks(ts)
	assert.Equal(t, 2, w)
	assert.Equal(t, 3, l)
}

func TestCalculate(t *testing.T) {
	res := &backtest.Result{
		InitialCapital: 10000,
		FinalEquity:    10150,
		Trades: []backtest.Position{
			trade(200, smc.Long, smc.GradeAPlus, backtest.ExitTakeProfit),
			trade(-100, smc.Short, smc.GradeA, backtest.ExitStopLoss),
			trade(100, smc.Long, smc.GradeA, backtest.ExitTakeProfit),
			trade(-50, smc.Long, smc.GradeB, backtest.ExitStopLoss),
		},
		Equity:           curve(10000, 10200, 10100, 10200, 10150),
		SkipReasons:      backtest.Histogram{backtest.SkipNoSweep: 7, backtest.SkipOutsideSession: 3},
		Evaluations:      11,
		SignalsGenerated: 4,
		SignalsSkipped:   10,
	}
	res.Trades[1].StopHunt = true

	m := Calculate(res)

	assert.InDelta(t, 1.5, m.TotalReturnPct, 1e-9)
	assert.InDelta(t, 150, m.TotalReturnAbs, 1e-9)
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 50, m.WinRate, 1e-9)
	assert.InDelta(t, 300, m.GrossProfit, 1e-9)
	assert.InDelta(t, 150, m.GrossLoss, 1e-9)
	require.NotNil(t, m.ProfitFactor)
	assert.InDelta(t, 2, *m.ProfitFactor, 1e-9)
	assert.InDelta(t, 37.5, m.Expectancy, 1e-9)
	require.NotNil(t, m.ExpectancyRatio)
	assert.InDelta(t, 2, *m.ExpectancyRatio, 1e-9)
	assert.InDelta(t, 200, m.LargestWin, 1e-9)
	assert.InDelta(t, -100, m.LargestLoss, 1e-9)
	assert.Equal(t, 3, m.Longs)
	assert.Equal(t, 1, m.Shorts)
	assert.Equal(t, 1, m.StopHunts)
	assert.InDelta(t, 6, m.AvgTradeBars, 1e-9)
	assert.Equal(t, GradeStats{Trades: 2, Wins: 1, WinRate: 50, PnL: 0}, m.Grades[smc.GradeA])
	assert.Equal(t, 2, m.ExitReasons[backtest.ExitStopLoss])
	assert.Equal(t, backtest.SkipNoSweep, m.TopSkips[0].Reason)

	assert.InDelta(t, 100.0/10200*100, m.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 3, m.MaxDrawdownDuration)

	summary := m.Summary()
	assert.Contains(t, summary, "Total Return: +1.50%")
	assert.Contains(t, summary, "Profit Factor: 2.00")
	assert.Contains(t, summary, "no_sweep")
}

func TestCalculate_NoLosses(t *testing.T) {
	res := &backtest.Result{
		InitialCapital: 1000,
		FinalEquity:    1100,
		Trades:         []backtest.Position{trade(100, smc.Long, smc.GradeA, backtest.ExitTakeProfit)},
		Equity:         curve(1000, 1000, 1100),
	}
	m := Calculate(res)
	assert.Nil(t, m.ProfitFactor)
	assert.Nil(t, m.Sortino)
	assert.Contains(t, m.Summary(), "Profit Factor: N/A")

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"profit_factor":null`)
	assert.Contains(t, string(b), `"A":{`)

	var back Metrics
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m.Grades, back.Grades)
}

func TestCalculate_Empty(t *testing.T) {
	m := Calculate(&backtest.Result{InitialCapital: 1000, FinalEquity: 1000})
	assert.Zero(t, m.TotalTrades)
	assert.Nil(t, m.Sharpe)
	assert.Nil(t, m.ProfitFactor)
	assert.NotContains(t, m.Summary(), "Largest")
}
