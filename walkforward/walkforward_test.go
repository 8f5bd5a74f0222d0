package walkforward

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

var end = time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)

func TestBuildWindows(t *testing.T) {
	cfg := DefaultConfig()
	first := end.Add(-400 * day)

	ws, err := BuildWindows(first, end, cfg)
	require.NoError(t, err)
	require.Len(t, ws, 4)

	for k, w := range ws {
		assert.Equal(t, k+1, w.Index)
		assert.Equal(t, 20*day, w.TrainStart.Sub(w.BufferStart))
		assert.Equal(t, 45*day, w.TrainEnd.Sub(w.TrainStart))
		assert.Equal(t, 15*day, w.TestEnd.Sub(w.TestStart))
		assert.Equal(t, w.TrainEnd, w.TestStart)
		assert.False(t, w.BufferStart.Before(first))
		if k+1 < len(ws) {
			next := ws[k+1]
			assert.False(t, w.TestEnd.After(next.BufferStart), "window %d test overlaps window %d", w.Index, next.Index)
			assert.True(t, w.TestEnd.Before(next.TrainStart))
		}
	}
	assert.Equal(t, end, ws[3].TestEnd)

	_, err = BuildWindows(end.Add(-100*day), end, cfg)
	assert.ErrorIs(t, err, market.ErrDataInsufficient)

	cfg.Windows = 0
	_, err = BuildWindows(first, end, cfg)
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	assert.InDelta(t, 2.5, Percentile(s, 50), 1e-12)
	assert.InDelta(t, 1.15, Percentile(s, 5), 1e-12)
	assert.InDelta(t, 3.85, Percentile(s, 95), 1e-12)
	assert.Equal(t, 4.0, Percentile(s, 100))
	assert.Zero(t, Percentile(nil, 50))
}

func TestMonteCarlo(t *testing.T) {
	pnls := []float64{120, -80, 45, -200, 310, -60, 75, -150, 90, 30, -40, 220}

	a := MonteCarlo(pnls, 10000, 500, 42)
	b := MonteCarlo(pnls, 10000, 500, 42)
	assert.Equal(t, a, b, "same trades and seed must reproduce exactly")

	c := MonteCarlo(pnls, 10000, 500, 7)
	assert.NotEqual(t, a.DrawdownSamples, c.DrawdownSamples)

	// Reordering never changes the final balance.
	assert.InDelta(t, 3.6, a.P5Return, 1e-9)
	assert.InDelta(t, 3.6, a.P95Return, 1e-9)
	assert.Equal(t, 1.0, a.ProbProfit)

	assert.LessOrEqual(t, a.P5Drawdown, a.P50Drawdown)
	assert.LessOrEqual(t, a.P50Drawdown, a.P95Drawdown)
	assert.Zero(t, a.ProbDrawdown10)
	assert.Len(t, a.ReturnSamples, SampleSize)
	assert.Equal(t, 500, a.Iterations)
	assert.Equal(t, len(pnls), a.Trades)

	small := MonteCarlo(pnls, 500, 50, 1)
	assert.Len(t, small.DrawdownSamples, 50)
	assert.Greater(t, small.ProbDrawdown20, 0.0)

	empty := MonteCarlo(nil, 10000, 100, 1)
	assert.Zero(t, empty.Trades)
	assert.Empty(t, empty.ReturnSamples)
}

func TestRobustness(t *testing.T) {
	assert.InDelta(t, 70.5, Robustness(60, 1.5, -3, 75), 1e-9)
	assert.Zero(t, Robustness(30, 0.2, -12, 20))
	assert.Equal(t, 100.0, Robustness(90, 5, 0, 100))
	assert.InDelta(t, 42, Robustness(50, 0.7, -6, 50), 1e-9)
}

// fakeRunner returns one winning and one losing trade per run, except on
// the call listed in fail.
type fakeRunner struct {
	calls []backtest.Data
	fail  int
}

func (f *fakeRunner) Config() backtest.Config { return backtest.DefaultConfig("EUR_USD") }

func (f *fakeRunner) Run(_ context.Context, d backtest.Data) (*backtest.Result, error) {
	f.calls = append(f.calls, d)
	if len(f.calls) == f.fail {
		return nil, fmt.Errorf("%w: boom", market.ErrDataInsufficient)
	}
	win := 100.0 * float64(len(f.calls))
	trades := []backtest.Position{
		{Direction: smc.Long, Realized: decimal.NewFromFloat(win)},
		{Direction: smc.Short, Realized: decimal.NewFromFloat(-50)},
	}
	final := 10000 + win - 50
	return &backtest.Result{
		RunID:          fmt.Sprintf("run-%d", len(f.calls)),
		InitialCapital: 10000,
		FinalEquity:    final,
		Trades:         trades,
		Equity:         []backtest.EquitySample{{Equity: 10000}, {Equity: 10000 + win}, {Equity: final}},
	}, nil
}

func m5Span(from, to time.Time) []market.Candle {
	var out []market.Candle
	for t := from; t.Before(to); t = t.Add(5 * time.Minute) {
		out = append(out, market.Candle{Time: t, Open: 1.1, High: 1.1002, Low: 1.0998, Close: 1.1})
	}
	return out
}

func TestValidator_Run(t *testing.T) {
	cfg := Config{Windows: 4, TrainDays: 3, TestDays: 1, BufferDays: 1, MCIterations: 200, Seed: 42}
	m5 := m5Span(end.Add(-21*day), end)
	d := backtest.Data{
		H1: market.Resample(m5, market.H1),
		H4: market.Resample(m5, market.H4),
		M5: m5,
	}
	runner := &fakeRunner{fail: 3} // window 2 train

	v, err := NewValidator(runner, cfg)
	require.NoError(t, err)
	res, err := v.Run(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, res.Windows, 4)
	assert.Equal(t, 3, res.Completed)
	assert.Len(t, runner.calls, 7)

	failed := res.Windows[1]
	require.NotNil(t, failed.Err)
	assert.False(t, failed.OK())
	assert.Equal(t, "train", failed.Err.Phase)
	assert.Equal(t, 2, failed.Err.Index)
	assert.ErrorIs(t, failed.Err, market.ErrDataInsufficient)
	var we *WindowError
	assert.True(t, errors.As(error(failed.Err), &we))
	assert.Contains(t, failed.Error, "window 2 train")

	// Train and test runs trade only their own period; higher timeframes
	// start at the buffer.
	w1 := res.Windows[0]
	train, test := runner.calls[0], runner.calls[1]
	assert.Equal(t, w1.TrainStart, train.M5[0].Time)
	assert.True(t, train.M5[len(train.M5)-1].Time.Before(w1.TrainEnd))
	assert.Equal(t, w1.BufferStart, train.H1[0].Time)
	assert.Equal(t, w1.TestStart, test.M5[0].Time)
	assert.True(t, test.M5[len(test.M5)-1].Time.Before(w1.TestEnd))
	assert.Equal(t, w1.TestStart.Add(-day), test.H1[0].Time)

	assert.InDelta(t, 50, w1.Train.WinRate, 1e-9)
	assert.InDelta(t, 150, w1.Test.PnL, 1e-9)
	assert.Equal(t, []float64{200, -50}, w1.TestPnLs)

	assert.Len(t, res.OOSPnLs, 6)
	assert.Equal(t, 100.0, res.Consistency)
	assert.InDelta(t, 0, res.AvgWinRateDecay, 1e-9)
	require.NotNil(t, res.MonteCarlo)
	assert.Equal(t, 6, res.MonteCarlo.Trades)
	assert.Contains(t, res.Summary(), "FAILED")
	assert.NotEmpty(t, res.Verdict)
}

func TestValidator_AllWindowsFail(t *testing.T) {
	cfg := Config{Windows: 2, TrainDays: 2, TestDays: 1, BufferDays: 0}
	m5 := m5Span(end.Add(-7*day), end)
	runner := &failingRunner{}

	v, err := NewValidator(runner, cfg)
	require.NoError(t, err)
	res, err := v.Run(context.Background(), backtest.Data{M5: m5})
	require.NoError(t, err)
	assert.Zero(t, res.Completed)
	assert.Contains(t, res.Verdict, "INCONCLUSIVE")
	assert.Nil(t, res.MonteCarlo)
}

type failingRunner struct{}

func (failingRunner) Config() backtest.Config { return backtest.DefaultConfig("EUR_USD") }
func (failingRunner) Run(context.Context, backtest.Data) (*backtest.Result, error) {
	return nil, errors.New("engine exploded")
}

func TestNewValidator_InvalidConfig(t *testing.T) {
	_, err := NewValidator(&fakeRunner{}, Config{})
	assert.ErrorIs(t, err, backtest.ErrConfigInvalid)
}
