package walkforward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/metrics"
)

// Runner runs one backtest. *backtest.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, d backtest.Data) (*backtest.Result, error)
	Config() backtest.Config
}

// WindowError is a failed window run. It is recorded on the window and
// excluded from aggregation, never returned from Run.
type WindowError struct {
	Index int
	Phase string // train or test
	Err   error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d %s: %v", e.Index, e.Phase, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }

// PhaseStats is the slice of metrics aggregation needs from one run.
type PhaseStats struct {
	RunID   string  `json:"run_id"`
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	Sharpe  float64 `json:"sharpe"`
	PnL     float64 `json:"pnl"`
	Return  float64 `json:"return_pct"`
}

func statsOf(res *backtest.Result) PhaseStats {
	m := metrics.Calculate(res)
	s := PhaseStats{RunID: res.RunID, Trades: m.TotalTrades, WinRate: m.WinRate, PnL: m.TotalReturnAbs, Return: m.TotalReturnPct}
	if m.Sharpe != nil {
		s.Sharpe = *m.Sharpe
	}
	return s
}

type WindowResult struct {
	Window
	Train PhaseStats `json:"train"`
	Test  PhaseStats `json:"test"`

	WinRateDecay float64 `json:"win_rate_decay"`
	SharpeDecay  float64 `json:"sharpe_decay"`

	TestPnLs []float64    `json:"test_pnls,omitempty"`
	Err      *WindowError `json:"-"`
	Error    string       `json:"error,omitempty"`
}

func (w WindowResult) OK() bool { return w.Err == nil && w.Error == "" }

type Result struct {
	Instrument string         `json:"instrument"`
	Config     Config         `json:"config"`
	Windows    []WindowResult `json:"windows"`
	Completed  int            `json:"completed"`

	AvgTrainWinRate float64 `json:"avg_train_win_rate"`
	AvgTrainSharpe  float64 `json:"avg_train_sharpe"`
	TotalTrainPnL   float64 `json:"total_train_pnl"`

	AvgTestWinRate float64 `json:"avg_test_win_rate"`
	AvgTestSharpe  float64 `json:"avg_test_sharpe"`
	TotalTestPnL   float64 `json:"total_test_pnl"`

	AvgWinRateDecay float64 `json:"avg_win_rate_decay"`
	AvgSharpeDecay  float64 `json:"avg_sharpe_decay"`
	Consistency     float64 `json:"consistency"`
	Robustness      float64 `json:"robustness"`
	Verdict         string  `json:"verdict"`

	OOSPnLs    []float64         `json:"oos_pnls"`
	MonteCarlo *MonteCarloResult `json:"monte_carlo,omitempty"`
}

type Option func(*Validator)

func WithLogger(log zerolog.Logger) Option {
	return func(v *Validator) { v.log = log }
}

type Validator struct {
	runner Runner
	cfg    Config
	log    zerolog.Logger
}

func NewValidator(r Runner, cfg Config, opts ...Option) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", backtest.ErrConfigInvalid, err)
	}
	v := &Validator{runner: r, cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Run backtests every window's train and test period independently, pools
// the out-of-sample trades and runs Monte Carlo over them. Only a data span
// too short for the windows or a cancelled context fail the whole run.
func (v *Validator) Run(ctx context.Context, d backtest.Data) (*Result, error) {
	if len(d.M5) == 0 {
		return nil, fmt.Errorf("%w: no M5 candles", market.ErrDataInsufficient)
	}
	end := d.M5[len(d.M5)-1].Time.Add(market.M5.Duration())
	windows, err := BuildWindows(d.M5[0].Time, end, v.cfg)
	if err != nil {
		return nil, err
	}

	bcfg := v.runner.Config()
	res := &Result{Instrument: bcfg.Instrument, Config: v.cfg}
	v.log.Info().
		Str("instrument", bcfg.Instrument).
		Int("windows", v.cfg.Windows).
		Int("train_days", v.cfg.TrainDays).
		Int("test_days", v.cfg.TestDays).
		Msg("walk-forward started")

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wr := v.window(ctx, w, d)
		if wr.Err != nil {
			v.log.Error().Err(wr.Err.Err).
				Int("window", w.Index).
				Str("phase", wr.Err.Phase).
				Time("train_start", w.TrainStart).
				Time("test_end", w.TestEnd).
				Msg("walk-forward window failed")
		} else {
			v.log.Info().
				Int("window", w.Index).
				Float64("train_win_rate", wr.Train.WinRate).
				Float64("test_win_rate", wr.Test.WinRate).
				Float64("decay", wr.WinRateDecay).
				Msg("walk-forward window done")
		}
		res.Windows = append(res.Windows, wr)
	}

	res.aggregate()
	if v.cfg.MCIterations > 0 {
		mc := MonteCarlo(res.OOSPnLs, bcfg.InitialCapital, v.cfg.MCIterations, v.cfg.Seed)
		res.MonteCarlo = &mc
	}
	v.log.Info().
		Int("completed", res.Completed).
		Float64("robustness", res.Robustness).
		Str("verdict", res.Verdict).
		Msg("walk-forward finished")
	return res, nil
}

// slice returns the candles of d for the traded range [from, to) with
// higher timeframes starting at ctxFrom.
func slice(d backtest.Data, ctxFrom, from, to time.Time) backtest.Data {
	out := backtest.Data{
		H4: market.Between(d.H4, ctxFrom, to),
		H1: market.Between(d.H1, ctxFrom, to),
		M5: market.Between(d.M5, from, to),
	}
	if len(d.CrossAsset) > 0 {
		out.CrossAsset = make(map[string][]market.Candle, len(d.CrossAsset))
		for k, cs := range d.CrossAsset {
			out.CrossAsset[k] = market.Between(cs, from, to)
		}
	}
	return out
}

func (v *Validator) window(ctx context.Context, w Window, d backtest.Data) WindowResult {
	wr := WindowResult{Window: w}
	fail := func(phase string, err error) WindowResult {
		wr.Err = &WindowError{Index: w.Index, Phase: phase, Err: err}
		wr.Error = wr.Err.Error()
		return wr
	}

	train, err := v.runner.Run(ctx, slice(d, w.BufferStart, w.TrainStart, w.TrainEnd))
	if err != nil {
		return fail("train", err)
	}
	buffer := time.Duration(v.cfg.BufferDays) * day
	test, err := v.runner.Run(ctx, slice(d, w.TestStart.Add(-buffer), w.TestStart, w.TestEnd))
	if err != nil {
		return fail("test", err)
	}

	wr.Train, wr.Test = statsOf(train), statsOf(test)
	wr.WinRateDecay = wr.Test.WinRate - wr.Train.WinRate
	wr.SharpeDecay = wr.Test.Sharpe - wr.Train.Sharpe
	wr.TestPnLs = test.TradePnLs()
	return wr
}

func (r *Result) aggregate() {
	profitable := 0
	for _, w := range r.Windows {
		if !w.OK() {
			continue
		}
		r.Completed++
		r.AvgTrainWinRate += w.Train.WinRate
		r.AvgTrainSharpe += w.Train.Sharpe
		r.TotalTrainPnL += w.Train.PnL
		r.AvgTestWinRate += w.Test.WinRate
		r.AvgTestSharpe += w.Test.Sharpe
		r.TotalTestPnL += w.Test.PnL
		r.AvgWinRateDecay += w.WinRateDecay
		r.AvgSharpeDecay += w.SharpeDecay
		r.OOSPnLs = append(r.OOSPnLs, w.TestPnLs...)
		if w.Test.PnL > 0 {
			profitable++
		}
	}
	if r.Completed == 0 {
		r.Verdict = "INCONCLUSIVE: no window completed"
		return
	}

	n := float64(r.Completed)
	r.AvgTrainWinRate /= n
	r.AvgTrainSharpe /= n
	r.AvgTestWinRate /= n
	r.AvgTestSharpe /= n
	r.AvgWinRateDecay /= n
	r.AvgSharpeDecay /= n
	r.Consistency = float64(profitable) / n * 100
	r.Robustness = Robustness(r.AvgTestWinRate, r.AvgTestSharpe, r.AvgWinRateDecay, r.Consistency)
	r.Verdict = verdict(r.Robustness)
}

// Robustness scores out-of-sample quality from 0 to 100: base 50, adjusted
// by test win rate, test Sharpe, win-rate decay and window consistency.
func Robustness(winRate, sharpe, decay, consistency float64) float64 {
	score := 50.0

	switch {
	case winRate >= 55:
		score += (winRate - 55) * 1.5
	case winRate < 45:
		score -= (45 - winRate) * 2
	}

	switch {
	case sharpe >= 1:
		score += min(20, (sharpe-1)*10)
	case sharpe < 0.5:
		score -= 15
	}

	switch {
	case decay < -10:
		score -= 15
	case decay < -5:
		score -= 8
	}

	switch {
	case consistency >= 80:
		score += 15
	case consistency >= 60:
		score += 8
	case consistency < 40:
		score -= 10
	}

	return max(0, min(100, score))
}

func verdict(score float64) string {
	switch {
	case score >= 70:
		return "ROBUST: out-of-sample edge holds"
	case score >= 50:
		return "MODERATE: usable with caution"
	case score >= 30:
		return "WEAK: likely overfit"
	default:
		return "FAILED: no out-of-sample edge"
	}
}

// Summary renders the aggregate and per-window table.
func (r *Result) Summary() string {
	var b strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	w("WALK-FORWARD VALIDATION: %s", r.Instrument)
	w("Windows: %d/%d completed (train %dd, test %dd, buffer %dd)",
		r.Completed, len(r.Windows), r.Config.TrainDays, r.Config.TestDays, r.Config.BufferDays)
	for _, wr := range r.Windows {
		if !wr.OK() {
			w("  %s FAILED: %s", wr.Window, wr.Error)
			continue
		}
		w("  %s | train %dt WR=%.1f%% | test %dt WR=%.1f%% | decay %+.1f%%",
			wr.Window, wr.Train.Trades, wr.Train.WinRate, wr.Test.Trades, wr.Test.WinRate, wr.WinRateDecay)
	}
	w("")
	w("In-sample:     WR %.1f%%  Sharpe %.2f  P/L %.2f", r.AvgTrainWinRate, r.AvgTrainSharpe, r.TotalTrainPnL)
	w("Out-of-sample: WR %.1f%%  Sharpe %.2f  P/L %.2f", r.AvgTestWinRate, r.AvgTestSharpe, r.TotalTestPnL)
	w("Decay:         WR %+.1f%%  Sharpe %+.2f", r.AvgWinRateDecay, r.AvgSharpeDecay)
	w("Consistency:   %.0f%% windows profitable out-of-sample", r.Consistency)
	w("Robustness:    %.0f/100  %s", r.Robustness, r.Verdict)
	if mc := r.MonteCarlo; mc != nil && mc.Trades > 0 {
		w("")
		w("Monte Carlo (%d iterations, %d trades):", mc.Iterations, mc.Trades)
		w("  Return 5/50/95%%:   %.1f%% / %.1f%% / %.1f%%", mc.P5Return, mc.P50Return, mc.P95Return)
		w("  Drawdown 5/50/95%%: %.1f%% / %.1f%% / %.1f%%", mc.P5Drawdown, mc.P50Drawdown, mc.P95Drawdown)
		w("  P(profit) %.0f%%  P(DD>10%%) %.0f%%  P(DD>20%%) %.0f%%", mc.ProbProfit*100, mc.ProbDrawdown10*100, mc.ProbDrawdown20*100)
	}
	return b.String()
}
