// Package metrics computes performance statistics over a finished backtest.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

const (
	DefaultRiskFreeRate   = 0.04
	DefaultPeriodsPerYear = 252
)

// Options tunes the risk-adjusted ratios.
type Options struct {
	RiskFreeRate   float64 // annual
	PeriodsPerYear int
	TopSkips       int
}

func DefaultOptions() Options {
	return Options{RiskFreeRate: DefaultRiskFreeRate, PeriodsPerYear: DefaultPeriodsPerYear, TopSkips: 5}
}

type GradeStats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	PnL     float64 `json:"pnl"`
}

// Metrics is the full statistics set of one run. Ratios that are undefined
// for the run are nil rather than zero.
type Metrics struct {
	InitialEquity  float64 `json:"initial_equity"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalReturnAbs float64 `json:"total_return_abs"`

	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	MaxDrawdownAbs      float64 `json:"max_drawdown_abs"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"`

	Sharpe  *float64 `json:"sharpe"`
	Sortino *float64 `json:"sortino"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	GrossProfit     float64  `json:"gross_profit"`
	GrossLoss       float64  `json:"gross_loss"`
	ProfitFactor    *float64 `json:"profit_factor"`
	Expectancy      float64  `json:"expectancy"`
	ExpectancyRatio *float64 `json:"expectancy_ratio"`
	AvgRR           float64  `json:"avg_rr"`

	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	AvgTrade    float64 `json:"avg_trade"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	AvgTradeBars    float64 `json:"avg_trade_bars"`
	TimeInMarketPct float64 `json:"time_in_market_pct"`

	Longs  int `json:"longs"`
	Shorts int `json:"shorts"`

	Grades      map[smc.Grade]GradeStats    `json:"grades"`
	ExitReasons map[backtest.ExitReason]int `json:"exit_reasons"`
	TopSkips    []backtest.ReasonCount      `json:"top_skips"`
	StopHunts   int                         `json:"stop_hunts"`

	Evaluations      int `json:"evaluations"`
	SignalsGenerated int `json:"signals_generated"`
	SignalsSkipped   int `json:"signals_skipped"`
}

// Calculate computes metrics with DefaultOptions.
func Calculate(res *backtest.Result) Metrics {
	return CalculateWith(res, DefaultOptions())
}

func CalculateWith(res *backtest.Result, opt Options) Metrics {
	m := Metrics{
		InitialEquity:    res.InitialCapital,
		FinalEquity:      res.FinalEquity,
		TotalReturnAbs:   res.FinalEquity - res.InitialCapital,
		Grades:           map[smc.Grade]GradeStats{},
		ExitReasons:      map[backtest.ExitReason]int{},
		TopSkips:         res.SkipReasons.Top(opt.TopSkips),
		Evaluations:      res.Evaluations,
		SignalsGenerated: res.SignalsGenerated,
		SignalsSkipped:   res.SignalsSkipped,
	}
	if res.InitialCapital > 0 {
		m.TotalReturnPct = m.TotalReturnAbs / res.InitialCapital * 100
	}

	equity := make([]float64, len(res.Equity))
	open := 0
	for i, s := range res.Equity {
		equity[i] = s.Equity
		if s.Open {
			open++
		}
	}
	if len(equity) > 0 {
		m.TimeInMarketPct = float64(open) / float64(len(equity)) * 100
	}
	m.MaxDrawdownPct, m.MaxDrawdownAbs, m.MaxDrawdownDuration = Drawdown(equity)
	m.Sharpe, m.Sortino = RiskAdjusted(Returns(equity), opt.RiskFreeRate, opt.PeriodsPerYear)

	tradeStats(&m, res.Trades)
	return m
}

func tradeStats(m *Metrics, trades []backtest.Position) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var sum, rr float64
	bars := 0
	m.LargestWin, m.LargestLoss = math.Inf(-1), math.Inf(1)
	for _, t := range trades {
		pnl := t.PnL()
		sum += pnl
		rr += t.RealizedRR
		bars += t.DurationBars()
		m.LargestWin = math.Max(m.LargestWin, pnl)
		m.LargestLoss = math.Min(m.LargestLoss, pnl)

		g := m.Grades[t.Setup.Grade]
		g.Trades++
		g.PnL += pnl
		if t.Won() {
			m.WinningTrades++
			m.GrossProfit += pnl
			g.Wins++
		} else {
			m.LosingTrades++
			m.GrossLoss -= pnl
		}
		g.WinRate = float64(g.Wins) / float64(g.Trades) * 100
		m.Grades[t.Setup.Grade] = g

		if t.Direction == smc.Long {
			m.Longs++
		} else {
			m.Shorts++
		}
		m.ExitReasons[t.ExitReason]++
		if t.StopHunt {
			m.StopHunts++
		}
	}

	n := float64(len(trades))
	m.WinRate = float64(m.WinningTrades) / n * 100
	m.AvgTrade = sum / n
	m.Expectancy = m.AvgTrade
	m.AvgRR = rr / n
	m.AvgTradeBars = float64(bars) / n
	if m.WinningTrades > 0 {
		m.AvgWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = m.GrossLoss / float64(m.LosingTrades)
	}
	if m.GrossLoss > 0 {
		m.ProfitFactor = ptr(m.GrossProfit / m.GrossLoss)
	}
	if m.AvgLoss > 0 {
		m.ExpectancyRatio = ptr(m.AvgWin / m.AvgLoss)
	}
	m.MaxConsecutiveWins, m.MaxConsecutiveLosses = Streaks(trades)
}

func ptr(v float64) *float64 { return &v }

// Drawdown returns the deepest peak-to-trough decline of the curve in
// percent and absolute terms, and the longest run of samples spent below a
// previous peak.
func Drawdown(equity []float64) (pct, abs float64, duration int) {
	if len(equity) == 0 {
		return 0, 0, 0
	}
	peak := equity[0]
	run := 0
	for _, e := range equity {
		if e > peak {
			peak = e
			run = 0
			continue
		}
		run++
		duration = max(duration, run)
		dd := peak - e
		if peak > 0 && dd/peak*100 > pct {
			pct = dd / peak * 100
			abs = dd
		}
	}
	return pct, abs, duration
}

// Returns converts an equity curve into simple per-sample returns, skipping
// samples that follow a non-positive equity.
func Returns(equity []float64) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			out = append(out, (equity[i]-equity[i-1])/equity[i-1])
		}
	}
	return out
}

// RiskAdjusted returns annualized Sharpe and Sortino ratios. Sharpe is nil
// for fewer than two returns or zero volatility. Sortino is nil when no
// return is negative.
func RiskAdjusted(returns []float64, riskFree float64, periods int) (sharpe, sortino *float64) {
	if len(returns) < 2 || periods <= 0 {
		return nil, nil
	}
	n := float64(len(returns))
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= n

	variance, downside := 0.0, 0.0
	negatives := 0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
		if r < 0 {
			downside += r * r
			negatives++
		}
	}
	excess := mean - riskFree/float64(periods)
	scale := math.Sqrt(float64(periods))

	if std := math.Sqrt(variance / n); std > 0 {
		sharpe = ptr(excess / std * scale)
	}
	if negatives > 0 {
		if dstd := math.Sqrt(downside / n); dstd > 0 {
			sortino = ptr(excess / dstd * scale)
		}
	}
	return sharpe, sortino
}

// Streaks returns the longest runs of winning and non-winning trades.
func Streaks(trades []backtest.Position) (wins, losses int) {
	w, l := 0, 0
	for _, t := range trades {
		if t.Won() {
			w++
			l = 0
		} else {
			l++
			w = 0
		}
		wins = max(wins, w)
		losses = max(losses, l)
	}
	return wins, losses
}

func fmtRatio(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Summary renders the metrics as a plain text block.
func (m Metrics) Summary() string {
	var b strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	w("=== BACKTEST METRICS ===")
	w("")
	w("--- RETURNS ---")
	w("Total Return: %+.2f%% ($%+.2f)", m.TotalReturnPct, m.TotalReturnAbs)
	w("Max Drawdown: %.2f%% ($%.2f, %d samples)", m.MaxDrawdownPct, m.MaxDrawdownAbs, m.MaxDrawdownDuration)
	w("")
	w("--- RISK-ADJUSTED ---")
	w("Sharpe Ratio: %s", fmtRatio(m.Sharpe))
	w("Sortino Ratio: %s", fmtRatio(m.Sortino))
	w("")
	w("--- TRADES ---")
	w("Total Trades: %d (%d long / %d short)", m.TotalTrades, m.Longs, m.Shorts)
	w("Win Rate: %.1f%% (%dW / %dL)", m.WinRate, m.WinningTrades, m.LosingTrades)
	w("Profit Factor: %s", fmtRatio(m.ProfitFactor))
	w("Expectancy: $%+.2f (avg %.2fR)", m.Expectancy, m.AvgRR)
	w("Avg Win / Loss: $%.2f / $%.2f", m.AvgWin, m.AvgLoss)
	if m.TotalTrades > 0 {
		w("Largest Win / Loss: $%.2f / $%.2f", m.LargestWin, m.LargestLoss)
	}
	w("Max Consecutive Wins / Losses: %d / %d", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	w("Avg Duration: %.1f bars, %.1f%% in market", m.AvgTradeBars, m.TimeInMarketPct)
	w("Stop Hunts: %d", m.StopHunts)
	for _, g := range []smc.Grade{smc.GradeAPlus, smc.GradeA, smc.GradeB} {
		if s, ok := m.Grades[g]; ok {
			w("Grade %-2s: %d trades, %.1f%% win, $%+.2f", g, s.Trades, s.WinRate, s.PnL)
		}
	}
	w("")
	w("--- SIGNALS ---")
	w("Evaluations: %d, generated: %d, skipped: %d", m.Evaluations, m.SignalsGenerated, m.SignalsSkipped)
	for _, s := range m.TopSkips {
		w("  %-22s %d", s.Reason, s.Count)
	}
	return b.String()
}
