package walkforward

import (
	"math"
	"math/rand"
	"sort"
)

// SampleSize is how many per-iteration outcomes are kept for plotting.
const SampleSize = 100

type MonteCarloResult struct {
	Iterations int `json:"iterations"`
	Trades     int `json:"trades"`

	P5Return  float64 `json:"p5_return"`
	P50Return float64 `json:"p50_return"`
	P95Return float64 `json:"p95_return"`

	P5Drawdown  float64 `json:"p5_drawdown"`
	P50Drawdown float64 `json:"p50_drawdown"`
	P95Drawdown float64 `json:"p95_drawdown"`

	ProbProfit     float64 `json:"prob_profit"`
	ProbDrawdown10 float64 `json:"prob_drawdown_10pct"`
	ProbDrawdown20 float64 `json:"prob_drawdown_20pct"`

	ReturnSamples   []float64 `json:"return_samples,omitempty"`
	DrawdownSamples []float64 `json:"drawdown_samples,omitempty"`
}

// MonteCarlo reshuffles the order of pnls iterations times and replays each
// sequence against capital. Returns and drawdowns are in percent. The same
// inputs and seed always give the same result.
func MonteCarlo(pnls []float64, capital float64, iterations int, seed int64) MonteCarloResult {
	res := MonteCarloResult{Iterations: iterations, Trades: len(pnls)}
	if len(pnls) == 0 || iterations <= 0 || capital <= 0 {
		return res
	}

	rng := rand.New(rand.NewSource(seed))
	seq := make([]float64, len(pnls))
	returns := make([]float64, iterations)
	drawdowns := make([]float64, iterations)
	var profit, dd10, dd20 int

	for it := 0; it < iterations; it++ {
		copy(seq, pnls)
		rng.Shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })

		equity, peak, maxDD := capital, capital, 0.0
		for _, p := range seq {
			equity += p
			peak = math.Max(peak, equity)
			if peak > 0 {
				maxDD = math.Max(maxDD, (peak-equity)/peak*100)
			}
		}
		returns[it] = (equity - capital) / capital * 100
		drawdowns[it] = maxDD

		if returns[it] > 0 {
			profit++
		}
		if maxDD > 10 {
			dd10++
		}
		if maxDD > 20 {
			dd20++
		}
	}

	n := float64(iterations)
	res.ProbProfit = float64(profit) / n
	res.ProbDrawdown10 = float64(dd10) / n
	res.ProbDrawdown20 = float64(dd20) / n
	res.ReturnSamples = append([]float64(nil), returns[:min(SampleSize, iterations)]...)
	res.DrawdownSamples = append([]float64(nil), drawdowns[:min(SampleSize, iterations)]...)

	sort.Float64s(returns)
	sort.Float64s(drawdowns)
	res.P5Return, res.P50Return, res.P95Return = Percentile(returns, 5), Percentile(returns, 50), Percentile(returns, 95)
	res.P5Drawdown, res.P50Drawdown, res.P95Drawdown = Percentile(drawdowns, 5), Percentile(drawdowns, 50), Percentile(drawdowns, 95)
	return res
}

// Percentile interpolates linearly between the closest ranks of sorted.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
