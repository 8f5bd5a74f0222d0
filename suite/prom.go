package suite

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/metrics"
)

// JobMetrics is the Prometheus view of one job. Every job owns a private
// registry so parallel jobs never share collectors.
type JobMetrics struct {
	Registry *prometheus.Registry

	trades      *prometheus.CounterVec
	signals     *prometheus.CounterVec
	skips       *prometheus.CounterVec
	finalEquity prometheus.Gauge
	returnPct   prometheus.Gauge
	drawdownPct prometheus.Gauge
}

func NewJobMetrics(label, instrument string) *JobMetrics {
	labels := prometheus.Labels{"job_label": label, "instrument": instrument}
	jm := &JobMetrics{
		Registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "smc_backtest_trades_total",
			Help:        "Closed trades by exit reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "smc_backtest_signals_total",
			Help:        "Analyzer evaluations by outcome (evaluated, generated, skipped)",
			ConstLabels: labels,
		}, []string{"outcome"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "smc_backtest_skips_total",
			Help:        "Skipped signals and orders by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		finalEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "smc_backtest_final_equity",
			Help:        "Account equity at the end of the run",
			ConstLabels: labels,
		}),
		returnPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "smc_backtest_return_pct",
			Help:        "Total return in percent",
			ConstLabels: labels,
		}),
		drawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "smc_backtest_max_drawdown_pct",
			Help:        "Maximum drawdown in percent",
			ConstLabels: labels,
		}),
	}
	jm.Registry.MustRegister(jm.trades, jm.signals, jm.skips, jm.finalEquity, jm.returnPct, jm.drawdownPct)
	return jm
}

// Observe records a finished run.
func (jm *JobMetrics) Observe(res *backtest.Result, m metrics.Metrics) {
	for _, p := range res.Trades {
		jm.trades.WithLabelValues(p.ExitReason.String()).Inc()
	}
	jm.signals.WithLabelValues("evaluated").Add(float64(res.Evaluations))
	jm.signals.WithLabelValues("generated").Add(float64(res.SignalsGenerated))
	jm.signals.WithLabelValues("skipped").Add(float64(res.SignalsSkipped))
	for reason, n := range res.SkipReasons {
		jm.skips.WithLabelValues(reason.String()).Add(float64(n))
	}
	jm.finalEquity.Set(res.FinalEquity)
	jm.returnPct.Set(m.TotalReturnPct)
	jm.drawdownPct.Set(m.MaxDrawdownPct)
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (jm *JobMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, jm.Registry)
}
