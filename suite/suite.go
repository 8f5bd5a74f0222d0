// Package suite runs independent backtest jobs in parallel and flattens
// their results into comparable summaries.
package suite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/journal"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/metrics"
	"github.com/mglavinic86/Ai-Trader-sub000/pkg/id"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// Job is one self-contained run. Jobs share nothing; the data slices are
// only read.
type Job struct {
	Label      string
	Instrument string
	Data       backtest.Data
	Config     backtest.Config
	CrossAsset map[string][]market.Candle
	Seed       int64             // trade id entropy; 0 derives it from the job index
	Analyzer   backtest.Analyzer // nil uses the smc analyzer of Config
}

// Summary is the flat result of one job. Error is set when the job failed;
// all other fields are then zero.
type Summary struct {
	Label      string `json:"label"`
	Instrument string `json:"instrument"`
	RunID      string `json:"run_id,omitempty"`
	Error      string `json:"error,omitempty"`

	Trades           int      `json:"trades"`
	Evaluations      int      `json:"evaluations"`
	SignalsGenerated int      `json:"signals_generated"`
	SignalsSkipped   int      `json:"signals_skipped"`
	WinRate          float64  `json:"win_rate"`
	ReturnPct        float64  `json:"return_pct"`
	MaxDrawdownPct   float64  `json:"max_drawdown_pct"`
	Sharpe           *float64 `json:"sharpe"`
	ProfitFactor     *float64 `json:"profit_factor"`
	Expectancy       float64  `json:"expectancy"`
	AvgWin           float64  `json:"avg_win"`
	AvgLoss          float64  `json:"avg_loss"`
	AvgRR            float64  `json:"avg_rr"`
	MaxWinStreak     int      `json:"max_win_streak"`
	MaxLossStreak    int      `json:"max_loss_streak"`
	Longs            int      `json:"longs"`
	Shorts           int      `json:"shorts"`
	FinalEquity      float64  `json:"final_equity"`

	Grades   map[smc.Grade]metrics.GradeStats `json:"grades"`
	TopSkips []backtest.ReasonCount           `json:"top_skips"`
	Duration time.Duration                    `json:"duration_ns"`

	Report string `json:"report,omitempty"` // JSON report path
}

func (s Summary) OK() bool { return s.Error == "" }

// Summarize flattens one run.
func Summarize(label string, res *backtest.Result, m metrics.Metrics, took time.Duration) Summary {
	return Summary{
		Label:            label,
		Instrument:       res.Instrument,
		RunID:            res.RunID,
		Trades:           m.TotalTrades,
		Evaluations:      m.Evaluations,
		SignalsGenerated: m.SignalsGenerated,
		SignalsSkipped:   m.SignalsSkipped,
		WinRate:          m.WinRate,
		ReturnPct:        m.TotalReturnPct,
		MaxDrawdownPct:   m.MaxDrawdownPct,
		Sharpe:           m.Sharpe,
		ProfitFactor:     m.ProfitFactor,
		Expectancy:       m.Expectancy,
		AvgWin:           m.AvgWin,
		AvgLoss:          m.AvgLoss,
		AvgRR:            m.AvgRR,
		MaxWinStreak:     m.MaxConsecutiveWins,
		MaxLossStreak:    m.MaxConsecutiveLosses,
		Longs:            m.Longs,
		Shorts:           m.Shorts,
		FinalEquity:      m.FinalEquity,
		Grades:           m.Grades,
		TopSkips:         res.SkipReasons.Top(5),
		Duration:         took,
	}
}

type Options struct {
	Workers int // <= 0 runs one job at a time

	// ReportDir receives <label>.json per job. Empty disables all output.
	ReportDir string
	// SQLite also stores each job in <label>.db, one handle per job.
	SQLite bool
	// Textfile writes the job's Prometheus metrics to <label>.prom.
	Textfile bool

	Logger zerolog.Logger
}

// Run executes jobs with at most opt.Workers in flight. Summaries are in
// job order. A failing job is recorded in its summary and does not stop
// the others; the returned error is only the context's.
func Run(ctx context.Context, jobs []Job, opt Options) ([]Summary, error) {
	out := make([]Summary, len(jobs))
	if opt.ReportDir != "" {
		if err := os.MkdirAll(opt.ReportDir, 0755); err != nil {
			return nil, err
		}
	}

	var g errgroup.Group
	g.SetLimit(max(1, opt.Workers))
	for i, job := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				out[i] = Summary{Label: job.Label, Instrument: job.Instrument, Error: ctx.Err().Error()}
				return nil
			}
			s, err := runJob(ctx, i, job, opt)
			if err != nil {
				opt.Logger.Error().Err(err).
					Str("label", job.Label).
					Str("instrument", job.Instrument).
					Msg("suite job failed")
				s = Summary{Label: job.Label, Instrument: job.Instrument, Error: err.Error()}
			}
			out[i] = s
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

func runJob(ctx context.Context, i int, job Job, opt Options) (Summary, error) {
	began := time.Now()
	log := opt.Logger.With().Str("label", job.Label).Str("instrument", job.Instrument).Logger()

	seed := job.Seed
	if seed == 0 {
		seed = int64(i + 1)
	}
	cfg := job.Config
	if job.Instrument != "" {
		cfg.Instrument = job.Instrument
	}
	opts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithIDs(id.NewGenerator(seed, nil)),
	}
	if job.Analyzer != nil {
		opts = append(opts, backtest.WithAnalyzer(job.Analyzer))
	}
	eng, err := backtest.NewEngine(cfg, opts...)
	if err != nil {
		return Summary{}, err
	}

	data := job.Data
	if job.CrossAsset != nil {
		data.CrossAsset = job.CrossAsset
	}
	res, err := eng.Run(ctx, data)
	if err != nil {
		return Summary{}, err
	}
	m := metrics.Calculate(res)
	s := Summarize(job.Label, res, m, time.Since(began))

	if opt.ReportDir != "" {
		if s.Report, err = persist(ctx, job.Label, res, m, opt); err != nil {
			return Summary{}, fmt.Errorf("persist %s: %w", job.Label, err)
		}
	}
	log.Info().
		Int("trades", s.Trades).
		Float64("return_pct", s.ReturnPct).
		Dur("took", s.Duration).
		Msg("suite job done")
	return s, nil
}

func persist(ctx context.Context, label string, res *backtest.Result, m metrics.Metrics, opt Options) (string, error) {
	rep := journal.NewReport(res, m, label, time.Now())
	base := filepath.Join(opt.ReportDir, fileName(label))

	path := base + ".json"
	if err := journal.SaveJSON(path, rep); err != nil {
		return "", err
	}
	if opt.SQLite {
		db, err := journal.NewSQLite(base + ".db")
		if err != nil {
			return "", err
		}
		err = db.SaveReport(ctx, rep)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", err
		}
	}
	if opt.Textfile {
		jm := NewJobMetrics(label, res.Instrument)
		jm.Observe(res, m)
		if err := jm.WriteTextfile(base + ".prom"); err != nil {
			return "", err
		}
	}
	return path, nil
}

func fileName(label string) string {
	b := []byte(label)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		return "job"
	}
	return string(b)
}
