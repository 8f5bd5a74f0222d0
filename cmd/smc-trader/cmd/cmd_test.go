package cmd

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/config"
	"github.com/mglavinic86/Ai-Trader-sub000/journal"
	"github.com/mglavinic86/Ai-Trader-sub000/loader"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

func init() {
	color.NoColor = true
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	cfgFile = ""
	return out.String(), err
}

func walk(start time.Time, tf market.Timeframe, n int, seed int64) []market.Candle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]market.Candle, n)
	price := 1.10
	for i := range out {
		o := price
		c := o + (rng.Float64()-0.5)*0.0012
		out[i] = market.Candle{
			Time:  start.Add(time.Duration(i) * tf.Duration()),
			Open:  o,
			High:  max(o, c) + rng.Float64()*0.0004,
			Low:   min(o, c) - rng.Float64()*0.0004,
			Close: c,
		}
		price = c
	}
	return out
}

func writeData(t *testing.T, dir string) {
	t.Helper()
	p := loader.CSVProvider{Dir: dir}
	htfStart := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []struct {
		tf    market.Timeframe
		start time.Time
		n     int
	}{
		{market.M5, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 288},
		{market.H1, htfStart, 33 * 24},
		{market.H4, htfStart, 33 * 6},
	} {
		_, err := writeCandles(p.Path("EUR_USD", s.tf), "EUR_USD", s.tf, walk(s.start, s.tf, s.n, 7))
		require.NoError(t, err)
	}
}

func walkData() backtest.Data {
	return backtest.Data{M5: walk(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), market.M5, 50, 1)}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "smc-trader version "+version+"\n", out)
}

func TestConfigInitValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smc.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "min grade B")

	require.NoError(t, os.WriteFile(path, []byte("entry:\n  fill: sideways\n"), 0644))
	_, err = execute(t, "config", "validate", "-f", path)
	assert.ErrorContains(t, err, "entry.fill")
}

func TestBacktestAndReport(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	reportDir := filepath.Join(dir, "reports")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	writeData(t, dataDir)

	cfg := config.Default()
	cfg.Run.DataDir = dataDir
	cfg.Run.Start, cfg.Run.End = "2024-01-02", "2024-01-03"
	cfg.Report = config.ReportConfig{Dir: reportDir, Formats: []string{config.FormatJSON, config.FormatSQLite, config.FormatOrg}}
	cfgPath := filepath.Join(dir, "smc.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	out, err := execute(t, "backtest", "-c", cfgPath, "--label", "smoke", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "BACKTEST EUR_USD 2024-01-02..2024-01-02")
	assert.Contains(t, out, "=== BACKTEST METRICS ===")

	reports, err := filepath.Glob(filepath.Join(reportDir, "*.json"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	orgs, _ := filepath.Glob(filepath.Join(reportDir, "*.org"))
	assert.Len(t, orgs, 1)

	out, err = execute(t, "report", "show", reports[0])
	require.NoError(t, err)
	assert.Contains(t, out, "[smoke]")

	out, err = execute(t, "report", "list", "--db", filepath.Join(reportDir, "runs.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "smoke")
	assert.Contains(t, out, "EUR_USD")
}

func TestBacktest_MissingData(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Run.DataDir = dir
	cfg.Report.Formats = nil
	cfgPath := filepath.Join(dir, "smc.json")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	_, err := execute(t, "backtest", "-c", cfgPath, "--log-level", "error")
	assert.ErrorIs(t, err, loader.ErrDataUnavailable)
}

func TestSuiteJobs(t *testing.T) {
	cfg := config.Default()
	cfg.Costs.Spreads = map[string]float64{"GBP_USD": 2.2}

	jobs := suiteJobs(cfg, "GBP_USD", walkData(), []smc.Grade{smc.GradeB, smc.GradeAPlus})
	require.Len(t, jobs, 2)
	assert.Equal(t, "GBP_USD_B", jobs[0].Label)
	assert.Equal(t, "GBP_USD_A+", jobs[1].Label)
	assert.Equal(t, smc.GradeAPlus, jobs[1].Config.MinGrade)
	assert.Equal(t, 2.2, jobs[1].Config.SpreadPips)
	assert.Equal(t, "GBP_USD", jobs[1].Config.Instrument)
	assert.Same(t, &jobs[0].Data.M5[0], &jobs[1].Data.M5[0])
}

func TestReportTrades(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	db, err := journal.NewSQLite(dbPath)
	require.NoError(t, err)

	closed := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	trade := func(id string, g smc.Grade, at time.Time, pl float64) journal.TradeRecord {
		return journal.TradeRecord{
			TradeID: id, Instrument: "EUR_USD", Direction: smc.Long, Units: 100000,
			EntryRaw: 1.1, EntryPrice: 1.1001, ExitRaw: 1.102, ExitPrice: 1.1019,
			StopLoss: 1.099, TakeProfit: 1.102, OpenTime: at.Add(-time.Hour), CloseTime: at,
			RealizedPL: pl, Reason: backtest.ExitTakeProfit, RealizedRR: 1.8, Grade: g,
		}
	}
	require.NoError(t, db.SaveReport(context.Background(), journal.Report{
		RunID: "RUN1", Instrument: "EUR_USD", Created: closed, Start: closed.AddDate(0, 0, -1), End: closed,
		Config: backtest.DefaultConfig("EUR_USD"), InitialCapital: 50000, FinalEquity: 50300,
		Trades: []journal.TradeRecord{
			trade("T1", smc.GradeA, closed.AddDate(0, 0, -1), 180),
			trade("T2", smc.GradeAPlus, closed, 120),
		},
	}))
	require.NoError(t, db.Close())

	run := func(args ...string) string {
		t.Helper()
		rpTradeID, rpGrade, rpFrom, rpTo = "", "", "", ""
		out, err := execute(t, append([]string{"report", "trades", "--db", dbPath}, args...)...)
		require.NoError(t, err)
		return out
	}

	out := run("RUN1")
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "T2")

	out = run("RUN1", "--id", "T2")
	assert.Contains(t, out, "T2")
	assert.NotContains(t, out, "T1")

	out = run("--grade", "A+")
	assert.Contains(t, out, "T2")
	assert.NotContains(t, out, "T1")

	out = run("--from", "2024-03-04", "--to", "2024-03-05")
	assert.Contains(t, out, "T1")
	assert.NotContains(t, out, "T2")

	out = run("--grade", "B")
	assert.Contains(t, out, "no matching trades")

	rpTradeID, rpGrade, rpFrom, rpTo = "", "", "", ""
	_, err = execute(t, "report", "trades", "--db", dbPath)
	assert.ErrorContains(t, err, "run id")
	_, err = execute(t, "report", "trades", "--db", dbPath, "--id", "T1")
	assert.ErrorContains(t, err, "--id needs a run id")
	rpTradeID = ""
}

func TestLoadData_ResamplesMissingHTF(t *testing.T) {
	dir := t.TempDir()
	p := loader.CSVProvider{Dir: dir}
	m5 := walk(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), market.M5, 288, 7)
	_, err := writeCandles(p.Path("EUR_USD", market.M5), "EUR_USD", market.M5, m5)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Run.DataDir = dir
	cfg.Run.Start, cfg.Run.End = "2024-01-02", "2024-01-03"

	d, err := loadData(context.Background(), cfg, "EUR_USD")
	require.NoError(t, err)
	require.Len(t, d.M5, 288)
	require.Len(t, d.H1, 24)
	assert.Len(t, d.H4, 6)
	assert.Equal(t, d.M5[0].Open, d.H1[0].Open)
	assert.Equal(t, d.M5[11].Close, d.H1[0].Close)
	assert.Equal(t, d.M5[12].Time, d.H1[1].Time)
}

func TestSuspiciousGaps(t *testing.T) {
	cs := walk(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), market.M5, 10, 3)
	for i := 5; i < len(cs); i++ {
		cs[i].Time = cs[i].Time.Add(30 * time.Minute)
	}
	for i := 8; i < len(cs); i++ {
		cs[i].Time = cs[i].Time.Add(5 * time.Minute)
	}

	require.Len(t, market.Gaps(cs, market.M5), 2)
	sus := suspiciousGaps(cs, market.M5)
	require.Len(t, sus, 1)
	assert.Equal(t, cs[4].Time, sus[0].After)
	assert.Equal(t, 6, sus[0].Missing)
}
