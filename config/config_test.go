package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/loader"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 50000.0, cfg.Account.InitialCapital)

	// Default converts back to the engine defaults, spread included.
	assert.Equal(t, backtest.DefaultConfig("EUR_USD"), cfg.Backtest())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency is required"},
		{"unknown provider", func(c *Config) { c.Run.Provider = "ftp" }, "run.provider must be"},
		{"csv without dir", func(c *Config) { c.Run.DataDir = "" }, "run.data_dir is required"},
		{"bad oanda env", func(c *Config) { c.Run.Provider = "oanda"; c.Run.OANDA.Env = "staging" }, "run.oanda.env"},
		{"oanda without token env", func(c *Config) { c.Run.Provider = "oanda"; c.Run.OANDA.TokenEnv = "" }, "run.oanda.token_env"},
		{"bad date", func(c *Config) { c.Run.Start = "01/02/2024" }, "run.start"},
		{"inverted range", func(c *Config) { c.Run.Start, c.Run.End = "2024-05-01", "2024-04-01" }, "must be before run.end"},
		{"cross asset self", func(c *Config) { c.Run.CrossAsset = []string{"GBP_USD", "EUR_USD"} }, "run.cross_asset"},
		{"bad fill", func(c *Config) { c.Entry.Fill = "close" }, "entry.fill"},
		{"negative spread override", func(c *Config) { c.Costs.Spreads = map[string]float64{"EUR_USD": -1} }, "costs.spreads.EUR_USD"},
		{"unknown format", func(c *Config) { c.Report.Formats = []string{"xlsx"} }, `unknown format "xlsx"`},
		{"formats without dir", func(c *Config) { c.Report.Dir = "" }, "report.dir is required"},
		{"walk forward", func(c *Config) { c.WalkForward.Windows = 0 }, "walk_forward: windows must be >= 1"},
		{"engine field", func(c *Config) { c.Strategy.TargetRR = 0.2 }, "target_rr must be >= 0.5"},
		{"missing instrument", func(c *Config) { c.Run.Instrument = "" }, "instrument is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, backtest.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Account.Currency = ""
	cfg.Entry.Fill = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account.currency")
	assert.Contains(t, err.Error(), "entry.fill")
}

func TestBacktestFor(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Costs.SpreadPips = 0.9
	cfg.Costs.Spreads = map[string]float64{"GBP_USD": 2.1}
	cfg.Entry.Fill = FillMidpoint
	cfg.Filters.Session.Enabled = false
	cfg.Strategy.MinGrade = smc.GradeAPlus

	eur := cfg.Backtest()
	assert.Equal(t, "EUR_USD", eur.Instrument)
	assert.Equal(t, 0.9, eur.SpreadPips)
	assert.True(t, eur.LimitEntry.Midpoint)
	assert.Empty(t, eur.Sessions)
	assert.Equal(t, smc.GradeAPlus, eur.MinGrade)

	gbp := cfg.BacktestFor("GBP_USD")
	assert.Equal(t, "GBP_USD", gbp.Instrument)
	assert.Equal(t, 2.1, gbp.SpreadPips)

	cfg.Costs.SpreadPips = 0
	assert.Equal(t, market.Lookup("USD_JPY").DefaultSpreadPips, cfg.BacktestFor("USD_JPY").SpreadPips)
}

func TestBacktestFor_StrategyReachesAnalyzer(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Strategy.TargetRR = 3
	cfg.Strategy.MaxSLPips = 18

	bt := cfg.Backtest()
	assert.Equal(t, 3.0, bt.Analyzer.TargetRR)
	assert.Equal(t, 18.0, bt.Analyzer.MaxSLPips)
	assert.Equal(t, 2.0, cfg.Strategy.Analyzer.TargetRR)
}

func TestRange(t *testing.T) {
	t.Parallel()

	cfg := Default()
	start, end, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", start.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, 182, int(end.Sub(start).Hours()/24))
}

func TestReportConfig(t *testing.T) {
	t.Parallel()

	r := ReportConfig{Dir: "out", Formats: []string{FormatJSON, FormatSQLite}}
	assert.True(t, r.Wants(FormatSQLite))
	assert.False(t, r.Wants(FormatOrg))
	assert.Equal(t, filepath.Join("out", "runs.db"), r.SQLitePath())

	r.SQLite = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", r.SQLitePath())
}

func TestProvider(t *testing.T) {
	cfg := Default()
	p, err := cfg.Provider()
	require.NoError(t, err)
	assert.Equal(t, loader.CSVProvider{Dir: "./data"}, p)

	cfg.Run.Provider = "oanda"
	cfg.Run.OANDA.TokenEnv = "SMC_TRADER_TEST_TOKEN"
	t.Setenv("SMC_TRADER_TEST_TOKEN", "")
	_, err = cfg.Provider()
	assert.ErrorContains(t, err, "SMC_TRADER_TEST_TOKEN")

	t.Setenv("SMC_TRADER_TEST_TOKEN", "secret")
	p, err = cfg.Provider()
	require.NoError(t, err)
	op, ok := p.(*loader.OANDAProvider)
	require.True(t, ok)
	assert.Equal(t, "https://api-fxpractice.oanda.com", op.BaseURL)
	assert.Equal(t, "secret", op.Token)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"cfg.yaml", "cfg.yml", "cfg.json"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)

			want := Default()
			want.Run.Instrument = "GBP_USD"
			want.Run.CrossAsset = []string{"EUR_USD"}
			want.Strategy.MinGrade = smc.GradeA
			want.Costs.Spreads = map[string]float64{"GBP_USD": 1.9}
			want.Report.Formats = []string{FormatJSON, FormatOrg}
			require.NoError(t, want.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadFromFile_PartialYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	doc := `
run:
  instrument: XAU_USD
strategy:
  min_grade: A+
  min_confidence: 80
costs:
  spreads:
    XAU_USD: 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "XAU_USD", cfg.Run.Instrument)
	assert.Equal(t, smc.GradeAPlus, cfg.Strategy.MinGrade)
	assert.Equal(t, 80, cfg.Strategy.MinConfidence)
	assert.Equal(t, 2.0, cfg.Strategy.TargetRR)
	assert.Equal(t, 2.5, cfg.Backtest().SpreadPips)
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("run: [unterminated"), 0644))
	_, err = LoadFromFile(garbage)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("account:\n  currency: \"\"\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorIs(t, err, backtest.ErrConfigInvalid)
}
