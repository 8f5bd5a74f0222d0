// Package config is the file-level configuration of the smc-trader CLI. It
// is sectioned for humans and converts to the flat engine and validator
// configs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/loader"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
	"github.com/mglavinic86/Ai-Trader-sub000/walkforward"
)

const DateLayout = "2006-01-02"

// Config is the complete run configuration.
type Config struct {
	Run         RunConfig          `json:"run" yaml:"run"`
	Account     AccountConfig      `json:"account" yaml:"account"`
	Strategy    StrategyConfig     `json:"strategy" yaml:"strategy"`
	Costs       CostsConfig        `json:"costs" yaml:"costs"`
	Filters     FiltersConfig      `json:"filters" yaml:"filters"`
	Management  ManagementConfig   `json:"management" yaml:"management"`
	Entry       EntryConfig        `json:"entry" yaml:"entry"`
	WalkForward walkforward.Config `json:"walk_forward" yaml:"walk_forward"`
	Report      ReportConfig       `json:"report" yaml:"report"`

	StopHuntThresholdR float64 `json:"stop_hunt_threshold_r" yaml:"stop_hunt_threshold_r"`
}

// RunConfig selects the data: what to trade, over which dates, from where.
type RunConfig struct {
	Instrument string   `json:"instrument" yaml:"instrument"`
	CrossAsset []string `json:"cross_asset,omitempty" yaml:"cross_asset,omitempty"`
	Start      string   `json:"start" yaml:"start"`       // YYYY-MM-DD, inclusive
	End        string   `json:"end" yaml:"end"`           // YYYY-MM-DD, exclusive
	Provider   string   `json:"provider" yaml:"provider"` // "csv" or "oanda"
	DataDir    string   `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	OANDA      OANDA    `json:"oanda,omitempty" yaml:"oanda,omitempty"`
}

type OANDA struct {
	Env      string  `json:"env" yaml:"env"` // "practice" or "live"
	TokenEnv string  `json:"token_env" yaml:"token_env"`
	RPS      float64 `json:"rps" yaml:"rps"`
}

type AccountConfig struct {
	Currency       string  `json:"currency" yaml:"currency"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

type StrategyConfig struct {
	MinConfidence     int               `json:"min_confidence" yaml:"min_confidence"`
	MinGrade          smc.Grade         `json:"min_grade" yaml:"min_grade"`
	TargetRR          float64           `json:"target_rr" yaml:"target_rr"`
	MaxSLPips         float64           `json:"max_sl_pips" yaml:"max_sl_pips"`
	RiskPercent       float64           `json:"risk_percent" yaml:"risk_percent"` // 0 = tiered by confidence
	SignalInterval    int               `json:"signal_interval" yaml:"signal_interval"`
	EquitySampleEvery int               `json:"equity_sample_every" yaml:"equity_sample_every"`
	Lookback          backtest.Lookback `json:"lookback" yaml:"lookback"`
	Analyzer          smc.Config        `json:"analyzer" yaml:"analyzer"`
}

type CostsConfig struct {
	SpreadPips       float64            `json:"spread_pips" yaml:"spread_pips"` // 0 = instrument default
	SlippagePips     float64            `json:"slippage_pips" yaml:"slippage_pips"`
	CommissionPerLot float64            `json:"commission_per_lot" yaml:"commission_per_lot"`
	Spreads          map[string]float64 `json:"spreads,omitempty" yaml:"spreads,omitempty"`
}

type SessionFilter struct {
	Enabled bool                `json:"enabled" yaml:"enabled"`
	Windows []market.HourWindow `json:"windows" yaml:"windows"`
}

type FiltersConfig struct {
	Session SessionFilter         `json:"session" yaml:"session"`
	Regime  backtest.RegimeFilter `json:"regime" yaml:"regime"`
}

type ManagementConfig struct {
	Breakeven backtest.Breakeven `json:"breakeven" yaml:"breakeven"`
	PartialTP backtest.PartialTP `json:"partial_tp" yaml:"partial_tp"`
	Trailing  backtest.Trailing  `json:"trailing" yaml:"trailing"`
}

const (
	FillMidpoint = "midpoint"
	FillEdge     = "edge"
)

type EntryConfig struct {
	Limit          bool   `json:"limit" yaml:"limit"`
	MaxBars        int    `json:"max_bars" yaml:"max_bars"`
	Fill           string `json:"fill" yaml:"fill"`
	MarketFallback bool   `json:"market_fallback" yaml:"market_fallback"`
}

// Report formats.
const (
	FormatJSON    = "json"
	FormatOrg     = "org"
	FormatCSV     = "csv"
	FormatSQLite  = "sqlite"
	FormatMetrics = "prom"
)

var formats = []string{FormatJSON, FormatOrg, FormatCSV, FormatSQLite, FormatMetrics}

type ReportConfig struct {
	Dir     string   `json:"dir" yaml:"dir"`
	SQLite  string   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Formats []string `json:"formats" yaml:"formats"`
}

// Wants reports whether format f is enabled.
func (r ReportConfig) Wants(f string) bool {
	return slices.Contains(r.Formats, f)
}

// SQLitePath is the database file of the run, defaulting to runs.db in Dir.
func (r ReportConfig) SQLitePath() string {
	if r.SQLite != "" {
		return r.SQLite
	}
	return filepath.Join(r.Dir, "runs.db")
}

// Default returns a configuration matching backtest.DefaultConfig for EUR_USD.
func Default() *Config {
	bt := backtest.DefaultConfig("EUR_USD")
	return &Config{
		Run: RunConfig{
			Instrument: bt.Instrument,
			Start:      "2024-01-01",
			End:        "2024-07-01",
			Provider:   "csv",
			DataDir:    "./data",
			OANDA:      OANDA{Env: "practice", TokenEnv: "OANDA_TOKEN", RPS: 10},
		},
		Account: AccountConfig{Currency: bt.AccountCurrency, InitialCapital: bt.InitialCapital},
		Strategy: StrategyConfig{
			MinConfidence:     bt.MinConfidence,
			MinGrade:          bt.MinGrade,
			TargetRR:          bt.TargetRR,
			MaxSLPips:         bt.MaxSLPips,
			RiskPercent:       bt.RiskPercent,
			SignalInterval:    bt.SignalInterval,
			EquitySampleEvery: bt.EquitySampleEvery,
			Lookback:          bt.Lookback,
			Analyzer:          bt.Analyzer,
		},
		Costs: CostsConfig{
			SlippagePips:     bt.SlippagePips,
			CommissionPerLot: bt.CommissionPerLot,
		},
		Filters: FiltersConfig{
			Session: SessionFilter{Enabled: true, Windows: bt.Sessions},
			Regime:  bt.Regime,
		},
		Management: ManagementConfig{
			Breakeven: bt.Breakeven,
			PartialTP: bt.PartialTP,
			Trailing:  bt.Trailing,
		},
		Entry: EntryConfig{
			Limit:          bt.LimitEntry.Enabled,
			MaxBars:        bt.LimitEntry.MaxBars,
			Fill:           FillEdge,
			MarketFallback: bt.MarketFallback,
		},
		WalkForward:        walkforward.DefaultConfig(),
		Report:             ReportConfig{Dir: "./reports", Formats: []string{FormatJSON}},
		StopHuntThresholdR: bt.StopHuntThresholdR,
	}
}

// Range parses Run.Start and Run.End.
func (c *Config) Range() (start, end time.Time, err error) {
	if start, err = time.Parse(DateLayout, c.Run.Start); err != nil {
		return start, end, fmt.Errorf("run.start: %w", err)
	}
	if end, err = time.Parse(DateLayout, c.Run.End); err != nil {
		return start, end, fmt.Errorf("run.end: %w", err)
	}
	return start, end, nil
}

// Spread returns the spread for instrument: the per-instrument override,
// then the global setting, then the instrument default.
func (c *Config) Spread(instrument string) float64 {
	if s, ok := c.Costs.Spreads[instrument]; ok {
		return s
	}
	if c.Costs.SpreadPips > 0 {
		return c.Costs.SpreadPips
	}
	return market.Lookup(instrument).DefaultSpreadPips
}

// Backtest converts to the engine config of Run.Instrument.
func (c *Config) Backtest() backtest.Config {
	return c.BacktestFor(c.Run.Instrument)
}

// BacktestFor converts to the engine config of the given instrument.
func (c *Config) BacktestFor(instrument string) backtest.Config {
	var sessions []market.HourWindow
	if c.Filters.Session.Enabled {
		sessions = c.Filters.Session.Windows
	}
	bt := backtest.Config{
		Instrument:         instrument,
		AccountCurrency:    c.Account.Currency,
		InitialCapital:     c.Account.InitialCapital,
		MinConfidence:      c.Strategy.MinConfidence,
		MinGrade:           c.Strategy.MinGrade,
		TargetRR:           c.Strategy.TargetRR,
		MaxSLPips:          c.Strategy.MaxSLPips,
		SpreadPips:         c.Spread(instrument),
		SlippagePips:       c.Costs.SlippagePips,
		CommissionPerLot:   c.Costs.CommissionPerLot,
		RiskPercent:        c.Strategy.RiskPercent,
		Sessions:           sessions,
		SignalInterval:     c.Strategy.SignalInterval,
		Lookback:           c.Strategy.Lookback,
		Regime:             c.Filters.Regime,
		PartialTP:          c.Management.PartialTP,
		Breakeven:          c.Management.Breakeven,
		Trailing:           c.Management.Trailing,
		LimitEntry:         backtest.LimitEntry{Enabled: c.Entry.Limit, MaxBars: c.Entry.MaxBars, Midpoint: c.Entry.Fill == FillMidpoint},
		MarketFallback:     c.Entry.MarketFallback,
		EquitySampleEvery:  c.Strategy.EquitySampleEvery,
		StopHuntThresholdR: c.StopHuntThresholdR,
		Analyzer:           c.Strategy.Analyzer,
	}
	bt.Analyzer = bt.AnalyzerConfig()
	return bt
}

func (c *Config) WalkForwardConfig() walkforward.Config {
	return c.WalkForward
}

// Provider builds the candle source named by Run.Provider. The OANDA token
// is read from the environment variable Run.OANDA.TokenEnv.
func (c *Config) Provider() (loader.Provider, error) {
	switch c.Run.Provider {
	case "csv":
		return loader.CSVProvider{Dir: c.Run.DataDir}, nil
	case "oanda":
		base, err := loader.BaseURL(c.Run.OANDA.Env)
		if err != nil {
			return nil, err
		}
		token := os.Getenv(c.Run.OANDA.TokenEnv)
		if token == "" {
			return nil, fmt.Errorf("oanda: environment variable %s is empty", c.Run.OANDA.TokenEnv)
		}
		return loader.NewOANDAProvider(base, token, c.Run.OANDA.RPS), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Run.Provider)
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths, JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate reports every problem at once. Each error names its field and
// wraps backtest.ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{backtest.ErrConfigInvalid}, args...)...))
	}

	if c.Account.Currency == "" {
		bad("account.currency is required")
	}
	switch c.Run.Provider {
	case "csv":
		if c.Run.DataDir == "" {
			bad("run.data_dir is required for the csv provider")
		}
	case "oanda":
		if _, err := loader.BaseURL(c.Run.OANDA.Env); err != nil {
			bad("run.oanda.env: %v", err)
		}
		if c.Run.OANDA.TokenEnv == "" {
			bad("run.oanda.token_env is required for the oanda provider")
		}
	default:
		bad("run.provider must be 'csv' or 'oanda', got %q", c.Run.Provider)
	}
	if start, end, err := c.Range(); err != nil {
		bad("%v", err)
	} else if !start.Before(end) {
		bad("run.start %s must be before run.end %s", c.Run.Start, c.Run.End)
	}
	if slices.Contains(c.Run.CrossAsset, c.Run.Instrument) {
		bad("run.cross_asset must not contain the traded instrument %s", c.Run.Instrument)
	}
	switch c.Entry.Fill {
	case FillMidpoint, FillEdge:
	default:
		bad("entry.fill must be %q or %q, got %q", FillMidpoint, FillEdge, c.Entry.Fill)
	}
	for inst, s := range c.Costs.Spreads {
		if s < 0 {
			bad("costs.spreads.%s must be >= 0, got %g", inst, s)
		}
	}
	for _, f := range c.Report.Formats {
		if !slices.Contains(formats, f) {
			bad("report.formats: unknown format %q", f)
		}
	}
	if len(c.Report.Formats) > 0 && c.Report.Dir == "" {
		bad("report.dir is required when report.formats is set")
	}
	if err := c.WalkForward.Validate(); err != nil {
		bad("walk_forward: %v", err)
	}
	if err := c.Backtest().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
