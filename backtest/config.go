package backtest

import (
	"errors"
	"fmt"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// ErrConfigInvalid wraps every configuration problem found before a run.
var ErrConfigInvalid = errors.New("invalid backtest configuration")

// Lookback is the number of candles per timeframe handed to the analyzer.
type Lookback struct {
	H4 int `json:"h4" yaml:"h4"`
	H1 int `json:"h1" yaml:"h1"`
	M5 int `json:"m5" yaml:"m5"`
}

type RegimeFilter struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	ADXPeriod int     `json:"adx_period" yaml:"adx_period"`
	MinADX    float64 `json:"min_adx" yaml:"min_adx"`
}

type PartialTP struct {
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	AtR      float64 `json:"at_r" yaml:"at_r"`
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

type Breakeven struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	AtR        float64 `json:"at_r" yaml:"at_r"`
	OffsetPips float64 `json:"offset_pips" yaml:"offset_pips"`
}

type Trailing struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	AfterR        float64 `json:"after_r" yaml:"after_r"`
	ATRPeriod     int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier" yaml:"atr_multiplier"`
}

// LimitEntry places signals as resting orders at the entry zone. Midpoint
// selects the zone midpoint instead of the near edge.
type LimitEntry struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	MaxBars  int  `json:"max_bars" yaml:"max_bars"`
	Midpoint bool `json:"midpoint" yaml:"midpoint"`
}

type Config struct {
	Instrument      string  `json:"instrument" yaml:"instrument"`
	AccountCurrency string  `json:"account_currency" yaml:"account_currency"`
	InitialCapital  float64 `json:"initial_capital" yaml:"initial_capital"`

	MinConfidence int       `json:"min_confidence" yaml:"min_confidence"`
	MinGrade      smc.Grade `json:"min_grade" yaml:"min_grade"`
	TargetRR      float64   `json:"target_rr" yaml:"target_rr"`
	MaxSLPips     float64   `json:"max_sl_pips" yaml:"max_sl_pips"`

	SpreadPips       float64 `json:"spread_pips" yaml:"spread_pips"`
	SlippagePips     float64 `json:"slippage_pips" yaml:"slippage_pips"`
	CommissionPerLot float64 `json:"commission_per_lot" yaml:"commission_per_lot"`

	// RiskPercent is the fraction of cash risked per trade; 0 sizes by
	// confidence tier.
	RiskPercent float64 `json:"risk_percent" yaml:"risk_percent"`

	Sessions       []market.HourWindow `json:"sessions" yaml:"sessions"`
	SignalInterval int                 `json:"signal_interval" yaml:"signal_interval"`
	Lookback       Lookback            `json:"lookback" yaml:"lookback"`
	Regime         RegimeFilter        `json:"regime" yaml:"regime"`

	PartialTP  PartialTP  `json:"partial_tp" yaml:"partial_tp"`
	Breakeven  Breakeven  `json:"breakeven" yaml:"breakeven"`
	Trailing   Trailing   `json:"trailing" yaml:"trailing"`
	LimitEntry LimitEntry `json:"limit_entry" yaml:"limit_entry"`
	// MarketFallback enters at market when a signal has no entry zone.
	MarketFallback bool `json:"market_fallback" yaml:"market_fallback"`

	EquitySampleEvery  int     `json:"equity_sample_every" yaml:"equity_sample_every"`
	StopHuntThresholdR float64 `json:"stop_hunt_threshold_r" yaml:"stop_hunt_threshold_r"`

	Analyzer smc.Config `json:"analyzer" yaml:"analyzer"`
}

// DefaultConfig mirrors the tuned limit-entry setup: London and New York
// hours, checks every 30 minutes, 0.3% risk.
func DefaultConfig(instrument string) Config {
	c := Config{
		Instrument:         instrument,
		AccountCurrency:    "USD",
		InitialCapital:     50000,
		MinConfidence:      70,
		MinGrade:           smc.GradeB,
		TargetRR:           2,
		MaxSLPips:          15,
		SpreadPips:         market.Lookup(instrument).DefaultSpreadPips,
		SlippagePips:       0.2,
		CommissionPerLot:   7,
		RiskPercent:        0.003,
		Sessions:           []market.HourWindow{{Start: 7, End: 17}},
		SignalInterval:     6,
		Lookback:           Lookback{H4: 100, H1: 100, M5: 100},
		Regime:             RegimeFilter{Enabled: true, ADXPeriod: 14, MinADX: 20},
		PartialTP:          PartialTP{AtR: 1, Fraction: 0.5},
		Breakeven:          Breakeven{AtR: 1, OffsetPips: 0},
		Trailing:           Trailing{AfterR: 2, ATRPeriod: 14, ATRMultiplier: 1.5},
		LimitEntry:         LimitEntry{Enabled: true, MaxBars: 12},
		EquitySampleEvery:  12,
		StopHuntThresholdR: 1,
		Analyzer:           smc.DefaultConfig(),
	}
	c.Analyzer = c.AnalyzerConfig()
	return c
}

// AnalyzerConfig is Analyzer with the strategy's target R:R and stop cap
// applied, so fallback targets and capped stops match the engine's checks.
func (c Config) AnalyzerConfig() smc.Config {
	a := c.Analyzer
	if c.TargetRR > 0 {
		a.TargetRR = c.TargetRR
	}
	if c.MaxSLPips > 0 {
		a.MaxSLPips = c.MaxSLPips
	}
	return a
}

// Validate rejects contradictory or out-of-range parameters. All problems
// are reported together, each wrapped in ErrConfigInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrConfigInvalid}, args...)...))
	}

	if c.Instrument == "" {
		bad("instrument is required")
	}
	if c.InitialCapital <= 0 {
		bad("initial_capital must be > 0, got %g", c.InitialCapital)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		bad("min_confidence must be 0-100, got %d", c.MinConfidence)
	}
	if c.TargetRR < 0.5 {
		bad("target_rr must be >= 0.5, got %g", c.TargetRR)
	}
	if c.MaxSLPips <= 0 {
		bad("max_sl_pips must be > 0, got %g", c.MaxSLPips)
	}
	if c.SpreadPips < 0 || c.SlippagePips < 0 || c.CommissionPerLot < 0 {
		bad("costs must be >= 0")
	}
	if c.RiskPercent < 0 || c.RiskPercent > 0.1 {
		bad("risk_percent must be within 0-0.1, got %g", c.RiskPercent)
	}
	for _, w := range c.Sessions {
		if err := w.Validate(); err != nil {
			bad("%v", err)
		}
	}
	if c.SignalInterval < 1 {
		bad("signal_interval must be >= 1, got %d", c.SignalInterval)
	}
	if c.Lookback.M5 < c.Analyzer.MinLTFCandles {
		bad("lookback.m5 %d is below the analyzer minimum %d", c.Lookback.M5, c.Analyzer.MinLTFCandles)
	}
	if c.Lookback.H1 < 0 || c.Lookback.H4 < 0 {
		bad("lookbacks must be >= 0")
	}
	if c.Regime.Enabled && (c.Regime.ADXPeriod < 1 || c.Regime.MinADX < 0) {
		bad("regime filter needs adx_period >= 1 and min_adx >= 0")
	}
	if c.PartialTP.Enabled && (c.PartialTP.Fraction <= 0 || c.PartialTP.Fraction >= 1 || c.PartialTP.AtR <= 0) {
		bad("partial_tp needs 0 < fraction < 1 and at_r > 0")
	}
	if c.Breakeven.Enabled && c.Breakeven.AtR <= 0 {
		bad("breakeven.at_r must be > 0")
	}
	if c.Trailing.Enabled && (c.Trailing.AfterR <= 0 || c.Trailing.ATRPeriod < 1 || c.Trailing.ATRMultiplier <= 0) {
		bad("trailing needs after_r > 0, atr_period >= 1 and atr_multiplier > 0")
	}
	if c.LimitEntry.Enabled && c.LimitEntry.MaxBars < 1 {
		bad("limit_entry.max_bars must be >= 1, got %d", c.LimitEntry.MaxBars)
	}
	if c.EquitySampleEvery < 1 {
		bad("equity_sample_every must be >= 1, got %d", c.EquitySampleEvery)
	}
	if c.StopHuntThresholdR <= 0 {
		bad("stop_hunt_threshold_r must be > 0")
	}
	if _, err := market.QuoteToAccountRate(c.Instrument, c.AccountCurrency, 1); c.Instrument != "" && err != nil {
		bad("%v", err)
	}
	if err := c.Analyzer.Validate(); err != nil {
		bad("analyzer: %v", err)
	}
	return errors.Join(errs...)
}
