// Package journal persists backtest reports: JSON documents, trade CSV,
// org-mode notes and a SQLite run repository.
package journal

import (
	"context"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/metrics"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// TradeRecord is the flat, persisted form of a closed position. Raw prices
// are before costs, EntryPrice and ExitPrice after.
type TradeRecord struct {
	TradeID    string              `json:"trade_id"`
	Instrument string              `json:"instrument"`
	Direction  smc.Direction       `json:"direction"`
	Units      float64             `json:"units"`
	EntryRaw   float64             `json:"entry_raw"`
	EntryPrice float64             `json:"entry_price"`
	ExitRaw    float64             `json:"exit_raw"`
	ExitPrice  float64             `json:"exit_price"`
	StopLoss   float64             `json:"stop_loss"`
	TakeProfit float64             `json:"take_profit"`
	EntryBar   int                 `json:"entry_bar"`
	ExitBar    int                 `json:"exit_bar"`
	OpenTime   time.Time           `json:"open_time"`
	CloseTime  time.Time           `json:"close_time"`
	RealizedPL float64             `json:"realized_pl"`
	Commission float64             `json:"commission"`
	Reason     backtest.ExitReason `json:"reason"`
	RealizedRR float64             `json:"realized_rr"`

	Grade      smc.Grade `json:"grade"`
	Confidence int       `json:"confidence"`
	Score      int       `json:"score"`
	SweepLevel float64   `json:"sweep_level"`
	PartialTP  bool      `json:"partial_tp"`
	MFE        float64   `json:"mfe_r"`
	MAE        float64   `json:"mae_r"`
	StopHunt   bool      `json:"stop_hunt"`
}

func TradeRecordOf(p backtest.Position) TradeRecord {
	return TradeRecord{
		TradeID:    p.ID,
		Instrument: p.Instrument,
		Direction:  p.Direction,
		Units:      p.OriginalUnits,
		EntryRaw:   p.EntryRaw,
		EntryPrice: p.Entry,
		ExitRaw:    p.ExitRaw,
		ExitPrice:  p.Exit,
		StopLoss:   p.InitialStop,
		TakeProfit: p.TakeProfit,
		EntryBar:   p.EntryBar,
		ExitBar:    p.ExitBar,
		OpenTime:   p.EntryTime,
		CloseTime:  p.ExitTime,
		RealizedPL: p.PnL(),
		Commission: p.Commission.InexactFloat64(),
		Reason:     p.ExitReason,
		RealizedRR: p.RealizedRR,
		Grade:      p.Setup.Grade,
		Confidence: p.Setup.Confidence,
		Score:      p.Setup.Score,
		SweepLevel: p.Setup.SweepLevel,
		PartialTP:  p.PartialTPHit,
		MFE:        p.MFE,
		MAE:        p.MAE,
		StopHunt:   p.StopHunt,
	}
}

// Report is a self-contained record of one run: enough to redraw every
// chart without re-running the simulation.
type Report struct {
	RunID      string    `json:"run_id"`
	Label      string    `json:"label,omitempty"`
	Created    time.Time `json:"created"`
	Instrument string    `json:"instrument"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`

	Config         backtest.Config `json:"config"`
	InitialCapital float64         `json:"initial_capital"`
	FinalEquity    float64         `json:"final_equity"`

	Trades      []TradeRecord            `json:"trades"`
	Equity      []backtest.EquitySample  `json:"equity"`
	Orders      []backtest.OrderRecord   `json:"orders,omitempty"`
	Metrics     metrics.Metrics          `json:"metrics"`
	SkipReasons backtest.Histogram       `json:"skip_reasons"`
	CrossAsset  []backtest.CrossAssetRef `json:"cross_asset,omitempty"`
}

func NewReport(res *backtest.Result, m metrics.Metrics, label string, created time.Time) Report {
	r := Report{
		RunID:          res.RunID,
		Label:          label,
		Created:        created.UTC(),
		Instrument:     res.Instrument,
		Start:          res.Start,
		End:            res.End,
		Config:         res.Config,
		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity,
		Trades:         make([]TradeRecord, len(res.Trades)),
		Equity:         res.Equity,
		Orders:         res.Orders,
		Metrics:        m,
		SkipReasons:    res.SkipReasons,
		CrossAsset:     res.CrossAsset,
	}
	for i, p := range res.Trades {
		r.Trades[i] = TradeRecordOf(p)
	}
	return r
}

// RunSummary is one row of the run index.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Label       string    `json:"label"`
	Created     time.Time `json:"created"`
	Instrument  string    `json:"instrument"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Trades      int       `json:"trades"`
	WinRate     float64   `json:"win_rate"`
	ReturnPct   float64   `json:"return_pct"`
	MaxDDPct    float64   `json:"max_dd_pct"`
	FinalEquity float64   `json:"final_equity"`
}

// Journal receives trades and equity samples as a run streams them out.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(backtest.EquitySample) error
	Close() error
}

// Repository stores whole reports. Every run or job opens its own.
type Repository interface {
	SaveReport(ctx context.Context, r Report) error
	LoadReport(ctx context.Context, runID string) (Report, error)
	ListRuns(ctx context.Context) ([]RunSummary, error)
	Close() error
}

// Record streams a report's trades and equity into j.
func Record(j Journal, r Report) error {
	for _, t := range r.Trades {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	for _, e := range r.Equity {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}
