package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

const tradeColumns = `trade_id, instrument, direction, units, entry_raw, entry_price, exit_raw, exit_price,
	stop_loss, take_profit, entry_bar, exit_bar, open_time, close_time, realized_pl, commission,
	reason, realized_rr, grade, confidence, score, sweep_level, partial_tp, mfe_r, mae_r, stop_hunt`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var (
		t                  TradeRecord
		dir, reason, grade string
	)
	err := s.Scan(
		&t.TradeID, &t.Instrument, &dir, &t.Units, &t.EntryRaw, &t.EntryPrice, &t.ExitRaw, &t.ExitPrice,
		&t.StopLoss, &t.TakeProfit, &t.EntryBar, &t.ExitBar, &t.OpenTime, &t.CloseTime, &t.RealizedPL, &t.Commission,
		&reason, &t.RealizedRR, &grade, &t.Confidence, &t.Score, &t.SweepLevel, &t.PartialTP, &t.MFE, &t.MAE, &t.StopHunt,
	)
	if err != nil {
		return TradeRecord{}, err
	}
	if err := t.Direction.UnmarshalText([]byte(dir)); err != nil {
		return TradeRecord{}, err
	}
	if err := t.Reason.UnmarshalText([]byte(reason)); err != nil {
		return TradeRecord{}, err
	}
	if err := t.Grade.UnmarshalText([]byte(grade)); err != nil {
		return TradeRecord{}, err
	}
	return t, nil
}

func (j *SQLite) queryTrades(ctx context.Context, where string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTrade returns one trade of a run.
func (j *SQLite) GetTrade(ctx context.Context, runID, tradeID string) (TradeRecord, error) {
	row := j.db.QueryRowContext(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE run_id = ? AND trade_id = ?", runID, tradeID)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("%w: trade %s/%s", ErrNotFound, runID, tradeID)
	}
	return t, err
}

// ListTrades returns a run's trades in entry order.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	return j.queryTrades(ctx, "run_id = ? ORDER BY entry_bar, trade_id", runID)
}

// ListTradesClosedBetween returns trades of every run closed in [start, end).
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(ctx, "close_time >= ? AND close_time < ? ORDER BY close_time, trade_id",
		start.UTC(), end.UTC())
}

// ListTradesByGrade returns every stored trade of grade g.
func (j *SQLite) ListTradesByGrade(ctx context.Context, g smc.Grade) ([]TradeRecord, error) {
	return j.queryTrades(ctx, "grade = ? ORDER BY close_time, trade_id", g.String())
}
