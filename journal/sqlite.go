package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
)

var ErrNotFound = errors.New("journal: not found")

// SQLite is a Repository backed by a single database file. A handle is not
// shared between concurrent runs; open one per run.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// SaveReport writes r in one transaction, replacing any run with the same id.
func (j *SQLite) SaveReport(ctx context.Context, r Report) error {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return err
	}
	met, err := json.Marshal(r.Metrics)
	if err != nil {
		return err
	}
	orders, err := json.Marshal(r.Orders)
	if err != nil {
		return err
	}
	cross, err := json.Marshal(r.CrossAsset)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"skips", "equity", "trades", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", r.RunID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, label, created, instrument, start_time, end_time, initial_capital, final_equity,
		 trades, win_rate, return_pct, max_dd_pct, config_json, metrics_json, orders_json, cross_asset_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Label, r.Created.UTC(), r.Instrument, r.Start.UTC(), r.End.UTC(),
		r.InitialCapital, r.FinalEquity, len(r.Trades), r.Metrics.WinRate,
		r.Metrics.TotalReturnPct, r.Metrics.MaxDrawdownPct,
		string(cfg), string(met), string(orders), string(cross),
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", r.RunID, err)
	}

	ts, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, trade_id, instrument, direction, units, entry_raw, entry_price, exit_raw, exit_price,
		 stop_loss, take_profit, entry_bar, exit_bar, open_time, close_time, realized_pl, commission,
		 reason, realized_rr, grade, confidence, score, sweep_level, partial_tp, mfe_r, mae_r, stop_hunt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ts.Close()
	for _, t := range r.Trades {
		_, err := ts.ExecContext(ctx,
			r.RunID, t.TradeID, t.Instrument, t.Direction.String(), t.Units,
			t.EntryRaw, t.EntryPrice, t.ExitRaw, t.ExitPrice, t.StopLoss, t.TakeProfit,
			t.EntryBar, t.ExitBar, t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.Commission,
			t.Reason.String(), t.RealizedRR, t.Grade.String(), t.Confidence, t.Score,
			t.SweepLevel, t.PartialTP, t.MFE, t.MAE, t.StopHunt,
		)
		if err != nil {
			return fmt.Errorf("journal: insert trade %s: %w", t.TradeID, err)
		}
	}

	es, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, bar, time, cash, unrealized, equity, open)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer es.Close()
	for _, e := range r.Equity {
		if _, err := es.ExecContext(ctx, r.RunID, e.Bar, e.Time.UTC(), e.Cash, e.Unrealized, e.Equity, e.Open); err != nil {
			return err
		}
	}

	for reason, n := range r.SkipReasons {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO skips (run_id, reason, count) VALUES (?, ?, ?)",
			r.RunID, reason.String(), n,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (j *SQLite) LoadReport(ctx context.Context, runID string) (Report, error) {
	var (
		r                       Report
		trades                  int
		winRate, retPct, ddPct  float64
		cfg, met, orders, cross string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, label, created, instrument, start_time, end_time, initial_capital, final_equity,
		       trades, win_rate, return_pct, max_dd_pct, config_json, metrics_json, orders_json, cross_asset_json
		FROM runs WHERE run_id = ?`, runID,
	).Scan(
		&r.RunID, &r.Label, &r.Created, &r.Instrument, &r.Start, &r.End,
		&r.InitialCapital, &r.FinalEquity, &trades, &winRate, &retPct, &ddPct,
		&cfg, &met, &orders, &cross,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return Report{}, err
	}
	for _, doc := range []struct {
		src string
		dst any
	}{{cfg, &r.Config}, {met, &r.Metrics}, {orders, &r.Orders}, {cross, &r.CrossAsset}} {
		if err := json.Unmarshal([]byte(doc.src), doc.dst); err != nil {
			return Report{}, fmt.Errorf("journal: decode run %s: %w", runID, err)
		}
	}

	if r.Trades, err = j.ListTrades(ctx, runID); err != nil {
		return Report{}, err
	}
	if r.Equity, err = j.ListEquity(ctx, runID); err != nil {
		return Report{}, err
	}
	if r.SkipReasons, err = j.skipReasons(ctx, runID); err != nil {
		return Report{}, err
	}
	return r, nil
}

func (j *SQLite) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, label, created, instrument, start_time, end_time,
		       trades, win_rate, return_pct, max_dd_pct, final_equity
		FROM runs ORDER BY created DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(
			&s.RunID, &s.Label, &s.Created, &s.Instrument, &s.Start, &s.End,
			&s.Trades, &s.WinRate, &s.ReturnPct, &s.MaxDDPct, &s.FinalEquity,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLite) ListEquity(ctx context.Context, runID string) ([]backtest.EquitySample, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT bar, time, cash, unrealized, equity, open
		FROM equity WHERE run_id = ? ORDER BY bar`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.EquitySample
	for rows.Next() {
		var e backtest.EquitySample
		if err := rows.Scan(&e.Bar, &e.Time, &e.Cash, &e.Unrealized, &e.Equity, &e.Open); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLite) skipReasons(ctx context.Context, runID string) (backtest.Histogram, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT reason, count FROM skips WHERE run_id = ?", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	h := backtest.Histogram{}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		reason, err := backtest.ParseSkipReason(name)
		if err != nil {
			return nil, err
		}
		h[reason] = n
	}
	return h, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

var (
	_ Repository = (*SQLite)(nil)
	_ Journal    = (*CSVJournal)(nil)
)
