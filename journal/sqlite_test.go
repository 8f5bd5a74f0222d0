package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	for _, table := range []string{"runs", "trades", "equity", "skips"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteSaveLoadReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	want := sampleReport()
	require.NoError(t, j.SaveReport(ctx, want))

	got, err := j.LoadReport(ctx, want.RunID)
	require.NoError(t, err)

	assert.Equal(t, want.Label, got.Label)
	assert.True(t, want.Created.Equal(got.Created))
	assert.True(t, want.Start.Equal(got.Start))
	assert.True(t, want.End.Equal(got.End))
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.FinalEquity, got.FinalEquity)
	assert.Equal(t, want.SkipReasons, got.SkipReasons)
	assert.Equal(t, want.Orders[0].Outcome, got.Orders[0].Outcome)
	assert.Equal(t, want.CrossAsset, got.CrossAsset)
	assert.Equal(t, want.Metrics.Grades, got.Metrics.Grades)

	require.Len(t, got.Trades, 2)
	for i := range want.Trades {
		w, g := want.Trades[i], got.Trades[i]
		assert.True(t, w.OpenTime.Equal(g.OpenTime))
		assert.True(t, w.CloseTime.Equal(g.CloseTime))
		g.OpenTime, g.CloseTime = w.OpenTime, w.CloseTime
		assert.Equal(t, w, g)
	}

	require.Len(t, got.Equity, 3)
	assert.Equal(t, 50120.0, got.Equity[1].Equity)
	assert.True(t, got.Equity[1].Open)
	assert.Equal(t, 287, got.Equity[2].Bar)
}

func TestSQLiteSaveReplacesRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	r := sampleReport()
	require.NoError(t, j.SaveReport(ctx, r))
	r.Trades = r.Trades[:1]
	r.Label = "rerun"
	require.NoError(t, j.SaveReport(ctx, r))

	got, err := j.LoadReport(ctx, r.RunID)
	require.NoError(t, err)
	assert.Equal(t, "rerun", got.Label)
	assert.Len(t, got.Trades, 1)

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteLoadReport_NotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	_, err := j.LoadReport(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	older := sampleReport()
	newer := sampleReport()
	newer.RunID = "01HNEWER"
	newer.Created = older.Created.Add(time.Hour)
	newer.Trades = nil
	require.NoError(t, j.SaveReport(ctx, older))
	require.NoError(t, j.SaveReport(ctx, newer))

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "01HNEWER", runs[0].RunID)
	assert.Equal(t, 0, runs[0].Trades)
	assert.Equal(t, older.RunID, runs[1].RunID)
	assert.Equal(t, 2, runs[1].Trades)
	assert.Equal(t, 50.0, runs[1].WinRate)
	assert.Equal(t, "EUR_USD", runs[1].Instrument)
}

func TestSQLiteGetTrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.SaveReport(ctx, sampleReport()))

	tr, err := j.GetTrade(ctx, "01HTESTRUN", "T2")
	require.NoError(t, err)
	assert.Equal(t, backtest.ExitStopLoss, tr.Reason)
	assert.Equal(t, -150.0, tr.RealizedPL)
	assert.True(t, tr.StopHunt)

	_, err = j.GetTrade(ctx, "01HTESTRUN", "T9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.SaveReport(ctx, sampleReport()))

	// T1 closes at bar 50, T2 at bar 100.
	start := t0.Add(50 * 5 * time.Minute)
	end := t0.Add(100 * 5 * time.Minute)
	trades, err := j.ListTradesClosedBetween(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "T1", trades[0].TradeID)

	trades, err = j.ListTradesClosedBetween(ctx, start, end.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestSQLiteListTradesByGrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.SaveReport(ctx, sampleReport()))

	a, err := j.ListTradesByGrade(ctx, smc.GradeA)
	require.NoError(t, err)
	assert.Len(t, a, 2)

	aplus, err := j.ListTradesByGrade(ctx, smc.GradeAPlus)
	require.NoError(t, err)
	assert.Empty(t, aplus)
}
