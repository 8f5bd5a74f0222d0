package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tp, ep := filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv")
	j, err := NewCSV(tp, ep)
	require.NoError(t, err)

	require.NoError(t, j.RecordTrade(sampleTrade("T1", 40, 340, backtest.ExitTakeProfit)))
	require.NoError(t, j.RecordEquity(backtest.EquitySample{Bar: 3, Time: t0, Cash: 50000, Unrealized: -12.5, Equity: 49987.5, Open: true}))
	require.NoError(t, j.Close())

	trades := readCSV(t, tp)
	require.Len(t, trades, 2)
	assert.Equal(t, tradeHeader, trades[0])
	row := trades[1]
	assert.Equal(t, "T1", row[0])
	assert.Equal(t, "LONG", row[2])
	assert.Equal(t, "150000.000000", row[3])
	assert.Equal(t, "2024-03-05T11:20:00Z", row[10])
	assert.Equal(t, "340.000000", row[12])
	assert.Equal(t, "TAKE_PROFIT", row[14])
	assert.Equal(t, "A", row[16])
	assert.Equal(t, "82", row[17])
	assert.Equal(t, "false", row[20])

	equity := readCSV(t, ep)
	require.Len(t, equity, 2)
	assert.Equal(t, equityHeader, equity[0])
	assert.Equal(t, []string{"3", "2024-03-05T08:00:00Z", "50000.000000", "-12.500000", "49987.500000", "true"}, equity[1])
}

func TestNewCSV_BadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "t.csv"), filepath.Join(dir, "e.csv"))
	assert.Error(t, err)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := sampleReport()
	tp, ep, err := ExportCSV(r, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "01HTESTRUN_trades.csv"), tp)

	assert.Len(t, readCSV(t, tp), 3)
	assert.Len(t, readCSV(t, ep), 4)
}
