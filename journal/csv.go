package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
)

var (
	tradeHeader = []string{
		"trade_id", "instrument", "direction", "units",
		"entry_raw", "entry_price", "exit_raw", "exit_price",
		"stop_loss", "take_profit", "open_time", "close_time",
		"realized_pl", "commission", "reason", "realized_rr",
		"grade", "confidence", "mfe_r", "mae_r", "stop_hunt",
	}
	equityHeader = []string{"bar", "time", "cash", "unrealized", "equity", "open"}
)

type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	j := &CSVJournal{csv.NewWriter(tf), csv.NewWriter(ef), tf, ef}
	if err := j.write(j.trades, tradeHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.write(j.equity, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.write(j.trades, []string{
		t.TradeID,
		t.Instrument,
		t.Direction.String(),
		f(t.Units),
		f(t.EntryRaw),
		f(t.EntryPrice),
		f(t.ExitRaw),
		f(t.ExitPrice),
		f(t.StopLoss),
		f(t.TakeProfit),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		f(t.RealizedPL),
		f(t.Commission),
		t.Reason.String(),
		f(t.RealizedRR),
		t.Grade.String(),
		strconv.Itoa(t.Confidence),
		f(t.MFE),
		f(t.MAE),
		strconv.FormatBool(t.StopHunt),
	})
}

func (j *CSVJournal) RecordEquity(e backtest.EquitySample) error {
	return j.write(j.equity, []string{
		strconv.Itoa(e.Bar),
		e.Time.UTC().Format(time.RFC3339),
		f(e.Cash),
		f(e.Unrealized),
		f(e.Equity),
		strconv.FormatBool(e.Open),
	})
}

func (j *CSVJournal) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.equity.Flush()
	tErr, eErr := j.tf.Close(), j.ef.Close()
	if err := j.trades.Error(); err != nil {
		return err
	}
	if err := j.equity.Error(); err != nil {
		return err
	}
	if tErr != nil {
		return tErr
	}
	return eErr
}

// ExportCSV writes <run>_trades.csv and <run>_equity.csv into dir and
// returns both paths.
func ExportCSV(r Report, dir string) (tradesPath, equityPath string, err error) {
	tradesPath = filepath.Join(dir, r.RunID+"_trades.csv")
	equityPath = filepath.Join(dir, r.RunID+"_equity.csv")
	j, err := NewCSV(tradesPath, equityPath)
	if err != nil {
		return "", "", err
	}
	if err := Record(j, r); err != nil {
		j.Close()
		return "", "", err
	}
	return tradesPath, equityPath, j.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
