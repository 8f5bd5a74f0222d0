package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// Canonical candle CSV (single OHLC set):
// time,instrument,granularity,complete,volume,o,h,l,c
var csvHeader = []string{"time", "instrument", "granularity", "complete", "volume", "o", "h", "l", "c"}

// WriteCSV writes candles in the canonical CSV layout.
func WriteCSV(w io.Writer, instrument string, tf market.Timeframe, candles []market.Candle) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	written := 0
	for _, c := range candles {
		row := []string{
			c.Time.UTC().Format(time.RFC3339),
			instrument,
			string(tf),
			"true",
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return written, err
		}
		written++
	}

	cw.Flush()
	return written, cw.Error()
}

// ReadCSV parses the canonical CSV layout. Incomplete candles are skipped.
func ReadCSV(r io.Reader) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimSpace(head[0]) != "time" {
		return nil, fmt.Errorf("unexpected header %v", head)
	}

	var out []market.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec[3] == "false" {
			continue
		}

		c, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseRow(rec []string) (market.Candle, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return market.Candle{}, err
	}

	var f [5]float64
	for i, s := range []string{rec[4], rec[5], rec[6], rec[7], rec[8]} {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return market.Candle{}, err
		}
		f[i] = v
	}

	return market.Candle{
		Time:   ts.UTC(),
		Volume: f[0],
		Open:   f[1],
		High:   f[2],
		Low:    f[3],
		Close:  f[4],
	}, nil
}

// CSVProvider serves candles from files named <INSTRUMENT>_<TF>.csv in Dir.
type CSVProvider struct {
	Dir string
}

// Path returns the file backing instrument and tf.
func (p CSVProvider) Path(instrument string, tf market.Timeframe) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s_%s.csv", instrument, tf))
}

func (p CSVProvider) Fetch(ctx context.Context, instrument string, tf market.Timeframe, start, end time.Time) ([]market.Candle, error) {
	f, err := os.Open(p.Path(instrument, tf))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return market.Between(market.Normalize(all), start, end), nil
}
