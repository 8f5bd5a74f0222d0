// Package walkforward validates the strategy on rolling train/test windows
// and stresses the pooled out-of-sample trades with Monte Carlo reshuffles.
package walkforward

import (
	"errors"
	"fmt"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

const day = 24 * time.Hour

type Config struct {
	Windows      int   `json:"windows" yaml:"windows"`
	TrainDays    int   `json:"train_days" yaml:"train_days"`
	TestDays     int   `json:"test_days" yaml:"test_days"`
	BufferDays   int   `json:"buffer_days" yaml:"buffer_days"`
	MCIterations int   `json:"mc_iterations" yaml:"mc_iterations"`
	Seed         int64 `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{Windows: 4, TrainDays: 45, TestDays: 15, BufferDays: 20, MCIterations: 1000, Seed: 42}
}

func (c Config) Validate() error {
	var errs []error
	if c.Windows < 1 {
		errs = append(errs, fmt.Errorf("windows must be >= 1, got %d", c.Windows))
	}
	if c.TrainDays < 1 || c.TestDays < 1 {
		errs = append(errs, fmt.Errorf("train_days and test_days must be >= 1, got %d/%d", c.TrainDays, c.TestDays))
	}
	if c.BufferDays < 0 {
		errs = append(errs, fmt.Errorf("buffer_days must be >= 0, got %d", c.BufferDays))
	}
	if c.MCIterations < 0 {
		errs = append(errs, fmt.Errorf("mc_iterations must be >= 0, got %d", c.MCIterations))
	}
	return errors.Join(errs...)
}

// Span is the calendar length one window occupies.
func (c Config) Span() time.Duration {
	return time.Duration(c.BufferDays+c.TrainDays+c.TestDays) * day
}

// Window is one buffer/train/test block. All ranges are half open.
type Window struct {
	Index       int       `json:"index"`
	BufferStart time.Time `json:"buffer_start"`
	TrainStart  time.Time `json:"train_start"`
	TrainEnd    time.Time `json:"train_end"`
	TestStart   time.Time `json:"test_start"`
	TestEnd     time.Time `json:"test_end"`
}

func (w Window) String() string {
	const f = "2006-01-02"
	return fmt.Sprintf("#%d train %s..%s test %s..%s", w.Index,
		w.TrainStart.Format(f), w.TrainEnd.Format(f), w.TestStart.Format(f), w.TestEnd.Format(f))
}

// BuildWindows lays out c.Windows contiguous blocks that end at end. Each
// block is buffer, train, test; the test of window k ends where the buffer
// of window k+1 starts.
func BuildWindows(first, end time.Time, c Config) ([]Window, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	start := end.Add(-time.Duration(c.Windows) * c.Span())
	if start.Before(first) {
		return nil, fmt.Errorf("%w: %d windows of %s need data from %s, have %s",
			market.ErrDataInsufficient, c.Windows, c.Span(), start.Format(time.RFC3339), first.Format(time.RFC3339))
	}

	out := make([]Window, c.Windows)
	for k := range out {
		bs := start.Add(time.Duration(k) * c.Span())
		ts := bs.Add(time.Duration(c.BufferDays) * day)
		te := ts.Add(time.Duration(c.TrainDays) * day)
		out[k] = Window{
			Index:       k + 1,
			BufferStart: bs,
			TrainStart:  ts,
			TrainEnd:    te,
			TestStart:   te,
			TestEnd:     te.Add(time.Duration(c.TestDays) * day),
		}
	}
	return out, nil
}
