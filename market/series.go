package market

import (
	"fmt"
	"sort"
	"time"
)

// Normalize sorts candles by time and drops duplicate timestamps. The first
// occurrence of a timestamp wins, so re-fetched chunk boundaries are
// discarded idempotently.
func Normalize(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i := range out {
		if n > 0 && out[i].Time.Equal(out[n-1].Time) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// Validate checks ordering and OHLC consistency.
func Validate(candles []Candle) error {
	for i, c := range candles {
		if c.High < c.Low || c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			return fmt.Errorf("%w: candle %d at %s has inconsistent OHLC", ErrMalformedCandles, i, c.Time.Format(time.RFC3339))
		}
		if i > 0 && !c.Time.After(candles[i-1].Time) {
			return fmt.Errorf("%w: candle %d at %s is not after %s", ErrMalformedCandles, i,
				c.Time.Format(time.RFC3339), candles[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Completed returns the prefix of candles whose bar has closed by cutoff.
// Candles must be sorted.
func Completed(candles []Candle, tf Timeframe, cutoff time.Time) []Candle {
	d := tf.Duration()
	n := sort.Search(len(candles), func(i int) bool {
		return candles[i].Time.Add(d).After(cutoff)
	})
	return candles[:n]
}

// Between returns candles with start <= Time < end. Candles must be sorted.
func Between(candles []Candle, start, end time.Time) []Candle {
	lo := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(start) })
	hi := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(end) })
	if hi < lo {
		hi = lo
	}
	return candles[lo:hi]
}

// Tail returns at most the last n candles.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// Resample aggregates sorted candles into a coarser timeframe. Buckets are
// aligned to the unix epoch; buckets with no source candles are skipped.
func Resample(candles []Candle, to Timeframe) []Candle {
	d := to.Duration()
	if d == 0 {
		return nil
	}

	var out []Candle
	for _, c := range candles {
		bucket := c.Time.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Time.Equal(bucket) {
			b := &out[n-1]
			if c.High > b.High {
				b.High = c.High
			}
			if c.Low < b.Low {
				b.Low = c.Low
			}
			b.Close = c.Close
			b.Volume += c.Volume
			continue
		}
		out = append(out, Candle{
			Time:   bucket,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return out
}

type Gap struct {
	After   time.Time // last candle before the gap
	Missing int       // number of missing bars
	Kind    string    // weekend, suspicious or minor
}

// Gaps reports holes in a sorted series.
func Gaps(candles []Candle, tf Timeframe) []Gap {
	d := tf.Duration()
	if d == 0 {
		return nil
	}

	var gaps []Gap
	for i := 1; i < len(candles); i++ {
		delta := candles[i].Time.Sub(candles[i-1].Time)
		if delta <= d {
			continue
		}
		missing := int(delta/d) - 1
		gaps = append(gaps, Gap{
			After:   candles[i-1].Time,
			Missing: missing,
			Kind:    classifyGap(candles[i-1].Time, delta-d),
		})
	}
	return gaps
}

func classifyGap(start time.Time, span time.Duration) string {
	wd := start.Weekday()
	if span >= 24*time.Hour {
		if wd == time.Friday || wd == time.Saturday || wd == time.Sunday {
			return "weekend"
		}
		return "suspicious"
	}
	if span >= 10*time.Minute {
		return "suspicious"
	}
	return "minor"
}
