package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a candle granularity string such as "M5" or "H4".
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
)

var durations = map[Timeframe]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
}

// ParseTimeframe normalizes user input ("m5", "D") into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if tf == "D" {
		tf = D1
	}
	if _, ok := durations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the bar length, or 0 for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration { return durations[tf] }

// BarsPerDay is the number of bars in a 24h calendar day.
func (tf Timeframe) BarsPerDay() int {
	d := tf.Duration()
	if d == 0 {
		return 0
	}
	return int((24 * time.Hour) / d)
}
