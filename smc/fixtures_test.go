package smc

import (
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

const inst = "EUR_USD"

var (
	monday  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

// ohlc candles in pips above 1.09, e.g. 75 -> 1.0975.
type ohlc struct{ o, h, l, c float64 }

func px(pips float64) float64 { return 1.09 + pips/10000 }

func series(start time.Time, tf market.Timeframe, bars []ohlc) []market.Candle {
	out := make([]market.Candle, len(bars))
	for i, b := range bars {
		out[i] = market.Candle{
			Time: start.Add(time.Duration(i) * tf.Duration()),
			Open: px(b.o), High: px(b.h), Low: px(b.l), Close: px(b.c),
		}
	}
	return out
}

// sweepH1 is 30 flat hours with one long lower wick at 10:00 Monday that
// leaves a swing low (and London low) at 1.0950.
func sweepH1() []market.Candle {
	bars := make([]ohlc, 30)
	for i := range bars {
		bars[i] = ohlc{105, 110, 100, 105}
	}
	bars[10].l = 50
	return series(monday, market.H1, bars)
}

// longSetupM5 is the M5 path on Tuesday: a quiet range, a lower-high
// lower-low leg that sweeps 1.0950 at bar 28, a bullish reversal, a
// displacement that closes above the last lower high and a retrace into
// the resulting fair value gap.
func longSetupM5() []ohlc {
	bars := make([]ohlc, 0, 34)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			bars = append(bars, ohlc{75, 78, 72, 76})
		} else {
			bars = append(bars, ohlc{76, 78, 72, 75})
		}
	}
	return append(bars,
		ohlc{75, 85, 73, 80}, // 20 swing high
		ohlc{80, 81, 68, 70},
		ohlc{70, 72, 62, 64},
		ohlc{64, 66, 58, 60}, // 23 swing low
		ohlc{62, 75, 61, 73},
		ohlc{73, 78, 68, 76}, // 25 lower high
		ohlc{76, 77, 63, 65},
		ohlc{65, 67, 55, 57},
		ohlc{57, 60, 45, 56}, // 28 sweep of 1.0950, lower low
		ohlc{56, 66, 54, 65}, // reversal
		ohlc{65, 72, 63, 71},
		ohlc{71, 96, 70, 95}, // 31 displacement, CHoCH
		ohlc{95, 99, 85, 90},
		ohlc{90, 92, 79, 81}, // 33 retrace into FVG 1.0972-1.0985
	)
}

// bearishH4 is a falling H4 series with two lower highs and two lower lows.
func bearishH4() []market.Candle {
	const step = 0.0005
	out := make([]market.Candle, 30)
	start := monday.AddDate(0, 0, -6)
	for i := range out {
		mid := 1.2 - float64(i)*step
		c := market.Candle{Time: start.Add(time.Duration(i) * 4 * time.Hour), Open: mid, Close: mid, High: mid + 0.001, Low: mid - 0.001}
		switch i {
		case 8, 18:
			c.High += 0.01
		case 12, 22:
			c.Low -= 0.01
		}
		out[i] = c
	}
	return out
}

func longInput() Input {
	return Input{Instrument: inst, H1: sweepH1(), M5: series(tuesday.Add(6*time.Hour), market.M5, longSetupM5())}
}
