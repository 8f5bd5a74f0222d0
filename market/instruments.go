package market

import (
	"math"
	"strings"
)

type InstrumentMeta struct {
	Name              string
	BaseCurrency      string
	QuoteCurrency     string
	PipLocation       int
	DefaultSpreadPips float64
	MaxSLPips         float64
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4, DefaultSpreadPips: 1.2, MaxSLPips: 30},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4, DefaultSpreadPips: 1.8, MaxSLPips: 35},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4, DefaultSpreadPips: 1.4, MaxSLPips: 30},
	"NZD_USD": {Name: "NZD_USD", BaseCurrency: "NZD", QuoteCurrency: "USD", PipLocation: -4, DefaultSpreadPips: 1.8, MaxSLPips: 30},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2, DefaultSpreadPips: 1.3, MaxSLPips: 30},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4, DefaultSpreadPips: 1.6, MaxSLPips: 30},
	"USD_CAD": {Name: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4, DefaultSpreadPips: 1.8, MaxSLPips: 30},
	"XAU_USD": {Name: "XAU_USD", BaseCurrency: "XAU", QuoteCurrency: "USD", PipLocation: -1, DefaultSpreadPips: 3.0, MaxSLPips: 80},
	"BTC_USD": {Name: "BTC_USD", BaseCurrency: "BTC", QuoteCurrency: "USD", PipLocation: 0, DefaultSpreadPips: 30, MaxSLPips: 600},
}

// Lookup returns metadata for instrument, deriving it from the symbol when
// the instrument is not in the table.
func Lookup(instrument string) InstrumentMeta {
	if m, ok := Instruments[instrument]; ok {
		return m
	}

	m := InstrumentMeta{Name: instrument, PipLocation: -4, DefaultSpreadPips: 1.5, MaxSLPips: 30}
	if base, quote, ok := strings.Cut(instrument, "_"); ok {
		m.BaseCurrency, m.QuoteCurrency = base, quote
	}
	switch {
	case strings.Contains(instrument, "XAU"):
		m.PipLocation = -1
	case strings.Contains(instrument, "BTC"), strings.Contains(instrument, "ETH"):
		m.PipLocation = 0
	case strings.Contains(instrument, "JPY"):
		m.PipLocation = -2
	}
	return m
}

// PipSize returns the price increment of one pip for instrument.
func PipSize(instrument string) float64 {
	return math.Pow(10, float64(Lookup(instrument).PipLocation))
}

// ToPips converts a price distance to pips.
func ToPips(instrument string, delta float64) float64 {
	return delta / PipSize(instrument)
}

// FromPips converts pips to a price distance.
func FromPips(instrument string, pips float64) float64 {
	return pips * PipSize(instrument)
}
