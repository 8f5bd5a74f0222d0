package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/config"
	"github.com/mglavinic86/Ai-Trader-sub000/loader"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// htfLead is the extra H1/H4 history loaded ahead of the M5 range so the
// first bars already have higher-timeframe context.
const htfLead = 30 * 24 * time.Hour

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage historical candle data",
}

var dataDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download OANDA candles into CSV files",
	Long: `Download historical mid-price candles from OANDA into <dir>/<INSTRUMENT>_<TF>.csv.
Long ranges are split into requests of at most 5000 bars.

Requires an OANDA API token in the environment (OANDA_TOKEN by default).

Example:
  smc-trader data download -i EUR_USD -i GBP_USD --from 2024-01-01 --to 2024-07-01`,
	RunE: runDataDownload,
}

var (
	dlInstruments []string
	dlTimeframes  []string
	dlFrom        string
	dlTo          string
	dlOut         string
	dlEnv         string
	dlTokenEnv    string
	dlRPS         float64
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataDownloadCmd)

	f := dataDownloadCmd.Flags()
	f.StringSliceVarP(&dlInstruments, "instrument", "i", []string{"EUR_USD"}, "instruments to download")
	f.StringSliceVar(&dlTimeframes, "tf", []string{"M5", "H1", "H4"}, "timeframes to download")
	f.StringVar(&dlFrom, "from", "", "start date YYYY-MM-DD (required)")
	f.StringVar(&dlTo, "to", "", "end date YYYY-MM-DD, exclusive (required)")
	f.StringVarP(&dlOut, "out", "o", "./data", "output directory")
	f.StringVar(&dlEnv, "env", "practice", "OANDA environment: practice or live")
	f.StringVar(&dlTokenEnv, "token-env", "OANDA_TOKEN", "environment variable holding the API token")
	f.Float64Var(&dlRPS, "rps", 10, "max requests per second")

	dataDownloadCmd.MarkFlagRequired("from")
	dataDownloadCmd.MarkFlagRequired("to")
}

func runDataDownload(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(config.DateLayout, dlFrom)
	if err != nil {
		return fmt.Errorf("bad --from: %w", err)
	}
	to, err := time.Parse(config.DateLayout, dlTo)
	if err != nil {
		return fmt.Errorf("bad --to: %w", err)
	}
	token := os.Getenv(dlTokenEnv)
	if token == "" {
		return fmt.Errorf("missing token: set %s", dlTokenEnv)
	}
	base, err := loader.BaseURL(dlEnv)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dlOut, 0755); err != nil {
		return err
	}

	provider := loader.NewOANDAProvider(base, token, dlRPS)
	dst := loader.CSVProvider{Dir: dlOut}
	out := cmd.OutOrStdout()

	for _, inst := range dlInstruments {
		for _, s := range dlTimeframes {
			tf, err := market.ParseTimeframe(s)
			if err != nil {
				return err
			}
			l := loader.New(provider,
				loader.WithLogger(log),
				loader.WithProgress(func(done, total int) {
					log.Debug().Str("instrument", inst).Str("tf", string(tf)).Int("chunk", done).Int("of", total).Msg("download")
				}),
			)
			res, err := l.Load(cmd.Context(), loader.Request{Instrument: inst, Timeframe: tf, Start: from, End: to})
			if err != nil {
				return fmt.Errorf("%s %s: %w", inst, tf, err)
			}

			path := dst.Path(inst, tf)
			n, err := writeCandles(path, inst, tf, res.Candles)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s %-3s %6d candles -> %s", good("✓"), inst, tf, n, path)
			if len(res.Missing) > 0 {
				fmt.Fprintf(out, " %s", warn(fmt.Sprintf("(%d empty chunks)", len(res.Missing))))
			}
			if sus := suspiciousGaps(res.Candles, tf); len(sus) > 0 {
				fmt.Fprintf(out, " %s", warn(fmt.Sprintf("(%d suspicious gaps, first after %s)",
					len(sus), sus[0].After.Format("2006-01-02 15:04"))))
			}
			fmt.Fprintln(out)
		}
	}
	return nil
}

func writeCandles(path, instrument string, tf market.Timeframe, candles []market.Candle) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := loader.WriteCSV(f, instrument, tf, candles)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// suspiciousGaps drops weekend closures and minor holes.
func suspiciousGaps(candles []market.Candle, tf market.Timeframe) []market.Gap {
	var out []market.Gap
	for _, g := range market.Gaps(candles, tf) {
		if g.Kind == "suspicious" {
			out = append(out, g)
		}
	}
	return out
}

func logGaps(instrument string, tf market.Timeframe, candles []market.Candle) {
	gaps := market.Gaps(candles, tf)
	if len(gaps) == 0 {
		return
	}
	missing := 0
	for _, g := range gaps {
		missing += g.Missing
	}
	ev := log.Debug()
	if sus := suspiciousGaps(candles, tf); len(sus) > 0 {
		ev = log.Warn().Time("first_suspicious", sus[0].After)
	}
	ev.Str("instrument", instrument).Str("tf", string(tf)).
		Int("gaps", len(gaps)).Int("missing_bars", missing).Msg("series has gaps")
}

// loadData loads the M5/H1/H4 history of instrument over the configured
// range, plus the M5 series of every cross-asset reference.
func loadData(ctx context.Context, cfg *config.Config, instrument string) (backtest.Data, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return backtest.Data{}, err
	}
	p, err := cfg.Provider()
	if err != nil {
		return backtest.Data{}, err
	}
	l := loader.New(p, loader.WithLogger(log))

	fetch := func(inst string, tf market.Timeframe, from time.Time, min int) ([]market.Candle, error) {
		res, err := l.Load(ctx, loader.Request{Instrument: inst, Timeframe: tf, Start: from, End: end})
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", inst, tf, err)
		}
		if err := res.Require(min); err != nil {
			return nil, err
		}
		return res.Candles, nil
	}

	var d backtest.Data
	if d.M5, err = fetch(instrument, market.M5, start, cfg.Strategy.Analyzer.MinLTFCandles); err != nil {
		return d, err
	}
	logGaps(instrument, market.M5, d.M5)

	// Missing higher timeframes are rebuilt from M5, without the lead.
	htf := func(tf market.Timeframe) ([]market.Candle, error) {
		cs, err := fetch(instrument, tf, start.Add(-htfLead), 0)
		if errors.Is(err, loader.ErrDataUnavailable) {
			log.Warn().Str("instrument", instrument).Str("tf", string(tf)).Msg("no data, resampling from M5")
			return market.Resample(d.M5, tf), nil
		}
		return cs, err
	}
	if d.H1, err = htf(market.H1); err != nil {
		return d, err
	}
	if d.H4, err = htf(market.H4); err != nil {
		return d, err
	}

	for _, ref := range cfg.Run.CrossAsset {
		cs, err := fetch(ref, market.M5, start, 1)
		if err != nil {
			log.Warn().Err(err).Str("instrument", ref).Msg("cross-asset reference unavailable")
			continue
		}
		if d.CrossAsset == nil {
			d.CrossAsset = map[string][]market.Candle{}
		}
		d.CrossAsset[ref] = cs
	}
	log.Info().
		Str("instrument", instrument).
		Int("m5", len(d.M5)).Int("h1", len(d.H1)).Int("h4", len(d.H4)).
		Int("cross_asset", len(d.CrossAsset)).
		Msg("data loaded")
	return d, nil
}
