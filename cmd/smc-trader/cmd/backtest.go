package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/journal"
	"github.com/mglavinic86/Ai-Trader-sub000/metrics"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the SMC strategy on one instrument",
	Long: `Backtest replays the configured date range bar by bar on M5 with H1/H4
context, prints the metrics and writes the report formats enabled in the
config (json, org, csv, sqlite, prom).

Example:
  smc-trader backtest -c smc.yaml -i GBP_USD --min-grade A --label gbp-a`,
	RunE: runBacktest,
}

var (
	btInstrument string
	btMinGrade   string
	btLabel      string
	btFormats    []string
	btReportDir  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVarP(&btInstrument, "instrument", "i", "", "override run.instrument")
	f.StringVar(&btMinGrade, "min-grade", "", "override strategy.min_grade (B, A, A+)")
	f.StringVar(&btLabel, "label", "", "free-form label stored with the report")
	f.StringSliceVar(&btFormats, "format", nil, "override report.formats (json, org, csv, sqlite, prom)")
	f.StringVar(&btReportDir, "report-dir", "", "override report.dir")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if btInstrument != "" {
		cfg.Run.Instrument = btInstrument
	}
	if btMinGrade != "" {
		if cfg.Strategy.MinGrade, err = smc.ParseGrade(btMinGrade); err != nil {
			return fmt.Errorf("--min-grade: %w", err)
		}
	}
	if cmd.Flags().Changed("format") {
		cfg.Report.Formats = btFormats
	}
	if btReportDir != "" {
		cfg.Report.Dir = btReportDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	data, err := loadData(ctx, cfg, cfg.Run.Instrument)
	if err != nil {
		return err
	}

	eng, err := backtest.NewEngine(cfg.Backtest(), backtest.WithLogger(log))
	if err != nil {
		return err
	}
	began := time.Now()
	res, err := eng.Run(ctx, data)
	if err != nil {
		return err
	}
	m := metrics.Calculate(res)

	out := cmd.OutOrStdout()
	printMetrics(out, fmt.Sprintf("BACKTEST %s %s..%s (%s)", res.Instrument,
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"), time.Since(began).Round(time.Millisecond)), m)
	for _, ref := range res.CrossAsset {
		fmt.Fprintf(out, "  ref %-8s %s over %d bars\n", ref.Instrument, signed("%+.2f%%", ref.ReturnPct), ref.Bars)
	}

	rep := journal.NewReport(res, m, btLabel, time.Now())
	files, err := writeReports(ctx, cfg, res, rep)
	for _, f := range files {
		fmt.Fprintf(out, "%s wrote %s\n", good("✓"), f)
	}
	return err
}
