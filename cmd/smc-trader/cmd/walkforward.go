package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/walkforward"
)

var walkforwardCmd = &cobra.Command{
	Use:     "walkforward",
	Aliases: []string{"wf"},
	Short:   "Walk-forward validation with Monte Carlo resampling",
	Long: `Walkforward splits the loaded history into consecutive buffer/train/test
windows ending at the last candle, backtests each train and test period
independently, pools the out-of-sample trades and resamples them.

The configured run range must cover windows x (buffer+train+test) days.

Example:
  smc-trader walkforward -c smc.yaml --windows 6 --mc 5000`,
	RunE: runWalkforward,
}

var (
	wfWindows    int
	wfIterations int
	wfSeed       int64
	wfOut        string
)

func init() {
	rootCmd.AddCommand(walkforwardCmd)

	f := walkforwardCmd.Flags()
	f.IntVar(&wfWindows, "windows", 0, "override walk_forward.windows")
	f.IntVar(&wfIterations, "mc", -1, "override walk_forward.mc_iterations")
	f.Int64Var(&wfSeed, "seed", 0, "override walk_forward.seed")
	f.StringVarP(&wfOut, "out", "o", "", "write the full result as JSON")
}

func runWalkforward(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	wc := cfg.WalkForwardConfig()
	if wfWindows > 0 {
		wc.Windows = wfWindows
	}
	if wfIterations >= 0 {
		wc.MCIterations = wfIterations
	}
	if wfSeed != 0 {
		wc.Seed = wfSeed
	}

	eng, err := backtest.NewEngine(cfg.Backtest(), backtest.WithLogger(log))
	if err != nil {
		return err
	}
	v, err := walkforward.NewValidator(eng, wc, walkforward.WithLogger(log))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	data, err := loadData(ctx, cfg, cfg.Run.Instrument)
	if err != nil {
		return err
	}
	res, err := v.Run(ctx, data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, res.Summary())
	fmt.Fprintln(out)
	printVerdict(out, res.Verdict)

	if wfOut != "" {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(wfOut, b, 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s wrote %s\n", good("✓"), wfOut)
	}
	return nil
}
