package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/config"
)

var rootCmd = &cobra.Command{
	Use:   "smc-trader",
	Short: "Backtest and validate a smart-money-concepts FX strategy",
	Long: `smc-trader replays historical M5/H1/H4 candles through a market-structure
strategy (liquidity sweep, change of character, FVG/order block entry),
simulates execution with spread, slippage and commission, and validates
the result with walk-forward windows and Monte Carlo resampling.

It provides tools for:
  - Downloading candles from OANDA into CSV files
  - Backtesting one instrument and writing JSON/org/CSV/SQLite reports
  - Walk-forward validation with a robustness verdict
  - Parallel parameter suites across instruments and grade thresholds`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	log = zerolog.Nop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON instead of console text")
}

func setup(cmd *cobra.Command, args []string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	out := cmd.ErrOrStderr()
	if logJSON {
		log = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	}
	return nil
}

// loadConfig reads --config or falls back to the defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadFromFile(cfgFile)
}
