package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  smc-trader config init -o smc.yaml
  smc-trader config validate -f smc.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "smc.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Created default configuration: %s\n", good("✓"), configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  smc-trader backtest -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Configuration valid: %s\n", good("✓"), configValidatePath)
	fmt.Fprintf(out, "  Run: %s %s..%s via %s\n", cfg.Run.Instrument, cfg.Run.Start, cfg.Run.End, cfg.Run.Provider)
	fmt.Fprintf(out, "  Account: $%.2f %s\n", cfg.Account.InitialCapital, cfg.Account.Currency)
	risk := "tiered"
	if cfg.Strategy.RiskPercent > 0 {
		risk = fmt.Sprintf("%.2f%%", cfg.Strategy.RiskPercent*100)
	}
	fmt.Fprintf(out, "  Strategy: min grade %s, min confidence %d, R:R %.1f, risk %s\n",
		cfg.Strategy.MinGrade, cfg.Strategy.MinConfidence, cfg.Strategy.TargetRR, risk)
	return nil
}
