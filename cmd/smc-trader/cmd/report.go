package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/config"
	"github.com/mglavinic86/Ai-Trader-sub000/journal"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored backtest reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report.json | run-id>",
	Short: "Print the summary of a JSON report or a SQLite run",
	Long: `Show loads a report and prints its metrics. A .json argument is read as a
report file; anything else is a run id looked up in --db.

Examples:
  smc-trader report show reports/01HV6Z3Q.json
  smc-trader report show --db reports/runs.db 01HV6Z3Q --trades`,
	Args: cobra.ExactArgs(1),
	RunE: runReportShow,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs stored in a SQLite database",
	RunE:  runReportList,
}

var reportTradesCmd = &cobra.Command{
	Use:   "trades [run-id]",
	Short: "Query trades stored in a SQLite database",
	Long: `Trades lists stored trades. With a run id it lists that run, or the single
trade named by --id. Without one it searches every run, by --grade or by
close time with --from/--to (--to is exclusive and defaults to now).

Examples:
  smc-trader report trades 01HV6Z3Q
  smc-trader report trades 01HV6Z3Q --id 01HV6Z4A
  smc-trader report trades --grade A+
  smc-trader report trades --from 2024-03-01 --to 2024-04-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReportTrades,
}

var (
	rpDB     string
	rpTrades bool
	rpOrg    bool

	rpTradeID string
	rpGrade   string
	rpFrom    string
	rpTo      string
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportShowCmd, reportListCmd, reportTradesCmd)

	reportCmd.PersistentFlags().StringVar(&rpDB, "db", "./reports/runs.db", "SQLite run database")
	reportShowCmd.Flags().BoolVar(&rpTrades, "trades", false, "also list every trade")
	reportShowCmd.Flags().BoolVar(&rpOrg, "org", false, "print the org-mode document instead")

	f := reportTradesCmd.Flags()
	f.StringVar(&rpTradeID, "id", "", "trade id within the run")
	f.StringVar(&rpGrade, "grade", "", "setup grade: A+, A or B")
	f.StringVar(&rpFrom, "from", "", "closed on or after YYYY-MM-DD")
	f.StringVar(&rpTo, "to", "", "closed before YYYY-MM-DD")
}

func loadReport(cmd *cobra.Command, arg string) (journal.Report, error) {
	if strings.HasSuffix(strings.ToLower(arg), ".json") {
		return journal.LoadJSON(arg)
	}
	db, err := journal.NewSQLite(rpDB)
	if err != nil {
		return journal.Report{}, err
	}
	defer db.Close()
	return db.LoadReport(cmd.Context(), arg)
}

func runReportShow(cmd *cobra.Command, args []string) error {
	r, err := loadReport(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if rpOrg {
		return journal.WriteOrg(out, r)
	}

	title := fmt.Sprintf("RUN %s %s %s..%s", r.RunID, r.Instrument, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	if r.Label != "" {
		title += " [" + r.Label + "]"
	}
	printMetrics(out, title, r.Metrics)

	if rpTrades && len(r.Trades) > 0 {
		fmt.Fprintln(out)
		return writeTrades(out, r.Trades)
	}
	return nil
}

func writeTrades(w io.Writer, trades []journal.TradeRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRADE\tINSTRUMENT\tOPENED\tDIR\tGRADE\tENTRY\tEXIT\tREASON\tR\tP/L\t")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.5f\t%.5f\t%s\t%.2f\t%s\t\n",
			t.TradeID, t.Instrument, t.OpenTime.Format("2006-01-02 15:04"), t.Direction, t.Grade,
			t.EntryPrice, t.ExitPrice, t.Reason, t.RealizedRR, signed("%+.2f", t.RealizedPL))
	}
	return tw.Flush()
}

func runReportTrades(cmd *cobra.Command, args []string) error {
	db, err := journal.NewSQLite(rpDB)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	var trades []journal.TradeRecord
	switch {
	case rpTradeID != "":
		if len(args) == 0 {
			return errors.New("--id needs a run id")
		}
		t, err := db.GetTrade(ctx, args[0], rpTradeID)
		if err != nil {
			return err
		}
		trades = []journal.TradeRecord{t}
	case len(args) == 1:
		trades, err = db.ListTrades(ctx, args[0])
	case rpGrade != "":
		g, perr := smc.ParseGrade(rpGrade)
		if perr != nil {
			return perr
		}
		trades, err = db.ListTradesByGrade(ctx, g)
	case rpFrom != "" || rpTo != "":
		from, to, perr := closeRange(rpFrom, rpTo)
		if perr != nil {
			return perr
		}
		trades, err = db.ListTradesClosedBetween(ctx, from, to)
	default:
		return errors.New("give a run id, --grade or --from/--to")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(trades) == 0 {
		fmt.Fprintln(out, warn("no matching trades"))
		return nil
	}
	return writeTrades(out, trades)
}

func closeRange(from, to string) (time.Time, time.Time, error) {
	var start time.Time
	end := time.Now().UTC()
	var err error
	if from != "" {
		if start, err = time.Parse(config.DateLayout, from); err != nil {
			return start, end, fmt.Errorf("bad --from: %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(config.DateLayout, to); err != nil {
			return start, end, fmt.Errorf("bad --to: %w", err)
		}
	}
	return start, end, nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	db, err := journal.NewSQLite(rpDB)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tINSTRUMENT\tLABEL\tTRADES\tWIN%\tRETURN%\tDD%\t")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.1f\t%s\t%.2f\t\n",
			r.RunID, r.Created.Format("2006-01-02 15:04"), r.Instrument, r.Label,
			r.Trades, r.WinRate, signed("%+.2f", r.ReturnPct), r.MaxDDPct)
	}
	return tw.Flush()
}
