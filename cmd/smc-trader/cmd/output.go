package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/config"
	"github.com/mglavinic86/Ai-Trader-sub000/journal"
	"github.com/mglavinic86/Ai-Trader-sub000/metrics"
	"github.com/mglavinic86/Ai-Trader-sub000/suite"
)

var (
	good   = color.New(color.FgGreen).SprintFunc()
	bad    = color.New(color.FgRed).SprintFunc()
	warn   = color.New(color.FgYellow).SprintFunc()
	header = color.New(color.Bold, color.FgCyan).SprintFunc()
)

// signed colors v green when positive and red when negative.
func signed(format string, v float64) string {
	s := fmt.Sprintf(format, v)
	switch {
	case v > 0:
		return good(s)
	case v < 0:
		return bad(s)
	}
	return s
}

func ratio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func printMetrics(w io.Writer, title string, m metrics.Metrics) {
	fmt.Fprintln(w, header(title))
	fmt.Fprintf(w, "  Return     %s  ($%s)\n", signed("%+.2f%%", m.TotalReturnPct), signed("%+.2f", m.TotalReturnAbs))
	fmt.Fprintf(w, "  Drawdown   %.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(w, "  Trades     %d  (win rate %.1f%%, PF %s, Sharpe %s)\n", m.TotalTrades, m.WinRate, ratio(m.ProfitFactor), ratio(m.Sharpe))
	fmt.Fprintln(w)
	fmt.Fprint(w, m.Summary())
}

func printVerdict(w io.Writer, verdict string) {
	c := bad
	switch {
	case strings.HasPrefix(verdict, "ROBUST"):
		c = good
	case strings.HasPrefix(verdict, "MODERATE"):
		c = warn
	}
	fmt.Fprintf(w, "Verdict: %s\n", c(verdict))
}

func printSuite(w io.Writer, out []suite.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tTRADES\tWIN%\tRETURN%\tDD%\tPF\tSHARPE\tTOP SKIP\t")
	for _, s := range out {
		if !s.OK() {
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\t\t\n", s.Label, bad("ERROR: "+s.Error))
			continue
		}
		top := "-"
		if len(s.TopSkips) > 0 {
			top = fmt.Sprintf("%s (%d)", s.TopSkips[0].Reason, s.TopSkips[0].Count)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%s\t%.2f\t%s\t%s\t%s\t\n",
			s.Label, s.Trades, s.WinRate, signed("%+.2f", s.ReturnPct), s.MaxDrawdownPct,
			ratio(s.ProfitFactor), ratio(s.Sharpe), top)
	}
	tw.Flush()
}

// writeReports writes r in every format the config enables and returns the
// files written.
func writeReports(ctx context.Context, cfg *config.Config, res *backtest.Result, r journal.Report) ([]string, error) {
	rc := cfg.Report
	if len(rc.Formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(rc.Dir, 0755); err != nil {
		return nil, err
	}
	base := filepath.Join(rc.Dir, r.RunID)
	var written []string

	if rc.Wants(config.FormatJSON) {
		if err := journal.SaveJSON(base+".json", r); err != nil {
			return written, err
		}
		written = append(written, base+".json")
	}
	if rc.Wants(config.FormatOrg) {
		if err := journal.SaveOrg(base+".org", r); err != nil {
			return written, err
		}
		written = append(written, base+".org")
	}
	if rc.Wants(config.FormatCSV) {
		tp, ep, err := journal.ExportCSV(r, rc.Dir)
		if err != nil {
			return written, err
		}
		written = append(written, tp, ep)
	}
	if rc.Wants(config.FormatSQLite) {
		db, err := journal.NewSQLite(rc.SQLitePath())
		if err != nil {
			return written, err
		}
		err = db.SaveReport(ctx, r)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return written, err
		}
		written = append(written, rc.SQLitePath())
	}
	if rc.Wants(config.FormatMetrics) {
		jm := suite.NewJobMetrics(r.Label, r.Instrument)
		jm.Observe(res, r.Metrics)
		if err := jm.WriteTextfile(base + ".prom"); err != nil {
			return written, err
		}
		written = append(written, base+".prom")
	}
	return written, nil
}
