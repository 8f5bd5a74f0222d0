package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mglavinic86/Ai-Trader-sub000/backtest"
	"github.com/mglavinic86/Ai-Trader-sub000/config"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
	"github.com/mglavinic86/Ai-Trader-sub000/suite"
)

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Run instruments x grade thresholds in parallel",
	Long: `Suite backtests every combination of the given instruments and minimum
grades in parallel. Each job owns its engine and report files; a failing
job is listed with its error and does not stop the others.

Example:
  smc-trader suite -c smc.yaml -i EUR_USD,GBP_USD,XAU_USD --grades B,A,A+ -w 4`,
	RunE: runSuite,
}

var (
	stInstruments []string
	stGrades      []string
	stWorkers     int
	stReportDir   string
	stSQLite      bool
	stTextfile    bool
)

func init() {
	rootCmd.AddCommand(suiteCmd)

	f := suiteCmd.Flags()
	f.StringSliceVarP(&stInstruments, "instrument", "i", nil, "instruments (default run.instrument)")
	f.StringSliceVar(&stGrades, "grades", []string{"B", "A", "A+"}, "minimum grades to sweep")
	f.IntVarP(&stWorkers, "workers", "w", runtime.NumCPU(), "parallel jobs")
	f.StringVar(&stReportDir, "report-dir", "", "write per-job reports here (default: none)")
	f.BoolVar(&stSQLite, "sqlite", false, "also store each job in <label>.db")
	f.BoolVar(&stTextfile, "prom", false, "also write each job's Prometheus textfile")
}

func runSuite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	instruments := stInstruments
	if len(instruments) == 0 {
		instruments = []string{cfg.Run.Instrument}
	}
	var grades []smc.Grade
	for _, s := range stGrades {
		g, err := smc.ParseGrade(s)
		if err != nil {
			return fmt.Errorf("--grades: %w", err)
		}
		grades = append(grades, g)
	}

	ctx := cmd.Context()
	var jobs []suite.Job
	for _, inst := range instruments {
		data, err := loadData(ctx, cfg, inst)
		if err != nil {
			return err
		}
		jobs = append(jobs, suiteJobs(cfg, inst, data, grades)...)
	}

	out, err := suite.Run(ctx, jobs, suite.Options{
		Workers:   stWorkers,
		ReportDir: stReportDir,
		SQLite:    stSQLite,
		Textfile:  stTextfile,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, header(fmt.Sprintf("SUITE: %d jobs", len(out))))
	printSuite(w, out)

	if stReportDir != "" {
		path := filepath.Join(stReportDir, "suite.json")
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, b, 0644); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s wrote %s\n", good("✓"), path)
	}
	if i := slices.IndexFunc(out, func(s suite.Summary) bool { return !s.OK() }); i >= 0 {
		return fmt.Errorf("suite: job %q failed", out[i].Label)
	}
	return nil
}

// suiteJobs expands one instrument into a job per grade threshold. The
// candle slices are shared read-only between the jobs.
func suiteJobs(cfg *config.Config, instrument string, data backtest.Data, grades []smc.Grade) []suite.Job {
	jobs := make([]suite.Job, 0, len(grades))
	for _, g := range grades {
		bt := cfg.BacktestFor(instrument)
		bt.MinGrade = g
		jobs = append(jobs, suite.Job{
			Label:      fmt.Sprintf("%s_%s", instrument, g),
			Instrument: instrument,
			Data:       data,
			Config:     bt,
		})
	}
	return jobs
}
