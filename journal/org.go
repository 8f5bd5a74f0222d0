package journal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"ratio": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"trades": FormatTradesOrg,
}

var orgTemplate = template.Must(template.New("report").Funcs(orgFuncs).Parse(ReportOrgTemplate))

// WriteOrg renders r as an org-mode document.
func WriteOrg(w io.Writer, r Report) error {
	return orgTemplate.Execute(w, r)
}

// SaveOrg writes the org document of r to path.
func SaveOrg(path string, r Report) error {
	var b strings.Builder
	if err := WriteOrg(&b, r); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

const ReportOrgTemplate = `
* BACKTEST: SMC {{.Instrument}} M5{{if .Label}} ({{.Label}}){{end}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    smc_sweep_choch
:INSTRUMENT:  {{.Instrument}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .Metrics.TotalReturnAbs}}
:RETURN_PCT:  {{printf "%.2f" .Metrics.TotalReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .Metrics.MaxDrawdownPct}}
:TRADES:      {{.Metrics.TotalTrades}}
:WINS:        {{.Metrics.WinningTrades}}
:LOSSES:      {{.Metrics.LosingTrades}}
:WIN_RATE:    {{printf "%.2f" .Metrics.WinRate}}
:PROFIT_FAC:  {{ratio .Metrics.ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter        | Value |
|------------------+-------|
| Min grade        | {{.Config.MinGrade}} |
| Min confidence   | {{.Config.MinConfidence}} |
| Target R:R       | {{printf "%.2f" .Config.TargetRR}} |
| Max SL (pips)    | {{printf "%.1f" .Config.MaxSLPips}} |
| Risk per Trade % | {{if .Config.RiskPercent}}{{printf "%.2f" (mul100 .Config.RiskPercent)}}{{else}}tiered{{end}} |
| Spread (pips)    | {{printf "%.1f" .Config.SpreadPips}} |
| Limit entry      | {{.Config.LimitEntry.Enabled}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .Metrics.TotalReturnAbs}}*
- Return:           *{{printf "%.2f" .Metrics.TotalReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .Metrics.MaxDrawdownPct}}%* ({{.Metrics.MaxDrawdownDuration}} samples)
- Win Rate:         *{{printf "%.2f" .Metrics.WinRate}}%*
- Profit Factor:    *{{ratio .Metrics.ProfitFactor}}*
- Sharpe / Sortino: *{{ratio .Metrics.Sharpe}}* / *{{ratio .Metrics.Sortino}}*
- Expectancy:       *{{printf "%.2f" .Metrics.Expectancy}}*
- Avg R:R:          *{{printf "%.2f" .Metrics.AvgRR}}*

** Signals
| Evaluations | Generated | Skipped |
|-------------+-----------+---------|
| {{.Metrics.Evaluations}} | {{.Metrics.SignalsGenerated}} | {{.Metrics.SignalsSkipped}} |
{{- if .Metrics.TopSkips }}

| Skip reason | Count |
|-------------+-------|
{{- range .Metrics.TopSkips }}
| {{.Reason}} | {{.Count}} |
{{- end }}
{{- end }}
{{- if .Metrics.Grades }}

** Grades
| Grade | Trades | Win % | P/L |
|-------+--------+-------+-----|
{{- range $g, $s := .Metrics.Grades }}
| {{$g}} | {{$s.Trades}} | {{printf "%.1f" $s.WinRate}} | {{printf "%.2f" $s.PnL}} |
{{- end }}
{{- end }}
{{- if .CrossAsset }}

** Cross-Asset Reference
| Instrument | Bars | Return % |
|------------+------+----------|
{{- range .CrossAsset }}
| {{.Instrument}} | {{.Bars}} | {{printf "%.2f" .ReturnPct}} |
{{- end }}
{{- end }}
{{- if .Trades }}

* Trades
{{ trades .Trades }}
{{- end }}
`

// FormatTradeOrg renders a TradeRecord as an org block. Structured facts
// go in the PROPERTIES drawer, narrative headings are left empty.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s %s (%s)", t.Instrument, t.Direction, t.Grade, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":INSTRUMENT: %s\n", t.Instrument))
	b.WriteString(fmt.Sprintf(":DIRECTION: %s\n", t.Direction))
	b.WriteString(fmt.Sprintf(":UNITS: %.0f\n", t.Units))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.5f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.5f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":STOP_LOSS: %.5f\n", t.StopLoss))
	b.WriteString(fmt.Sprintf(":TAKE_PROFIT: %.5f\n", t.TakeProfit))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", close))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":REALIZED_RR: %.2f\n", t.RealizedRR))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(fmt.Sprintf(":CONFIDENCE: %d\n", t.Confidence))
	b.WriteString(fmt.Sprintf(":MFE_R: %.2f\n", t.MFE))
	b.WriteString(fmt.Sprintf(":MAE_R: %.2f\n", t.MAE))
	if t.StopHunt {
		b.WriteString(":STOP_HUNT: t\n")
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
