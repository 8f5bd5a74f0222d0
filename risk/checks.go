package risk

import (
	"fmt"
	"math"
)

// Code identifies a pre-trade check failure.
type Code string

const (
	CodeInvalidLevels Code = "INVALID_LEVELS"
	CodeRRTooLow      Code = "RR_TOO_LOW"
	CodeStopTooWide   Code = "STOP_TOO_WIDE"
	CodeNoUnits       Code = "NO_UNITS"
	CodeRiskTooHigh   Code = "RISK_TOO_HIGH"
)

type Violation struct {
	Code Code
	Msg  string
}

func (v Violation) Error() string { return fmt.Sprintf("%s: %s", v.Code, v.Msg) }

// Policy holds the hard limits a trade must satisfy.
type Policy struct {
	MinRR      float64
	MaxSLPips  float64
	MaxRiskPct float64 // 0 disables the check
}

// Intent is a proposed trade. Side is +1 for long and -1 for short.
type Intent struct {
	Side        float64
	Entry       float64
	Stop        float64
	TakeProfit  float64
	PipLocation int
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	StopPips  float64
	PlannedRR float64
}

func (d *Decision) add(code Code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// First returns the first violation, if any.
func (d Decision) First() (Violation, bool) {
	if len(d.Violations) == 0 {
		return Violation{}, false
	}
	return d.Violations[0], true
}

// Evaluate checks level geometry, stop width and R:R in that order. Checks
// after a geometry failure are skipped.
func Evaluate(p Policy, in Intent) Decision {
	d := Decision{Allowed: true}
	if in.Entry == 0 || in.Stop == 0 || in.TakeProfit == 0 {
		d.add(CodeInvalidLevels, "entry, stop and take-profit must be set")
		return d
	}
	if in.Side*(in.Entry-in.Stop) <= 0 || in.Side*(in.TakeProfit-in.Entry) <= 0 {
		d.add(CodeInvalidLevels, fmt.Sprintf("stop %.5f / target %.5f on wrong side of entry %.5f", in.Stop, in.TakeProfit, in.Entry))
		return d
	}

	d.StopPips = math.Abs(in.Entry-in.Stop) / pipSize(in.PipLocation)
	d.PlannedRR = RR(in.Entry, in.Stop, in.TakeProfit)

	if p.MaxSLPips > 0 && d.StopPips > p.MaxSLPips {
		d.add(CodeStopTooWide, fmt.Sprintf("SL %.1f pips > %.1f", d.StopPips, p.MaxSLPips))
	}
	if d.PlannedRR < p.MinRR {
		d.add(CodeRRTooLow, fmt.Sprintf("R:R %.2f < %.2f", d.PlannedRR, p.MinRR))
	}
	return d
}

// CheckSize rejects a sized position with no units or with more risk than
// the policy allows.
func CheckSize(p Policy, r Result, equity float64) *Violation {
	if r.Units < 1 {
		return &Violation{Code: CodeNoUnits, Msg: fmt.Sprintf("sized to %.0f units", r.Units)}
	}
	if p.MaxRiskPct > 0 && RiskPct(r.RiskAmount, equity) > p.MaxRiskPct {
		return &Violation{Code: CodeRiskTooHigh, Msg: fmt.Sprintf("risk %.2f%% > %.2f%%", 100*RiskPct(r.RiskAmount, equity), 100*p.MaxRiskPct)}
	}
	return nil
}
