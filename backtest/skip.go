package backtest

import (
	"fmt"
	"sort"
	"time"
)

// SkipReason is the closed set of reasons a signal does not become a trade.
type SkipReason int8

const (
	SkipNoSweep SkipReason = iota
	SkipNoStructureShift
	SkipNoDirection
	SkipBelowMinGrade
	SkipBelowMinConfidence
	SkipRRBelowMin
	SkipSLTooWide
	SkipInvalidSLTP
	SkipOutsideSession
	SkipRegimeFilter
	SkipNoEntryZone
	SkipOrderExpired
	SkipRRBelowMinOnFill
	SkipInsufficientSize
)

var skipNames = [...]string{
	SkipNoSweep:            "no_sweep",
	SkipNoStructureShift:   "no_structure_shift",
	SkipNoDirection:        "no_direction",
	SkipBelowMinGrade:      "below_min_grade",
	SkipBelowMinConfidence: "below_min_confidence",
	SkipRRBelowMin:         "rr_below_min",
	SkipSLTooWide:          "sl_too_wide",
	SkipInvalidSLTP:        "invalid_sl_tp",
	SkipOutsideSession:     "outside_session",
	SkipRegimeFilter:       "regime_filter",
	SkipNoEntryZone:        "no_entry_zone",
	SkipOrderExpired:       "order_expired",
	SkipRRBelowMinOnFill:   "rr_below_min_on_fill",
	SkipInsufficientSize:   "insufficient_size",
}

func (r SkipReason) String() string {
	if int(r) < 0 || int(r) >= len(skipNames) {
		return fmt.Sprintf("SkipReason(%d)", int8(r))
	}
	return skipNames[r]
}

func (r SkipReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *SkipReason) UnmarshalText(b []byte) error {
	v, err := ParseSkipReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func ParseSkipReason(s string) (SkipReason, error) {
	for i, n := range skipNames {
		if n == s {
			return SkipReason(i), nil
		}
	}
	return 0, fmt.Errorf("unknown skip reason %q", s)
}

// SkipReasons lists every reason in declaration order.
func SkipReasons() []SkipReason {
	out := make([]SkipReason, len(skipNames))
	for i := range out {
		out[i] = SkipReason(i)
	}
	return out
}

// Skip is one rejected signal or order.
type Skip struct {
	Bar    int        `json:"bar"`
	Time   time.Time  `json:"time"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail"`
}

// Histogram counts skips per reason.
type Histogram map[SkipReason]int

func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

type ReasonCount struct {
	Reason SkipReason `json:"reason"`
	Count  int        `json:"count"`
}

// Top returns the n most frequent reasons, ties broken by declaration order.
func (h Histogram) Top(n int) []ReasonCount {
	out := make([]ReasonCount, 0, len(h))
	for r, c := range h {
		out = append(out, ReasonCount{r, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
