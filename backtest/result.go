package backtest

import (
	"fmt"
	"time"

	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// EquitySample is one point of the equity curve. Equity is always
// Cash + Unrealized, and Unrealized is zero while flat.
type EquitySample struct {
	Bar        int       `json:"bar"`
	Time       time.Time `json:"time"`
	Cash       float64   `json:"cash"`
	Unrealized float64   `json:"unrealized"`
	Equity     float64   `json:"equity"`
	Open       bool      `json:"open"`
}

type OrderOutcome int8

const (
	OrderPending OrderOutcome = iota
	OrderFilled
	OrderExpired
	OrderRejected
	OrderCancelled
)

func (o OrderOutcome) String() string {
	switch o {
	case OrderPending:
		return "PENDING"
	case OrderFilled:
		return "FILLED"
	case OrderExpired:
		return "EXPIRED"
	case OrderRejected:
		return "REJECTED"
	case OrderCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("OrderOutcome(%d)", int8(o))
	}
}

func (o OrderOutcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OrderOutcome) UnmarshalText(b []byte) error {
	for _, v := range []OrderOutcome{OrderPending, OrderFilled, OrderExpired, OrderRejected, OrderCancelled} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown order outcome %q", string(b))
}

// PendingOrder is a resting limit order waiting for a retracement.
type PendingOrder struct {
	ID         string
	Direction  smc.Direction
	Limit      float64
	Zone       smc.Zone
	StopLoss   float64
	TakeProfit float64
	CreatedBar int
	MaxBars    int
	Setup      Setup
	record     int
}

// OrderRecord is the ledger entry of a limit order.
type OrderRecord struct {
	ID           string        `json:"id"`
	Direction    smc.Direction `json:"direction"`
	Limit        float64       `json:"limit"`
	Zone         smc.Zone      `json:"zone"`
	StopLoss     float64       `json:"stop_loss"`
	TakeProfit   float64       `json:"take_profit"`
	MaxBars      int           `json:"max_bars"`
	CreatedBar   int           `json:"created_bar"`
	CreatedTime  time.Time     `json:"created_time"`
	ResolvedBar  int           `json:"resolved_bar"`
	ResolvedTime time.Time     `json:"resolved_time"`
	Outcome      OrderOutcome  `json:"outcome"`
}

// Signal is the outcome of one analyzer evaluation.
type Signal struct {
	Bar        int           `json:"bar"`
	Time       time.Time     `json:"time"`
	Price      float64       `json:"price"`
	Direction  smc.Direction `json:"direction"`
	Grade      smc.Grade     `json:"grade"`
	Confidence int           `json:"confidence"`
	Score      int           `json:"score"`
	StopLoss   float64       `json:"stop_loss,omitempty"`
	TakeProfit float64       `json:"take_profit,omitempty"`
	RiskReward float64       `json:"risk_reward,omitempty"`
	Skip       *SkipReason   `json:"skip,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

// CrossAssetRef summarizes a reference instrument over the run span.
type CrossAssetRef struct {
	Instrument string  `json:"instrument"`
	Bars       int     `json:"bars"`
	ReturnPct  float64 `json:"return_pct"`
}

// Result is owned by the run that produced it.
type Result struct {
	RunID      string    `json:"run_id"`
	Instrument string    `json:"instrument"`
	Config     Config    `json:"config"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Bars       int       `json:"bars"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`

	Trades  []Position     `json:"trades"`
	Equity  []EquitySample `json:"equity"`
	Orders  []OrderRecord  `json:"orders,omitempty"`
	Signals []Signal       `json:"signals,omitempty"`
	Skips   []Skip         `json:"skips,omitempty"`

	Evaluations      int       `json:"evaluations"`
	SignalsGenerated int       `json:"signals_generated"`
	SignalsSkipped   int       `json:"signals_skipped"`
	SkipReasons      Histogram `json:"skip_reasons"`

	CrossAsset []CrossAssetRef `json:"cross_asset,omitempty"`
}

// TradePnLs returns realized profit per closed trade in order.
func (r *Result) TradePnLs() []float64 {
	out := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = t.PnL()
	}
	return out
}
