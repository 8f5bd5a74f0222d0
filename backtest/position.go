package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mglavinic86/Ai-Trader-sub000/risk"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// State is the lifecycle stage of a position.
type State int8

const (
	StatePending State = iota
	StateOpen
	StatePartial
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateOpen:
		return "OPEN"
	case StatePartial:
		return "PARTIAL"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int8(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{StatePending, StateOpen, StatePartial, StateClosed} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown position state %q", string(b))
}

// ExitReason is the closed set of ways a position ends.
type ExitReason int8

const (
	ExitNone ExitReason = iota
	ExitStopLoss
	ExitBreakevenStop
	ExitTrailingStop
	ExitTakeProfit
	ExitEndOfData
)

func (r ExitReason) String() string {
	switch r {
	case ExitNone:
		return ""
	case ExitStopLoss:
		return "STOP_LOSS"
	case ExitBreakevenStop:
		return "BREAKEVEN_STOP"
	case ExitTrailingStop:
		return "TRAILING_STOP"
	case ExitTakeProfit:
		return "TAKE_PROFIT"
	case ExitEndOfData:
		return "END_OF_DATA"
	default:
		return fmt.Sprintf("ExitReason(%d)", int8(r))
	}
}

func (r ExitReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *ExitReason) UnmarshalText(b []byte) error {
	for _, v := range []ExitReason{ExitNone, ExitStopLoss, ExitBreakevenStop, ExitTrailingStop, ExitTakeProfit, ExitEndOfData} {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown exit reason %q", string(b))
}

// Setup is the structural context a position was opened from.
type Setup struct {
	Grade      smc.Grade `json:"grade"`
	Confidence int       `json:"confidence"`
	Score      int       `json:"score"`
	HTFBias    smc.Bias  `json:"htf_bias"`
	SweepLevel float64   `json:"sweep_level"`
	Zone       *smc.Zone `json:"zone,omitempty"`
	SignalBar  int       `json:"signal_bar"`
}

// Position is an immutable snapshot. Transitions return a new snapshot and
// the event that produced it; the receiver is never modified.
type Position struct {
	ID         string        `json:"id"`
	State      State         `json:"state"`
	Instrument string        `json:"instrument"`
	Direction  smc.Direction `json:"direction"`
	Setup      Setup         `json:"setup"`

	OriginalUnits float64 `json:"original_units"`
	Units         float64 `json:"units"`

	EntryRaw  float64   `json:"entry_raw"`
	Entry     float64   `json:"entry"`
	EntryBar  int       `json:"entry_bar"`
	EntryTime time.Time `json:"entry_time"`

	InitialStop    float64 `json:"initial_stop"`
	Stop           float64 `json:"stop"`
	TakeProfit     float64 `json:"take_profit"`
	BreakevenMoved bool    `json:"breakeven_moved"`
	Trailing       bool    `json:"trailing"`
	PartialTPHit   bool    `json:"partial_tp_hit"`

	Realized   decimal.Decimal `json:"realized"`
	Commission decimal.Decimal `json:"commission"`

	ExitRaw    float64    `json:"exit_raw,omitempty"`
	Exit       float64    `json:"exit,omitempty"`
	ExitBar    int        `json:"exit_bar,omitempty"`
	ExitTime   time.Time  `json:"exit_time,omitempty"`
	ExitReason ExitReason `json:"exit_reason"`
	RealizedRR float64    `json:"realized_rr"`

	MFE      float64 `json:"mfe_r"`
	MAE      float64 `json:"mae_r"`
	StopHunt bool    `json:"stop_hunt"`
}

type EventKind int8

const (
	EventOpened EventKind = iota
	EventBreakeven
	EventPartial
	EventTrailed
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "OPENED"
	case EventBreakeven:
		return "BREAKEVEN"
	case EventPartial:
		return "PARTIAL"
	case EventTrailed:
		return "TRAILED"
	case EventClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("EventKind(%d)", int8(k))
	}
}

// Event records a transition. Cash is the realized cash delta it caused.
type Event struct {
	Kind  EventKind
	Bar   int
	Time  time.Time
	Price float64
	Units float64
	Cash  decimal.Decimal
}

// Fill describes an entry.
type Fill struct {
	ID         string
	Instrument string
	Direction  smc.Direction
	Units      float64
	Raw        float64
	Bar        int
	Time       time.Time
	Stop       float64
	TakeProfit float64
	Setup      Setup
}

// Open materializes a filled entry.
func Open(f Fill, costs Costs) (Position, Event) {
	p := Position{
		ID:            f.ID,
		State:         StateOpen,
		Instrument:    f.Instrument,
		Direction:     f.Direction,
		Setup:         f.Setup,
		OriginalUnits: f.Units,
		Units:         f.Units,
		EntryRaw:      f.Raw,
		Entry:         costs.Entry(f.Raw, f.Direction),
		EntryBar:      f.Bar,
		EntryTime:     f.Time,
		InitialStop:   f.Stop,
		Stop:          f.Stop,
		TakeProfit:    f.TakeProfit,
	}
	return p, Event{Kind: EventOpened, Bar: f.Bar, Time: f.Time, Price: p.Entry, Units: f.Units}
}

// Live reports whether the position still holds units.
func (p Position) Live() bool { return p.State == StateOpen || p.State == StatePartial }

// Risk is the initial stop distance in price.
func (p Position) Risk() float64 { return math.Abs(p.EntryRaw - p.InitialStop) }

// R converts a raw price to a multiple of initial risk from entry.
func (p Position) R(price float64) float64 {
	if p.Risk() == 0 {
		return 0
	}
	return p.Direction.Sign() * (price - p.EntryRaw) / p.Risk()
}

// Unrealized is the open profit at a cost-adjusted mark of raw.
func (p Position) Unrealized(raw float64, costs Costs, quoteToAccount float64) decimal.Decimal {
	if !p.Live() {
		return decimal.Zero
	}
	return PnL(p.Direction, p.Units, p.Entry, costs.Exit(raw, p.Direction), quoteToAccount)
}

// Excursion widens MFE and MAE with the bar's extremes.
func (p Position) Excursion(high, low float64) Position {
	best, worst := high, low
	if p.Direction == smc.Short {
		best, worst = low, high
	}
	p.MFE = math.Max(p.MFE, p.R(best))
	p.MAE = math.Max(p.MAE, -p.R(worst))
	return p
}

// MoveStop replaces the stop. kind is EventBreakeven or EventTrailed.
func (p Position) MoveStop(stop float64, kind EventKind, bar int, t time.Time) (Position, Event) {
	p.Stop = stop
	switch kind {
	case EventBreakeven:
		p.BreakevenMoved = true
	case EventTrailed:
		p.Trailing = true
	}
	return p, Event{Kind: kind, Bar: bar, Time: t, Price: stop}
}

// TakePartial closes units at raw and moves the position to PARTIAL.
func (p Position) TakePartial(units, raw float64, bar int, t time.Time, costs Costs, quoteToAccount float64) (Position, Event) {
	exit := costs.Exit(raw, p.Direction)
	cash := PnL(p.Direction, units, p.Entry, exit, quoteToAccount).Sub(costs.Commission(units))
	p.Units -= units
	p.Realized = p.Realized.Add(cash)
	p.Commission = p.Commission.Add(costs.Commission(units))
	p.PartialTPHit = true
	p.State = StatePartial
	return p, Event{Kind: EventPartial, Bar: bar, Time: t, Price: exit, Units: units, Cash: cash}
}

// Close seals the position at raw for reason. RealizedRR is the net result
// of every partial and the final close over the initial planned risk.
func (p Position) Close(raw float64, reason ExitReason, bar int, t time.Time, costs Costs, quoteToAccount, stopHuntR float64) (Position, Event) {
	exit := costs.Exit(raw, p.Direction)
	cash := PnL(p.Direction, p.Units, p.Entry, exit, quoteToAccount).Sub(costs.Commission(p.Units))
	units := p.Units

	p.Realized = p.Realized.Add(cash)
	p.Commission = p.Commission.Add(costs.Commission(units))
	p.ExitRaw = raw
	p.Exit = exit
	p.ExitBar = bar
	p.ExitTime = t
	p.ExitReason = reason
	p.State = StateClosed
	if planned := risk.PlannedRisk(p.OriginalUnits, p.EntryRaw, p.InitialStop, quoteToAccount); planned > 0 {
		p.RealizedRR = p.Realized.InexactFloat64() / planned
	}
	p.StopHunt = p.MFE >= stopHuntR && p.MAE >= stopHuntR
	return p, Event{Kind: EventClosed, Bar: bar, Time: t, Price: exit, Units: units, Cash: cash}
}

// PnL is the realized profit in account currency net of commission.
func (p Position) PnL() float64 { return p.Realized.InexactFloat64() }

// Won reports a strictly positive realized result.
func (p Position) Won() bool { return p.Realized.IsPositive() }

// DurationBars is the number of bars the position was held.
func (p Position) DurationBars() int { return p.ExitBar - p.EntryBar }
