// Package smc detects smart-money-concepts structure in candle series and
// grades trade setups built from it.
package smc

import (
	"fmt"
	"strings"
	"time"
)

// Bias is the direction of a pattern or of higher-timeframe structure.
type Bias int8

const (
	Neutral Bias = iota
	Bullish
	Bearish
)

func (b Bias) String() string {
	switch b {
	case Neutral:
		return "NEUTRAL"
	case Bullish:
		return "BULLISH"
	case Bearish:
		return "BEARISH"
	default:
		return fmt.Sprintf("Bias(%d)", int8(b))
	}
}

func (b Bias) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// Direction is the side of a trade.
type Direction int8

const (
	NoDirection Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case NoDirection:
		return "NONE"
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return fmt.Sprintf("Direction(%d)", int8(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "LONG":
		*d = Long
	case "SHORT":
		*d = Short
	case "NONE", "":
		*d = NoDirection
	default:
		return fmt.Errorf("unknown direction %q", string(b))
	}
	return nil
}

// Sign is +1 for long, -1 for short and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Bias returns the pattern direction that supports the trade.
func (d Direction) Bias() Bias {
	switch d {
	case Long:
		return Bullish
	case Short:
		return Bearish
	default:
		return Neutral
	}
}

// Structure classifies the last two swing highs and lows.
type Structure int8

const (
	Ranging Structure = iota
	HigherHighsHigherLows
	LowerHighsLowerLows
)

func (s Structure) String() string {
	switch s {
	case Ranging:
		return "RANGING"
	case HigherHighsHigherLows:
		return "HH_HL"
	case LowerHighsLowerLows:
		return "LH_LL"
	default:
		return fmt.Sprintf("Structure(%d)", int8(s))
	}
}

func (s Structure) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Bias maps HH_HL to bullish and LH_LL to bearish.
func (s Structure) Bias() Bias {
	switch s {
	case HigherHighsHigherLows:
		return Bullish
	case LowerHighsLowerLows:
		return Bearish
	default:
		return Neutral
	}
}

type SwingType int8

const (
	SwingHigh SwingType = iota
	SwingLow
)

func (t SwingType) String() string {
	if t == SwingHigh {
		return "HIGH"
	}
	return "LOW"
}

func (t SwingType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

type SwingPoint struct {
	Type  SwingType `json:"type"`
	Price float64   `json:"price"`
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
}

type ShiftKind int8

const (
	CHoCH ShiftKind = iota
	BOS
)

func (k ShiftKind) String() string {
	if k == CHoCH {
		return "CHOCH"
	}
	return "BOS"
}

func (k ShiftKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// StructureShift is a change of character or a break of structure.
type StructureShift struct {
	Kind         ShiftKind  `json:"kind"`
	Direction    Bias       `json:"direction"`
	BreakLevel   float64    `json:"break_level"`
	Swing        SwingPoint `json:"swing"`
	ConfirmIndex int        `json:"confirm_index"`
}

// Side of the book a liquidity level sits on.
type Side int8

const (
	Buyside Side = iota
	Sellside
)

func (s Side) String() string {
	if s == Buyside {
		return "BUYSIDE"
	}
	return "SELLSIDE"
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type LevelSource int8

const (
	SourceSwing LevelSource = iota
	SourceEqualHighs
	SourceEqualLows
	SourceSession
)

func (s LevelSource) String() string {
	switch s {
	case SourceSwing:
		return "SWING"
	case SourceEqualHighs:
		return "EQUAL_HIGHS"
	case SourceEqualLows:
		return "EQUAL_LOWS"
	case SourceSession:
		return "SESSION"
	default:
		return fmt.Sprintf("LevelSource(%d)", int8(s))
	}
}

func (s LevelSource) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// LiquidityLevel is a resting pool of stops. Formed is the earliest time
// the level was known; a sweep cannot precede it.
type LiquidityLevel struct {
	Price    float64     `json:"price"`
	Side     Side        `json:"side"`
	Source   LevelSource `json:"source"`
	Strength int         `json:"strength"`
	Session  string      `json:"session,omitempty"`
	Formed   time.Time   `json:"formed"`
}

type LiquidityMap struct {
	Buyside         []LiquidityLevel `json:"buyside"`  // ascending
	Sellside        []LiquidityLevel `json:"sellside"` // descending
	NearestBuyside  *LiquidityLevel  `json:"nearest_buyside,omitempty"`
	NearestSellside *LiquidityLevel  `json:"nearest_sellside,omitempty"`
}

type SessionLevel struct {
	Session string    `json:"session"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	End     time.Time `json:"end"`
}

// SweepSource selects which session levels a sweep may take.
type SweepSource string

const (
	SweepLondon   SweepSource = "london"
	SweepLondonNY SweepSource = "london_ny"
	SweepAny      SweepSource = "any"
)

func (s SweepSource) sessions() []string {
	switch s {
	case SweepLondon:
		return []string{"london"}
	case SweepAny:
		return []string{"london", "ny", "asian"}
	default:
		return []string{"london", "ny"}
	}
}

// Sweep is a liquidity level taken out and closed back through.
type Sweep struct {
	Level             LiquidityLevel `json:"level"`
	Side              Side           `json:"side"`
	Index             int            `json:"index"`
	ReversalConfirmed bool           `json:"reversal_confirmed"`
	DepthPips         float64        `json:"depth_pips"`
}

// Direction is the trade a sweep argues for: sellside taken means long.
func (s Sweep) Direction() Direction {
	if s.Side == Sellside {
		return Long
	}
	return Short
}

type FairValueGap struct {
	Direction Bias    `json:"direction"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Index     int     `json:"index"`
	FillPct   float64 `json:"fill_pct"`
	Filled    bool    `json:"filled"`
}

type OrderBlock struct {
	Direction Bias    `json:"direction"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Index     int     `json:"index"`
	Strength  float64 `json:"strength"`
	Mitigated bool    `json:"mitigated"`
}

type Displacement struct {
	Direction Bias    `json:"direction"`
	Index     int     `json:"index"`
	BodyRatio float64 `json:"body_ratio"`
	WickPct   float64 `json:"wick_pct"`
}

type ZoneKind int8

const (
	ZoneFVG ZoneKind = iota
	ZoneOrderBlock
)

func (k ZoneKind) String() string {
	if k == ZoneFVG {
		return "FVG"
	}
	return "OB"
}

func (k ZoneKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Zone is a candidate entry region.
type Zone struct {
	Kind ZoneKind `json:"kind"`
	Low  float64  `json:"low"`
	High float64  `json:"high"`
}

func (z Zone) Midpoint() float64 { return (z.Low + z.High) / 2 }

func (z Zone) Contains(price float64) bool { return price >= z.Low && price <= z.High }

type PDZone int8

const (
	PDUnknown PDZone = iota
	Premium
	Discount
	Equilibrium
)

func (z PDZone) String() string {
	switch z {
	case PDUnknown:
		return "UNKNOWN"
	case Premium:
		return "PREMIUM"
	case Discount:
		return "DISCOUNT"
	case Equilibrium:
		return "EQUILIBRIUM"
	default:
		return fmt.Sprintf("PDZone(%d)", int8(z))
	}
}

func (z PDZone) MarshalText() ([]byte, error) { return []byte(z.String()), nil }

type PremiumDiscount struct {
	Zone        PDZone  `json:"zone"`
	Pct         float64 `json:"pct"`
	Equilibrium float64 `json:"equilibrium"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
}

// Grade is the setup quality. Grades are ordered: NoTrade < B < A < A+.
type Grade int8

const (
	NoTrade Grade = iota
	GradeB
	GradeA
	GradeAPlus
)

func (g Grade) String() string {
	switch g {
	case NoTrade:
		return "NO_TRADE"
	case GradeB:
		return "B"
	case GradeA:
		return "A"
	case GradeAPlus:
		return "A+"
	default:
		return fmt.Sprintf("Grade(%d)", int8(g))
	}
}

// Confidence is the fixed confidence value attached to a grade. Unknown
// grades get the NoTrade value.
func (g Grade) Confidence() int {
	switch g {
	case GradeAPlus:
		return 92
	case GradeA:
		return 82
	case GradeB:
		return 68
	default:
		return 30
	}
}

func ParseGrade(s string) (Grade, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A+", "APLUS":
		return GradeAPlus, nil
	case "A":
		return GradeA, nil
	case "B":
		return GradeB, nil
	case "NO_TRADE", "NONE", "":
		return NoTrade, nil
	default:
		return NoTrade, fmt.Errorf("unknown grade %q", s)
	}
}

func (g Grade) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *Grade) UnmarshalText(b []byte) error {
	v, err := ParseGrade(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// gradeForScore maps a rubric score to a grade.
func gradeForScore(score int) Grade {
	switch {
	case score >= 80:
		return GradeAPlus
	case score >= 60:
		return GradeA
	case score >= 45:
		return GradeB
	default:
		return NoTrade
	}
}

func parseEnum[T interface {
	~int8
	fmt.Stringer
}](b []byte, all ...T) (T, error) {
	for _, v := range all {
		if v.String() == string(b) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %T %q", zero, string(b))
}

func (b *Bias) UnmarshalText(t []byte) (err error) {
	*b, err = parseEnum(t, Neutral, Bullish, Bearish)
	return err
}

func (s *Structure) UnmarshalText(t []byte) (err error) {
	*s, err = parseEnum(t, Ranging, HigherHighsHigherLows, LowerHighsLowerLows)
	return err
}

func (s *SwingType) UnmarshalText(t []byte) (err error) {
	*s, err = parseEnum(t, SwingHigh, SwingLow)
	return err
}

func (k *ShiftKind) UnmarshalText(t []byte) (err error) {
	*k, err = parseEnum(t, CHoCH, BOS)
	return err
}

func (s *Side) UnmarshalText(t []byte) (err error) {
	*s, err = parseEnum(t, Buyside, Sellside)
	return err
}

func (s *LevelSource) UnmarshalText(t []byte) (err error) {
	*s, err = parseEnum(t, SourceSwing, SourceEqualHighs, SourceEqualLows, SourceSession)
	return err
}

func (k *ZoneKind) UnmarshalText(t []byte) (err error) {
	*k, err = parseEnum(t, ZoneFVG, ZoneOrderBlock)
	return err
}

func (z *PDZone) UnmarshalText(t []byte) (err error) {
	*z, err = parseEnum(t, PDUnknown, Premium, Discount, Equilibrium)
	return err
}
