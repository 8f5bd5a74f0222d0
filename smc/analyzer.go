package smc

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// Config holds the analyzer thresholds. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	HTFSwings          SwingParams        `json:"htf_swings" yaml:"htf_swings"`
	LTFSwings          SwingParams        `json:"ltf_swings" yaml:"ltf_swings"`
	MinHTFCandles      int                `json:"min_htf_candles" yaml:"min_htf_candles"`
	MinLTFCandles      int                `json:"min_ltf_candles" yaml:"min_ltf_candles"`
	MinH1SwingsForBias int                `json:"min_h1_swings_for_bias" yaml:"min_h1_swings_for_bias"`
	EqualTolerancePips float64            `json:"equal_tolerance_pips" yaml:"equal_tolerance_pips"`
	Sweep              SweepParams        `json:"sweep" yaml:"sweep"`
	Displacement       DisplacementParams `json:"displacement" yaml:"displacement"`
	OrderBlockRatio    float64            `json:"order_block_ratio" yaml:"order_block_ratio"`
	ATRPeriod          int                `json:"atr_period" yaml:"atr_period"`
	MinSLPips          float64            `json:"min_sl_pips" yaml:"min_sl_pips"`
	SLATRMultiplier    float64            `json:"sl_atr_multiplier" yaml:"sl_atr_multiplier"`
	// MaxSLPips caps the stop distance; 0 uses the instrument default.
	MaxSLPips float64 `json:"max_sl_pips" yaml:"max_sl_pips"`
	TargetRR  float64 `json:"target_rr" yaml:"target_rr"`
}

func DefaultConfig() Config {
	return Config{
		HTFSwings:          HTFSwings,
		LTFSwings:          LTFSwings,
		MinHTFCandles:      20,
		MinLTFCandles:      30,
		MinH1SwingsForBias: 4,
		EqualTolerancePips: 3,
		Sweep:              SweepParams{Source: SweepLondonNY, Lookback: 20, MinPips: 1},
		Displacement:       DefaultDisplacement,
		OrderBlockRatio:    2,
		ATRPeriod:          14,
		MinSLPips:          12,
		SLATRMultiplier:    1.5,
		TargetRR:           2,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.HTFSwings.Left < 1 || c.HTFSwings.Right < 1 || c.LTFSwings.Left < 1 || c.LTFSwings.Right < 1 {
		errs = append(errs, errors.New("swing widths must be >= 1"))
	}
	if c.MinLTFCandles < 3 {
		errs = append(errs, fmt.Errorf("min_ltf_candles must be >= 3, got %d", c.MinLTFCandles))
	}
	switch c.Sweep.Source {
	case SweepLondon, SweepLondonNY, SweepAny:
	default:
		errs = append(errs, fmt.Errorf("unknown sweep source %q", c.Sweep.Source))
	}
	if c.Sweep.Lookback < 2 {
		errs = append(errs, fmt.Errorf("sweep lookback must be >= 2, got %d", c.Sweep.Lookback))
	}
	if c.Displacement.BodyRatio <= 0 || c.Displacement.Lookback < 1 {
		errs = append(errs, errors.New("displacement body ratio and lookback must be positive"))
	}
	if c.TargetRR <= 0 {
		errs = append(errs, fmt.Errorf("target_rr must be > 0, got %g", c.TargetRR))
	}
	if c.MaxSLPips < 0 || c.MinSLPips < 0 {
		errs = append(errs, errors.New("sl pips must be >= 0"))
	}
	return errors.Join(errs...)
}

// Input is the candle context visible at one evaluation point. Every series
// must only contain bars that have closed by the evaluation time.
type Input struct {
	Instrument string
	H4         []market.Candle
	H1         []market.Candle
	M5         []market.Candle
}

// Analysis is the result of one evaluation. It is recomputed from scratch at
// every evaluation point.
type Analysis struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	Price      float64   `json:"price"`

	HTFStructure Structure      `json:"htf_structure"`
	HTFBias      Bias           `json:"htf_bias"`
	HTFHigh      float64        `json:"htf_high"`
	HTFLow       float64        `json:"htf_low"`
	Liquidity    LiquidityMap   `json:"liquidity"`
	Sessions     []SessionLevel `json:"sessions,omitempty"`

	Sweep           *Sweep          `json:"sweep,omitempty"`
	LTFStructure    Structure       `json:"ltf_structure"`
	CHoCH           *StructureShift `json:"choch,omitempty"`
	BOS             *StructureShift `json:"bos,omitempty"`
	Displacement    *Displacement   `json:"displacement,omitempty"`
	FVGs            []FairValueGap  `json:"fvgs,omitempty"`
	OrderBlocks     []OrderBlock    `json:"order_blocks,omitempty"`
	PremiumDiscount PremiumDiscount `json:"premium_discount"`

	Direction  Direction `json:"direction"`
	Grade      Grade     `json:"grade"`
	Confidence int       `json:"confidence"`
	Score      int       `json:"score"`
	Reasons    []string  `json:"reasons,omitempty"`

	EntryZone  *Zone   `json:"entry_zone,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	RiskReward float64 `json:"risk_reward,omitempty"`
	SLPips     float64 `json:"sl_pips,omitempty"`
}

// Tradeable reports whether the analysis carries a graded directional setup.
func (a *Analysis) Tradeable() bool {
	return a.Direction != NoDirection && a.Grade != NoTrade
}

// Shift returns the change of character if there is one, else the break of
// structure.
func (a *Analysis) Shift() *StructureShift {
	if a.CHoCH != nil {
		return a.CHoCH
	}
	return a.BOS
}

type Option func(*Analyzer)

func WithLogger(log zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = log }
}

// Analyzer runs the multi-timeframe analysis. It keeps no state between
// calls and is safe for concurrent use.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

func NewAnalyzer(cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Config() Config { return a.cfg }

// Analyze evaluates in at the close of its last M5 candle. It fails only
// with market.ErrDataInsufficient when M5 is shorter than MinLTFCandles.
func (a *Analyzer) Analyze(in Input) (*Analysis, error) {
	if len(in.M5) < a.cfg.MinLTFCandles {
		return nil, fmt.Errorf("%w: %d M5 candles, need %d", market.ErrDataInsufficient, len(in.M5), a.cfg.MinLTFCandles)
	}
	last := in.M5[len(in.M5)-1]
	res := &Analysis{Instrument: in.Instrument, Time: last.Time, Price: last.Close}

	a.analyzeHTF(res, in)
	a.analyzeLTF(res, in)
	res.Direction = resolveDirection(res)
	a.grade(res, in.M5)

	a.log.Debug().
		Str("instrument", in.Instrument).
		Time("time", res.Time).
		Stringer("htf_bias", res.HTFBias).
		Bool("sweep", res.Sweep != nil).
		Bool("choch", res.CHoCH != nil).
		Bool("bos", res.BOS != nil).
		Int("fvgs", len(res.FVGs)).
		Int("order_blocks", len(res.OrderBlocks)).
		Stringer("direction", res.Direction).
		Stringer("grade", res.Grade).
		Int("score", res.Score).
		Msg("analysis")
	return res, nil
}

func (a *Analyzer) analyzeHTF(res *Analysis, in Input) {
	if len(in.H4) >= a.cfg.MinHTFCandles {
		swings := DetectSwings(in.H4, a.cfg.HTFSwings)
		res.HTFStructure = ClassifyStructure(swings)
		res.HTFBias = res.HTFStructure.Bias()
		res.HTFHigh, res.HTFLow = swingRange(swings)
	}

	if len(in.H1) < a.cfg.MinHTFCandles {
		return
	}
	swings := DetectSwings(in.H1, a.cfg.HTFSwings)
	res.Liquidity = MapLiquidity(in.H1, market.H1, swings, in.Instrument, a.cfg.EqualTolerancePips, res.Price)
	res.Sessions = SessionLevels(in.H1, market.H1)

	if res.HTFBias == Neutral && len(swings) >= a.cfg.MinH1SwingsForBias {
		if st := ClassifyStructure(swings); st != Ranging {
			res.HTFStructure = st
			res.HTFBias = st.Bias()
		}
		hi, lo := swingRange(swings)
		if res.HTFHigh == 0 {
			res.HTFHigh = hi
		}
		if res.HTFLow == 0 {
			res.HTFLow = lo
		}
	}
}

func swingRange(swings []SwingPoint) (high, low float64) {
	for _, s := range swings {
		if s.Type == SwingHigh && s.Price > high {
			high = s.Price
		}
		if s.Type == SwingLow && (low == 0 || s.Price < low) {
			low = s.Price
		}
	}
	return high, low
}

func (a *Analyzer) analyzeLTF(res *Analysis, in Input) {
	m5 := in.M5
	res.Sweep = DetectSweep(m5, res.Liquidity, res.Sessions, in.Instrument, a.cfg.Sweep)

	swings := DetectSwings(m5, a.cfg.LTFSwings)
	res.LTFStructure = ClassifyStructure(swings)
	res.CHoCH = DetectCHoCH(m5, swings, res.LTFStructure)
	res.BOS = DetectBOS(m5, swings, res.LTFStructure)

	if ds := DetectDisplacements(m5, a.cfg.Displacement); len(ds) > 0 {
		d := ds[len(ds)-1]
		res.Displacement = &d
	}
	res.FVGs = DetectFVGs(m5)
	res.OrderBlocks = DetectOrderBlocks(m5, a.cfg.OrderBlockRatio)

	if res.HTFHigh > 0 && res.HTFLow > 0 {
		res.PremiumDiscount = CalculatePremiumDiscount(res.HTFHigh, res.HTFLow, res.Price)
	}
}

// resolveDirection pairs the sweep with a confirming structure shift: a
// sellside sweep and a bullish shift go long, the mirror goes short. An
// opposing higher-timeframe bias cancels the trade.
func resolveDirection(res *Analysis) Direction {
	if res.Sweep == nil {
		return NoDirection
	}
	want := res.Sweep.Direction()
	confirmed := false
	for _, s := range []*StructureShift{res.CHoCH, res.BOS} {
		if s != nil && s.Direction == want.Bias() {
			confirmed = true
		}
	}
	if !confirmed {
		return NoDirection
	}
	if res.HTFBias != Neutral && res.HTFBias != want.Bias() {
		res.Reasons = append(res.Reasons, fmt.Sprintf("HTF %s opposes LTF %s", res.HTFBias, want))
		return NoDirection
	}
	return want
}
