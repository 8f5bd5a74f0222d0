// Package backtest replays M5 candles through the SMC analyzer and a
// single-position state machine.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mglavinic86/Ai-Trader-sub000/indicators"
	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/pkg/id"
	"github.com/mglavinic86/Ai-Trader-sub000/risk"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// Analyzer produces a setup from the candles visible at one bar.
type Analyzer interface {
	Analyze(in smc.Input) (*smc.Analysis, error)
}

// Data is the candle history of one run. M5 drives the simulation; H4 and
// H1 provide context. CrossAsset series are reported, not traded.
type Data struct {
	H4         []market.Candle
	H1         []market.Candle
	M5         []market.Candle
	CrossAsset map[string][]market.Candle
}

func (d Data) Validate() error {
	for name, cs := range map[string][]market.Candle{"H4": d.H4, "H1": d.H1, "M5": d.M5} {
		if err := market.Validate(cs); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithAnalyzer replaces the SMC analyzer built from Config.Analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

func WithIDs(g *id.Generator) Option {
	return func(e *Engine) { e.ids = g }
}

// Engine is immutable after construction; every Run owns its own state, so
// one Engine may serve concurrent runs.
type Engine struct {
	cfg      Config
	costs    Costs
	policy   risk.Policy
	analyzer Analyzer
	ids      *id.Generator
	log      zerolog.Logger
}

// NewEngine validates cfg and builds an engine. Enabling MarketFallback is
// logged at WARN.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg: cfg,
		costs: Costs{
			Instrument:       cfg.Instrument,
			SpreadPips:       cfg.SpreadPips,
			SlippagePips:     cfg.SlippagePips,
			CommissionPerLot: cfg.CommissionPerLot,
		},
		policy: risk.Policy{MinRR: cfg.TargetRR, MaxSLPips: cfg.MaxSLPips},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.analyzer == nil {
		e.analyzer = smc.NewAnalyzer(cfg.AnalyzerConfig(), smc.WithLogger(e.log))
	}
	if e.ids == nil {
		e.ids = id.NewGenerator(0, nil)
	}
	if cfg.MarketFallback {
		e.log.Warn().Str("instrument", cfg.Instrument).
			Msg("market fallback enabled: signals without an entry zone will enter at market")
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Run replays d.M5 bar by bar. It fails with market.ErrDataInsufficient
// when M5 is shorter than the analyzer minimum and with
// market.ErrMalformedCandles for unordered input.
func (e *Engine) Run(ctx context.Context, d Data) (*Result, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	warmup := e.cfg.Analyzer.MinLTFCandles
	if len(d.M5) < warmup {
		return nil, fmt.Errorf("%w: %d M5 candles, need %d", market.ErrDataInsufficient, len(d.M5), warmup)
	}

	r := &run{
		Engine: e,
		data:   d,
		cash:   decimal.NewFromFloat(e.cfg.InitialCapital).Round(2),
		res: &Result{
			RunID:          e.ids.Next(),
			Instrument:     e.cfg.Instrument,
			Config:         e.cfg,
			Start:          d.M5[0].Time,
			End:            d.M5[len(d.M5)-1].Time,
			Bars:           len(d.M5),
			InitialCapital: e.cfg.InitialCapital,
			SkipReasons:    Histogram{},
		},
	}
	log := e.log.With().Str("run_id", r.res.RunID).Str("instrument", e.cfg.Instrument).Logger()
	r.log = log
	log.Info().Time("start", r.res.Start).Time("end", r.res.End).Int("bars", len(d.M5)).Msg("backtest started")

	last := len(d.M5) - 1
	for i, c := range d.M5 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.bar(i, c, i == last, i+1 >= warmup); err != nil {
			return nil, err
		}
	}

	r.res.FinalEquity = r.cash.InexactFloat64()
	r.res.SignalsSkipped = r.res.SkipReasons.Total()
	r.res.CrossAsset = crossAsset(d, r.res.Start, r.res.End)

	log.Info().
		Int("trades", len(r.res.Trades)).
		Int("signals", r.res.SignalsGenerated).
		Int("skipped", r.res.SignalsSkipped).
		Float64("final_equity", r.res.FinalEquity).
		Msg("backtest finished")
	return r.res, nil
}

// run is the mutable state of one Run.
type run struct {
	*Engine
	data    Data
	log     zerolog.Logger
	cash    decimal.Decimal
	pos     Position
	pending *PendingOrder
	res     *Result

	quoteWarned bool
}

func (r *run) bar(i int, c market.Candle, last, warm bool) error {
	wasLive := r.pos.Live()
	switch {
	case r.pos.Live():
		r.stepPosition(i, c)
	case r.pending != nil:
		r.stepPending(i, c)
	}

	if !r.pos.Live() && r.pending == nil && warm && i%r.cfg.SignalInterval == 0 {
		if err := r.checkSignal(i, c); err != nil {
			return err
		}
	}

	if last {
		if r.pos.Live() {
			r.close(r.pos, c.Close, ExitEndOfData, i, c.Time)
		}
		if r.pending != nil {
			r.resolve(OrderCancelled, i, c.Time)
		}
	}

	if wasLive || r.pos.Live() || last || i%r.cfg.EquitySampleEvery == 0 {
		r.sample(i, c)
	}
	return nil
}

// quote falls back to 1:1 when price cannot be converted, warning once per
// run since sizing and P&L are then off by the missing rate.
func (r *run) quote(price float64) float64 {
	q, err := market.QuoteToAccountRate(r.cfg.Instrument, r.cfg.AccountCurrency, price)
	if err != nil {
		if !r.quoteWarned {
			r.quoteWarned = true
			r.log.Warn().Err(err).Float64("price", price).Msg("quote conversion failed, assuming 1:1")
		}
		return 1
	}
	return q
}

func (r *run) sample(i int, c market.Candle) {
	u := r.pos.Unrealized(c.Close, r.costs, r.quote(c.Close))
	s := EquitySample{
		Bar:        i,
		Time:       c.Time,
		Cash:       r.cash.InexactFloat64(),
		Unrealized: u.InexactFloat64(),
		Open:       r.pos.Live(),
	}
	s.Equity = s.Cash + s.Unrealized
	r.res.Equity = append(r.res.Equity, s)
}

// stepPosition applies, in order: stop-loss, breakeven move, partial take
// profit, trailing stop and take profit. A stop exit ends the bar for the
// position, so a stop and a target can never both fill on one bar.
func (r *run) stepPosition(i int, c market.Candle) {
	p := r.pos.Excursion(c.High, c.Low)
	sign := p.Direction.Sign()

	if px, hit := stopHit(p, c); hit {
		r.close(p, px, stopReason(p), i, c.Time)
		return
	}

	if be := r.cfg.Breakeven; be.Enabled && !p.BreakevenMoved && reached(p, c, be.AtR) {
		level := p.EntryRaw + sign*market.FromPips(p.Instrument, be.OffsetPips)
		if sign*(level-p.Stop) > 0 {
			p, _ = p.MoveStop(level, EventBreakeven, i, c.Time)
			r.log.Debug().Str("trade", p.ID).Float64("stop", level).Msg("stop moved to breakeven")
		}
	}

	if pt := r.cfg.PartialTP; pt.Enabled && !p.PartialTPHit && reached(p, c, pt.AtR) {
		units := math.Floor(p.Units * pt.Fraction)
		if units >= 1 && units < p.Units {
			var ev Event
			price := p.EntryRaw + sign*pt.AtR*p.Risk()
			p, ev = p.TakePartial(units, price, i, c.Time, r.costs, r.quote(price))
			r.cash = r.cash.Add(ev.Cash)
			r.log.Debug().Str("trade", p.ID).Float64("units", units).Str("cash", ev.Cash.String()).Msg("partial take profit")
		}
	}

	if tr := r.cfg.Trailing; tr.Enabled && p.R(c.Close) >= tr.AfterR {
		// Wilder-smoothed over the last three periods of M5.
		atr, err := indicators.WilderATR(market.Tail(r.data.M5[:i+1], 3*tr.ATRPeriod), tr.ATRPeriod)
		if level := c.Close - sign*atr*tr.ATRMultiplier; err == nil && atr > 0 && sign*(level-p.Stop) > 0 {
			p, _ = p.MoveStop(level, EventTrailed, i, c.Time)
		}
	}

	if tpHit(p, c) {
		r.close(p, p.TakeProfit, ExitTakeProfit, i, c.Time)
		return
	}
	r.pos = p
}

func stopHit(p Position, c market.Candle) (float64, bool) {
	if p.Direction == smc.Long && c.Low <= p.Stop {
		return math.Min(p.Stop, c.Open), true
	}
	if p.Direction == smc.Short && c.High >= p.Stop {
		return math.Max(p.Stop, c.Open), true
	}
	return 0, false
}

func tpHit(p Position, c market.Candle) bool {
	if p.Direction == smc.Long {
		return c.High >= p.TakeProfit
	}
	return c.Low <= p.TakeProfit
}

func stopReason(p Position) ExitReason {
	switch {
	case p.Trailing:
		return ExitTrailingStop
	case p.BreakevenMoved:
		return ExitBreakevenStop
	default:
		return ExitStopLoss
	}
}

// reached reports whether the bar's favorable extreme got to r multiples of
// the initial risk.
func reached(p Position, c market.Candle, r float64) bool {
	best := c.High
	if p.Direction == smc.Short {
		best = c.Low
	}
	return p.R(best) >= r
}

func (r *run) close(p Position, raw float64, reason ExitReason, i int, t time.Time) {
	p, ev := p.Close(raw, reason, i, t, r.costs, r.quote(raw), r.cfg.StopHuntThresholdR)
	r.cash = r.cash.Add(ev.Cash)
	r.pos = p
	r.res.Trades = append(r.res.Trades, p)
	r.log.Debug().
		Str("trade", p.ID).
		Stringer("reason", reason).
		Float64("exit", p.Exit).
		Str("pnl", p.Realized.String()).
		Float64("rr", p.RealizedRR).
		Msg("position closed")
}

// stepPending expires the order once more than MaxBars bars have passed
// since creation, otherwise fills it when the bar trades through the limit.
func (r *run) stepPending(i int, c market.Candle) {
	o := r.pending
	if i-o.CreatedBar > o.MaxBars {
		r.skip(i, c.Time, SkipOrderExpired, fmt.Sprintf("unfilled after %d bars", o.MaxBars))
		r.resolve(OrderExpired, i, c.Time)
		return
	}

	var fill float64
	switch o.Direction {
	case smc.Long:
		if c.Low > o.Limit {
			return
		}
		fill = math.Min(o.Limit, c.Open)
	case smc.Short:
		if c.High < o.Limit {
			return
		}
		fill = math.Max(o.Limit, c.Open)
	}

	dec := risk.Evaluate(r.policy, r.intent(o.Direction, fill, o.StopLoss, o.TakeProfit))
	if v, bad := dec.First(); bad {
		reason := violationReason(v.Code)
		if reason == SkipRRBelowMin {
			reason = SkipRRBelowMinOnFill
		}
		r.skip(i, c.Time, reason, v.Msg)
		r.resolve(OrderRejected, i, c.Time)
		return
	}
	units, v := r.size(fill, o.StopLoss, o.Setup.Confidence)
	if v != nil {
		r.skip(i, c.Time, SkipInsufficientSize, v.Msg)
		r.resolve(OrderRejected, i, c.Time)
		return
	}

	r.open(Fill{
		ID: o.ID, Instrument: r.cfg.Instrument, Direction: o.Direction, Units: units,
		Raw: fill, Bar: i, Time: c.Time, Stop: o.StopLoss, TakeProfit: o.TakeProfit, Setup: o.Setup,
	})
	r.resolve(OrderFilled, i, c.Time)

	// The fill bar may already have traded through the stop.
	if px, hit := stopHit(r.pos, c); hit {
		r.close(r.pos.Excursion(c.High, c.Low), px, ExitStopLoss, i, c.Time)
	}
}

func (r *run) resolve(outcome OrderOutcome, i int, t time.Time) {
	rec := &r.res.Orders[r.pending.record]
	rec.Outcome = outcome
	rec.ResolvedBar = i
	rec.ResolvedTime = t
	r.pending = nil
}

func (r *run) intent(d smc.Direction, entry, stop, tp float64) risk.Intent {
	return risk.Intent{
		Side:        d.Sign(),
		Entry:       entry,
		Stop:        stop,
		TakeProfit:  tp,
		PipLocation: market.Lookup(r.cfg.Instrument).PipLocation,
	}
}

func violationReason(c risk.Code) SkipReason {
	switch c {
	case risk.CodeInvalidLevels:
		return SkipInvalidSLTP
	case risk.CodeStopTooWide:
		return SkipSLTooWide
	case risk.CodeRRTooLow:
		return SkipRRBelowMin
	default:
		return SkipInsufficientSize
	}
}

func (r *run) size(entry, stop float64, confidence int) (float64, *risk.Violation) {
	pct := r.cfg.RiskPercent
	if pct == 0 {
		pct = risk.TierRiskPct(confidence)
	}
	res := risk.Size(risk.Budget{
		Equity:         r.cash.InexactFloat64(),
		Fraction:       pct,
		Entry:          entry,
		Stop:           stop,
		PipLocation:    market.Lookup(r.cfg.Instrument).PipLocation,
		QuoteToAccount: r.quote(entry),
	})
	if v := risk.CheckSize(r.policy, res, r.cash.InexactFloat64()); v != nil {
		return 0, v
	}
	return res.Units, nil
}

func (r *run) open(f Fill) {
	p, ev := Open(f, r.costs)
	r.pos = p
	r.log.Debug().
		Str("trade", p.ID).
		Stringer("direction", p.Direction).
		Float64("entry", ev.Price).
		Float64("units", ev.Units).
		Float64("stop", p.Stop).
		Float64("take_profit", p.TakeProfit).
		Msg("position opened")
}

func (r *run) skip(i int, t time.Time, reason SkipReason, detail string) {
	r.res.SkipReasons[reason]++
	r.res.Skips = append(r.res.Skips, Skip{Bar: i, Time: t, Reason: reason, Detail: detail})
}

// input is the analyzer's view at the close of bar i: the M5 tail up to and
// including i and only the H1/H4 candles completed by that close.
func (r *run) input(i int) smc.Input {
	m5 := r.data.M5[:i+1]
	closeAt := m5[i].Time.Add(market.M5.Duration())
	return smc.Input{
		Instrument: r.cfg.Instrument,
		H4:         market.Tail(market.Completed(r.data.H4, market.H4, closeAt), r.cfg.Lookback.H4),
		H1:         market.Tail(market.Completed(r.data.H1, market.H1, closeAt), r.cfg.Lookback.H1),
		M5:         market.Tail(m5, r.cfg.Lookback.M5),
	}
}

func (r *run) checkSignal(i int, c market.Candle) error {
	if !market.InAny(r.cfg.Sessions, c.Time) {
		r.skip(i, c.Time, SkipOutsideSession, fmt.Sprintf("%s UTC", c.Time.UTC().Format("15:04")))
		return nil
	}
	in := r.input(i)
	if rf := r.cfg.Regime; rf.Enabled {
		adx, ok := indicators.ADXOf(in.H1, rf.ADXPeriod)
		if !ok {
			r.skip(i, c.Time, SkipRegimeFilter, "ADX unavailable")
			return nil
		}
		if adx < rf.MinADX {
			r.skip(i, c.Time, SkipRegimeFilter, fmt.Sprintf("ADX %.1f < %.1f", adx, rf.MinADX))
			return nil
		}
	}

	r.res.Evaluations++
	a, err := r.analyzer.Analyze(in)
	if err != nil {
		return fmt.Errorf("bar %d (%s): %w", i, c.Time.Format(time.RFC3339), err)
	}

	sig := Signal{
		Bar: i, Time: c.Time, Price: a.Price,
		Direction: a.Direction, Grade: a.Grade, Confidence: a.Confidence, Score: a.Score,
		StopLoss: a.StopLoss, TakeProfit: a.TakeProfit, RiskReward: a.RiskReward,
	}
	reason, detail, ok := r.entry(i, c, a)
	if !ok {
		sig.Skip, sig.Detail = &reason, detail
		r.skip(i, c.Time, reason, detail)
	}
	r.res.Signals = append(r.res.Signals, sig)
	return nil
}

// gate maps an analysis to the first unmet signal requirement.
func (r *run) gate(a *smc.Analysis) (SkipReason, string, bool) {
	switch {
	case a.Sweep == nil:
		return SkipNoSweep, "no liquidity sweep in lookback", false
	case a.Shift() == nil:
		return SkipNoStructureShift, "no CHoCH or BOS", false
	case a.Direction == smc.NoDirection:
		return SkipNoDirection, fmt.Sprintf("%s sweep without confirming shift or aligned HTF (%s)", a.Sweep.Side, a.HTFBias), false
	case a.Grade == smc.NoTrade || a.Grade < r.cfg.MinGrade:
		return SkipBelowMinGrade, fmt.Sprintf("grade %s (score %d) < %s", a.Grade, a.Score, r.cfg.MinGrade), false
	case a.Confidence < r.cfg.MinConfidence:
		return SkipBelowMinConfidence, fmt.Sprintf("confidence %d < %d", a.Confidence, r.cfg.MinConfidence), false
	}
	return 0, "", true
}

func (r *run) entry(i int, c market.Candle, a *smc.Analysis) (SkipReason, string, bool) {
	if reason, detail, ok := r.gate(a); !ok {
		return reason, detail, false
	}
	r.res.SignalsGenerated++

	setup := Setup{
		Grade: a.Grade, Confidence: a.Confidence, Score: a.Score,
		HTFBias: a.HTFBias, SweepLevel: a.Sweep.Level.Price, Zone: a.EntryZone, SignalBar: i,
	}

	limit := r.cfg.LimitEntry.Enabled
	if limit && a.EntryZone == nil {
		if !r.cfg.MarketFallback {
			return SkipNoEntryZone, "no unfilled FVG or fresh order block in direction", false
		}
		limit = false
	}

	entry := a.Price
	if limit {
		entry = limitPrice(*a.EntryZone, a.Direction, r.cfg.LimitEntry.Midpoint, a.Price)
	}
	dec := risk.Evaluate(r.policy, r.intent(a.Direction, entry, a.StopLoss, a.TakeProfit))
	if v, bad := dec.First(); bad {
		return violationReason(v.Code), v.Msg, false
	}

	if limit {
		o := &PendingOrder{
			ID: r.ids.Next(), Direction: a.Direction, Limit: entry, Zone: *a.EntryZone,
			StopLoss: a.StopLoss, TakeProfit: a.TakeProfit,
			CreatedBar: i, MaxBars: r.cfg.LimitEntry.MaxBars, Setup: setup,
			record: len(r.res.Orders),
		}
		r.res.Orders = append(r.res.Orders, OrderRecord{
			ID: o.ID, Direction: o.Direction, Limit: o.Limit, Zone: o.Zone,
			StopLoss: o.StopLoss, TakeProfit: o.TakeProfit, MaxBars: o.MaxBars,
			CreatedBar: i, CreatedTime: c.Time, Outcome: OrderPending,
		})
		r.pending = o
		r.log.Debug().Str("order", o.ID).Stringer("direction", o.Direction).Float64("limit", o.Limit).Msg("limit order placed")
		return 0, "", true
	}

	units, v := r.size(entry, a.StopLoss, a.Confidence)
	if v != nil {
		return SkipInsufficientSize, v.Msg, false
	}
	r.open(Fill{
		ID: r.ids.Next(), Instrument: r.cfg.Instrument, Direction: a.Direction, Units: units,
		Raw: entry, Bar: i, Time: c.Time, Stop: a.StopLoss, TakeProfit: a.TakeProfit, Setup: setup,
	})
	return 0, "", true
}

// limitPrice is the zone midpoint or the near edge, never worse than the
// current price.
func limitPrice(z smc.Zone, d smc.Direction, midpoint bool, price float64) float64 {
	if midpoint {
		if d == smc.Long {
			return math.Min(z.Midpoint(), price)
		}
		return math.Max(z.Midpoint(), price)
	}
	if d == smc.Long {
		return math.Min(z.High, price)
	}
	return math.Max(z.Low, price)
}

func crossAsset(d Data, start, end time.Time) []CrossAssetRef {
	var out []CrossAssetRef
	for inst, cs := range d.CrossAsset {
		span := market.Between(cs, start, end.Add(time.Nanosecond))
		ref := CrossAssetRef{Instrument: inst, Bars: len(span)}
		if len(span) > 1 && span[0].Open != 0 {
			ref.ReturnPct = (span[len(span)-1].Close - span[0].Open) / span[0].Open * 100
		}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}
