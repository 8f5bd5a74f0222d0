// Package loader fetches historical candles from a Provider, splitting
// large ranges into per-request chunks and stitching the results.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

// DefaultMaxBarsPerRequest matches the per-request cap of common broker APIs.
const DefaultMaxBarsPerRequest = 5000

// ErrDataUnavailable is returned when the provider has no candles for the
// requested range.
var ErrDataUnavailable = errors.New("data unavailable")

// Provider is the candle feed contract. Implementations return candles with
// start <= Time < end; returning an overlapping candle at a boundary is
// allowed.
type Provider interface {
	Fetch(ctx context.Context, instrument string, tf market.Timeframe, start, end time.Time) ([]market.Candle, error)
}

type Request struct {
	Instrument string
	Timeframe  market.Timeframe
	Start      time.Time
	End        time.Time
}

func (r Request) Validate() error {
	if r.Instrument == "" {
		return fmt.Errorf("instrument is required")
	}
	if r.Timeframe.Duration() == 0 {
		return fmt.Errorf("unsupported timeframe %q", r.Timeframe)
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("start %s must be before end %s",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) String() string {
	return r.Start.UTC().Format(time.RFC3339) + ".." + r.End.UTC().Format(time.RFC3339)
}

type Result struct {
	Request Request
	Candles []market.Candle
	Chunks  int
	Missing []Range // sub-ranges the provider returned nothing for
}

// Require checks the result holds at least min candles.
func (r *Result) Require(min int) error {
	if len(r.Candles) < min {
		return fmt.Errorf("%w: %s %s has %d candles, need %d",
			market.ErrDataInsufficient, r.Request.Instrument, r.Request.Timeframe, len(r.Candles), min)
	}
	return nil
}

type Loader struct {
	provider Provider
	maxBars  int
	log      zerolog.Logger
	progress func(done, total int)
}

type Option func(*Loader)

func WithMaxBars(n int) Option {
	return func(l *Loader) { l.maxBars = n }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithProgress registers a callback invoked after every chunk.
func WithProgress(fn func(done, total int)) Option {
	return func(l *Loader) { l.progress = fn }
}

func New(p Provider, opts ...Option) *Loader {
	l := &Loader{
		provider: p,
		maxBars:  DefaultMaxBarsPerRequest,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxBars <= 0 {
		l.maxBars = DefaultMaxBarsPerRequest
	}
	return l
}

// Chunks splits the request into sequential sub-ranges of at most maxBars
// bars each.
func Chunks(req Request, maxBars int) []Range {
	span := time.Duration(maxBars) * req.Timeframe.Duration()
	if span <= 0 {
		return []Range{{Start: req.Start, End: req.End}}
	}

	var out []Range
	for s := req.Start; s.Before(req.End); s = s.Add(span) {
		e := s.Add(span)
		if e.After(req.End) {
			e = req.End
		}
		out = append(out, Range{Start: s, End: e})
	}
	return out
}

// Load fetches the full range chunk by chunk. Chunks that come back empty
// are recorded in Result.Missing; the call fails with ErrDataUnavailable
// only when nothing at all was retrieved.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}

	chunks := Chunks(req, l.maxBars)
	res := &Result{Request: req, Chunks: len(chunks)}

	var all []market.Candle
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		got, err := l.provider.Fetch(ctx, req.Instrument, req.Timeframe, ch.Start, ch.End)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s %s: %w", req.Instrument, req.Timeframe, ch, err)
		}
		if len(got) == 0 {
			res.Missing = append(res.Missing, ch)
			l.log.Warn().
				Str("instrument", req.Instrument).
				Str("timeframe", string(req.Timeframe)).
				Str("range", ch.String()).
				Msg("provider returned no candles")
		}
		all = append(all, got...)

		if l.progress != nil {
			l.progress(i+1, len(chunks))
		}
	}

	res.Candles = market.Normalize(all)
	if len(res.Candles) == 0 {
		return res, fmt.Errorf("%w: %s %s %s", ErrDataUnavailable, req.Instrument, req.Timeframe,
			Range{Start: req.Start, End: req.End})
	}

	l.log.Debug().
		Str("instrument", req.Instrument).
		Str("timeframe", string(req.Timeframe)).
		Int("candles", len(res.Candles)).
		Int("chunks", len(chunks)).
		Int("missing", len(res.Missing)).
		Msg("candles loaded")

	return res, nil
}
