package loader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seriesProvider serves a fixed H1 series and records requested ranges.
type seriesProvider struct {
	candles []market.Candle
	calls   []Range
	overlap bool
	empty   map[int]bool
	err     error
}

func (p *seriesProvider) Fetch(ctx context.Context, instrument string, tf market.Timeframe, start, end time.Time) ([]market.Candle, error) {
	idx := len(p.calls)
	p.calls = append(p.calls, Range{Start: start, End: end})
	if p.err != nil {
		return nil, p.err
	}
	if p.empty[idx] {
		return nil, nil
	}
	if p.overlap {
		end = end.Add(tf.Duration())
	}
	return market.Between(p.candles, start, end), nil
}

func hourly(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := 1.1 + float64(i)*0.0001
		out[i] = market.Candle{Time: day0.Add(time.Duration(i) * time.Hour), Open: p, High: p + 0.0005, Low: p - 0.0005, Close: p}
	}
	return out
}

func TestChunks(t *testing.T) {
	t.Parallel()

	req := Request{Instrument: "EUR_USD", Timeframe: market.H1, Start: day0, End: day0.Add(25 * time.Hour)}
	chunks := Chunks(req, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, day0, chunks[0].Start)
	assert.Equal(t, day0.Add(10*time.Hour), chunks[0].End)
	assert.Equal(t, chunks[0].End, chunks[1].Start)
	assert.Equal(t, req.End, chunks[2].End)
}

func TestLoad_StitchesAndDedupsChunkBoundaries(t *testing.T) {
	t.Parallel()

	p := &seriesProvider{candles: hourly(48), overlap: true}
	l := New(p, WithMaxBars(10))

	res, err := l.Load(context.Background(), Request{
		Instrument: "EUR_USD", Timeframe: market.H1, Start: day0, End: day0.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, p.calls, 5)
	assert.Equal(t, 5, res.Chunks)
	require.Len(t, res.Candles, 48)
	require.NoError(t, market.Validate(res.Candles))
	assert.Empty(t, res.Missing)
}

func TestLoad_PartialSuccessReportsMissing(t *testing.T) {
	t.Parallel()

	p := &seriesProvider{candles: hourly(30), empty: map[int]bool{1: true}}
	l := New(p, WithMaxBars(10))

	res, err := l.Load(context.Background(), Request{
		Instrument: "EUR_USD", Timeframe: market.H1, Start: day0, End: day0.Add(30 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, res.Candles, 20)
	require.Len(t, res.Missing, 1)
	assert.Equal(t, day0.Add(10*time.Hour), res.Missing[0].Start)

	err = res.Require(25)
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrDataInsufficient))
	assert.NoError(t, res.Require(20))
}

func TestLoad_NothingRetrieved(t *testing.T) {
	t.Parallel()

	p := &seriesProvider{}
	_, err := New(p).Load(context.Background(), Request{
		Instrument: "EUR_USD", Timeframe: market.M5, Start: day0, End: day0.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoad_ProviderError(t *testing.T) {
	t.Parallel()

	p := &seriesProvider{err: errors.New("boom")}
	_, err := New(p).Load(context.Background(), Request{
		Instrument: "EUR_USD", Timeframe: market.M5, Start: day0, End: day0.Add(time.Hour),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoad_InvalidRequest(t *testing.T) {
	t.Parallel()

	l := New(&seriesProvider{})
	_, err := l.Load(context.Background(), Request{Instrument: "EUR_USD", Timeframe: market.H1, Start: day0, End: day0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be before")

	_, err = l.Load(context.Background(), Request{Instrument: "EUR_USD", Timeframe: "X9", Start: day0, End: day0.Add(time.Hour)})
	assert.Error(t, err)
}

func TestLoad_Progress(t *testing.T) {
	t.Parallel()

	var seen []int
	l := New(&seriesProvider{candles: hourly(20)}, WithMaxBars(5), WithProgress(func(done, total int) {
		assert.Equal(t, 4, total)
		seen = append(seen, done)
	}))
	_, err := l.Load(context.Background(), Request{
		Instrument: "EUR_USD", Timeframe: market.H1, Start: day0, End: day0.Add(20 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestCSVRoundTripAndProvider(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := CSVProvider{Dir: dir}

	var buf bytes.Buffer
	n, err := WriteCSV(&buf, "EUR_USD", market.H1, hourly(24))
	require.NoError(t, err)
	require.Equal(t, 24, n)
	require.NoError(t, os.WriteFile(p.Path("EUR_USD", market.H1), buf.Bytes(), 0o644))
	assert.Equal(t, filepath.Join(dir, "EUR_USD_H1.csv"), p.Path("EUR_USD", market.H1))

	got, err := p.Fetch(context.Background(), "EUR_USD", market.H1, day0.Add(2*time.Hour), day0.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, day0.Add(2*time.Hour), got[0].Time)
	assert.InDelta(t, 1.1002, got[0].Open, 1e-12)

	none, err := p.Fetch(context.Background(), "GBP_USD", market.H1, day0, day0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReadCSV_SkipsIncomplete(t *testing.T) {
	t.Parallel()

	in := "time,instrument,granularity,complete,volume,o,h,l,c\n" +
		"2024-01-01T00:00:00Z,EUR_USD,M1,true,10,1.1,1.2,1.0,1.15\n" +
		"2024-01-01T00:01:00Z,EUR_USD,M1,false,5,1.15,1.16,1.14,1.15\n"
	got, err := ReadCSV(bytes.NewBufferString(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.15, got[0].Close)
	assert.Equal(t, 10.0, got[0].Volume)
}
