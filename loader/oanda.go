package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
)

func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo":
		return "https://api-fxpractice.oanda.com", nil
	case "live", "trade":
		return "https://api-fxtrade.oanda.com", nil
	default:
		return "", fmt.Errorf("unknown oanda environment %q", env)
	}
}

type candlesResp struct {
	Instrument  string `json:"instrument"`
	Granularity string `json:"granularity"`
	Candles     []struct {
		Complete bool   `json:"complete"`
		Time     string `json:"time"`
		Volume   int    `json:"volume"`
		Mid      *struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid,omitempty"`
	} `json:"candles"`
}

// OANDAProvider fetches mid-price candles from the OANDA v3 REST API.
// Requests are rate limited and pass through a circuit breaker.
type OANDAProvider struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewOANDAProvider(baseURL, token string, rps float64) *OANDAProvider {
	if rps <= 0 {
		rps = 10
	}

	st := gobreaker.Settings{
		Name:     "oanda-candles",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	return &OANDAProvider{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func granularity(tf market.Timeframe) string {
	if tf == market.D1 {
		return "D"
	}
	return string(tf)
}

func (p *OANDAProvider) Fetch(ctx context.Context, instrument string, tf market.Timeframe, start, end time.Time) ([]market.Candle, error) {
	if p.Token == "" {
		return nil, fmt.Errorf("oanda: missing token")
	}
	if p.BaseURL == "" {
		return nil, fmt.Errorf("oanda: missing base url")
	}
	if instrument == "" {
		return nil, fmt.Errorf("oanda: missing instrument")
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if p.breaker == nil {
		return p.fetch(ctx, instrument, tf, start, end)
	}
	v, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, instrument, tf, start, end)
	})
	if err != nil {
		return nil, err
	}
	return v.([]market.Candle), nil
}

func (p *OANDAProvider) fetch(ctx context.Context, instrument string, tf market.Timeframe, start, end time.Time) ([]market.Candle, error) {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Path = fmt.Sprintf("/v3/instruments/%s/candles", instrument)

	q := u.Query()
	q.Set("granularity", granularity(tf))
	q.Set("price", "M")
	q.Set("from", start.UTC().Format(time.RFC3339Nano))
	q.Set("to", end.UTC().Format(time.RFC3339Nano))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Content-Type", "application/json")

	httpClient := p.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("oanda candles http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr candlesResp
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, err
	}

	out := make([]market.Candle, 0, len(cr.Candles))
	for _, cd := range cr.Candles {
		if !cd.Complete || cd.Mid == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, cd.Time)
		if err != nil {
			return nil, fmt.Errorf("oanda candle time %q: %w", cd.Time, err)
		}

		var f [4]float64
		for i, s := range []string{cd.Mid.O, cd.Mid.H, cd.Mid.L, cd.Mid.C} {
			if f[i], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("oanda candle price %q: %w", s, err)
			}
		}

		out = append(out, market.Candle{
			Time:   ts.UTC(),
			Open:   f[0],
			High:   f[1],
			Low:    f[2],
			Close:  f[3],
			Volume: float64(cd.Volume),
		})
	}
	return out, nil
}
