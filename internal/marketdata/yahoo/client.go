// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rsi-backtest/internal/marketdata"
	"rsi-backtest/internal/model"
)

const (
	defaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (compatible; rsi-backtest/1.0)"
	chartPath        = "/v8/finance/chart/"

	// maxBodyBytes bounds a decoded response; 30 years of daily bars is well under this.
	maxBodyBytes = 16 << 20
)

// Config configures a Client. Zero values take defaults.
type Config struct {
	BaseURL   string        // default: https://query1.finance.yahoo.com
	UserAgent string        // Yahoo rejects requests without one
	Timeout   time.Duration // default: 20s; the caller's context usually fires first
	Debug     bool

	// AdjustedClose uses the split/dividend adjusted close instead of the raw close.
	AdjustedClose bool

	HTTPClient *http.Client
}

// Client is a model.BarSource backed by the chart API.
type Client struct {
	baseURL       string
	userAgent     string
	debug         bool
	adjustedClose bool
	httpClient    *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:     cfg.UserAgent,
		debug:         cfg.Debug,
		adjustedClose: cfg.AdjustedClose,
		httpClient:    hc,
	}
}

// ---- Wire format ----

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// FetchDaily implements model.BarSource. Rows with a missing close are skipped.
func (c *Client) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	reqURL := c.baseURL + chartPath + url.PathEscape(symbol) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.debug {
		log.Printf("[yahoo] request: GET %s", reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("[yahoo] GET %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("[yahoo] read body: %w", err)
	}

	if c.debug {
		log.Printf("[yahoo] response: code=%d bytes=%d", resp.StatusCode, len(raw))
	}

	var out chartResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return model.PriceSeries{}, fmt.Errorf("%w: %s", marketdata.ErrSymbolNotFound, symbol)
		}
		return model.PriceSeries{}, fmt.Errorf("%w: code=%d: couldn't parse JSON response: %v",
			marketdata.ErrUpstream, resp.StatusCode, err)
	}

	if e := out.Chart.Error; e != nil {
		if resp.StatusCode == http.StatusNotFound || strings.EqualFold(e.Code, "Not Found") {
			return model.PriceSeries{}, fmt.Errorf("%w: %s: %s", marketdata.ErrSymbolNotFound, symbol, e.Description)
		}
		return model.PriceSeries{}, fmt.Errorf("%w: %s: %s", marketdata.ErrUpstream, e.Code, e.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return model.PriceSeries{}, fmt.Errorf("%w: unexpected status %d", marketdata.ErrUpstream, resp.StatusCode)
	}
	if len(out.Chart.Result) == 0 {
		return model.PriceSeries{Symbol: symbol}, nil
	}

	bars, err := c.decodeBars(out.Chart.Result[0])
	if err != nil {
		return model.PriceSeries{}, err
	}
	return model.NewPriceSeries(symbol, bars).Between(start, end), nil
}

func (c *Client) decodeBars(r chartResult) ([]model.Bar, error) {
	if len(r.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := r.Indicators.Quote[0]
	closes := quote.Close
	if c.adjustedClose && len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	}
	if len(closes) != len(r.Timestamp) {
		return nil, errors.Join(marketdata.ErrUpstream,
			fmt.Errorf("[yahoo] %d timestamps but %d closes", len(r.Timestamp), len(closes)))
	}

	bars := make([]model.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(closes, i)
		if cl == nil {
			continue
		}
		// Timestamps mark the exchange-local session open; shift before
		// truncating so the bar lands on its local trading day.
		day := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		b := model.Bar{Date: day, Close: *cl}
		if v := at(quote.Open, i); v != nil {
			b.Open = *v
		}
		if v := at(quote.High, i); v != nil {
			b.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			b.Low = *v
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			b.Volume = *quote.Volume[i]
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func at(s []*float64, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	return s[i]
}
