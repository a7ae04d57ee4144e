package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rsi-backtest/internal/indicator"
	"rsi-backtest/internal/logger"
	"rsi-backtest/internal/marketdata"
	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/model"
	"rsi-backtest/internal/strategy"
)

// Defaults applied by NewRunner to zero-valued options.
const (
	DefaultMaxYears     = 30
	DefaultFetchTimeout = 15 * time.Second
)

// Options configures a Runner.
type Options struct {
	Window       int
	MaxYears     int
	FetchTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// Runner executes the fetch → RSI → signals → returns pipeline for one
// request at a time. It holds only immutable collaborators and is safe for
// concurrent use.
type Runner struct {
	source model.BarSource
	opts   Options
}

// NewRunner creates a runner that fetches bars from source.
func NewRunner(source model.BarSource, opts Options) *Runner {
	if opts.Window < 1 {
		opts.Window = indicator.DefaultRSIWindow
	}
	if opts.MaxYears < 1 {
		opts.MaxYears = DefaultMaxYears
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{source: source, opts: opts}
}

// Window returns the RSI window the runner uses.
func (r *Runner) Window() int { return r.opts.Window }

// MaxYears returns the largest accepted lookback.
func (r *Runner) MaxYears() int { return r.opts.MaxYears }

// Point is one trading day of a backtest result.
type Point struct {
	Date           time.Time       `json:"date"`
	Close          float64         `json:"close"`
	RSI            model.NullFloat `json:"rsi"`
	Signal         strategy.Stance `json:"signal"`
	PositionChange model.NullFloat `json:"position_change"`
	Return         model.NullFloat `json:"return"`
	Cumulative     model.NullFloat `json:"cumulative"`
}

// Result is a completed backtest. Every series is aligned with Points.
type Result struct {
	Params  Params    `json:"params"`
	Window  int       `json:"window"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary Summary   `json:"summary"`
	Points  []Point   `json:"points"`
}

// Dates returns the trading days of the result.
func (r *Result) Dates() []time.Time {
	out := make([]time.Time, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Date
	}
	return out
}

// Curve returns the cumulative return series.
func (r *Result) Curve() []model.NullFloat {
	out := make([]model.NullFloat, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Cumulative
	}
	return out
}

// FinalStance returns the position held on the last trading day.
func (r *Result) FinalStance() strategy.Stance {
	if len(r.Points) == 0 {
		return strategy.Flat
	}
	return r.Points[len(r.Points)-1].Signal
}

// Run validates p, fetches the lookback window and evaluates the strategy.
// Either a complete result or an error is returned, never both.
func (r *Runner) Run(ctx context.Context, p Params) (res *Result, err error) {
	began := time.Now()
	defer func() {
		r.opts.Metrics.ObserveBacktest(Outcome(err), time.Since(began))
		if err != nil {
			r.opts.Logger.Warn("[backtest] run failed",
				append(logger.LogWithRequest(ctx), "symbol", p.Symbol, "error", err)...)
		}
	}()

	p, err = p.Validate(r.opts.MaxYears)
	if err != nil {
		return nil, err
	}

	start, end := Lookback(r.opts.Now(), p.Years)
	series, err := r.fetch(ctx, p.Symbol, start, end)
	if err != nil {
		return nil, err
	}

	res, err = r.Evaluate(series.Between(start, end), p)
	if err != nil {
		return nil, err
	}
	res.Start, res.End = start, end

	r.opts.Logger.Info("[backtest] run complete",
		append(logger.LogWithRequest(ctx),
			"symbol", p.Symbol,
			"days", res.Summary.Days,
			"trades", res.Summary.Trades,
			"position", res.FinalStance().String(),
			"duration", time.Since(began).String(),
		)...)
	return res, nil
}

func (r *Runner) fetch(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	fctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	series, err := r.source.FetchDaily(fctx, symbol, start, end)
	switch {
	case err == nil:
		return series, nil
	case errors.Is(err, marketdata.ErrSymbolNotFound):
		return model.PriceSeries{}, fmt.Errorf("%w: %w", ErrNoData, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded):
		return model.PriceSeries{}, fmt.Errorf("%w after %s: %w", ErrFetchTimeout, r.opts.FetchTimeout, err)
	default:
		return model.PriceSeries{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
}

// Evaluate runs the pure pipeline stages over series. It is deterministic:
// the same series and params always produce the same result.
func (r *Runner) Evaluate(series model.PriceSeries, p Params) (*Result, error) {
	if series.Empty() {
		return nil, fmt.Errorf("%w for %s", ErrNoData, p.Symbol)
	}
	window := r.opts.Window
	if series.Len() <= window {
		return nil, insufficient("%d trading days, need more than %d", series.Len(), window)
	}

	closes := series.Closes()
	rsi := indicator.ComputeRSI(closes, window)
	signals, changes := strategy.GenerateSignals(rsi, float64(p.BuyLevel), float64(p.SellLevel))
	returns, err := strategy.ComputeReturns(closes, changes)
	if err != nil {
		return nil, fmt.Errorf("compute returns: %w", err)
	}

	summary := Summarize(returns)
	if !summary.Defined() {
		return nil, insufficient("no defined strategy return over %d trading days", series.Len())
	}
	summary.Trades = CountTrades(changes)

	curve := CumulativeCurve(returns)
	points := make([]Point, series.Len())
	for i, b := range series.Bars {
		points[i] = Point{
			Date:           b.Date,
			Close:          b.Close,
			RSI:            rsi[i],
			Signal:         signals[i],
			PositionChange: changes[i],
			Return:         returns[i],
			Cumulative:     curve[i],
		}
	}

	return &Result{
		Params:  p,
		Window:  window,
		Start:   series.Bars[0].Date,
		End:     series.Bars[series.Len()-1].Date.AddDate(0, 0, 1),
		Summary: summary,
		Points:  points,
	}, nil
}
