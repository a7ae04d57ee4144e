// Package marketdata holds the daily bar sources used by the backtester and
// the decorators shared by all of them.
package marketdata

import (
	"context"
	"errors"
	"time"

	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/model"
)

var (
	// ErrSymbolNotFound is returned when a source does not know the symbol.
	ErrSymbolNotFound = errors.New("marketdata: symbol not found")

	// ErrUpstream is returned when a remote source answers with an unusable response.
	ErrUpstream = errors.New("marketdata: upstream error")
)

// Instrumented records fetch latency, errors and bar counts for a source.
type Instrumented struct {
	next    model.BarSource
	name    string
	metrics *metrics.Metrics
}

// Instrument wraps next so every fetch is observed under the given source name.
func Instrument(next model.BarSource, name string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, name: name, metrics: m}
}

// FetchDaily implements model.BarSource.
func (i *Instrumented) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	began := time.Now()
	series, err := i.next.FetchDaily(ctx, symbol, start, end)
	i.metrics.ObserveFetch(i.name, time.Since(began), series.Len(), err)
	return series, err
}
