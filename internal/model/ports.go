package model

import (
	"context"
	"time"
)

// ── Market data ports ──
// Concrete sources (Yahoo, CSV, SQLite archive) and decorators (Redis cache,
// archive recorder) all satisfy BarSource so they can be stacked freely.

// BarSource returns daily bars for a symbol with start <= date < end.
type BarSource interface {
	// FetchDaily returns the daily price series for symbol. An unknown symbol
	// or an empty range yields an empty series or a not-found error; callers
	// must handle both.
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) (PriceSeries, error)
}

// BarWriter persists daily bars.
type BarWriter interface {
	// SaveBars upserts every bar of the series.
	SaveBars(ctx context.Context, series PriceSeries) error

	// Close releases underlying resources.
	Close() error
}
