package sqlite

import (
	"context"
	"log"
	"time"

	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/model"
)

// Recorder archives every series fetched through it. Archive failures are
// logged and counted but never fail the fetch.
type Recorder struct {
	next    model.BarSource
	writer  model.BarWriter
	metrics *metrics.Metrics
}

// NewRecorder wraps next so fetched bars are written to w.
func NewRecorder(next model.BarSource, w model.BarWriter, m *metrics.Metrics) *Recorder {
	return &Recorder{next: next, writer: w, metrics: m}
}

// FetchDaily implements model.BarSource.
func (r *Recorder) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	series, err := r.next.FetchDaily(ctx, symbol, start, end)
	if err != nil || series.Empty() {
		return series, err
	}

	// The request context may be close to its deadline; the archive write
	// gets its own short budget.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	werr := r.writer.SaveBars(wctx, series)
	r.metrics.ArchiveWrite(werr)
	if werr != nil {
		log.Printf("[sqlite] archive %s failed: %v", symbol, werr)
	}
	return series, nil
}
