// Package csvfile loads a daily price table exported as CSV (Yahoo's
// "Download" layout: Date,Open,High,Low,Close,Adj Close,Volume).
package csvfile

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"rsi-backtest/internal/model"
)

const (
	colDate     = "Date"
	colOpen     = "Open"
	colHigh     = "High"
	colLow      = "Low"
	colClose    = "Close"
	colAdjClose = "Adj Close"
	colVolume   = "Volume"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

// Load parses a price table. Rows with an unparsable date or a missing close
// are dropped. When adjusted is set and an "Adj Close" column exists it is
// used as the close.
func Load(r io.Reader, symbol string, adjusted bool) (model.PriceSeries, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			colDate:     series.String,
			colOpen:     series.Float,
			colHigh:     series.Float,
			colLow:      series.Float,
			colClose:    series.Float,
			colAdjClose: series.Float,
			colVolume:   series.Float,
		}),
	)
	if df.Err != nil {
		return model.PriceSeries{}, fmt.Errorf("[csv] read: %w", df.Err)
	}

	has := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		has[name] = true
	}
	if !has[colDate] || !has[colClose] {
		return model.PriceSeries{}, fmt.Errorf("[csv] need %q and %q columns, got %v", colDate, colClose, df.Names())
	}

	closeCol := colClose
	if adjusted && has[colAdjClose] {
		closeCol = colAdjClose
	}

	dates := df.Col(colDate).Records()
	closes := df.Col(closeCol).Float()
	opens := floats(df, has, colOpen)
	highs := floats(df, has, colHigh)
	lows := floats(df, has, colLow)
	volumes := floats(df, has, colVolume)

	bars := make([]model.Bar, 0, len(dates))
	for i, raw := range dates {
		day, ok := parseDate(raw)
		if !ok {
			continue
		}
		b := model.Bar{
			Date:  day,
			Open:  pick(opens, i),
			High:  pick(highs, i),
			Low:   pick(lows, i),
			Close: closes[i],
		}
		if v := pick(volumes, i); v > 0 {
			b.Volume = int64(v)
		}
		bars = append(bars, b)
	}
	return model.NewPriceSeries(symbol, bars), nil
}

func floats(df dataframe.DataFrame, has map[string]bool, name string) []float64 {
	if !has[name] {
		return nil
	}
	return df.Col(name).Float()
}

func pick(s []float64, i int) float64 {
	if i >= len(s) || math.IsNaN(s[i]) {
		return 0
	}
	return s[i]
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Source serves one CSV file as a model.BarSource. The file holds a single
// instrument; the requested symbol only labels the returned series.
type Source struct {
	path     string
	adjusted bool
}

// NewSource returns a source reading path on every fetch.
func NewSource(path string, adjusted bool) *Source {
	return &Source{path: path, adjusted: adjusted}
}

// FetchDaily implements model.BarSource.
func (s *Source) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return model.PriceSeries{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("[csv] open %s: %w", s.path, err)
	}
	defer f.Close()

	series, err := Load(f, symbol, s.adjusted)
	if err != nil {
		return model.PriceSeries{}, err
	}
	return series.Between(start, end), nil
}
