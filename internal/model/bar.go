package model

import (
	"math"
	"sort"
	"time"
)

// Bar is one daily OHLC observation for a single instrument.
// Date is the trading day at 00:00 UTC.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is the daily bar history of one symbol, ordered by strictly
// increasing date. It is built once per request and never mutated afterwards.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// NewPriceSeries sorts bars by date, keeps the last bar of any duplicated day
// and drops bars whose close is not a positive finite number.
func NewPriceSeries(symbol string, bars []Bar) PriceSeries {
	clean := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			continue
		}
		b.Date = TradingDay(b.Date)
		clean = append(clean, b)
	}
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Date.Before(clean[j].Date) })

	out := clean[:0]
	for _, b := range clean {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return PriceSeries{Symbol: symbol, Bars: out}
}

// Len returns the number of trading days in the series.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Empty reports whether the series has no trading days.
func (s PriceSeries) Empty() bool { return len(s.Bars) == 0 }

// Closes returns the closing prices in date order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the trading days in order.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Between returns the bars with start <= Date < end.
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	out := make([]Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if b.Date.Before(start) || !b.Date.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return PriceSeries{Symbol: s.Symbol, Bars: out}
}

// TradingDay truncates t to midnight UTC of its calendar day.
func TradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
