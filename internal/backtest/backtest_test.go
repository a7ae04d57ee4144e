package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsi-backtest/internal/marketdata"
	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/model"
	"rsi-backtest/internal/strategy"
)

var today = time.Date(2024, 7, 15, 16, 30, 0, 0, time.UTC)

// fakeSource serves a fixed series and records the requested range.
type fakeSource struct {
	series     model.PriceSeries
	err        error
	block      bool
	start, end time.Time
	calls      int
}

func (f *fakeSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	f.calls++
	f.start, f.end = start, end
	if f.block {
		<-ctx.Done()
		return model.PriceSeries{}, ctx.Err()
	}
	return f.series, f.err
}

// dailySeries lays closes on consecutive days ending the day before today.
func dailySeries(closes ...float64) model.PriceSeries {
	first := model.TradingDay(today).AddDate(0, 0, -len(closes))
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Date: first.AddDate(0, 0, i), Close: c}
	}
	return model.NewPriceSeries("TEST", bars)
}

func newRunner(src model.BarSource, window int) (*Runner, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewRunner(src, Options{
		Window:       window,
		MaxYears:     30,
		FetchTimeout: 50 * time.Millisecond,
		Metrics:      m,
		Now:          func() time.Time { return today },
	}), m
}

func validParams() Params {
	return Params{Symbol: "test", BuyLevel: 30, SellLevel: 70, Years: 1}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.10f, want %.10f (diff %.2e)", label, got, want, math.Abs(got-want))
	}
}

// ── Params ──

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"ok", Params{Symbol: " brk-b ", BuyLevel: 30, SellLevel: 70, Years: 5}, ""},
		{"index symbol", Params{Symbol: "^GSPC", BuyLevel: 0, SellLevel: 100, Years: 30}, ""},
		{"empty symbol", Params{Symbol: "  ", BuyLevel: 30, SellLevel: 70, Years: 5}, "symbol"},
		{"bad chars", Params{Symbol: "AAPL;DROP", BuyLevel: 30, SellLevel: 70, Years: 5}, "symbol"},
		{"long symbol", Params{Symbol: "ABCDEFGHIJKLMNOP", BuyLevel: 30, SellLevel: 70, Years: 5}, "symbol"},
		{"buy below range", Params{Symbol: "A", BuyLevel: -1, SellLevel: 70, Years: 5}, "buy_level"},
		{"sell above range", Params{Symbol: "A", BuyLevel: 30, SellLevel: 101, Years: 5}, "sell_level"},
		{"sell equal buy", Params{Symbol: "A", BuyLevel: 50, SellLevel: 50, Years: 5}, "sell_level"},
		{"zero years", Params{Symbol: "A", BuyLevel: 30, SellLevel: 70, Years: 0}, "years"},
		{"too many years", Params{Symbol: "A", BuyLevel: 30, SellLevel: 70, Years: 31}, "years"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Validate(30)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParams_ValidateNormalizesSymbol(t *testing.T) {
	p, err := Params{Symbol: " brk-b ", BuyLevel: 30, SellLevel: 70, Years: 5}.Validate(30)
	require.NoError(t, err)
	assert.Equal(t, "BRK-B", p.Symbol)
}

func TestForm_Params(t *testing.T) {
	p, err := Form{Symbol: "AAPL", BuyLevel: "30", SellLevel: " 70 ", Years: "5"}.Params()
	require.NoError(t, err)
	assert.Equal(t, Params{Symbol: "AAPL", BuyLevel: 30, SellLevel: 70, Years: 5}, p)

	_, err = Form{Symbol: "AAPL", BuyLevel: "thirty", SellLevel: "70", Years: "5"}.Params()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "buy_level", verr.Field)

	_, err = Form{Symbol: "AAPL", BuyLevel: "30", SellLevel: "70"}.Params()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "years", verr.Field)
}

// ── Lookback ──

func TestLookback(t *testing.T) {
	start, end := Lookback(today, 2)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, end.AddDate(0, 0, -730), start)
}

// ── Summary ──

func TestSummarize(t *testing.T) {
	returns := []model.NullFloat{model.None(), model.None(), model.Some(0.1), model.None(), model.Some(-0.05)}
	s := Summarize(returns)

	require.True(t, s.Defined())
	assertClose(t, "average", s.AverageReturn.Float64, 0.025, 1e-12)
	assertClose(t, "cumulative", s.CumulativeReturn.Float64, 1.1*0.95-1, 1e-12)
	assertClose(t, "best", s.BestDay.Float64, 0.1, 1e-12)
	assertClose(t, "worst", s.WorstDay.Float64, -0.05, 1e-12)
	assert.True(t, s.StdDev.Valid)
	assert.Equal(t, 2, s.DefinedReturns)
	assert.Equal(t, 5, s.Days)
}

func TestSummarize_AllNoValueIsUndefined(t *testing.T) {
	s := Summarize([]model.NullFloat{model.None(), model.None()})
	assert.False(t, s.Defined())
	assert.False(t, s.AverageReturn.Valid)
	assert.False(t, s.CumulativeReturn.Valid)

	empty := Summarize(nil)
	assert.False(t, empty.Defined())
}

func TestCumulativeCurve(t *testing.T) {
	curve := CumulativeCurve([]model.NullFloat{model.None(), model.Some(0.1), model.None(), model.Some(0.1)})
	assert.False(t, curve[0].Valid)
	assertClose(t, "c1", curve[1].Float64, 0.1, 1e-12)
	assertClose(t, "c2", curve[2].Float64, 0.1, 1e-12)
	assertClose(t, "c3", curve[3].Float64, 0.21, 1e-12)
}

// ── Runner ──

func TestRunner_HandCalculatedScenario(t *testing.T) {
	src := &fakeSource{series: dailySeries(10, 10.5, 11, 10.8, 11.2, 11.5, 12)}
	r, m := newRunner(src, 3)

	res, err := r.Run(context.Background(), validParams())
	require.NoError(t, err)
	require.Len(t, res.Points, 7)
	assert.Equal(t, "TEST", res.Params.Symbol)

	for i := 0; i < 3; i++ {
		assert.False(t, res.Points[i].RSI.Valid, "rsi[%d]", i)
	}
	assertClose(t, "rsi[3]", res.Points[3].RSI.Float64, 83.3333333333, 1e-6)
	assertClose(t, "rsi[6]", res.Points[6].RSI.Float64, 100, 1e-9)

	// Every RSI is above 70 from day 3: short from day 3, one transition.
	assert.Equal(t, 1, res.Summary.Trades)
	assertClose(t, "return[4]", res.Points[4].Return.Float64, -(11.2-10.8)/10.8, 1e-12)
	assertClose(t, "average", res.Summary.AverageReturn.Float64, (-(11.2-10.8)/10.8+0+0+0+0)/5, 1e-12)
	assertClose(t, "cumulative", res.Summary.CumulativeReturn.Float64, -(11.2-10.8)/10.8, 1e-12)
	assert.Equal(t, strategy.Short, res.FinalStance())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues(metrics.OutcomeOK)))
}

func TestRunner_RequestsLookbackWindow(t *testing.T) {
	src := &fakeSource{series: dailySeries(10, 11, 12, 11, 10)}
	r, _ := newRunner(src, 2)

	p := validParams()
	p.Years = 3
	_, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.TradingDay(today), src.end)
	assert.Equal(t, model.TradingDay(today).AddDate(0, 0, -3*365), src.start)
}

func TestRunner_Idempotent(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5) + float64(i%7)
	}
	src := &fakeSource{series: dailySeries(closes...)}
	r, _ := newRunner(src, 14)

	a, err := r.Run(context.Background(), validParams())
	require.NoError(t, err)
	b, err := r.Run(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunner_AllFlatSignalsGiveZeroCumulative(t *testing.T) {
	// Alternating moves keep RSI near 50, between the thresholds.
	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 101}
	src := &fakeSource{series: dailySeries(closes...)}
	r, _ := newRunner(src, 4)

	res, err := r.Run(context.Background(), validParams())
	require.NoError(t, err)
	for i, p := range res.Points {
		if p.Return.Valid {
			assert.Equal(t, 0.0, p.Return.Float64, "return[%d]", i)
		}
	}
	assert.Equal(t, 0.0, res.Summary.CumulativeReturn.Float64)
	assert.Equal(t, 0, res.Summary.Trades)
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     *fakeSource
		window  int
		want    error
		outcome string
	}{
		{"empty series", &fakeSource{}, 3, ErrNoData, metrics.OutcomeNoData},
		{"symbol not found", &fakeSource{err: fmt.Errorf("x: %w", marketdata.ErrSymbolNotFound)}, 3, marketdata.ErrSymbolNotFound, metrics.OutcomeNoData},
		{"upstream failure", &fakeSource{err: errors.New("503")}, 3, ErrFetchFailed, metrics.OutcomeFetchError},
		{"timeout", &fakeSource{block: true}, 3, ErrFetchTimeout, metrics.OutcomeTimeout},
		{"fewer bars than window", &fakeSource{series: dailySeries(10, 11, 12)}, 3, ErrInsufficientHistory, metrics.OutcomeInsufficient},
		{"no defined return", &fakeSource{series: dailySeries(10, 11)}, 1, ErrInsufficientHistory, metrics.OutcomeInsufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRunner(tt.src, tt.window)
			res, err := r.Run(context.Background(), validParams())
			assert.Nil(t, res)
			require.ErrorIs(t, err, tt.want)
			assert.NotEqual(t, UserMessage(errors.New("other")), UserMessage(err))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues(tt.outcome)))
		})
	}
}

func TestRunner_InvalidParamsSkipFetch(t *testing.T) {
	src := &fakeSource{series: dailySeries(1, 2, 3, 4, 5)}
	r, _ := newRunner(src, 3)

	_, err := r.Run(context.Background(), Params{Symbol: "A", BuyLevel: 80, SellLevel: 20, Years: 1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, src.calls)
	assert.Contains(t, UserMessage(err), "sell_level")
}

func TestRunner_FailureDoesNotAffectNextRequest(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	r, _ := newRunner(src, 3)

	_, err := r.Run(context.Background(), validParams())
	require.Error(t, err)

	src.err = nil
	src.series = dailySeries(10, 10.5, 11, 10.8, 11.2, 11.5, 12)
	_, err = r.Run(context.Background(), validParams())
	require.NoError(t, err)
}

func TestRunner_DropsBarsOutsideLookback(t *testing.T) {
	s := dailySeries(10, 10.5, 11, 10.8, 11.2, 11.5, 12)
	s.Bars = append(s.Bars, model.Bar{Date: model.TradingDay(today), Close: 99})
	src := &fakeSource{series: s}
	r, _ := newRunner(src, 3)

	res, err := r.Run(context.Background(), validParams())
	require.NoError(t, err)
	assert.Len(t, res.Points, 7, "today's bar is outside [start, end)")
}

func TestRunner_LogsFinalPosition(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(&fakeSource{series: dailySeries(10, 10.5, 11, 10.8, 11.2, 11.5, 12)}, Options{
		Window: 3,
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Now:    func() time.Time { return today },
	})

	_, err := r.Run(context.Background(), validParams())
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "[backtest] run complete", rec["msg"])
	assert.Equal(t, "SHORT", rec["position"])
}

func TestResult_FinalStanceOfEmptyResultIsFlat(t *testing.T) {
	assert.Equal(t, strategy.Flat, (&Result{}).FinalStance())
}
