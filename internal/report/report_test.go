package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsi-backtest/internal/backtest"
	"rsi-backtest/internal/model"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func TestChartPNG(t *testing.T) {
	curve := []model.NullFloat{model.None(), model.Some(0), model.Some(0.02), model.Some(-0.01)}
	png, err := ChartPNG("Cumulative Returns", dates(4), curve)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "expected PNG signature")
}

func TestChartPNG_NothingToPlot(t *testing.T) {
	_, err := ChartPNG("x", dates(2), []model.NullFloat{model.None(), model.None()})
	assert.True(t, errors.Is(err, ErrNoPoints))
}

func TestChartPNG_Misaligned(t *testing.T) {
	_, err := ChartPNG("x", dates(3), []model.NullFloat{model.Some(1)})
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "1.23%", Percent(model.Some(0.012345), 2))
	assert.Equal(t, "-0.0500%", Percent(model.Some(-0.0005), 4))
	assert.Equal(t, "0.00%", Percent(model.Some(0), 2))
	assert.Equal(t, NotAvailable, Percent(model.None(), 2))
}

func sampleResult() *backtest.Result {
	return &backtest.Result{
		Params: backtest.Params{Symbol: "AAPL", BuyLevel: 30, SellLevel: 70, Years: 1},
		Window: 14,
		Start:  time.Date(2023, 7, 16, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Summary: backtest.Summary{
			AverageReturn:    model.Some(0.0004),
			CumulativeReturn: model.Some(0.125),
			Trades:           7,
			Days:             250,
		},
	}
}

func TestNewResultView(t *testing.T) {
	v := NewResultView(sampleResult(), pngMagic)
	assert.Equal(t, "0.0400%", v.AverageReturn)
	assert.Equal(t, "12.50%", v.CumulativeReturn)
	assert.Equal(t, NotAvailable, v.StdDev)
	assert.Equal(t, "2024-07-14", v.End)
	assert.True(t, strings.HasPrefix(string(v.ChartURI), "data:image/png;base64,"))

	noChart := NewResultView(sampleResult(), nil)
	assert.Empty(t, noChart.ChartURI)
}

func TestTemplates_Render(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	var buf bytes.Buffer
	form := DefaultForm(14, 30)
	form.Error = "Symbol <not> found"
	require.NoError(t, tmpl.ExecuteTemplate(&buf, IndexTemplate, form))
	html := buf.String()
	assert.Contains(t, html, `name="buy_level"`)
	assert.Contains(t, html, "Symbol &lt;not&gt; found", "messages are escaped")

	buf.Reset()
	require.NoError(t, tmpl.ExecuteTemplate(&buf, ResultTemplate, NewResultView(sampleResult(), pngMagic)))
	html = buf.String()
	assert.Contains(t, html, "12.50%")
	assert.Contains(t, html, `src="data:image/png;base64,`)
	assert.Contains(t, html, "symbol=AAPL&amp;buy_level=30")
}
