// Package report turns backtest results into what the user sees: a
// cumulative-return chart and the HTML pages around it.
package report

import (
	"embed"
	"encoding/base64"
	"html/template"

	"github.com/shopspring/decimal"

	"rsi-backtest/internal/backtest"
	"rsi-backtest/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	IndexTemplate  = "index.html"
	ResultTemplate = "result.html"
)

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// NotAvailable is shown for an undefined statistic.
const NotAvailable = "n/a"

var hundred = decimal.NewFromInt(100)

// Percent formats a fractional return as a percentage with the given
// number of decimal places.
func Percent(n model.NullFloat, places int32) string {
	if !n.Valid {
		return NotAvailable
	}
	return decimal.NewFromFloat(n.Float64).Mul(hundred).StringFixed(places) + "%"
}

// FormView backs the input form. Field values are echoed back as typed.
type FormView struct {
	Symbol    string
	BuyLevel  string
	SellLevel string
	Years     string
	Error     string
	MaxYears  int
	Window    int
}

// DefaultForm is the form shown on first load.
func DefaultForm(window, maxYears int) FormView {
	return FormView{
		BuyLevel:  "30",
		SellLevel: "70",
		Years:     "5",
		MaxYears:  maxYears,
		Window:    window,
	}
}

// ResultView backs the result page.
type ResultView struct {
	Symbol           string
	BuyLevel         int
	SellLevel        int
	Years            int
	Window           int
	Start            string
	End              string
	AverageReturn    string
	CumulativeReturn string
	StdDev           string
	BestDay          string
	WorstDay         string
	Trades           int
	Days             int
	ChartURI         template.URL
}

// NewResultView formats res. chartPNG may be nil when no chart was drawn.
func NewResultView(res *backtest.Result, chartPNG []byte) ResultView {
	v := ResultView{
		Symbol:           res.Params.Symbol,
		BuyLevel:         res.Params.BuyLevel,
		SellLevel:        res.Params.SellLevel,
		Years:            res.Params.Years,
		Window:           res.Window,
		Start:            res.Start.Format("2006-01-02"),
		End:              res.End.AddDate(0, 0, -1).Format("2006-01-02"),
		AverageReturn:    Percent(res.Summary.AverageReturn, 4),
		CumulativeReturn: Percent(res.Summary.CumulativeReturn, 2),
		StdDev:           Percent(res.Summary.StdDev, 4),
		BestDay:          Percent(res.Summary.BestDay, 2),
		WorstDay:         Percent(res.Summary.WorstDay, 2),
		Trades:           res.Summary.Trades,
		Days:             res.Summary.Days,
	}
	if len(chartPNG) > 0 {
		// Encoded bytes are base64 only, so the URI is safe to mark trusted.
		v.ChartURI = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(chartPNG))
	}
	return v
}
