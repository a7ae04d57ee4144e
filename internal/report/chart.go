package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"rsi-backtest/internal/model"
)

// ErrNoPoints is returned when a curve has no defined value to draw.
var ErrNoPoints = errors.New("report: nothing to plot")

// Chart dimensions.
const (
	ChartWidth  = 10 * vg.Inch
	ChartHeight = 6 * vg.Inch
)

var lineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// RenderChart draws the cumulative return curve as a PNG. Dates with no
// value are skipped; dates and curve must be aligned.
func RenderChart(w io.Writer, title string, dates []time.Time, curve []model.NullFloat) error {
	if len(dates) != len(curve) {
		return fmt.Errorf("report: %d dates but %d curve points", len(dates), len(curve))
	}

	pts := make(plotter.XYs, 0, len(curve))
	for i, c := range curve {
		if !c.Valid {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(dates[i].Unix()), Y: c.Float64})
	}
	if len(pts) == 0 {
		return ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Returns"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: build line: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(1.5)
	p.Add(line)

	wt, err := p.WriterTo(ChartWidth, ChartHeight, "png")
	if err != nil {
		return fmt.Errorf("report: encode chart: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// ChartPNG renders the chart into memory.
func ChartPNG(title string, dates []time.Time, curve []model.NullFloat) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, title, dates, curve); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
