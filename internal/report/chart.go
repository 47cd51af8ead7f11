// Package report renders the diagnostics of a pipeline run: the country
// distribution as a PNG or console bar chart and a table of the highest
// value customers. Nothing here feeds back into the value pipeline.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paveg/cltv/internal/cltv"
	"github.com/paveg/cltv/internal/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Bar is one labelled bar
type Bar struct {
	Label string
	Value float64
}

// CountryBars turns a country distribution into bars, keeping its order
func CountryBars(counts []cltv.CountryCount) []Bar {
	bars := make([]Bar, len(counts))
	for i, c := range counts {
		bars[i] = Bar{Label: c.Country, Value: float64(c.Customers)}
	}
	return bars
}

// Chart dimensions
const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
	barWidth    = 20
)

var barColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// BarChart draws bars to path. The image format follows the extension
// (.png, .svg, .pdf, ...).
func BarChart(bars []Bar, title, path string) error {
	const op = "BarChart"

	if len(bars) == 0 {
		return errors.NewInvalidInputError(op, "no bars to draw")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Customers"
	p.X.Tick.Label.Rotation = math.Pi / 6

	values := make(plotter.Values, len(bars))
	labels := make([]string, len(bars))
	for i, b := range bars {
		values[i] = b.Value
		labels[i] = b.Label
	}

	chart, err := plotter.NewBarChart(values, vg.Points(barWidth))
	if err != nil {
		return errors.NewInvalidInputError(op, err.Error())
	}
	chart.Color = barColor
	chart.LineStyle.Width = vg.Length(0)

	p.Add(chart)
	p.NominalX(labels...)

	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return errors.NewFileError(op, path, err)
	}
	return nil
}

// TextChart writes one line per bar, scaled so the longest bar is width
// characters
func TextChart(w io.Writer, bars []Bar, width int) error {
	if width < 1 {
		width = 1
	}

	labelWidth, peak := 0, 0.0
	for _, b := range bars {
		labelWidth = max(labelWidth, len(b.Label))
		peak = max(peak, b.Value)
	}

	for _, b := range bars {
		n := 0
		if peak > 0 && b.Value > 0 {
			n = max(1, int(math.Round(b.Value/peak*float64(width))))
		}
		line := fmt.Sprintf("%-*s | %s %s\n", labelWidth, b.Label, strings.Repeat("#", n),
			strconv.FormatFloat(b.Value, 'f', -1, 64))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
