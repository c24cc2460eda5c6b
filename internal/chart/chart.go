// Package chart renders monitor history as PNG images for the dashboard.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pulseboard/pulseboard/internal/store"
)

const maxPoints = 500

// RenderHistory draws the monitor's sample history to w as a PNG time series.
// go-chart needs at least two points to draw a line.
func RenderHistory(w io.Writer, m *store.Monitor, samples []store.Sample) error {
	if len(samples) < 2 {
		return errors.New("not enough data points to render")
	}

	samples = downsample(samples, maxPoints)

	x := make([]time.Time, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.ComputedAt
		y[i] = s.Value
	}

	yName := m.Name
	if m.Unit != "" {
		yName = fmt.Sprintf("%s (%s)", m.Name, m.Unit)
	}
	format := "%." + strconv.Itoa(m.DecimalPlaces) + "f"

	seriesColor := parseHexColor(m.Color)
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: yName,
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, format)
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    m.Name,
				XValues: x,
				YValues: y,
				Style: chart.Style{
					StrokeColor: seriesColor,
					FillColor:   seriesColor.WithAlpha(32),
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func downsample(samples []store.Sample, max int) []store.Sample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	result := make([]store.Sample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

// parseHexColor turns a "#rrggbb" dashboard color into a drawing color,
// falling back to the default blue on anything malformed.
func parseHexColor(s string) drawing.Color {
	fallback := drawing.Color{R: 59, G: 130, B: 246, A: 255}
	if len(s) != 7 || s[0] != '#' {
		return fallback
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return fallback
	}
	return drawing.Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}
}
