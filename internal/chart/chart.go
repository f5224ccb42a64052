// Package chart renders the dashboard's inline SVG charts.
package chart

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Defaults for dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 4
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no data points")

// Point is one labelled value.
type Point struct {
	Label string
	Value float64
}

// Opts customises a chart.
type Opts struct {
	Width       int
	Height      int
	Title       string
	Description string
	Color       string
	AxisColor   string
	GridColor   string
	Padding     float64
	Ticks       int
}

type frame struct {
	width, height int
	padding       float64
	plotW, plotH  float64
	max           float64
	ticks         int
	axis, grid    string
}

func newFrame(points []Point, opts Opts) (frame, error) {
	if len(points) == 0 {
		return frame{}, ErrNoData
	}
	f := frame{
		width:   opts.Width,
		height:  opts.Height,
		padding: opts.Padding,
		ticks:   opts.Ticks,
		axis:    fallback(opts.AxisColor, "#90A1B9"),
		grid:    fallback(opts.GridColor, "#2B7FFF33"),
	}
	if f.width <= 0 {
		f.width = DefaultWidth
	}
	if f.height <= 0 {
		f.height = DefaultHeight
	}
	if f.padding <= 0 {
		f.padding = DefaultPadding
	}
	if f.ticks <= 0 {
		f.ticks = DefaultTicks
	}
	f.plotW = float64(f.width) - 2*f.padding
	f.plotH = float64(f.height) - 2*f.padding
	if f.plotW <= 0 || f.plotH <= 0 {
		return frame{}, fmt.Errorf("chart: viewport too small")
	}
	for _, p := range points {
		if p.Value < 0 {
			return frame{}, fmt.Errorf("chart: negative value for %q", p.Label)
		}
		f.max = math.Max(f.max, p.Value)
	}
	f.max = niceCeil(f.max)
	return f, nil
}

// y maps a value onto the plot; counts always start at zero.
func (f frame) y(v float64) float64 {
	return f.padding + f.plotH - v/f.max*f.plotH
}

func (f frame) open(b *strings.Builder, opts Opts, kind string) {
	titleID := makeID(opts.Title, kind+"-title")
	descID := makeID(opts.Title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s" class="chart">`, f.width, f.height, titleID, descID)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(opts.Title, "Chart")))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(opts.Description, "Dashboard chart")))
	for i := 0; i <= f.ticks; i++ {
		v := f.max * float64(i) / float64(f.ticks)
		y := f.y(v)
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, f.padding, y, f.padding+f.plotW, y, f.grid)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.padding-6, y+4, f.axis, formatTick(v))
	}
}

func (f frame) label(b *strings.Builder, x float64, label string) {
	fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x, f.padding+f.plotH+16, f.axis, template.HTMLEscapeString(label))
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*exp {
			return m * exp
		}
	}
	return 10 * exp
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
