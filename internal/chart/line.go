package chart

import (
	"fmt"
	"html/template"
	"strings"
)

// Line renders points as an area line chart with hover titles on each dot.
func Line(points []Point, opts Opts) (template.HTML, error) {
	f, err := newFrame(points, opts)
	if err != nil {
		return "", err
	}
	stroke := fallback(opts.Color, "#2B7FFF")

	xs := make([]float64, len(points))
	for i := range points {
		if len(points) == 1 {
			xs[i] = f.padding + f.plotW/2
			continue
		}
		xs[i] = f.padding + float64(i)*f.plotW/float64(len(points)-1)
	}

	var path strings.Builder
	for i, p := range points {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xs[i], f.y(p.Value))
	}
	d := strings.TrimSpace(path.String())

	var b strings.Builder
	f.open(&b, opts, "line")
	base := f.padding + f.plotH
	fmt.Fprintf(&b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" fill-opacity="0.15" stroke="none" aria-hidden="true"></path>`, d, xs[len(xs)-1], base, xs[0], base, stroke)
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, d, stroke)
	for i, p := range points {
		fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s: %s</title></circle>`, xs[i], f.y(p.Value), stroke, template.HTMLEscapeString(p.Label), formatTick(p.Value))
		f.label(&b, xs[i], p.Label)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
