package chart

import (
	"fmt"
	"html/template"
	"strings"
)

// Bars renders one bar per point, for example the outcome breakdown of calls.
func Bars(points []Point, opts Opts) (template.HTML, error) {
	f, err := newFrame(points, opts)
	if err != nil {
		return "", err
	}
	fill := fallback(opts.Color, "#00D1FF")
	slot := f.plotW / float64(len(points))
	width := slot * 0.55

	var b strings.Builder
	f.open(&b, opts, "bar")
	for i, p := range points {
		x := f.padding + float64(i)*slot + (slot-width)/2
		y := f.y(p.Value)
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="4" fill="%s"><title>%s: %s</title></rect>`, x, y, width, f.padding+f.plotH-y, fill, template.HTMLEscapeString(p.Label), formatTick(p.Value))
		f.label(&b, x+width/2, p.Label)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
