package chart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineProducesSVG(t *testing.T) {
	html, err := Line([]Point{{"Mon", 12}, {"Tue", 30}, {"Wed", 7}}, Opts{Title: "Call Trends"})
	require.NoError(t, err)
	out := string(html)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, "<path")
	assert.Contains(t, out, "call-trends-line-title")
	assert.Contains(t, out, "<title>Tue: 30</title>")
}

func TestLineSinglePoint(t *testing.T) {
	_, err := Line([]Point{{"9 AM", 4}}, Opts{})
	assert.NoError(t, err)
}

func TestBarsEscapesLabels(t *testing.T) {
	html, err := Bars([]Point{{"AI <Handled>", 8}, {"Missed", 2}}, Opts{Title: "Outcomes"})
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "<rect")
	assert.Contains(t, out, "AI &lt;Handled&gt;")
	assert.NotContains(t, out, "<Handled>")
}

func TestChartRejectsEmptyAndNegative(t *testing.T) {
	_, err := Line(nil, Opts{})
	assert.ErrorIs(t, err, ErrNoData)
	_, err = Bars([]Point{{"x", -1}}, Opts{})
	assert.Error(t, err)
}

func TestNiceCeil(t *testing.T) {
	assert.Equal(t, 1.0, niceCeil(0))
	assert.Equal(t, 50.0, niceCeil(31))
	assert.Equal(t, 100.0, niceCeil(100))
	assert.Equal(t, 2000.0, niceCeil(1200))
}
