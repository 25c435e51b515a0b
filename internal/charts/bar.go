package charts

import (
	"fmt"
	"html/template"
)

// Bars renders a grouped vertical bar chart, one bar per series per label.
func Bars(width, height int, labels []string, series []Series, opts Opts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("charts: labels required")
	}
	if len(series) == 0 {
		return "", fmt.Errorf("charts: at least one series required")
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("charts: series %q has %d values for %d labels", s.Label, len(s.Values), len(labels))
		}
	}
	c, err := newCanvas(width, height, opts, "bar")
	if err != nil {
		return "", err
	}
	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	top := niceMax(maxOf(series), ticks)
	c.yGrid(top, ticks)

	groupWidth := c.plotWidth() / float64(len(labels))
	barWidth := groupWidth * 0.8 / float64(len(series))
	scale := c.plotHeight() / top
	for i, label := range labels {
		x := c.padding + float64(i)*groupWidth + groupWidth*0.1
		for j, s := range series {
			h := max(s.Values[i], 0) * scale
			fmt.Fprintf(&c.b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s: %s %s</title></rect>`,
				x+float64(j)*barWidth, c.bottom()-h, barWidth*0.9, h, seriesColor(s, j), esc(label), esc(s.Label), esc(formatTick(s.Values[i])))
		}
		c.xLabel(c.padding+float64(i)*groupWidth+groupWidth/2, label)
	}
	if len(series) > 1 || series[0].Label != "" {
		c.legend(series)
	}
	return c.html(), nil
}

// HBar is one row of a horizontal bar chart.
type HBar struct {
	Label string
	Value float64
	Color string
	// Caption replaces the numeric value printed after the bar.
	Caption string
}

// HBars renders one horizontal bar per row, scaled to the largest value.
func HBars(width int, rows []HBar, opts Opts) (template.HTML, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("charts: rows required")
	}
	const rowHeight = 26.0
	labelWidth := 140.0
	valueWidth := 90.0
	if width <= 0 {
		width = DefaultWidth
	}
	height := int(rowHeight*float64(len(rows)) + 16)
	plot := float64(width) - labelWidth - valueWidth
	if plot <= 0 {
		return "", fmt.Errorf("charts: viewport too small")
	}
	opts.Padding = 1
	c, err := newCanvas(width, max(height, 3), opts, "hbar")
	if err != nil {
		return "", err
	}
	top := 0.0
	for _, r := range rows {
		top = max(top, r.Value)
	}
	if top <= 0 {
		top = 1
	}
	for i, r := range rows {
		y := 8 + float64(i)*rowHeight
		w := max(r.Value, 0) / top * plot
		caption := r.Caption
		if caption == "" {
			caption = formatTick(r.Value)
		}
		color := r.Color
		if color == "" {
			color = Palette[i%len(Palette)]
		}
		fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11" text-anchor="end">%s</text>`, labelWidth-8, y+13, c.axisColor, esc(truncateLabel(r.Label, 22)))
		fmt.Fprintf(&c.b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="3" fill="%s"><title>%s: %s</title></rect>`, labelWidth, y, w, rowHeight-8, color, esc(r.Label), esc(caption))
		fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11">%s</text>`, labelWidth+w+6, y+13, c.axisColor, esc(caption))
	}
	return c.html(), nil
}
