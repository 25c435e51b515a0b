package charts

import (
	"fmt"
	"html/template"
	"strings"
)

// Line renders one polyline per series over shared labels.
func Line(width, height int, labels []string, series []Series, opts Opts) (template.HTML, error) {
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
	c, err := newCanvas(width, height, opts, "line")
	if err != nil {
		return "", err
	}
	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	top := niceMax(maxOf(series), ticks)
	c.yGrid(top, ticks)

	xAt := func(i int) float64 {
		if len(labels) == 1 {
			return c.padding + c.plotWidth()/2
		}
		return c.padding + float64(i)*c.plotWidth()/float64(len(labels)-1)
	}
	yAt := func(v float64) float64 {
		return c.bottom() - max(v, 0)/top*c.plotHeight()
	}

	for j, s := range series {
		color := seriesColor(s, j)
		var path strings.Builder
		for i, v := range s.Values {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xAt(i), yAt(v))
		}
		d := strings.TrimSpace(path.String())
		if opts.Fill && len(series) == 1 {
			fmt.Fprintf(&c.b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" fill-opacity="0.12" stroke="none" aria-hidden="true"></path>`, d, xAt(len(labels)-1), c.bottom(), xAt(0), c.bottom(), color)
		}
		fmt.Fprintf(&c.b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, d, color)
		if opts.ShowDots {
			for i, v := range s.Values {
				fmt.Fprintf(&c.b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s: %s</title></circle>`, xAt(i), yAt(v), color, esc(labels[i]), esc(formatTick(v)))
			}
		}
	}
	for i, label := range labels {
		c.xLabel(xAt(i), label)
	}
	if len(series) > 1 {
		c.legend(series)
	}
	return c.html(), nil
}
