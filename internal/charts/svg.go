package charts

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

type canvas struct {
	b         strings.Builder
	width     int
	height    int
	padding   float64
	axisColor string
	gridColor string
}

func newCanvas(width, height int, opts Opts, kind string) (*canvas, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	if float64(width) <= 2*padding || float64(height) <= 2*padding {
		return nil, fmt.Errorf("charts: viewport too small")
	}
	c := &canvas{
		width:     width,
		height:    height,
		padding:   padding,
		axisColor: fallback(opts.AxisColor, "#475569"),
		gridColor: fallback(opts.GridColor, "#e2e8f0"),
	}
	titleID := makeID(opts.Title, kind+"-title")
	descID := makeID(opts.Title, kind+"-desc")
	fmt.Fprintf(&c.b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s" class="chart chart-%s">`, width, height, titleID, descID, kind)
	fmt.Fprintf(&c.b, `<title id="%s">%s</title>`, titleID, esc(fallback(opts.Title, "Chart")))
	fmt.Fprintf(&c.b, `<desc id="%s">%s</desc>`, descID, esc(fallback(opts.Description, opts.Title)))
	return c, nil
}

func (c *canvas) plotWidth() float64  { return float64(c.width) - 2*c.padding }
func (c *canvas) plotHeight() float64 { return float64(c.height) - 2*c.padding }
func (c *canvas) bottom() float64     { return c.padding + c.plotHeight() }

// yGrid draws horizontal grid lines with value ticks for 0..maxVal.
func (c *canvas) yGrid(maxVal float64, ticks int) {
	for i := 0; i <= ticks; i++ {
		ratio := float64(i) / float64(ticks)
		y := c.bottom() - ratio*c.plotHeight()
		fmt.Fprintf(&c.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, c.padding, y, c.padding+c.plotWidth(), y, c.gridColor)
		fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, c.padding-6, y+4, c.axisColor, esc(formatTick(maxVal*ratio)))
	}
	fmt.Fprintf(&c.b, `<g stroke="%s" aria-hidden="true">`, c.axisColor)
	fmt.Fprintf(&c.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, c.padding, c.padding, c.padding, c.bottom())
	fmt.Fprintf(&c.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, c.padding, c.bottom(), c.padding+c.plotWidth(), c.bottom())
	c.b.WriteString("</g>")
}

func (c *canvas) xLabel(x float64, label string) {
	fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x, c.bottom()+14, c.axisColor, esc(truncateLabel(label, 14)))
}

func (c *canvas) legend(series []Series) {
	x := c.padding
	y := math.Max(c.padding-14, 12)
	for i, s := range series {
		color := seriesColor(s, i)
		fmt.Fprintf(&c.b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-8, color)
		fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, x+14, y, c.axisColor, esc(s.Label))
		x += 24 + float64(len([]rune(s.Label)))*6
	}
}

func (c *canvas) html() template.HTML {
	c.b.WriteString("</svg>")
	return template.HTML(c.b.String())
}

func seriesColor(s Series, i int) string {
	if s.Color != "" {
		return s.Color
	}
	return Palette[i%len(Palette)]
}

// niceMax rounds v up to a value that divides evenly into ticks.
func niceMax(v float64, ticks int) float64 {
	if v <= 0 {
		return float64(ticks)
	}
	raw := v / float64(ticks)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if step := m * mag; step >= raw {
			if step < 1 && v >= 1 {
				step = 1
			}
			return step * float64(ticks)
		}
	}
	return v
}

func maxOf(series []Series) float64 {
	out := 0.0
	for _, s := range series {
		for _, v := range s.Values {
			if v > out {
				out = v
			}
		}
	}
	return out
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func truncateLabel(label string, limit int) string {
	runes := []rune(label)
	if len(runes) <= limit {
		return label
	}
	return string(runes[:limit-1]) + "…"
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 10_000:
		return fmt.Sprintf("%.0fk", v/1_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
