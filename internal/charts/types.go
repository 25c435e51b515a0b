// Package charts renders small inline SVG charts for server-side pages.
package charts

// Series is one named set of values plotted against shared labels.
type Series struct {
	Label  string
	Color  string
	Values []float64
}

// Opts customises chart rendering.
type Opts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	ShowDots    bool
	// Fill shades the area under single-series line charts.
	Fill bool
}

// Chart viewport defaults.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 32.0
	DefaultTicks   = 5
)

// Palette is used for series without an explicit color.
var Palette = []string{"#2563eb", "#f97316", "#16a34a", "#dc2626", "#9333ea", "#0891b2", "#ca8a04", "#64748b"}

// StatusColors maps well-known statuses to chart colors.
var StatusColors = map[string]string{
	"New":            "#3b82f6",
	"รับเรื่อง":      "#06b6d4",
	"กำลังดำเนินการ": "#f59e0b",
	"ดำเนินการเสร็จ": "#22c55e",
	"ปิดงาน":         "#64748b",
}

// ColorFor returns the status color or a palette color by index.
func ColorFor(status string, index int) string {
	if c, ok := StatusColors[status]; ok {
		return c
	}
	return Palette[index%len(Palette)]
}
