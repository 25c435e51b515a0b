// Package dashboard renders the landing page summary.
package dashboard

import (
	"cmp"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/charts"
	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	"github.com/worksla/worksla-web/internal/workpackages"
)

const requestTimeout = 15 * time.Second

// Source provides the backend dashboard payload.
type Source interface {
	Dashboard(ctx context.Context, creds *apiclient.Credentials) (workpackages.Dashboard, error)
}

// Handler serves GET /.
type Handler struct {
	logger    *slog.Logger
	source    Source
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, source Source, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, source: source, templates: templates, csrf: csrf, now: time.Now}
}

// Count is one labelled tally.
type Count struct {
	Label string
	Value int
}

// ViewModel is rendered by pages/dashboard.html.
type ViewModel struct {
	Stats         workpackages.Stats
	ByStatus      []Count
	ByPriority    []Count
	StatusChart   template.HTML
	PriorityChart template.HTML
	Overdue       []workpackages.WorkPackage
	DueSoon       []workpackages.WorkPackage
	RecentUpdates []workpackages.WorkPackage
	GeneratedAt   time.Time
}

// ServeHTTP renders the dashboard.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	payload, err := h.source.Dashboard(ctx, shared.CredentialsFromContext(ctx))
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "load dashboard", err)
		return
	}
	vm := BuildViewModel(payload, h.now())
	vm.StatusChart = h.chart("Work packages by status", vm.ByStatus, true)
	vm.PriorityChart = h.chart("Work packages by priority", vm.ByPriority, false)

	data := view.NewPageData(r, h.csrf, "Dashboard", vm)
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}

// BuildViewModel orders the tallies largest first, ties by label.
func BuildViewModel(d workpackages.Dashboard, now time.Time) ViewModel {
	return ViewModel{
		Stats:         d.Stats,
		ByStatus:      sortedCounts(d.Stats.ByStatus),
		ByPriority:    sortedCounts(d.Stats.ByPriority),
		Overdue:       d.Overdue,
		DueSoon:       d.DueSoon,
		RecentUpdates: d.RecentUpdates,
		GeneratedAt:   now,
	}
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for label, v := range m {
		out = append(out, Count{Label: label, Value: v})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

func (h *Handler) chart(title string, counts []Count, statusColors bool) template.HTML {
	if len(counts) == 0 {
		return ""
	}
	rows := make([]charts.HBar, 0, len(counts))
	for i, c := range counts {
		color := charts.Palette[i%len(charts.Palette)]
		if statusColors {
			color = charts.ColorFor(c.Label, i)
		}
		rows = append(rows, charts.HBar{Label: c.Label, Value: float64(c.Value), Color: color})
	}
	out, err := charts.HBars(560, rows, charts.Opts{Title: title})
	if err != nil {
		h.logger.Warn("render dashboard chart", slog.String("chart", title), slog.Any("error", err))
		return ""
	}
	return out
}
