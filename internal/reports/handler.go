package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/charts"
	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	"github.com/worksla/worksla-web/report"
)

const requestTimeout = 30 * time.Second

// Loader is the contract the pages need from Service.
type Loader interface {
	Load(ctx context.Context, creds *apiclient.Credentials, f Filters) (Bundle, error)
}

// PDFRenderer converts a standalone HTML document into a PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string, opts report.PageOptions) ([]byte, error)
}

// Handler serves the reports pages and exports.
type Handler struct {
	logger    *slog.Logger
	service   Loader
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       PDFRenderer
	location  *time.Location
	now       func() time.Time
	csvPool   sync.Pool
}

// NewHandler constructs the reports handler. pdf may be nil, in which case
// the PDF export answers 503.
func NewHandler(logger *slog.Logger, service Loader, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFRenderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		pdf:       pdf,
		location:  templates.Locale().Location,
		now:       time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// Page is the reports view model.
type Page struct {
	Bundle
	GroupOptions      []string
	ProductivityChart template.HTML
	TotalsChart       template.HTML
	SLAChart          template.HTML
	FilterError       string
	PDFEnabled        bool
}

// ExportURL links to the export of the active filters in format.
func (p Page) ExportURL(format string) string {
	return "/reports/export." + format + "?" + p.Query()
}

// Query re-encodes the active filters for export links.
func (p Page) Query() string {
	q := url.Values{}
	q.Set("from", p.Filters.From.Format(time.DateOnly))
	q.Set("to", p.Filters.To.Format(time.DateOnly))
	q.Set("group_by", p.Filters.GroupBy)
	if p.Filters.AssigneeID > 0 {
		q.Set("assignee_id", strconv.FormatInt(p.Filters.AssigneeID, 10))
	}
	if p.Filters.ProjectID > 0 {
		q.Set("project_id", strconv.FormatInt(p.Filters.ProjectID, 10))
	}
	return q.Encode()
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query().Get, h.now(), h.location)
	if err != nil {
		page := Page{FilterError: "Invalid filters: " + err.Error(), GroupOptions: groupOptions()}
		page.Filters, _ = ParseFilters(func(string) string { return "" }, h.now(), h.location)
		data := view.NewPageData(r, h.csrf, "Reports", page)
		if err := h.templates.RenderStatus(w, http.StatusBadRequest, "pages/reports/index.html", data); err != nil {
			h.logger.Error("render reports", slog.Any("error", err))
		}
		return
	}
	bundle, ok := h.load(w, r, filters, "load reports")
	if !ok {
		return
	}
	data := view.NewPageData(r, h.csrf, "Reports", h.buildPage(bundle))
	if err := h.templates.Render(w, "pages/reports/index.html", data); err != nil {
		h.logger.Error("render reports", slog.Any("error", err))
	}
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseFilters(r.URL.Query().Get, h.now(), h.location)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "export reports csv", errors.Join(httpx.ErrValidation, err))
		return
	}
	bundle, ok := h.load(w, r, filters, "export reports csv")
	if !ok {
		return
	}
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := WriteCSV(buf, bundle); err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "write reports csv", err)
		return
	}
	httpx.Attachment(w, h.logger, "text/csv; charset=utf-8", h.filename(filters, "csv"), buf.Bytes())
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.templates.RenderError(w, r, view.ErrorPage{
			Status:  http.StatusServiceUnavailable,
			Message: "PDF export is not configured.",
		})
		return
	}
	filters, err := ParseFilters(r.URL.Query().Get, h.now(), h.location)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "export reports pdf", errors.Join(httpx.ErrValidation, err))
		return
	}
	bundle, ok := h.load(w, r, filters, "export reports pdf")
	if !ok {
		return
	}
	html, err := h.templates.ExecuteToString("pages/reports/print.html", view.TemplateData{
		Title: "WorkSLA Report",
		Data:  h.buildPage(bundle),
	})
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "render reports print view", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	pdf, err := h.pdf.RenderHTML(ctx, html, report.A4)
	if err != nil {
		h.logger.Error("convert reports pdf", slog.Any("error", err))
		h.templates.RenderError(w, r, view.ErrorPage{
			Status:   http.StatusBadGateway,
			Message:  "The PDF service did not respond. Try again shortly.",
			RetryURL: r.URL.RequestURI(),
		})
		return
	}
	httpx.Attachment(w, h.logger, "application/pdf", h.filename(filters, "pdf"), pdf)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, f Filters, op string) (Bundle, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	bundle, err := h.service.Load(ctx, shared.CredentialsFromContext(ctx), f)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, op, err)
		return Bundle{}, false
	}
	return bundle, true
}

func (h *Handler) filename(f Filters, ext string) string {
	return fmt.Sprintf("worksla-report-%s-%s.%s", f.From.Format("20060102"), f.To.Format("20060102"), ext)
}

func (h *Handler) buildPage(b Bundle) Page {
	page := Page{Bundle: b, GroupOptions: groupOptions(), PDFEnabled: h.pdf != nil}
	page.SLAChart = h.slaChart(b.SLA.Metrics)
	rows := b.Productivity.Data
	if len(rows) == 0 {
		return page
	}
	labels := make([]string, len(rows))
	completed := make([]float64, len(rows))
	inProgress := make([]float64, len(rows))
	overdue := make([]float64, len(rows))
	totals := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row.Name
		completed[i] = float64(row.Completed)
		inProgress[i] = float64(row.InProgress)
		overdue[i] = float64(row.Overdue)
		totals[i] = float64(row.Total)
	}
	var err error
	page.ProductivityChart, err = charts.Bars(720, 280, labels, []charts.Series{
		{Label: "Completed", Values: completed, Color: charts.Palette[2]},
		{Label: "In progress", Values: inProgress, Color: charts.Palette[1]},
		{Label: "Overdue", Values: overdue, Color: charts.Palette[3]},
	}, charts.Opts{Title: "Productivity by " + b.Productivity.GroupBy})
	if err != nil {
		h.logger.Warn("render productivity chart", slog.Any("error", err))
	}
	page.TotalsChart, err = charts.Line(720, 220, labels, []charts.Series{
		{Label: "Total", Values: totals, Color: charts.Palette[0]},
	}, charts.Opts{Title: "Work packages per " + b.Productivity.GroupBy, ShowDots: true, Fill: true})
	if err != nil {
		h.logger.Warn("render totals chart", slog.Any("error", err))
	}
	return page
}

func (h *Handler) slaChart(m SLAMetrics) template.HTML {
	if m.Total == 0 {
		return ""
	}
	pct := func(n int) string { return fmt.Sprintf("%d (%.1f%%)", n, float64(n)/float64(m.Total)*100) }
	out, err := charts.HBars(640, []charts.HBar{
		{Label: "On time", Value: float64(m.OnTime), Color: charts.Palette[2], Caption: pct(m.OnTime)},
		{Label: "Overdue", Value: float64(m.Overdue), Color: charts.Palette[3], Caption: pct(m.Overdue)},
		{Label: "Not measured", Value: float64(m.Unmeasured()), Color: charts.Palette[7], Caption: pct(m.Unmeasured())},
	}, charts.Opts{Title: "SLA compliance"})
	if err != nil {
		h.logger.Warn("render sla chart", slog.Any("error", err))
		return ""
	}
	return out
}

func groupOptions() []string {
	return []string{GroupByAssignee, GroupByProject}
}
