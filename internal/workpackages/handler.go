package workpackages

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
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/charts"
	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
)

const requestTimeout = 20 * time.Second

// WorkService is the contract the pages need from Service.
type WorkService interface {
	ListAll(ctx context.Context, creds *apiclient.Credentials, userKey string) (Snapshot, error)
	Detail(ctx context.Context, creds *apiclient.Credentials, id int64) (Detail, error)
	Refresh(ctx context.Context, creds *apiclient.Credentials) (RefreshResult, error)
	Search(ctx context.Context, creds *apiclient.Credentials, q string) ([]WorkPackage, error)
}

// Handler serves the work package pages.
type Handler struct {
	logger    *slog.Logger
	service   WorkService
	templates *view.Engine
	csrf      *shared.CSRFManager
	sorter    Sorter
	pageSize  int
	location  *time.Location
	csvPool   sync.Pool
}

// NewHandler constructs the work package handler. pageSize is the number of
// rows per list page.
func NewHandler(logger *slog.Logger, service WorkService, templates *view.Engine, csrf *shared.CSRFManager, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = 12
	}
	locale := templates.Locale()
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		sorter:    NewSorter(locale.Language),
		pageSize:  pageSize,
		location:  locale.Location,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// ListPage is the view model of the list page.
type ListPage struct {
	ListView
	SortOptions []SortOption
	FetchedAt   time.Time
	BasePath    string
}

// PageURL links to page n keeping the current filters.
func (p ListPage) PageURL(n int) string {
	q := p.query()
	q.Set("page", strconv.Itoa(n))
	return p.BasePath + "?" + q.Encode()
}

// ExportURL links to the CSV of the current filters.
func (p ListPage) ExportURL() string {
	q := p.query()
	if len(q) == 0 {
		return p.BasePath + "/export.csv"
	}
	return p.BasePath + "/export.csv?" + q.Encode()
}

func (p ListPage) query() url.Values {
	q := url.Values{}
	c := p.Criteria
	if c.Search != "" {
		q.Set("search", c.Search)
	}
	if constrained(c.Status) {
		q.Set("status", c.Status)
	}
	if constrained(c.Priority) {
		q.Set("priority", c.Priority)
	}
	if constrained(c.Type) {
		q.Set("type", c.Type)
	}
	if c.Sort != DefaultSort {
		q.Set("sort", string(c.Sort))
	}
	return q
}

// DetailPage is the view model of the detail page.
type DetailPage struct {
	Detail
	Overdue       bool
	TimelineChart template.HTML
}

// SearchPage is the view model of the search results page.
type SearchPage struct {
	Query   string
	Results []WorkPackage
	Error   string
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := h.service.ListAll(ctx, shared.CredentialsFromContext(ctx), userKey(r))
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "load work packages", err)
		return
	}

	criteria := parseCriteria(r.URL.Query())
	page := parsePage(r.URL.Query().Get("page"))
	lv := BuildListView(snap.Items, criteria, page, h.pageSize, h.sorter)
	lv.Truncated = snap.Truncated()
	lv.BackendTotal = snap.BackendTotal

	data := view.NewPageData(r, h.csrf, "Work Packages", ListPage{
		ListView:    lv,
		SortOptions: SortOptions,
		FetchedAt:   snap.FetchedAt,
		BasePath:    "/workpackages",
	})
	if err := h.templates.Render(w, "pages/workpackages/list.html", data); err != nil {
		h.logger.Error("render work package list", slog.Any("error", err))
	}
}

func (h *Handler) handleExportList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := h.service.ListAll(ctx, shared.CredentialsFromContext(ctx), userKey(r))
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "export work packages", err)
		return
	}
	criteria := parseCriteria(r.URL.Query())
	lv := BuildListView(snap.Items, criteria, 1, max(len(snap.Items), 1), h.sorter)

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := WriteListCSV(buf, lv.Items, h.location); err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "write work package csv", err)
		return
	}
	filename := fmt.Sprintf("workpackages-%s.csv", time.Now().In(h.location).Format("20060102-1504"))
	httpx.Attachment(w, h.logger, "text/csv; charset=utf-8", filename, buf.Bytes())
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.templates.RenderError(w, r, view.ErrorPage{Status: http.StatusNotFound, Message: "Work package not found."})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	detail, err := h.service.Detail(ctx, shared.CredentialsFromContext(ctx), id)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "load work package", err)
		return
	}
	title := fmt.Sprintf("#%d %s", detail.WorkPackage.ID, detail.WorkPackage.Subject)
	data := view.NewPageData(r, h.csrf, title, DetailPage{
		Detail:        detail,
		Overdue:       detail.WorkPackage.Overdue(time.Now()),
		TimelineChart: h.timelineChart(detail.Timeline),
	})
	if err := h.templates.Render(w, "pages/workpackages/detail.html", data); err != nil {
		h.logger.Error("render work package detail", slog.Int64("wp_id", id), slog.Any("error", err))
	}
}

func (h *Handler) handleExportActivities(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.templates.RenderError(w, r, view.ErrorPage{Status: http.StatusNotFound, Message: "Work package not found."})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	detail, err := h.service.Detail(ctx, shared.CredentialsFromContext(ctx), id)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "export activities", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := WriteActivitiesCSV(buf, detail.Activities, h.location); err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "write activities csv", err)
		return
	}
	httpx.Attachment(w, h.logger, "text/csv; charset=utf-8", fmt.Sprintf("workpackage-%d-activities.csv", id), buf.Bytes())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Refresh(ctx, shared.CredentialsFromContext(ctx))
	if err != nil {
		if errors.Is(err, apiclient.ErrAuthExpired) {
			httpx.RedirectToLogin(w, r)
			return
		}
		h.logger.Warn("refresh work packages", slog.Any("error", err))
		httpx.Flash(r, "danger", "Refresh failed: "+httpx.Classify(err).Detail)
		http.Redirect(w, r, "/workpackages", http.StatusSeeOther)
		return
	}
	msg := result.Message
	if msg == "" {
		msg = fmt.Sprintf("Refreshed %d work packages.", result.Processed)
	}
	httpx.Flash(r, "success", msg)
	http.Redirect(w, r, "/workpackages", http.StatusSeeOther)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	page := SearchPage{Query: q}
	if q != "" {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		results, err := h.service.Search(ctx, shared.CredentialsFromContext(ctx), q)
		switch {
		case errors.Is(err, ErrQueryTooShort):
			page.Error = "Enter at least 2 characters."
		case err != nil:
			httpx.PageError(w, r, h.templates, h.logger, "search work packages", err)
			return
		default:
			page.Results = results
		}
	}
	data := view.NewPageData(r, h.csrf, "Search", page)
	if err := h.templates.Render(w, "pages/workpackages/search.html", data); err != nil {
		h.logger.Error("render search", slog.Any("error", err))
	}
}

func (h *Handler) timelineChart(tl Timeline) template.HTML {
	rows := make([]charts.HBar, 0, len(tl.Summary))
	for i, s := range tl.Summary {
		rows = append(rows, charts.HBar{
			Label:   s.Status,
			Value:   s.Total.Hours(),
			Color:   charts.ColorFor(s.Status, i),
			Caption: fmt.Sprintf("%s (%.1f%%)", FormatDuration(s.Total), s.Percentage),
		})
	}
	if len(rows) == 0 {
		return ""
	}
	out, err := charts.HBars(640, rows, charts.Opts{Title: "Time in status", Description: "Total time spent in each status"})
	if err != nil {
		h.logger.Warn("render timeline chart", slog.Any("error", err))
		return ""
	}
	return out
}

func parseCriteria(q url.Values) Criteria {
	return Criteria{
		Search:   strings.TrimSpace(q.Get("search")),
		Status:   strings.TrimSpace(q.Get("status")),
		Priority: strings.TrimSpace(q.Get("priority")),
		Type:     strings.TrimSpace(q.Get("type")),
		Sort:     ParseSortKey(q.Get("sort")),
	}
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// userKey scopes cached lists to the signed-in user.
func userKey(r *http.Request) string {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		if p.ID > 0 {
			return strconv.FormatInt(p.ID, 10)
		}
		return p.Username
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.User()
	}
	return "anonymous"
}
