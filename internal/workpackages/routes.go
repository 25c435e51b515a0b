package workpackages

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/worksla/worksla-web/internal/platform/httpx"
)

// MountRoutes registers work package pages under the current router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httpx.KeyByPrincipal),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/", h.handleList)
	r.Get("/search", h.handleSearch)
	r.Post("/refresh", h.handleRefresh)
	r.Get("/{id}", h.handleDetail)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/export.csv", h.handleExportList)
		gr.Get("/{id}/activities.csv", h.handleExportActivities)
	})
}
