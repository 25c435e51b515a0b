package reports

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/worksla/worksla-web/internal/platform/httpx"
)

// MountRoutes registers the reports pages under the current router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleIndex)
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.Limit(6, time.Minute,
			httprate.WithKeyFuncs(httpx.KeyByPrincipal),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "Too many exports, try again in a minute.", http.StatusTooManyRequests)
			}),
		))
		gr.Get("/export.csv", h.handleExportCSV)
		gr.Get("/export.pdf", h.handleExportPDF)
	})
}
