package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/worksla/worksla-web/internal/admin"
	"github.com/worksla/worksla-web/internal/auth"
	"github.com/worksla/worksla-web/internal/dashboard"
	"github.com/worksla/worksla-web/internal/observability"
	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/reports"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	"github.com/worksla/worksla-web/internal/workpackages"
	"github.com/worksla/worksla-web/jobs"
	"github.com/worksla/worksla-web/web"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Templates           *view.Engine
	SessionManager      *shared.SessionManager
	CSRFManager         *shared.CSRFManager
	AuthHandler         *auth.Handler
	AuthMiddleware      auth.Middleware
	DashboardHandler    *dashboard.Handler
	WorkPackagesHandler *workpackages.Handler
	ReportsHandler      *reports.Handler
	AdminHandler        *admin.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
	// Readiness checks run by /healthz, keyed by dependency name.
	Readiness map[string]Pinger
}

// NewRouter constructs the chi.Router with WorkSLA defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.Readiness, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	mw := params.AuthMiddleware
	r.Group(func(r chi.Router) {
		r.Use(skipStatic(mw.WithCredentials))

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireUser)
			if params.DashboardHandler != nil {
				r.Method(http.MethodGet, "/", params.DashboardHandler)
			}
			if params.WorkPackagesHandler != nil {
				r.Route("/workpackages", params.WorkPackagesHandler.MountRoutes)
			}
			if params.ReportsHandler != nil {
				r.Route("/reports", params.ReportsHandler.MountRoutes)
			}
		})

		if params.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				params.AdminHandler.MountRoutes(r, mw.RequireRole)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(mw.RequireRole(auth.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if params.Templates == nil {
			http.NotFound(w, r)
			return
		}
		params.Templates.RenderError(w, r, view.ErrorPage{Status: http.StatusNotFound, Message: "The page you requested does not exist."})
	})

	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler reports liveness and, when checks are configured, the state
// of each dependency. Any failing check answers 503.
func healthHandler(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "ok"}
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			for name, p := range checks {
				if err := p.Ping(ctx); err != nil {
					logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
					report.Checks[name] = "unavailable"
					report.Status = "degraded"
					continue
				}
				report.Checks[name] = "ok"
			}
		}
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, report)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
