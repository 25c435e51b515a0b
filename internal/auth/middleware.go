package auth

import (
	"log/slog"
	"net/http"

	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
)

// Middleware wires sign-in and role checks for HTTP handlers.
type Middleware struct {
	Templates *view.Engine
	Logger    *slog.Logger
}

// WithCredentials loads the signed-in user and backend credentials from the
// session into the request context. Credential changes made while serving
// the request, such as a refresh, are written back to the session.
func (m Middleware) WithCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		principal, ok := PrincipalFromSession(sess)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		creds, err := BindCredentials(sess)
		if err != nil {
			m.logger().Warn("restore credentials", slog.String("username", principal.Username), slog.Any("error", err))
			ForgetUser(sess)
			next.ServeHTTP(w, r)
			return
		}
		ctx := shared.ContextWithCredentials(r.Context(), creds)
		ctx = shared.ContextWithPrincipal(ctx, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser sends anonymous requests to the login page.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			httpx.SendToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the current user holds at least one of roles.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.SendToLogin(w, r)
				return
			}
			if len(roles) == 0 || p.HasRole(roles...) {
				next.ServeHTTP(w, r)
				return
			}
			m.logger().Warn("role denied",
				slog.String("username", p.Username),
				slog.String("role", p.Role),
				slog.String("path", r.URL.Path))
			m.Templates.RenderError(w, r, view.ErrorPage{
				Status:  http.StatusForbidden,
				Message: "You do not have access to this page.",
			})
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
