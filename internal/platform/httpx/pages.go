package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/httprate"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
)

// LoginPath is where expired sessions are sent.
const LoginPath = "/auth/login"

// PageError reports err to a browser: expired backend credentials redirect
// to the login page, everything else renders the error page.
func PageError(w http.ResponseWriter, r *http.Request, templates *view.Engine, logger *slog.Logger, op string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.Debug(op+" canceled", slog.String("path", r.URL.Path))
		return
	}
	if errors.Is(err, apiclient.ErrAuthExpired) {
		logger.Info(op+": credentials expired", slog.String("path", r.URL.Path))
		RedirectToLogin(w, r)
		return
	}
	c := Classify(err)
	if c.Status >= http.StatusInternalServerError {
		logger.Error(op, slog.Any("error", err))
	} else {
		logger.Warn(op, slog.Int("status", c.Status), slog.Any("error", err))
	}
	page := view.ErrorPage{Status: c.Status, Heading: c.Title, Message: c.Detail}
	if c.Retryable && r.Method == http.MethodGet {
		page.RetryURL = r.URL.RequestURI()
	}
	templates.RenderError(w, r, page)
}

// RedirectToLogin sends the browser to the login page, remembering where it
// was, and explains that the session expired.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, LoginPath) {
		Flash(r, "warning", "Your session has expired. Please sign in again.")
	}
	SendToLogin(w, r)
}

// SendToLogin redirects to the login page without a message. Requests
// already on the login page are answered with 401 instead of looping.
func SendToLogin(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, LoginPath) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	target := LoginPath
	if r.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// SafeNext returns next when it is a local path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if strings.HasPrefix(next, LoginPath) {
		return fallback
	}
	return next
}

// KeyByPrincipal keys rate limits by signed-in user, falling back to IP.
func KeyByPrincipal(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok && p.Username != "" {
		return "user:" + p.Username, nil
	}
	return httprate.KeyByIP(r)
}

// Flash queues a message for the next rendered page.
func Flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
