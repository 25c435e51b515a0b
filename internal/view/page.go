package view

import (
	"net/http"

	"github.com/worksla/worksla-web/internal/shared"
)

// NewPageData assembles the values every page needs: CSRF token, pending
// flash, current path and signed-in user.
func NewPageData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	out := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if sess != nil {
		if csrf != nil {
			out.CSRFToken, _ = csrf.EnsureToken(ctx, sess)
		}
		out.Flash = sess.PopFlash()
	}
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		out.User = &p
	}
	return out
}

// ErrorPage describes a failure shown to the user.
type ErrorPage struct {
	Status   int
	Heading  string
	Message  string
	RetryURL string
}

// RenderError renders pages/error.html, falling back to plain text.
func (e *Engine) RenderError(w http.ResponseWriter, r *http.Request, page ErrorPage) {
	if page.Status == 0 {
		page.Status = http.StatusInternalServerError
	}
	if page.Heading == "" {
		page.Heading = http.StatusText(page.Status)
	}
	data := NewPageData(r, nil, page.Heading, page)
	if e == nil || e.RenderStatus(w, page.Status, "pages/error.html", data) != nil {
		http.Error(w, page.Message, page.Status)
	}
}
