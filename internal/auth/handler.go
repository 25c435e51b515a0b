package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `validate:"required,max=150"`
	Password string `validate:"required,max=256"`
	Next     string `validate:"-"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	next := httpx.SafeNext(r.URL.Query().Get("next"), "/")
	if _, ok := PrincipalFromSession(shared.SessionFromContext(r.Context())); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{Form: loginForm{Next: next}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
		Next:     httpx.SafeNext(r.PostFormValue("next"), "/"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		}
	}
	if len(errs) > 0 {
		form.Password = ""
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: errs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	user, creds, err := h.service.Authenticate(ctx, form.Username, form.Password)
	if err != nil {
		form.Password = ""
		status := http.StatusBadRequest
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.Info("login rejected", slog.String("username", form.Username))
			errs["general"] = "Invalid username or password."
		} else {
			c := httpx.Classify(err)
			h.logger.Warn("login failed", slog.String("username", form.Username), slog.Any("error", err))
			errs["general"] = c.Detail
			status = c.Status
		}
		h.renderLogin(w, r, status, loginPageData{Form: form, Errors: errs})
		return
	}

	h.sessionManager.Renew(sess)
	if err := StoreUser(sess, user, creds); err != nil {
		h.logger.Error("store credentials", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + user.Username + "."})
	h.logger.Info("user signed in", slog.String("username", user.Username), slog.String("role", user.Role))
	http.Redirect(w, r, form.Next, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	h.service.SignOut(ctx, shared.CredentialsFromContext(ctx))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, httpx.LoginPath, http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, page loginPageData) {
	data := view.NewPageData(r, h.csrfManager, "Sign in", page)
	if err := h.templates.RenderStatus(w, status, "pages/login.html", data); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "max":
		return fe.Field() + " is too long."
	default:
		return fe.Field() + " is invalid."
	}
}
