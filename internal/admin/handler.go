package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/platform/httpx"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	"github.com/worksla/worksla-web/jobs"
)

const (
	requestTimeout = 20 * time.Second
	usersPageSize  = 20
)

var (
	usernamePattern   = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	settingKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)
)

// Queue enqueues and inspects background jobs.
type Queue interface {
	EnqueueSync(ctx context.Context, payload jobs.SyncPayload) (*asynq.TaskInfo, error)
	Stats(ctx context.Context) (jobs.QueueStats, error)
}

// Handler serves the admin pages.
type Handler struct {
	logger    *slog.Logger
	backend   Backend
	queue     Queue
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler constructs the admin handler. queue may be nil when no job
// queue is configured.
func NewHandler(logger *slog.Logger, backend Backend, queue Queue, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Handler{logger: logger, backend: backend, queue: queue, templates: templates, csrf: csrf, validator: v}
}

// UsersPage is the user management view model.
type UsersPage struct {
	Users      []User
	Search     string
	Pagination shared.Pagination
	Roles      []string
}

// PageURL links to page n keeping the search.
func (p UsersPage) PageURL(n int) string {
	u := "/admin/users?page=" + strconv.Itoa(n)
	if p.Search != "" {
		u += "&search=" + url.QueryEscape(p.Search)
	}
	return u
}

// AssigneesPage is the allowlist view model.
type AssigneesPage struct {
	Assignees  []Assignee
	ActiveOnly bool
	CanEdit    bool
}

// SettingsPage is the settings view model.
type SettingsPage struct {
	Settings []Setting
}

// SyncPage is the job queue view model.
type SyncPage struct {
	Stats      jobs.QueueStats
	Configured bool
	Error      string
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	page := parsePositive(r.URL.Query().Get("page"), 1)

	list, err := h.backend.ListUsers(ctx, shared.CredentialsFromContext(ctx), page, usersPageSize, search)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "list users", err)
		return
	}
	h.render(w, r, "Users", "pages/admin/users.html", UsersPage{
		Users:      list.Items,
		Search:     search,
		Pagination: shared.NewPagination(page, usersPageSize, list.Total),
		Roles:      Roles,
	})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	in := NewUser{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
	}
	back := "/admin/users"
	if !h.valid(r, in) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	user, err := h.backend.CreateUser(ctx, shared.CredentialsFromContext(ctx), in)
	h.afterMutation(w, r, back, "create user", fmt.Sprintf("User %s created.", user.Username), err)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in UserUpdate
	if role := r.PostFormValue("role"); role != "" {
		in.Role = &role
	}
	if password := r.PostFormValue("password"); password != "" {
		in.Password = &password
	}
	if raw := r.PostFormValue("is_active"); raw != "" {
		active := raw == "true" || raw == "on" || raw == "1"
		in.IsActive = &active
	}
	back := "/admin/users"
	if !h.valid(r, in) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	user, err := h.backend.UpdateUser(ctx, shared.CredentialsFromContext(ctx), id, in)
	h.afterMutation(w, r, back, "update user", fmt.Sprintf("User %s updated.", user.Username), err)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if p, ok := shared.PrincipalFromContext(r.Context()); ok && p.ID == id {
		httpx.Flash(r, "danger", "You cannot delete your own account.")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err := h.backend.DeleteUser(ctx, shared.CredentialsFromContext(ctx), id)
	h.afterMutation(w, r, "/admin/users", "delete user", "User deleted.", err)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	newPassword := r.PostFormValue("new_password")
	if newPassword != "" {
		if len(newPassword) < 8 || !strings.ContainsFunc(newPassword, unicode.IsLetter) || !strings.ContainsFunc(newPassword, unicode.IsDigit) {
			httpx.Flash(r, "danger", "Passwords need at least 8 characters with letters and digits.")
			http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	reset, err := h.backend.ResetPassword(ctx, shared.CredentialsFromContext(ctx), id, newPassword)
	msg := "Password reset."
	if reset.NewPassword != "" {
		msg = "Password reset. New password: " + reset.NewPassword
	}
	h.afterMutation(w, r, "/admin/users", "reset password", msg, err)
}

func (h *Handler) handleAssignees(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	activeOnly := r.URL.Query().Get("active_only") == "true"
	list, err := h.backend.ListAssignees(ctx, shared.CredentialsFromContext(ctx), activeOnly)
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "list assignees", err)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	h.render(w, r, "Assignees", "pages/admin/assignees.html", AssigneesPage{
		Assignees:  list,
		ActiveOnly: activeOnly,
		CanEdit:    p.HasRole("admin"),
	})
}

func (h *Handler) handleCreateAssignee(w http.ResponseWriter, r *http.Request) {
	opID, _ := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("op_user_id")), 10, 64)
	in := NewAssignee{
		OPUserID:    opID,
		DisplayName: strings.TrimSpace(r.PostFormValue("display_name")),
		Active:      r.PostFormValue("active") != "",
	}
	back := "/admin/assignees"
	if !h.valid(r, in) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	_, err := h.backend.CreateAssignee(ctx, shared.CredentialsFromContext(ctx), in)
	h.afterMutation(w, r, back, "create assignee", in.DisplayName+" added to the allowlist.", err)
}

func (h *Handler) handleUpdateAssignee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in AssigneeUpdate
	if name := strings.TrimSpace(r.PostFormValue("display_name")); name != "" {
		in.DisplayName = &name
	}
	if raw := r.PostFormValue("active"); raw != "" {
		active := raw == "true" || raw == "on" || raw == "1"
		in.Active = &active
	}
	back := "/admin/assignees"
	if !h.valid(r, in) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	_, err := h.backend.UpdateAssignee(ctx, shared.CredentialsFromContext(ctx), id, in)
	h.afterMutation(w, r, back, "update assignee", "Assignee updated.", err)
}

func (h *Handler) handleDeleteAssignee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err := h.backend.DeleteAssignee(ctx, shared.CredentialsFromContext(ctx), id)
	h.afterMutation(w, r, "/admin/assignees", "delete assignee", "Assignee removed from the allowlist.", err)
}

func (h *Handler) handleSyncAssignees(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*requestTimeout)
	defer cancel()
	res, err := h.backend.SyncAssignees(ctx, shared.CredentialsFromContext(ctx))
	msg := fmt.Sprintf("Synced %d of %d OpenProject users.", res.SyncedCount, res.TotalAssignees)
	h.afterMutation(w, r, "/admin/assignees", "sync assignees", msg, err)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	settings, err := h.backend.ListSettings(ctx, shared.CredentialsFromContext(ctx))
	if err != nil {
		httpx.PageError(w, r, h.templates, h.logger, "list settings", err)
		return
	}
	h.render(w, r, "Settings", "pages/admin/settings.html", SettingsPage{Settings: settings})
}

func (h *Handler) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		key = strings.TrimSpace(r.PostFormValue("key"))
	}
	back := "/admin/settings"
	if !settingKeyPattern.MatchString(key) {
		httpx.Flash(r, "danger", "Setting keys may only contain letters, digits, dots, dashes and underscores.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	var in SettingUpdate
	if err := json.Unmarshal([]byte(r.PostFormValue("value")), &in.Value); err != nil || in.Value == nil {
		httpx.Flash(r, "danger", fmt.Sprintf("%s: value must be a JSON object.", key))
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if _, ok := r.PostForm["description"]; ok {
		desc := strings.TrimSpace(r.PostFormValue("description"))
		in.Description = &desc
	}
	if !h.valid(r, in) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	_, err := h.backend.UpdateSetting(ctx, shared.CredentialsFromContext(ctx), key, in)
	h.afterMutation(w, r, back, "update setting", fmt.Sprintf("Setting %s saved.", key), err)
}

func (h *Handler) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err := h.backend.DeleteSetting(ctx, shared.CredentialsFromContext(ctx), key)
	h.afterMutation(w, r, "/admin/settings", "delete setting", fmt.Sprintf("Setting %s deleted.", key), err)
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	page := SyncPage{Configured: h.queue != nil}
	if h.queue != nil {
		stats, err := h.queue.Stats(r.Context())
		if err != nil {
			h.logger.Warn("inspect queue", slog.Any("error", err))
			page.Error = "The job queue could not be inspected."
		}
		page.Stats = stats
	}
	h.render(w, r, "Sync", "pages/admin/sync.html", page)
}

func (h *Handler) handleEnqueueSync(w http.ResponseWriter, r *http.Request) {
	back := "/admin/sync"
	if h.queue == nil {
		httpx.Flash(r, "danger", "No job queue is configured.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	info, err := h.queue.EnqueueSync(r.Context(), jobs.SyncPayload{RequestedBy: p.Username, Reason: "admin"})
	switch {
	case errors.Is(err, jobs.ErrAlreadyQueued):
		httpx.Flash(r, "info", "A sync is already queued.")
	case err != nil:
		h.logger.Error("enqueue sync", slog.Any("error", err))
		httpx.Flash(r, "danger", "The sync could not be queued.")
	default:
		h.logger.Info("sync enqueued", slog.String("task_id", info.ID), slog.String("requested_by", p.Username))
		httpx.Flash(r, "success", "Sync queued.")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, title, name string, page any) {
	data := view.NewPageData(r, h.csrf, title, page)
	if err := h.templates.Render(w, name, data); err != nil {
		h.logger.Error("render admin page", slog.String("template", name), slog.Any("error", err))
	}
}

// afterMutation reports the outcome of a form post and redirects back.
func (h *Handler) afterMutation(w http.ResponseWriter, r *http.Request, back, op, success string, err error) {
	switch {
	case err == nil:
		httpx.Flash(r, "success", success)
	case errors.Is(err, apiclient.ErrAuthExpired):
		httpx.RedirectToLogin(w, r)
		return
	default:
		var httpErr *apiclient.HTTPError
		msg := httpx.Classify(err).Detail
		if errors.As(err, &httpErr) && httpErr.Status < http.StatusInternalServerError && httpErr.Detail() != "" {
			msg = httpErr.Detail()
		}
		h.logger.Warn(op, slog.Any("error", err))
		httpx.Flash(r, "danger", msg)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) valid(r *http.Request, in any) bool {
	err := h.validator.Struct(in)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		httpx.Flash(r, "danger", err.Error())
		return false
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	httpx.Flash(r, "danger", strings.Join(msgs, " "))
	return false
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.templates.RenderError(w, r, view.ErrorPage{Status: http.StatusNotFound, Message: "Record not found."})
		return 0, false
	}
	return id, true
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", name, fe.Param())
	case "username":
		return name + " may only contain letters, digits, dots, dashes and underscores."
	case "gt":
		return name + " must be a positive number."
	default:
		return name + " is invalid."
	}
}

func parsePositive(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
