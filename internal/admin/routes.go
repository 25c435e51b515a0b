package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RoleGate builds middleware admitting only the given roles.
type RoleGate func(roles ...string) func(http.Handler) http.Handler

// MountRoutes registers the admin pages. Everything requires the admin role
// except reading the assignee allowlist, which analysts may do too.
func (h *Handler) MountRoutes(r chi.Router, require RoleGate) {
	if h == nil {
		return
	}
	r.With(require("admin", "analyst")).Get("/assignees", h.handleAssignees)

	r.Group(func(ar chi.Router) {
		ar.Use(require("admin"))
		ar.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		})

		ar.Get("/users", h.handleUsers)
		ar.Post("/users", h.handleCreateUser)
		ar.Post("/users/{id}", h.handleUpdateUser)
		ar.Post("/users/{id}/delete", h.handleDeleteUser)
		ar.Post("/users/{id}/reset-password", h.handleResetPassword)

		ar.Post("/assignees", h.handleCreateAssignee)
		ar.Post("/assignees/sync", h.handleSyncAssignees)
		ar.Post("/assignees/{id}", h.handleUpdateAssignee)
		ar.Post("/assignees/{id}/delete", h.handleDeleteAssignee)

		ar.Get("/settings", h.handleSettings)
		ar.Post("/settings", h.handleUpdateSetting)
		ar.Post("/settings/{key}", h.handleUpdateSetting)
		ar.Post("/settings/{key}/delete", h.handleDeleteSetting)

		ar.Get("/sync", h.handleSyncStatus)
		ar.Post("/sync", h.handleEnqueueSync)
	})
}
