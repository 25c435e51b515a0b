// Package admin serves user, assignee allowlist and settings management.
package admin

import (
	"encoding/json"
	"time"
)

// Roles accepted by the backend.
var Roles = []string{"admin", "analyst", "viewer"}

// User is a dashboard account managed by the backend.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserList is one page of users.
type UserList struct {
	Items      []User `json:"items"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// NewUser is the payload creating a user.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"required,oneof=admin analyst viewer"`
}

// UserUpdate changes role, activity or password. Nil fields are left alone.
type UserUpdate struct {
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin analyst viewer"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// PasswordReset is the backend reply to a reset.
type PasswordReset struct {
	Message     string `json:"message"`
	NewPassword string `json:"new_password"`
}

// Assignee is an OpenProject user on the allowlist.
type Assignee struct {
	ID          int64     `json:"id"`
	OPUserID    int64     `json:"op_user_id"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAssignee is the payload adding an allowlist entry.
type NewAssignee struct {
	OPUserID    int64  `json:"op_user_id" validate:"required,gt=0"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Active      bool   `json:"active"`
}

// AssigneeUpdate changes an allowlist entry.
type AssigneeUpdate struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=200"`
	Active      *bool   `json:"active,omitempty"`
}

// AssigneeSync is the backend reply to an OpenProject assignee sync.
type AssigneeSync struct {
	Message        string `json:"message"`
	TotalAssignees int    `json:"total_assignees"`
	SyncedCount    int    `json:"synced_count"`
}

// Setting is a JSON-valued configuration entry.
type Setting struct {
	ID          int64           `json:"id"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Pretty returns the value indented for editing.
func (s Setting) Pretty() string {
	var v any
	if err := json.Unmarshal(s.Value, &v); err != nil {
		return string(s.Value)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(s.Value)
	}
	return string(out)
}

// SettingUpdate replaces a setting value.
type SettingUpdate struct {
	Value       map[string]any `json:"value" validate:"required"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=500"`
}
