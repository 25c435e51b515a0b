package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/worksla/worksla-web/internal/apiclient"
)

// Backend is the admin API of the WorkSLA backend.
type Backend interface {
	ListUsers(ctx context.Context, creds *apiclient.Credentials, page, pageSize int, search string) (UserList, error)
	CreateUser(ctx context.Context, creds *apiclient.Credentials, in NewUser) (User, error)
	UpdateUser(ctx context.Context, creds *apiclient.Credentials, id int64, in UserUpdate) (User, error)
	DeleteUser(ctx context.Context, creds *apiclient.Credentials, id int64) error
	ResetPassword(ctx context.Context, creds *apiclient.Credentials, id int64, newPassword string) (PasswordReset, error)

	ListAssignees(ctx context.Context, creds *apiclient.Credentials, activeOnly bool) ([]Assignee, error)
	CreateAssignee(ctx context.Context, creds *apiclient.Credentials, in NewAssignee) (Assignee, error)
	UpdateAssignee(ctx context.Context, creds *apiclient.Credentials, id int64, in AssigneeUpdate) (Assignee, error)
	DeleteAssignee(ctx context.Context, creds *apiclient.Credentials, id int64) error
	SyncAssignees(ctx context.Context, creds *apiclient.Credentials) (AssigneeSync, error)

	ListSettings(ctx context.Context, creds *apiclient.Credentials) ([]Setting, error)
	UpdateSetting(ctx context.Context, creds *apiclient.Credentials, key string, in SettingUpdate) (Setting, error)
	DeleteSetting(ctx context.Context, creds *apiclient.Credentials, key string) error
}

// APIBackend implements Backend over the HTTP client.
type APIBackend struct {
	client *apiclient.Client
}

// NewAPIBackend builds the admin backend.
func NewAPIBackend(client *apiclient.Client) *APIBackend {
	return &APIBackend{client: client}
}

// ListUsers implements Backend.
func (b *APIBackend) ListUsers(ctx context.Context, creds *apiclient.Credentials, page, pageSize int, search string) (UserList, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	var out UserList
	err := b.client.GetJSON(ctx, creds, "/admin/users", q, &out)
	return out, err
}

// CreateUser implements Backend.
func (b *APIBackend) CreateUser(ctx context.Context, creds *apiclient.Credentials, in NewUser) (User, error) {
	var out User
	err := b.client.PostJSON(ctx, creds, "/admin/users", in, &out)
	return out, err
}

// UpdateUser implements Backend.
func (b *APIBackend) UpdateUser(ctx context.Context, creds *apiclient.Credentials, id int64, in UserUpdate) (User, error) {
	var out User
	err := b.client.PutJSON(ctx, creds, fmt.Sprintf("/admin/users/%d", id), in, &out)
	return out, err
}

// DeleteUser implements Backend.
func (b *APIBackend) DeleteUser(ctx context.Context, creds *apiclient.Credentials, id int64) error {
	return b.client.Delete(ctx, creds, fmt.Sprintf("/admin/users/%d", id))
}

// ResetPassword implements Backend. An empty newPassword asks the backend to
// generate one.
func (b *APIBackend) ResetPassword(ctx context.Context, creds *apiclient.Credentials, id int64, newPassword string) (PasswordReset, error) {
	var body any
	if newPassword != "" {
		body = map[string]string{"new_password": newPassword}
	}
	var out PasswordReset
	err := b.client.PostJSON(ctx, creds, fmt.Sprintf("/admin/users/%d/reset_password", id), body, &out)
	return out, err
}

// ListAssignees implements Backend. The backend answers with either a bare
// array or a paged envelope.
func (b *APIBackend) ListAssignees(ctx context.Context, creds *apiclient.Credentials, activeOnly bool) ([]Assignee, error) {
	q := url.Values{}
	q.Set("active_only", strconv.FormatBool(activeOnly))
	var raw json.RawMessage
	if err := b.client.GetJSON(ctx, creds, "/admin/assignees", q, &raw); err != nil {
		return nil, err
	}
	return decodeAssignees(raw)
}

func decodeAssignees(raw json.RawMessage) ([]Assignee, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []Assignee
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("admin: decode assignees: %w", err)
		}
		return out, nil
	}
	var envelope struct {
		Items []Assignee `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("admin: decode assignees: %w", err)
	}
	return envelope.Items, nil
}

// CreateAssignee implements Backend.
func (b *APIBackend) CreateAssignee(ctx context.Context, creds *apiclient.Credentials, in NewAssignee) (Assignee, error) {
	var out Assignee
	err := b.client.PostJSON(ctx, creds, "/admin/assignees", in, &out)
	return out, err
}

// UpdateAssignee implements Backend.
func (b *APIBackend) UpdateAssignee(ctx context.Context, creds *apiclient.Credentials, id int64, in AssigneeUpdate) (Assignee, error) {
	var out Assignee
	err := b.client.PutJSON(ctx, creds, fmt.Sprintf("/admin/assignees/%d", id), in, &out)
	return out, err
}

// DeleteAssignee implements Backend.
func (b *APIBackend) DeleteAssignee(ctx context.Context, creds *apiclient.Credentials, id int64) error {
	return b.client.Delete(ctx, creds, fmt.Sprintf("/admin/assignees/%d", id))
}

// SyncAssignees implements Backend.
func (b *APIBackend) SyncAssignees(ctx context.Context, creds *apiclient.Credentials) (AssigneeSync, error) {
	var out AssigneeSync
	err := b.client.PostJSON(ctx, creds, "/admin/assignees/sync", nil, &out)
	return out, err
}

// ListSettings implements Backend.
func (b *APIBackend) ListSettings(ctx context.Context, creds *apiclient.Credentials) ([]Setting, error) {
	var out []Setting
	err := b.client.GetJSON(ctx, creds, "/admin/settings", nil, &out)
	return out, err
}

// UpdateSetting implements Backend.
func (b *APIBackend) UpdateSetting(ctx context.Context, creds *apiclient.Credentials, key string, in SettingUpdate) (Setting, error) {
	var out Setting
	err := b.client.PutJSON(ctx, creds, "/admin/settings/"+url.PathEscape(key), in, &out)
	return out, err
}

// DeleteSetting implements Backend.
func (b *APIBackend) DeleteSetting(ctx context.Context, creds *apiclient.Credentials, key string) error {
	return b.client.Delete(ctx, creds, "/admin/settings/"+url.PathEscape(key))
}
