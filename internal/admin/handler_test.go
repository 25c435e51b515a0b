package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	"github.com/worksla/worksla-web/jobs"
)

type fakeBackend struct {
	Backend
	created     []NewUser
	updated     map[int64]UserUpdate
	deleted     []int64
	assigneeErr error
	settings    map[string]SettingUpdate
	users       UserList
}

func (f *fakeBackend) ListUsers(_ context.Context, _ *apiclient.Credentials, page, _ int, _ string) (UserList, error) {
	out := f.users
	out.Page = page
	return out, nil
}

func (f *fakeBackend) CreateUser(_ context.Context, _ *apiclient.Credentials, in NewUser) (User, error) {
	f.created = append(f.created, in)
	return User{ID: 9, Username: in.Username, Role: in.Role}, nil
}

func (f *fakeBackend) UpdateUser(_ context.Context, _ *apiclient.Credentials, id int64, in UserUpdate) (User, error) {
	if f.updated == nil {
		f.updated = map[int64]UserUpdate{}
	}
	f.updated[id] = in
	return User{ID: id, Username: "nok"}, nil
}

func (f *fakeBackend) DeleteUser(_ context.Context, _ *apiclient.Credentials, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) CreateAssignee(context.Context, *apiclient.Credentials, NewAssignee) (Assignee, error) {
	return Assignee{}, f.assigneeErr
}

func (f *fakeBackend) UpdateSetting(_ context.Context, _ *apiclient.Credentials, key string, in SettingUpdate) (Setting, error) {
	if f.settings == nil {
		f.settings = map[string]SettingUpdate{}
	}
	f.settings[key] = in
	return Setting{Key: key}, nil
}

type fakeQueue struct {
	err      error
	payloads []jobs.SyncPayload
}

func (q *fakeQueue) EnqueueSync(_ context.Context, p jobs.SyncPayload) (*asynq.TaskInfo, error) {
	q.payloads = append(q.payloads, p)
	if q.err != nil {
		return nil, q.err
	}
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func (q *fakeQueue) Stats(context.Context) (jobs.QueueStats, error) {
	return jobs.QueueStats{Queue: jobs.QueueDefault, Pending: 2}, nil
}

func allowAll(...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func newRouter(t *testing.T, backend Backend, queue Queue) chi.Router {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, backend, queue, templates, shared.NewCSRFManager("secret"))
	r := chi.NewRouter()
	r.Route("/admin", func(ar chi.Router) { h.MountRoutes(ar, allowAll) })
	return r
}

// post submits form as the admin user with id 1 and returns the response and
// the flash it queued.
func post(t *testing.T, r http.Handler, path string, form url.Values) (*httptest.ResponseRecorder, *shared.FlashMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess := &shared.Session{ID: "s1"}
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = shared.ContextWithPrincipal(ctx, shared.Principal{ID: 1, Username: "root", Role: "admin"})
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req.WithContext(ctx))
	return res, sess.PopFlash()
}

func TestCreateUserValidatesBeforeCallingBackend(t *testing.T) {
	backend := &fakeBackend{}
	r := newRouter(t, backend, nil)

	res, flash := post(t, r, "/admin/users", url.Values{"username": {"a b"}, "password": {"short"}, "role": {"owner"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, backend.created)
	require.NotNil(t, flash)
	assert.Equal(t, "danger", flash.Kind)
	assert.Contains(t, flash.Message, "Username may only contain")
	assert.Contains(t, flash.Message, "Password must be at least 8 characters.")
	assert.Contains(t, flash.Message, "Role must be one of: admin analyst viewer.")
}

func TestCreateUser(t *testing.T) {
	backend := &fakeBackend{}
	r := newRouter(t, backend, nil)

	res, flash := post(t, r, "/admin/users", url.Values{"username": {"somchai.k"}, "password": {"longenough1"}, "role": {"analyst"}})
	assert.Equal(t, "/admin/users", res.Header().Get("Location"))
	require.Len(t, backend.created, 1)
	assert.Equal(t, "analyst", backend.created[0].Role)
	assert.Equal(t, "User somchai.k created.", flash.Message)
}

func TestUpdateUserSendsOnlyChangedFields(t *testing.T) {
	backend := &fakeBackend{}
	r := newRouter(t, backend, nil)

	_, flash := post(t, r, "/admin/users/5", url.Values{"is_active": {"false"}})
	assert.Equal(t, "success", flash.Kind)
	in := backend.updated[5]
	assert.Nil(t, in.Role)
	assert.Nil(t, in.Password)
	require.NotNil(t, in.IsActive)
	assert.False(t, *in.IsActive)
}

func TestDeleteOwnAccountIsRefused(t *testing.T) {
	backend := &fakeBackend{}
	r := newRouter(t, backend, nil)

	_, flash := post(t, r, "/admin/users/1/delete", nil)
	assert.Empty(t, backend.deleted)
	assert.Equal(t, "danger", flash.Kind)

	_, _ = post(t, r, "/admin/users/2/delete", nil)
	assert.Equal(t, []int64{2}, backend.deleted)
}

func TestBackendRejectionIsShownToAdmin(t *testing.T) {
	backend := &fakeBackend{assigneeErr: &apiclient.HTTPError{
		Method: http.MethodPost, Path: "/admin/assignees", Status: http.StatusBadRequest,
		Body: []byte(`{"detail":"Assignee already in allowlist"}`),
	}}
	r := newRouter(t, backend, nil)

	_, flash := post(t, r, "/admin/assignees", url.Values{"op_user_id": {"12"}, "display_name": {"Somchai"}})
	require.NotNil(t, flash)
	assert.Equal(t, "Assignee already in allowlist", flash.Message)
}

func TestUpdateSettingRequiresJSONObject(t *testing.T) {
	backend := &fakeBackend{}
	r := newRouter(t, backend, nil)

	_, flash := post(t, r, "/admin/settings/sla", url.Values{"value": {"[1,2]"}})
	assert.Equal(t, "danger", flash.Kind)
	assert.Empty(t, backend.settings)

	_, flash = post(t, r, "/admin/settings/sla", url.Values{"value": {`{"default_response_hours": 12}`}, "description": {"SLA"}})
	assert.Equal(t, "success", flash.Kind)
	got := backend.settings["sla"]
	assert.Equal(t, float64(12), got.Value["default_response_hours"])
	require.NotNil(t, got.Description)
	assert.Equal(t, "SLA", *got.Description)
}

func TestCreateSettingTakesKeyFromForm(t *testing.T) {
	backend := &fakeBackend{}
	r := newRouter(t, backend, nil)

	_, flash := post(t, r, "/admin/settings", url.Values{"key": {"bad key"}, "value": {"{}"}})
	assert.Equal(t, "danger", flash.Kind)
	assert.Empty(t, backend.settings)

	_, flash = post(t, r, "/admin/settings", url.Values{"key": {"notify.line"}, "value": {`{"enabled": true}`}})
	assert.Equal(t, "success", flash.Kind)
	assert.Equal(t, true, backend.settings["notify.line"].Value["enabled"])
}

func TestEnqueueSync(t *testing.T) {
	queue := &fakeQueue{}
	r := newRouter(t, &fakeBackend{}, queue)

	res, flash := post(t, r, "/admin/sync", nil)
	assert.Equal(t, "/admin/sync", res.Header().Get("Location"))
	assert.Equal(t, "Sync queued.", flash.Message)
	assert.Equal(t, []jobs.SyncPayload{{RequestedBy: "root", Reason: "admin"}}, queue.payloads)

	queue.err = jobs.ErrAlreadyQueued
	_, flash = post(t, r, "/admin/sync", nil)
	assert.Equal(t, "A sync is already queued.", flash.Message)
}

func TestUsersPageRenders(t *testing.T) {
	backend := &fakeBackend{users: UserList{Items: []User{{ID: 3, Username: "nok", Role: "viewer", IsActive: true}}, Total: 1}}
	r := newRouter(t, backend, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	ctx := shared.ContextWithSession(req.Context(), &shared.Session{ID: "s1"})
	ctx = shared.ContextWithPrincipal(ctx, shared.Principal{ID: 1, Username: "root", Role: "admin"})
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "nok")
}

func TestDecodeAssigneesAcceptsBothShapes(t *testing.T) {
	list, err := decodeAssignees(json.RawMessage(`[{"id":1,"op_user_id":5,"display_name":"A","active":true}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(5), list[0].OPUserID)

	list, err = decodeAssignees(json.RawMessage(`{"items":[{"id":2,"op_user_id":6,"display_name":"B"}],"total":1}`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].DisplayName)

	list, err = decodeAssignees(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSettingPretty(t *testing.T) {
	s := Setting{Value: json.RawMessage(`{"a":1}`)}
	assert.Equal(t, "{\n  \"a\": 1\n}", s.Pretty())
}
