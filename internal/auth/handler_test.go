package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/auth"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	_ "github.com/worksla/worksla-web/testing"
)

type fixture struct {
	router   chi.Router
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiclient.LoginPath:
			var body struct{ Username, Password string }
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Password != "s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "acc-1", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "ref-1", Path: "/"})
			_, _ = w.Write([]byte(`{"user":{"id":7,"username":"` + body.Username + `","role":"analyst","is_active":true},"message":"ok"}`))
		case apiclient.LogoutPath:
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	api := apiclient.New(apiclient.Options{BaseURL: fakeBackend(t).URL})
	handler := auth.NewHandler(nil, auth.NewService(api, nil), templates, sessions, shared.NewCSRFManager("csrfsecret"))
	mw := auth.Middleware{Templates: templates}

	r := chi.NewRouter()
	r.Use(mw.WithCredentials)
	r.Route("/auth", handler.MountRoutes)
	r.With(mw.RequireUser).Get("/workpackages", func(w http.ResponseWriter, r *http.Request) {
		p, _ := shared.PrincipalFromContext(r.Context())
		_, _ = w.Write([]byte("hello " + p.Username))
	})
	r.With(mw.RequireRole(auth.RoleAdmin)).Get("/admin/users", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("users"))
	})
	return &fixture{router: r, sessions: sessions, redis: mr}
}

// serve runs req with the session named by sessionID loaded into context and
// commits it afterwards. It returns the recorder and the session.
func (f *fixture) serve(t *testing.T, req *http.Request, sessionID string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: sessionID})
	}
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.NoError(t, f.sessions.Commit(context.Background(), httptest.NewRecorder(), sess))
	return res, sess
}

func loginRequest(username, password, next string) *http.Request {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("next", next)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t)
	res, _ := f.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login?next=/reports", nil), "")

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `value="/reports"`)
}

func TestLoginValidatesForm(t *testing.T) {
	f := newFixture(t)
	res, _ := f.serve(t, loginRequest("", "", "/"), "")

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Username is required.")
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	res, sess := f.serve(t, loginRequest("somchai", "wrong", "/"), "")

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid username or password.")
	_, ok := auth.PrincipalFromSession(sess)
	assert.False(t, ok)
}

func TestLoginStoresCredentialsAndRenewsSession(t *testing.T) {
	f := newFixture(t)
	_, first := f.serve(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), "")
	anonymousID := first.ID

	res, sess := f.serve(t, loginRequest("somchai", "s3cret", "/workpackages?status=New"), anonymousID)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/workpackages?status=New", res.Header().Get("Location"))
	assert.NotEqual(t, anonymousID, sess.ID, "session id rotates on sign-in")
	assert.False(t, f.redis.Exists("worksla:session:"+anonymousID))

	var state apiclient.CredentialsState
	require.NoError(t, json.Unmarshal([]byte(sess.Get(auth.CredentialsSessionKey)), &state))
	assert.Equal(t, map[string]string{"access_token": "acc-1", "refresh_token": "ref-1"}, state.Cookies)

	res, _ = f.serve(t, httptest.NewRequest(http.MethodGet, "/workpackages", nil), sess.ID)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "hello somchai", res.Body.String())
}

func TestLoginIgnoresOffsiteNext(t *testing.T) {
	f := newFixture(t)
	res, _ := f.serve(t, loginRequest("somchai", "s3cret", "//evil.example/"), "")
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newFixture(t)
	_, sess := f.serve(t, loginRequest("somchai", "s3cret", "/"), "")

	res, _ := f.serve(t, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), sess.ID)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.False(t, f.redis.Exists("worksla:session:"+sess.ID))

	res, _ = f.serve(t, httptest.NewRequest(http.MethodGet, "/workpackages", nil), sess.ID)
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestRequireUserRedirectsAnonymous(t *testing.T) {
	f := newFixture(t)
	res, _ := f.serve(t, httptest.NewRequest(http.MethodGet, "/workpackages?page=2", nil), "")
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login?next="+url.QueryEscape("/workpackages?page=2"), res.Header().Get("Location"))
}

func TestRequireRoleForbidsOtherRoles(t *testing.T) {
	f := newFixture(t)
	_, sess := f.serve(t, loginRequest("somchai", "s3cret", "/"), "")

	res, _ := f.serve(t, httptest.NewRequest(http.MethodGet, "/admin/users", nil), sess.ID)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
