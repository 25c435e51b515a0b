package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
)

func withSession(t *testing.T, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func newTemplates(t *testing.T) *view.Engine {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	return templates
}

func TestClassify(t *testing.T) {
	netErr := &apiclient.NetworkError{Method: "GET", Path: "/workpackages/", Err: errors.New("connection refused")}
	cases := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"auth expired", fmt.Errorf("load: %w", apiclient.ErrAuthExpired), http.StatusUnauthorized, false},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, true},
		{"network", fmt.Errorf("load: %w", netErr), http.StatusBadGateway, true},
		{"upstream 404", &apiclient.HTTPError{Status: http.StatusNotFound}, http.StatusNotFound, false},
		{"upstream 429", &apiclient.HTTPError{Status: http.StatusTooManyRequests}, http.StatusTooManyRequests, true},
		{"upstream 503", &apiclient.HTTPError{Status: http.StatusServiceUnavailable}, http.StatusBadGateway, true},
		{"upstream 422", &apiclient.HTTPError{Status: http.StatusUnprocessableEntity}, http.StatusUnprocessableEntity, false},
		{"not found", fmt.Errorf("wp 5: %w", ErrNotFound), http.StatusNotFound, false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(tc.err)
			assert.Equal(t, tc.status, c.Status)
			assert.Equal(t, tc.retryable, c.Retryable)
			assert.NotEmpty(t, c.Title)
		})
	}
	assert.Equal(t, "Service Unavailable", Classify(netErr).Title)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/workpackages?status=New":   "/workpackages?status=New",
		"//evil.example/":            "/",
		"/\\evil.example":            "/",
		"https://evil.example/":      "/",
		"workpackages":               "/",
		"/auth/login?next=/reports":  "/",
		"/reports/sla?period=weekly": "/reports/sla?period=weekly",
	}
	for next, want := range cases {
		assert.Equal(t, want, SafeNext(next, "/"), "next=%q", next)
	}
}

func TestSendToLoginRemembersPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/workpackages/5?tab=history", nil)
	res := httptest.NewRecorder()
	SendToLogin(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login?next="+url.QueryEscape("/workpackages/5?tab=history"), res.Header().Get("Location"))
}

func TestSendToLoginOmitsNextForPosts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/workpackages/refresh", nil)
	res := httptest.NewRecorder()
	SendToLogin(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, LoginPath, res.Header().Get("Location"))
}

func TestSendToLoginDoesNotLoopOnLoginPage(t *testing.T) {
	for _, target := range []string{"/auth/login", "/auth/login?next=/reports"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		res := httptest.NewRecorder()
		SendToLogin(res, req)

		assert.Equal(t, http.StatusUnauthorized, res.Code, target)
		assert.Empty(t, res.Header().Get("Location"), target)
	}
}

func TestSendToLoginHtmx(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/workpackages/search?q=vpn", nil)
	req.Header.Set("HX-Request", "true")
	res := httptest.NewRecorder()
	SendToLogin(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, res.Header().Get("Location"))
	assert.Equal(t, "/auth/login?next="+url.QueryEscape("/workpackages/search?q=vpn"), res.Header().Get("HX-Redirect"))
}

func TestRedirectToLoginFlashesOnce(t *testing.T) {
	req, sess := withSession(t, httptest.NewRequest(http.MethodGet, "/reports/sla", nil))
	res := httptest.NewRecorder()
	RedirectToLogin(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "warning", flash.Kind)
	assert.Contains(t, flash.Message, "session has expired")
	assert.Nil(t, sess.PopFlash())

	req, sess = withSession(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	res = httptest.NewRecorder()
	RedirectToLogin(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Nil(t, sess.PopFlash())
}

func TestPageErrorAuthExpiredRedirects(t *testing.T) {
	req, _ := withSession(t, httptest.NewRequest(http.MethodGet, "/workpackages/5", nil))
	res := httptest.NewRecorder()
	err := fmt.Errorf("workpackages: get 5: %w", apiclient.ErrAuthExpired)
	PageError(res, req, newTemplates(t), nil, "load work package", err)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login?next=%2Fworkpackages%2F5", res.Header().Get("Location"))
}

func TestPageErrorNetworkOffersRetry(t *testing.T) {
	req, _ := withSession(t, httptest.NewRequest(http.MethodGet, "/workpackages/5", nil))
	res := httptest.NewRecorder()
	err := &apiclient.NetworkError{Method: "GET", Path: "/workpackages/5", Err: errors.New("connection refused")}
	PageError(res, req, newTemplates(t), nil, "load work package", err)

	require.Equal(t, http.StatusBadGateway, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Service Unavailable")
	assert.Contains(t, body, `href="/workpackages/5"`)
	assert.Contains(t, body, "Try again")
}

func TestPageErrorNoRetryForPosts(t *testing.T) {
	req, _ := withSession(t, httptest.NewRequest(http.MethodPost, "/workpackages/refresh", nil))
	res := httptest.NewRecorder()
	err := &apiclient.NetworkError{Method: "POST", Path: "/workpackages/refresh", Err: errors.New("connection refused")}
	PageError(res, req, newTemplates(t), nil, "refresh", err)

	require.Equal(t, http.StatusBadGateway, res.Code)
	assert.NotContains(t, res.Body.String(), "Try again")
}

func TestPageErrorNotFoundHasNoRetry(t *testing.T) {
	req, _ := withSession(t, httptest.NewRequest(http.MethodGet, "/workpackages/404", nil))
	res := httptest.NewRecorder()
	err := &apiclient.HTTPError{Method: "GET", Path: "/workpackages/404", Status: http.StatusNotFound}
	PageError(res, req, newTemplates(t), nil, "load work package", err)

	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.NotContains(t, res.Body.String(), "Try again")
}

func TestPageErrorCanceledWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/workpackages/5", nil).WithContext(ctx)
	cancel()
	res := httptest.NewRecorder()
	PageError(res, req, newTemplates(t), nil, "load work package", fmt.Errorf("load: %w", context.Canceled))

	assert.False(t, res.Flushed)
	assert.Empty(t, res.Body.String())
	assert.Empty(t, res.Header().Get("Location"))
}
