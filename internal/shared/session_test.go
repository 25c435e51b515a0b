package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "worksla_session", time.Hour, false), mr
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "worksla_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	sess.Set("access_token", "abc")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Welcome"})

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, mr.Exists("worksla:session:"+sess.ID))
	assert.Equal(t, time.Hour, mr.TTL("worksla:session:"+sess.ID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "7", loaded.User())
	assert.Equal(t, "abc", loaded.Get("access_token"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Welcome", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionIgnoresUnknownCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "worksla_session", Value: "attacker-chosen"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
	assert.Empty(t, sess.User())
}

func TestSessionRenewDropsPreviousRecord(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "worksla_session", Value: oldID})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sm.Renew(loaded)
	loaded.SetUser("9")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("worksla:session:"+oldID))
	assert.True(t, mr.Exists("worksla:session:"+loaded.ID))
}

func TestSessionDestroyExpiresCookie(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	assert.False(t, mr.Exists("worksla:session:"+sess.ID))
}
