package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func replay(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

func TestCookieStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCookieStore(testSecret, 3600, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	storage := NewCookieStorage(store, req, rec)

	_, ok, err := storage.Load(ctx, domain.SessionStorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Save(ctx, domain.SessionStorageKey, []byte(`{"accessToken":"abc"}`)))

	next := NewCookieStorage(store, replay(rec), httptest.NewRecorder())
	raw, ok, err := next.Load(ctx, domain.SessionStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"accessToken":"abc"}`, string(raw))
}

func TestCookieStorage_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewCookieStore(testSecret, 3600, false)

	rec := httptest.NewRecorder()
	require.NoError(t, NewCookieStorage(store, httptest.NewRequest(http.MethodGet, "/", nil), rec).
		Save(ctx, domain.SessionStorageKey, []byte("x")))

	rec2 := httptest.NewRecorder()
	require.NoError(t, NewCookieStorage(store, replay(rec), rec2).Delete(ctx, domain.SessionStorageKey))

	_, ok, err := NewCookieStorage(store, replay(rec2), httptest.NewRecorder()).Load(ctx, domain.SessionStorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCookieStorage_TamperedCookie(t *testing.T) {
	store := NewCookieStore(testSecret, 3600, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tampered"})

	s := NewStore(context.Background(), NewCookieStorage(store, req, httptest.NewRecorder()), &mockAuthenticator{})
	assert.False(t, s.Authenticated())
}

func TestBrowserID_IssuedOnceAndStable(t *testing.T) {
	store := NewCookieStore(testSecret, 3600, false)

	rec := httptest.NewRecorder()
	id, err := BrowserID(store, httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	again, err := BrowserID(store, replay(rec), httptest.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestBrowserID_DistinctPerBrowser(t *testing.T) {
	store := NewCookieStore(testSecret, 3600, false)

	a, err := BrowserID(store, httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	require.NoError(t, err)
	b, err := BrowserID(store, httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
