package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/app"
	"github.com/pscheid92/thereiwas/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- requireAuth tests ---

func TestRequireAuth_NoSession(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/calendar", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?from=%2Fcalendar", rec.Header().Get("Location"))
}

func TestRequireAuth_KeepsQueryInDestination(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/settings?tab=general", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?from=%2Fsettings%3Ftab%3Dgeneral", rec.Header().Get("Location"))
}

func TestRequireAuth_ValidSession(t *testing.T) {
	srv := newTestServer(t, Dependencies{})
	cookies := sessionCookies(t, srv, testToken("ada"))

	req := withCookies(httptest.NewRequest(http.MethodGet, "/calendar", nil), cookies)
	rec := serve(srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Calendar")
}

func TestRequireAuth_UnreadableSessionCookie(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tampered"})
	rec := serve(srv, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?from=%2F", rec.Header().Get("Location"))
}

func TestRequireAuth_CallsNextHandler(t *testing.T) {
	srv := newTestServer(t, Dependencies{})
	cookies := sessionCookies(t, srv, testToken("ada"))

	req := withCookies(httptest.NewRequest(http.MethodGet, "/anything", nil), cookies)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)

	handler := srv.requireAuth(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, callHandler(handler, c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// --- login page tests ---

func TestLoginPage_RendersDestination(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/login?from=/settings", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "from=/settings")
	assert.Contains(t, rec.Body.String(), "failed=false")
}

func TestLoginPage_RedirectsWhenAuthenticated(t *testing.T) {
	srv := newTestServer(t, Dependencies{})
	cookies := sessionCookies(t, srv, testToken("ada"))

	req := withCookies(httptest.NewRequest(http.MethodGet, "/login", nil), cookies)
	rec := serve(srv, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

// --- sign-in tests ---

func TestLogin_Success(t *testing.T) {
	authenticator := &mockAuthenticator{token: testToken("ada")}
	srv := newTestServer(t, Dependencies{Authenticator: authenticator})

	req := formRequest("/login", url.Values{
		"username": {"ada"},
		"password": {"secret"},
		"from":     {"/calendar"},
	})
	rec := serve(srv, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/calendar", rec.Header().Get("Location"))
	require.NotNil(t, findCookie(rec.Result().Cookies(), session.CookieName))
	assert.Equal(t, [][2]string{{"ada", "secret"}}, authenticator.calls)

	// the issued cookie authenticates the next navigation
	next := withCookies(httptest.NewRequest(http.MethodGet, "/calendar", nil), rec.Result().Cookies())
	assert.Equal(t, http.StatusOK, serve(srv, next).Code)
}

func TestLogin_ForwardsCredentialsUnchanged(t *testing.T) {
	authenticator := &mockAuthenticator{token: testToken("ada")}
	srv := newTestServer(t, Dependencies{Authenticator: authenticator})

	rec := serve(srv, formRequest("/login", url.Values{"username": {"  ada "}, "password": {" pw "}}))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, [][2]string{{"  ada ", " pw "}}, authenticator.calls)
}

func TestLogin_UnsafeDestinationFallsBackToRoot(t *testing.T) {
	tests := []struct {
		name string
		from string
	}{
		{name: "empty", from: ""},
		{name: "absolute", from: "https://evil.example/steal"},
		{name: "protocol_relative", from: "//evil.example"},
		{name: "login_loop", from: "/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Dependencies{})

			rec := serve(srv, formRequest("/login", url.Values{
				"username": {"ada"},
				"password": {"secret"},
				"from":     {tt.from},
			}))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
		})
	}
}

func TestLogin_Rejected(t *testing.T) {
	authenticator := &mockAuthenticator{err: errors.New("token endpoint answered 401")}
	srv := newTestServer(t, Dependencies{Authenticator: authenticator})

	rec := serve(srv, formRequest("/login", url.Values{
		"username": {"ada"},
		"password": {"wrong"},
		"from":     {"/settings"},
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed=true")
	assert.Contains(t, rec.Body.String(), "from=/settings")
	assert.Contains(t, rec.Body.String(), "user=ada")
	assert.Nil(t, findCookie(rec.Result().Cookies(), session.CookieName))
}

func TestLogin_EmptyCredentialsAreForwarded(t *testing.T) {
	authenticator := &mockAuthenticator{err: errors.New("bad request")}
	srv := newTestServer(t, Dependencies{Authenticator: authenticator})

	rec := serve(srv, formRequest("/login", url.Values{}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, authenticator.callCount())
	assert.Equal(t, [][2]string{{"", ""}}, authenticator.calls)
}

func TestLogin_UnexpectedError(t *testing.T) {
	srv := newTestServer(t, Dependencies{
		SignIn: &mockSignIn{
			signInFn: func(_ context.Context, _ app.SessionStore, _, _, _ string) error {
				return errors.New("boom")
			},
		},
	})

	rec := serve(srv, formRequest("/login", url.Values{"username": {"ada"}, "password": {"pw"}}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"internal"`)
}

func TestLogin_RateLimited(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, withLoginLimit(0.001, 1))

	first := serve(srv, formRequest("/login", url.Values{"username": {"ada"}, "password": {"pw"}}))
	second := serve(srv, formRequest("/login", url.Values{"username": {"ada"}, "password": {"pw"}}))

	assert.Equal(t, http.StatusFound, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestLogin_ServerSideSessions(t *testing.T) {
	browserSessions := &fakeBrowserSessions{}
	srv := newTestServer(t, Dependencies{BrowserSessions: browserSessions})

	rec := serve(srv, formRequest("/login", url.Values{"username": {"ada"}, "password": {"pw"}}))
	require.Equal(t, http.StatusFound, rec.Code)

	cookie := findCookie(rec.Result().Cookies(), session.CookieName)
	require.NotNil(t, cookie)
	assert.NotContains(t, cookie.Value, testToken("ada"))

	next := withCookies(httptest.NewRequest(http.MethodGet, "/settings", nil), rec.Result().Cookies())
	assert.Equal(t, http.StatusOK, serve(srv, next).Code)

	// another browser does not share the session
	assert.Equal(t, http.StatusFound, serve(srv, httptest.NewRequest(http.MethodGet, "/settings", nil)).Code)
}

// --- sign-out tests ---

func TestLogout_ClearsSession(t *testing.T) {
	srv := newTestServer(t, Dependencies{})
	cookies := sessionCookies(t, srv, testToken("ada"))

	rec := serve(srv, withCookies(formRequest("/logout", url.Values{}), cookies))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	next := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), rec.Result().Cookies())
	after := serve(srv, next)
	assert.Equal(t, http.StatusFound, after.Code)
	assert.Equal(t, "/login?from=%2F", after.Header().Get("Location"))
}

func TestLogout_WithoutSession(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	rec := serve(srv, formRequest("/logout", url.Values{}))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}
