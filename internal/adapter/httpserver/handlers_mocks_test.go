package httpserver

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/app"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/config"
	"github.com/pscheid92/thereiwas/internal/session"
	"github.com/stretchr/testify/require"
)

const testCSRFToken = "test-csrf-token"

// --- Mock implementations ---

type mockDashboard struct {
	snapshot domain.PositionSnapshot
	current  int
}

func (m *mockDashboard) Latest() domain.PositionSnapshot {
	return m.snapshot
}

func (m *mockDashboard) Current(_ context.Context) domain.PositionSnapshot {
	m.current++
	return m.snapshot
}

type mockAuthenticator struct {
	mu    sync.Mutex
	calls [][2]string
	token string
	err   error
}

func (m *mockAuthenticator) RequestToken(_ context.Context, username, password string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, [2]string{username, password})
	if m.err != nil {
		return domain.Session{}, m.err
	}
	return domain.Session{AccessToken: m.token}, nil
}

func (m *mockAuthenticator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSignIn struct {
	signInFn func(ctx context.Context, store app.SessionStore, username, password, source string) error
}

func (m *mockSignIn) SignIn(ctx context.Context, store app.SessionStore, username, password, source string) error {
	if m.signInFn != nil {
		return m.signInFn(ctx, store, username, password, source)
	}
	return store.SignIn(ctx, username, password)
}

func (m *mockSignIn) SignOut(ctx context.Context, store app.SessionStore) {
	store.SignOut(ctx)
}

type mockHub struct {
	mu           sync.Mutex
	registerErr  error
	registered   int
	unregistered chan struct{}
}

func newMockHub() *mockHub {
	return &mockHub{unregistered: make(chan struct{}, 1)}
}

func (m *mockHub) Register(_ *websocket.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	m.registered++
	return nil
}

func (m *mockHub) Unregister(_ *websocket.Conn) {
	select {
	case m.unregistered <- struct{}{}:
	default:
	}
}

func (m *mockHub) registeredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered
}

type fakeBrowserSessions struct {
	mu       sync.Mutex
	storages map[string]*session.MemoryStorage
}

func (f *fakeBrowserSessions) ForBrowser(browserID string) domain.SessionStorage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storages == nil {
		f.storages = make(map[string]*session.MemoryStorage)
	}
	storage, ok := f.storages[browserID]
	if !ok {
		storage = session.NewMemoryStorage()
		f.storages[browserID] = storage
	}
	return storage
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:         "test",
		SessionSecret:  "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:  time.Hour,
		LoginRateLimit: 100,
		LoginBurst:     100,
	}
}

func newTestServer(t *testing.T, deps Dependencies, opts ...func(*Server)) *Server {
	t.Helper()

	tmpl := template.Must(template.New("login.html").Parse(`Login from={{.From}} user={{.Username}} failed={{.Failed}}`))
	template.Must(tmpl.New("dashboard.html").Parse(`Dashboard {{.Page.Username}} {{.WSPath}} {{.Snapshot}}`))
	template.Must(tmpl.New("page.html").Parse(`{{.Page.Title}} {{.Page.Active}}{{with .Version}} {{.Name}}{{end}}`))

	if deps.Dashboard == nil {
		deps.Dashboard = &mockDashboard{}
	}
	if deps.Authenticator == nil {
		deps.Authenticator = &mockAuthenticator{token: testToken("ada")}
	}
	if deps.SignIn == nil {
		deps.SignIn = app.NewSignInService(nil, nil, clockwork.NewFakeClock())
	}
	if deps.Hub == nil {
		deps.Hub = newMockHub()
	}

	cfg := testConfig()
	srv := &Server{
		echo:            echo.New(),
		config:          cfg,
		dashboard:       deps.Dashboard,
		signIn:          deps.SignIn,
		authenticator:   deps.Authenticator,
		hub:             deps.Hub,
		browserSessions: deps.BrowserSessions,
		templates:       tmpl,
		upgrader:        newUpgrader(true),
		sessionStore:    setupSessionStore(cfg),
		healthChecks:    deps.HealthChecks,
		httpMetrics:     deps.HTTPMetrics,
		startTime:       time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withLoginLimit(ratePerSecond float64, burst int) func(*Server) {
	return func(s *Server) {
		s.config.LoginRateLimit = ratePerSecond
		s.config.LoginBurst = burst
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}

// testToken builds a signed JWT whose subject is username.
func testToken(username string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": username})
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		panic(err)
	}
	return signed
}

// sessionCookies returns the cookies of a browser already signed in with token.
func sessionCookies(t *testing.T, srv *Server, token string) []*http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	raw, err := json.Marshal(domain.Session{AccessToken: token})
	require.NoError(t, err)
	storage := session.NewCookieStorage(srv.sessionStore, req, rec)
	require.NoError(t, storage.Save(context.Background(), domain.SessionStorageKey, raw))

	return rec.Result().Cookies()
}

func withCookies(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return req
}

// formRequest builds a POST carrying a valid CSRF token pair.
func formRequest(target string, form url.Values) *http.Request {
	form.Set("csrf_token", testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
