package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
	"github.com/pscheid92/thereiwas/internal/app"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/config"
	"github.com/pscheid92/thereiwas/internal/session"
	"github.com/pscheid92/thereiwas/web"
)

type dashboardService interface {
	Latest() domain.PositionSnapshot
	Current(ctx context.Context) domain.PositionSnapshot
}

type signInService interface {
	SignIn(ctx context.Context, store app.SessionStore, username, password, source string) error
	SignOut(ctx context.Context, store app.SessionStore)
}

type viewerHub interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
}

// browserSessions scopes a server-side session storage to one browser id.
type browserSessions interface {
	ForBrowser(browserID string) domain.SessionStorage
}

// Dependencies are the collaborators the HTTP layer calls into.
// BrowserSessions, HTTPMetrics and MetricsHandler are optional.
type Dependencies struct {
	Dashboard       dashboardService
	SignIn          signInService
	Authenticator   domain.Authenticator
	Hub             viewerHub
	BrowserSessions browserSessions
	HTTPMetrics     *metrics.HTTPMetrics
	MetricsHandler  http.Handler
	HealthChecks    []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	dashboard       dashboardService
	signIn          signInService
	authenticator   domain.Authenticator
	hub             viewerHub
	browserSessions browserSessions

	templates *template.Template
	upgrader  websocket.Upgrader

	sessionStore   *sessions.CookieStore
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:            e,
		config:          cfg,
		dashboard:       deps.Dashboard,
		signIn:          deps.SignIn,
		authenticator:   deps.Authenticator,
		hub:             deps.Hub,
		browserSessions: deps.BrowserSessions,
		templates:       templates,
		upgrader:        newUpgrader(!cfg.IsProduction()),
		sessionStore:    setupSessionStore(cfg),
		httpMetrics:     deps.HTTPMetrics,
		metricsHandler:  deps.MetricsHandler,
		healthChecks:    deps.HealthChecks,
		startTime:       time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	return s.renderTemplateStatus(c, http.StatusOK, name, data)
}

func (s *Server) renderTemplateStatus(c echo.Context, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(status, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	return session.NewCookieStore(cfg.SessionSecret, int(cfg.SessionMaxAge.Seconds()), cfg.IsProduction())
}
