package httpserver

import (
	"encoding/json"
	"html/template"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/thereiwas/internal/platform/errors"
	"github.com/pscheid92/thereiwas/internal/platform/version"
)

const wsPositionsPath = "/ws/positions"

func (s *Server) registerDashboardRoutes(csrfMiddleware echo.MiddlewareFunc) {
	s.echo.GET("/", s.handleDashboard, s.requireAuth, csrfMiddleware)
	s.echo.GET("/calendar", s.handlePlaceholder("calendar", "Calendar"), s.requireAuth, csrfMiddleware)
	s.echo.GET("/settings", s.handlePlaceholder("settings", "Settings"), s.requireAuth, csrfMiddleware)
	s.echo.GET("/version", s.handleVersionPage, s.requireAuth, csrfMiddleware)
}

// page is the data every view in the authenticated layout receives.
type page struct {
	Title     string
	Active    string
	Username  string
	CSRFToken any
}

func (s *Server) newPage(c echo.Context, active, title string) (page, error) {
	store, err := s.sessionFor(c)
	if err != nil {
		return page{}, apperrors.InternalError("failed to load session", err)
	}
	return page{
		Title:     title,
		Active:    active,
		Username:  store.Username(),
		CSRFToken: c.Get("csrf"),
	}, nil
}

func (s *Server) handleDashboard(c echo.Context) error {
	p, err := s.newPage(c, "dashboard", "Dashboard")
	if err != nil {
		return err
	}

	// json.Marshal escapes <, > and & so the result is safe inside a script element.
	snapshot, err := json.Marshal(s.dashboard.Latest())
	if err != nil {
		return apperrors.InternalError("failed to encode positions", err)
	}

	data := map[string]any{
		"Page":     p,
		"Snapshot": template.JS(snapshot),
		"WSPath":   wsPositionsPath,
	}
	return s.renderTemplate(c, "dashboard.html", data)
}

func (s *Server) handlePlaceholder(active, title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := s.newPage(c, active, title)
		if err != nil {
			return err
		}
		return s.renderTemplate(c, "page.html", map[string]any{"Page": p})
	}
}

func (s *Server) handleVersionPage(c echo.Context) error {
	p, err := s.newPage(c, "version", "Version")
	if err != nil {
		return err
	}
	return s.renderTemplate(c, "page.html", map[string]any{
		"Page":    p,
		"Version": version.Get(),
	})
}
