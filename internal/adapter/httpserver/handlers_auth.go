package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/guard"
	apperrors "github.com/pscheid92/thereiwas/internal/platform/errors"
)

func (s *Server) registerAuthRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET(guard.LoginPath, s.handleLoginPage, csrfMiddleware)
	s.echo.POST(guard.LoginPath, s.handleLogin, rateLimiter, csrfMiddleware)
	s.echo.POST("/logout", s.handleLogout, csrfMiddleware)
}

type loginPage struct {
	CSRFToken any
	From      string
	Username  string
	Failed    bool
}

func (s *Server) handleLoginPage(c echo.Context) error {
	store, err := s.sessionFor(c)
	if err != nil {
		return apperrors.InternalError("failed to load session", err)
	}

	if store.Authenticated() {
		if err := c.Redirect(http.StatusFound, "/"); err != nil {
			return fmt.Errorf("failed to redirect: %w", err)
		}
		return nil
	}

	return s.renderTemplate(c, "login.html", loginPage{
		CSRFToken: c.Get("csrf"),
		From:      c.QueryParam(guard.FromParam),
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	username := c.FormValue("username")
	password := c.FormValue("password")
	from := c.FormValue(guard.FromParam)

	store, err := s.sessionFor(c)
	if err != nil {
		return apperrors.InternalError("failed to load session", err)
	}

	err = s.signIn.SignIn(ctx, store, username, password, c.RealIP())
	if errors.Is(err, domain.ErrAuthenticationFailed) {
		return s.renderTemplateStatus(c, http.StatusUnauthorized, "login.html", loginPage{
			CSRFToken: c.Get("csrf"),
			From:      from,
			Username:  username,
			Failed:    true,
		})
	}
	if err != nil {
		return apperrors.InternalError("failed to sign in", err)
	}

	if err := c.Redirect(http.StatusFound, guard.SafeDestination(from)); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	store, err := s.sessionFor(c)
	if err != nil {
		return apperrors.InternalError("failed to load session", err)
	}

	s.signIn.SignOut(c.Request().Context(), store)

	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}
