package httpserver

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/session"
)

const sessionContextKey = "session"

// sessionFor returns the request's session, loading it once per request.
func (s *Server) sessionFor(c echo.Context) (*session.Store, error) {
	if store, ok := c.Get(sessionContextKey).(*session.Store); ok {
		return store, nil
	}

	storage, err := s.sessionStorage(c)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(c.Request().Context(), storage, s.authenticator)
	c.Set(sessionContextKey, store)
	return store, nil
}

func (s *Server) sessionStorage(c echo.Context) (domain.SessionStorage, error) {
	if s.browserSessions == nil {
		return session.NewCookieStorage(s.sessionStore, c.Request(), c.Response().Writer), nil
	}

	browserID, err := session.BrowserID(s.sessionStore, c.Request(), c.Response().Writer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve browser id: %w", err)
	}
	return s.browserSessions.ForBrowser(browserID), nil
}
