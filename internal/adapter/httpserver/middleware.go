package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/guard"
	"github.com/pscheid92/thereiwas/internal/platform/correlation"
	apperrors "github.com/pscheid92/thereiwas/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromInbound(c.Request().Header.Get(correlation.HeaderName))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.HeaderName, id)
		return next(c)
	}
}

// requireAuth redirects unauthenticated navigations to the login page,
// remembering the requested destination.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := s.sessionFor(c)
		if err != nil {
			return apperrors.InternalError("failed to load session", err)
		}

		decision := guard.Check(store, c.Request().URL.RequestURI())
		if !decision.Allow {
			if err := c.Redirect(http.StatusFound, decision.Redirect); err != nil {
				return fmt.Errorf("failed to redirect: %w", err)
			}
			return nil
		}
		return next(c)
	}
}

// requireAPIAuth answers unauthenticated API and WebSocket requests with 401.
func (s *Server) requireAPIAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := s.sessionFor(c)
		if err != nil {
			return apperrors.InternalError("failed to load session", err)
		}
		if !store.Authenticated() {
			return apperrors.UnauthorizedError("authentication required")
		}
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"remote_ip", c.RealIP(),
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}
	slog.Log(c.Request().Context(), err.LogLevel(), err.LogMessage(), attrs...)
}

// HandleError logs err and renders it as JSON.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(err)
	logError(c, structuredErr)
	if structuredErr.RetryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(structuredErr.RetryAfter))
	}
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}
