package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	wsadapter "github.com/pscheid92/thereiwas/internal/adapter/websocket"
)

func (s *Server) registerAPIRoutes() {
	s.echo.GET("/api/positions", s.handlePositions, s.requireAPIAuth)
	s.echo.GET(wsPositionsPath, s.handlePositionsWebSocket, s.requireAPIAuth)
}

func newUpgrader(isDevelopment bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     wsadapter.NewCheckOrigin(isDevelopment),
	}
}

// handlePositions serves the current snapshot. Polling only runs while a
// dashboard viewer is connected, so without one the dashboard fetches once.
func (s *Server) handlePositions(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.dashboard.Current(c.Request().Context())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handlePositionsWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		slog.WarnContext(ctx, "WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.WarnContext(ctx, "Viewer rejected", "error", err)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = conn.Close()
		return nil
	}

	// Viewers only send control frames; reading keeps pong handling alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	return nil
}
