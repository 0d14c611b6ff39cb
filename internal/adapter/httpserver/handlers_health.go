package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/thereiwas/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck verifies one optional backing service (postgres, redis).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// healthReport lists every check. FailedCheck names the first failure in
// registration order.
type healthReport struct {
	Status      string            `json:"status"`
	FailedCheck string            `json:"failed_check,omitempty"`
	Error       string            `json:"error,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

type snapshotStatus struct {
	Sequence  uint64     `json:"sequence"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

type livenessReport struct {
	Status   string         `json:"status"`
	Service  string         `json:"service"`
	Uptime   float64        `json:"uptime"`
	Snapshot snapshotStatus `json:"snapshot"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/api/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.respondHealth(c, startupCheckTimeout)
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.respondHealth(c, readinessCheckTimeout)
}

// handleLiveness never touches backing services. The snapshot sequence only
// moves while someone is watching the dashboard.
func (s *Server) handleLiveness(c echo.Context) error {
	latest := s.dashboard.Latest()

	report := livenessReport{
		Status:   "ok",
		Service:  version.Name,
		Uptime:   time.Since(s.startTime).Seconds(),
		Snapshot: snapshotStatus{Sequence: latest.Sequence},
	}
	if !latest.FetchedAt.IsZero() {
		fetched := latest.FetchedAt.UTC()
		report.Snapshot.FetchedAt = &fetched
	}

	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) respondHealth(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	report := s.checkHealth(ctx)

	status := http.StatusOK
	if report.FailedCheck != "" {
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) checkHealth(ctx context.Context) healthReport {
	report := healthReport{Status: "ready"}
	if len(s.healthChecks) == 0 {
		return report
	}

	report.Checks = make(map[string]string, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		err := hc.Check(ctx)
		if err == nil {
			report.Checks[hc.Name] = "ok"
			continue
		}

		slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
		report.Checks[hc.Name] = err.Error()
		if report.FailedCheck == "" {
			report.Status = "unhealthy"
			report.FailedCheck = hc.Name
			report.Error = err.Error()
		}
	}
	return report
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
