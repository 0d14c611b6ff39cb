package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes as seen by the HTTP layer. Rate limiting and CSRF
// rejections never reach the sign-in service, so they are counted here.
const (
	LoginSucceeded   = "succeeded"
	LoginRejected    = "rejected"
	LoginRateLimited = "rate_limited"
	LoginCSRFFailed  = "csrf_failed"
	LoginError       = "error"
)

// HTTPMetrics tracks short-lived HTTP requests, WebSocket handshakes and
// login form outcomes.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
	UpgradesTotal   *prometheus.CounterVec
	LoginOutcomes   *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds, WebSocket upgrades excluded.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status_class"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status class, WebSocket upgrades excluded.",
		}, []string{"method", "route", "status_class"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served, WebSocket upgrades excluded.",
		}),
		UpgradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "websocket_handshakes_total",
			Help:      "WebSocket handshake requests by route and resulting status code.",
		}, []string{"route", "status_code"}),
		LoginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "login_submissions_total",
			Help:      "Login form submissions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge, m.UpgradesTotal, m.LoginOutcomes)
	return m
}

// MiddlewareConfig names the routes that need special treatment.
type MiddlewareConfig struct {
	// UpgradeRoutes are long-lived WebSocket routes. Only their handshake is counted.
	UpgradeRoutes []string
	// LoginRoute is the route whose POST submissions are counted by outcome.
	LoginRoute string
}

// Middleware records request metrics. /metrics and /health/* are not recorded.
func (m *HTTPMetrics) Middleware(cfg MiddlewareConfig) echo.MiddlewareFunc {
	upgrades := make(map[string]bool, len(cfg.UpgradeRoutes))
	for _, route := range cfg.UpgradeRoutes {
		upgrades[route] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "/metrics" || strings.HasPrefix(route, "/health/") {
				return next(c)
			}
			if route == "" {
				route = "unmatched"
			}

			if upgrades[route] {
				err := next(c)
				m.UpgradesTotal.WithLabelValues(route, strconv.Itoa(responseStatus(c, err))).Inc()
				return err
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			m.InFlightGauge.Dec()

			method := c.Request().Method
			status := responseStatus(c, err)
			class := statusClass(status)
			m.RequestDuration.WithLabelValues(method, route, class).Observe(elapsed.Seconds())
			m.RequestsTotal.WithLabelValues(method, route, class).Inc()

			if cfg.LoginRoute != "" && route == cfg.LoginRoute && method == http.MethodPost {
				m.LoginOutcomes.WithLabelValues(loginOutcome(status)).Inc()
			}
			return err
		}
	}
}

// responseStatus is the status the client will see. Errors that echo's
// global handler still has to render carry their code in the error.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

func loginOutcome(status int) string {
	switch status {
	case http.StatusFound, http.StatusSeeOther:
		return LoginSucceeded
	case http.StatusUnauthorized:
		return LoginRejected
	case http.StatusTooManyRequests:
		return LoginRateLimited
	case http.StatusBadRequest, http.StatusForbidden:
		return LoginCSRFFailed
	default:
		return LoginError
	}
}
