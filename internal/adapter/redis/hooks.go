package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// Command outcomes. A miss is an unknown session ID, not a Redis fault.
const (
	outcomeSuccess = "success"
	outcomeMiss    = "miss"
	outcomeError   = "error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, goredis.Nil):
		return outcomeMiss
	default:
		return outcomeError
	}
}

// MetricsHook times every Redis command. A nil metrics value disables recording.
type MetricsHook struct {
	metrics *metrics.RedisMetrics
}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(m *metrics.RedisMetrics) *MetricsHook {
	return &MetricsHook{metrics: m}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	if h.metrics == nil {
		return next
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.metrics.ConnectionErrors.Inc()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	if h.metrics == nil {
		return next
	}
	return func(ctx context.Context, cmd goredis.Cmder) error {
		return h.timed(cmd.Name(), func() error { return next(ctx, cmd) })
	}
}

func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	if h.metrics == nil {
		return next
	}
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		return h.timed("pipeline", func() error { return next(ctx, cmds) })
	}
}

func (h *MetricsHook) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	h.metrics.OpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	h.metrics.OpsTotal.WithLabelValues(operation, outcomeOf(err)).Inc()
	return err
}

// CircuitBreakerHook fails Redis commands fast while Redis is unhealthy.
// A session lookup that fails this way leaves the request unauthenticated.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook opens after a 60% failure rate over at least 5 commands
// within 10s, and lets a trial command through after delay.
func NewCircuitBreakerHook(delay time.Duration, m *metrics.RedisMetrics) *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitBreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
				m.CircuitBreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis dial rejected: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, err
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		return h.guard(cmd.Name(), func() error { return next(ctx, cmd) })
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		return h.guard("pipeline", func() error { return next(ctx, cmds) })
	}
}

// guard runs fn unless the breaker is open. Misses count as successes.
func (h *CircuitBreakerHook) guard(operation string, fn func() error) error {
	if !h.cb.TryAcquirePermit() {
		return fmt.Errorf("redis %s rejected: %w", operation, circuitbreaker.ErrOpen)
	}
	err := fn()
	if outcomeOf(err) == outcomeError {
		h.cb.RecordError(err)
	} else {
		h.cb.RecordSuccess()
	}
	return err
}

func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
