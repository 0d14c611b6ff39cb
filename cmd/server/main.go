package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/thereiwas/internal/adapter/httpserver"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
	"github.com/pscheid92/thereiwas/internal/adapter/postgres"
	"github.com/pscheid92/thereiwas/internal/adapter/redis"
	"github.com/pscheid92/thereiwas/internal/adapter/websocket"
	"github.com/pscheid92/thereiwas/internal/app"
	"github.com/pscheid92/thereiwas/internal/auth"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/config"
	"github.com/pscheid92/thereiwas/internal/platform/crypto"
	"github.com/pscheid92/thereiwas/internal/platform/logging"
	"github.com/pscheid92/thereiwas/internal/platform/version"
	"github.com/pscheid92/thereiwas/internal/poller"
	"github.com/pscheid92/thereiwas/internal/positions"
	goredis "github.com/redis/go-redis/v9"
)

func runGracefulShutdown(srv *httpserver.Server, hub *websocket.Hub, dashboard *app.DashboardService) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		dashboard.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, dbMetrics *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.ConnectOptions{
		Tracer: postgres.NewMetricsTracer(dbMetrics),
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(ctx context.Context, cfg *config.Config, redisMetrics *metrics.RedisMetrics) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(redisMetrics),
		redis.NewCircuitBreakerHook(30*time.Second, redisMetrics),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupSealer(cfg *config.Config) crypto.Sealer {
	if cfg.TokenEncryptionKey == "" {
		return crypto.NoopSealer{}
	}
	sealer, err := crypto.NewAesGcmSealer(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create session sealer", "error", err)
		os.Exit(1)
	}
	return sealer
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "service", version.Name, "version", version.Version, "env", cfg.AppEnv, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	wsMetrics := metrics.NewWebSocketMetrics(registry)
	pollerMetrics := metrics.NewPollerMetrics(registry)
	signInMetrics := metrics.NewSignInMetrics(registry)

	var healthChecks []httpserver.HealthCheck

	// Optional audit log (pass nil explicitly to avoid typed-nil interface)
	var audit domain.AuditRepository
	if cfg.DatabaseURL != "" {
		pool := setupDB(cfg, metrics.NewDBMetrics(registry))
		defer pool.Close()
		audit = postgres.NewAuditRepo(pool)
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	var browserSessions *redis.SessionRepo
	if cfg.SessionBackend == config.SessionBackendRedis {
		redisClient := setupRedis(ctx, cfg, metrics.NewRedisMetrics(registry))
		defer func() { _ = redisClient.Close() }()
		browserSessions = redis.NewSessionRepo(redisClient, setupSealer(cfg), cfg.SessionMaxAge)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	authenticator := auth.NewTokenClient(cfg.BackendURL, cfg.HTTPTimeout)
	positionSource := positions.NewClient(cfg.PositionsURL, cfg.HTTPTimeout)

	// The hub reports viewer transitions to the dashboard, which is created
	// after the poller that publishes into the hub.
	var dashboard *app.DashboardService
	hub := websocket.NewHub(
		func() { dashboard.OnFirstViewer() },
		func() { dashboard.OnLastViewer() },
		clock,
		cfg.MaxViewers,
		wsMetrics,
	)
	positionPoller := poller.New(positionSource, hub, clock, poller.Options{
		Interval:    cfg.PollInterval,
		MaxAccuracy: cfg.MaxHorizontalAccuracy,
		Metrics:     pollerMetrics,
	})
	dashboard = app.NewDashboardService(ctx, positionPoller)

	signInSvc := app.NewSignInService(audit, signInMetrics, clock)

	deps := httpserver.Dependencies{
		Dashboard:      dashboard,
		SignIn:         signInSvc,
		Authenticator:  authenticator,
		Hub:            hub,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: metrics.Handler(registry),
		HealthChecks:   healthChecks,
	}
	if browserSessions != nil {
		deps.BrowserSessions = browserSessions
	}

	srv, err := httpserver.NewServer(cfg, deps)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, hub, dashboard)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
