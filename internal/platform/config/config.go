package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	SessionBackendCookie = "cookie"
	SessionBackendRedis  = "redis"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	BackendURL    string `env:"BACKEND_URL" default:"http://localhost:5479/v1"`
	PositionsURL  string `env:"POSITIONS_URL" default:"http://localhost:3000/v1"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	SessionBackend     string        `env:"SESSION_BACKEND" default:"cookie"`
	SessionMaxAge      time.Duration `env:"SESSION_MAX_AGE" default:"1h"`
	RedisURL           string        `env:"REDIS_URL"`
	TokenEncryptionKey string        `env:"TOKEN_ENCRYPTION_KEY"`
	DatabaseURL        string        `env:"DATABASE_URL"`

	PollInterval          time.Duration `env:"POLL_INTERVAL" default:"30s"`
	MaxHorizontalAccuracy float64       `env:"MAX_HORIZONTAL_ACCURACY" default:"15"`
	HTTPTimeout           time.Duration `env:"HTTP_TIMEOUT" default:"10s"`

	LoginRateLimit float64 `env:"LOGIN_RATE_LIMIT" default:"0.2"`
	LoginBurst     int     `env:"LOGIN_BURST" default:"5"`
	MaxViewers     int     `env:"MAX_VIEWERS" default:"100"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}

	for name, value := range map[string]string{"BACKEND_URL": cfg.BackendURL, "POSITIONS_URL": cfg.PositionsURL} {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}

	switch cfg.SessionBackend {
	case SessionBackendCookie:
	case SessionBackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_BACKEND is redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q", SessionBackendCookie, SessionBackendRedis)
	}

	if cfg.TokenEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	if cfg.PollInterval < time.Second {
		return errors.New("POLL_INTERVAL must be at least 1s")
	}
	if cfg.MaxHorizontalAccuracy <= 0 {
		return errors.New("MAX_HORIZONTAL_ACCURACY must be positive")
	}
	if cfg.MaxViewers < 1 {
		return errors.New("MAX_VIEWERS must be at least 1")
	}

	if cfg.IsProduction() && cfg.DatabaseURL != "" {
		mode := sslMode(cfg.DatabaseURL)
		if mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
