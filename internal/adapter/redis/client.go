// Package redis stores browser sessions in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	clientName = "thereiwas-sessions"

	// Sessions are read on every guarded request; a slow Redis should fail
	// the request rather than stall it.
	sessionReadTimeout  = time.Second
	sessionWriteTimeout = time.Second
)

// NewClient parses redisURL (e.g. "redis://localhost:6379/0"), installs hooks
// and verifies the connection. Timeouts given in the URL win over the
// session defaults.
func NewClient(ctx context.Context, redisURL string, hooks ...goredis.Hook) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = sessionReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = sessionWriteTimeout
	}

	rdb := goredis.NewClient(opts)
	for _, hook := range hooks {
		rdb.AddHook(hook)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
