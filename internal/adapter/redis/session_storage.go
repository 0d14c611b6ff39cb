package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/crypto"
	goredis "github.com/redis/go-redis/v9"
)

// SessionRepo keeps sealed session values in Redis, one key per browser.
type SessionRepo struct {
	rdb    *goredis.Client
	sealer crypto.Sealer
	ttl    time.Duration
}

func NewSessionRepo(rdb *goredis.Client, sealer crypto.Sealer, ttl time.Duration) *SessionRepo {
	if sealer == nil {
		sealer = crypto.NoopSealer{}
	}
	return &SessionRepo{rdb: rdb, sealer: sealer, ttl: ttl}
}

// ForBrowser returns the storage scoped to one browser id.
func (r *SessionRepo) ForBrowser(browserID string) domain.SessionStorage {
	return &browserStorage{repo: r, browserID: browserID}
}

func sessionKey(key, browserID string) string {
	return key + ":" + browserID
}

type browserStorage struct {
	repo      *SessionRepo
	browserID string
}

func (s *browserStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.repo.rdb.Get(ctx, sessionKey(key, s.browserID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}

	value, err := s.repo.sealer.Open(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open session value: %w", err)
	}
	return value, true, nil
}

func (s *browserStorage) Save(ctx context.Context, key string, value []byte) error {
	sealed, err := s.repo.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("failed to seal session value: %w", err)
	}
	if err := s.repo.rdb.Set(ctx, sessionKey(key, s.browserID), sealed, s.repo.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *browserStorage) Delete(ctx context.Context, key string) error {
	if err := s.repo.rdb.Del(ctx, sessionKey(key, s.browserID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
