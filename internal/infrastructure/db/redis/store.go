package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

const (
	pingTimeout   = 5 * time.Second
	defaultPrefix = "presencectl:"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

// Config selects the Redis server. Timeout bounds the connect ping.
type Config struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect opens a client for cfg and pings it. The client is closed again if
// the ping fails.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = pingTimeout
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// CredentialStore keeps the credential under a single Redis key, so several
// processes on one host (a kiosk and its agent, say) share one session.
// The key has no TTL: the Auth service decides when a credential expires.
type CredentialStore struct {
	client redis.Cmdable
	key    string
}

// NewCredentialStore stores the credential at prefix+key.
func NewCredentialStore(client redis.Cmdable, prefix, key string) *CredentialStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &CredentialStore{client: client, key: prefix + key}
}

func (s *CredentialStore) Get(ctx context.Context) (domain.Credential, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return domain.Credential(v), nil
}

func (s *CredentialStore) Set(ctx context.Context, cred domain.Credential) error {
	if cred.IsZero() {
		return s.Clear(ctx)
	}
	if err := s.client.Set(ctx, s.key, string(cred), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the key. Deleting a missing key is not an error.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}
