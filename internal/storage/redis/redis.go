package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	redisx "github.com/kirinyoku/ticksy/internal/redis"
	"github.com/kirinyoku/ticksy/internal/storage"
)

// Store persists session keys in redis without expiry; the session ends on
// logout or auth failure, never by TTL.
type Store struct {
	rdb     *redis.Client
	profile string
}

func New(rdb *redis.Client, profile string) *Store {
	if profile == "" {
		profile = "default"
	}

	return &Store{rdb: rdb, profile: profile}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.redis.Get"

	v, err := s.rdb.Get(ctx, redisx.KeyStorage(s.profile, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	const op = "storage.redis.Set"

	if err := s.rdb.Set(ctx, redisx.KeyStorage(s.profile, key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.redis.Delete"

	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = redisx.KeyStorage(s.profile, k)
	}

	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
