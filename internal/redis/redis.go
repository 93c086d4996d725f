package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/ticksy/internal/config"
)

// A CLI invocation should fail fast when redis is down rather than hang
// on the library's default retries.
const (
	dialTimeout  = 2 * time.Second
	ioTimeout    = time.Second
	readyTimeout = 3 * time.Second
)

// Open connects to the redis described by cfg and checks it answers.
// Both the stub (idempotency, limiter, event cache) and the client's
// shared session storage use it.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	const op = "redisx.Open"

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%s: empty address", op)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		MaxRetries:   1,
	})

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := rdb.Ping(readyCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: redis at %s db %d: %w", op, cfg.Addr, cfg.DB, err)
	}

	return rdb, nil
}
