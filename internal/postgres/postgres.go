package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/ticksy/internal/config"
)

// SessionPoolSize is enough for the session store: one key read or write
// at a time plus the schema bootstrap.
const SessionPoolSize int32 = 2

// Open builds a pool for the database in cfg and waits until it answers.
// maxConns <= 0 keeps pgx's default.
func Open(ctx context.Context, cfg config.PostgresConfig, maxConns int32) (*pgxpool.Pool, error) {
	const op = "postgres.Open"

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	// Short-lived CLI runs should not keep idle sessions on the server.
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 3 * time.Second
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "ticksy"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: postgres at %s:%d/%s: %w", op, cfg.Host, cfg.Port, cfg.Name, err)
	}

	return pool, nil
}
