package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirinyoku/ticksy/internal/storage"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS client_storage (
	profile    TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile, key)
)`

type Store struct {
	db      DB
	profile string
}

func New(db DB, profile string) *Store {
	if profile == "" {
		profile = "default"
	}

	return &Store{db: db, profile: profile}
}

// EnsureSchema creates the storage table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const op = "storage.postgres.EnsureSchema"

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.postgres.Get"

	var v string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM client_storage
		 WHERE profile = $1 AND key = $2`,
		s.profile, key,
	).Scan(&v)
	if err != nil {
		return "", wrapDBErr(op, err)
	}

	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	const op = "storage.postgres.Set"

	_, err := s.db.Exec(ctx,
		`INSERT INTO client_storage (profile, key, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (profile, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.profile, key, value,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.postgres.Delete"

	if len(keys) == 0 {
		return nil
	}

	_, err := s.db.Exec(ctx,
		`DELETE FROM client_storage
		 WHERE profile = $1 AND key = ANY($2)`,
		s.profile, keys,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// wrapDBErr maps pgx errors to storage errors and wraps them with op.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return fmt.Errorf("%s: postgres %s: %w", op, pge.Code, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
