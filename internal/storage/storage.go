package storage

import (
	"context"
	"errors"
)

// Keys persisted across restarts. Absence of either means unauthenticated.
const (
	KeyAccessToken = "accessToken"
	KeyUser        = "user"
)

var ErrNotFound = errors.New("key not found")

// Storage is the durable key/value store the session lives in.
type Storage interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
