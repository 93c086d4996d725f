package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/ticksy/internal/config"
)

func TestOpen_InvalidSSLMode(t *testing.T) {
	cfg := config.PostgresConfig{
		User:     "ticksy",
		Password: "secret",
		Name:     "ticksy",
		Host:     "127.0.0.1",
		Port:     5432,
		SSLMode:  "sometimes",
	}

	pool, err := Open(context.Background(), cfg, SessionPoolSize)

	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "postgres.Open")
}
