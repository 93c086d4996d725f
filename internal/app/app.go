package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/ticksy/internal/config"
	"github.com/kirinyoku/ticksy/internal/domain"
	redisx "github.com/kirinyoku/ticksy/internal/redis"
	"github.com/kirinyoku/ticksy/internal/repository/memory"
	redisrepo "github.com/kirinyoku/ticksy/internal/repository/redis"
	"github.com/kirinyoku/ticksy/internal/service/backend"
	httpgin "github.com/kirinyoku/ticksy/internal/transport/http/gin"
)

const (
	idempotencyTTL = 2 * time.Hour
	eventCacheTTL  = 30 * time.Second
)

// Stub is the development API server the client talks to when no real
// backend is available.
type Stub struct {
	cfg        *config.Config
	logger     *slog.Logger
	service    *backend.Service
	httpServer *http.Server
	closers    []func() error
}

func NewStub(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stub, error) {
	const op = "app.NewStub"

	s := &Stub{cfg: cfg, logger: logger}

	var (
		idem    httpgin.IdempotencyStore
		limiter backend.Limiter
		opts    []backend.Option
	)

	if cfg.Stub.Redis {
		rdb, err := redisx.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.closers = append(s.closers, rdb.Close)

		idem = redisrepo.NewIdempotencyStore(rdb, idempotencyTTL)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, redisx.RateLimitPrefix, cfg.Stub.LoginLimit, cfg.Stub.LoginWindow)
		opts = append(opts, backend.WithEventCache(redisrepo.NewCache(rdb, eventCacheTTL)))
	} else {
		idem = memory.NewIdempotencyStore(idempotencyTTL)
		limiter = memory.NewSlidingWindowLimiter(cfg.Stub.LoginLimit, cfg.Stub.LoginWindow)
	}

	s.service = backend.New(backend.Config{
		TokenSecret:   []byte(cfg.Stub.TokenSecret),
		TokenTTL:      cfg.Stub.TokenTTL,
		PayAfterPolls: cfg.Stub.PayAfterPolls,
	}, logger, append(opts, backend.WithLimiter(limiter))...)

	if _, err := s.service.SeedUser(domain.User{
		FirstName: "Site",
		LastName:  "Admin",
		Email:     cfg.Stub.AdminEmail,
		Role:      domain.RoleAdmin,
	}, cfg.Stub.AdminPassword); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: seed admin: %w", op, err)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Stub.Host, cfg.Stub.Port),
		Handler:           httpgin.NewRouter(s.service, idem, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

func (s *Stub) Handler() http.Handler { return s.httpServer.Handler }

func (s *Stub) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer s.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("stub API listening", "host", s.cfg.Stub.Host, "port", s.cfg.Stub.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutting down stub API")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (s *Stub) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}
