// Package backend is an in-memory implementation of the Ticksy API used by
// the stub server. It keeps users, events, ticket types and orders in
// process memory and applies the same access rules as the real service.
package backend

import (
	"context"
	"crypto/rand"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirinyoku/ticksy/internal/domain"
)

// Limiter throttles repeated attempts keyed by suffix.
type Limiter interface {
	Allow(ctx context.Context, suffix string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

// EventCache fronts the public event list. Invalidation must make the next
// Events call miss.
type EventCache interface {
	Events(ctx context.Context, category string, load func(ctx context.Context) ([]domain.Event, error)) ([]domain.Event, error)
	InvalidateEvents(ctx context.Context) error
}

type Config struct {
	// TokenSecret signs access tokens. A random key is generated when empty.
	TokenSecret []byte
	TokenTTL    time.Duration
	// PayAfterPolls is how many order lookups return pending before a
	// pay-now order is reported as paid.
	PayAfterPolls int
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
	Now          func() time.Time
}

type Service struct {
	cfg     Config
	limiter Limiter
	cache   EventCache
	logger  *slog.Logger

	mu       sync.RWMutex
	users    map[string]*userRecord
	byEmail  map[string]string
	events   map[string]*domain.Event
	eventIDs []string
	tickets  map[string][]domain.TicketType
	orders   map[string]*orderRecord
	orderIDs []string
}

type userRecord struct {
	user domain.User
	hash []byte
}

type orderRecord struct {
	order     domain.Order
	buyerID   string
	payNow    bool
	polls     int
	attendees []domain.Attendee
}

// Principal is the caller identified by an access token.
type Principal struct {
	UserID string
	Role   domain.Role
}

func (p *Principal) is(role domain.Role) bool { return p != nil && p.Role == role }

type Option func(*Service)

func WithLimiter(l Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithEventCache(c EventCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if len(cfg.TokenSecret) == 0 {
		cfg.TokenSecret = make([]byte, 32)
		_, _ = rand.Read(cfg.TokenSecret)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger,
		users:   make(map[string]*userRecord),
		byEmail: make(map[string]string),
		events:  make(map[string]*domain.Event),
		tickets: make(map[string][]domain.TicketType),
		orders:  make(map[string]*orderRecord),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) now() time.Time { return s.cfg.Now() }

func cloneEvent(e *domain.Event) domain.Event {
	out := *e
	out.Tags = slices.Clone(e.Tags)
	return out
}

// eventsWhere returns copies of the events matching keep, in creation order.
// The caller holds s.mu.
func (s *Service) eventsWhere(keep func(*domain.Event) bool) []domain.Event {
	out := make([]domain.Event, 0)
	for _, id := range s.eventIDs {
		if e := s.events[id]; keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}
