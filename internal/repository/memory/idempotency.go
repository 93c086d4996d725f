// Package memory holds process-local versions of the stub's redis-backed
// stores, used when the stub runs without redis.
package memory

import (
	"context"
	"sync"
	"time"
)

type idemEntry struct {
	locked  bool
	payload string
	expires time.Time
}

type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idemEntry
	now     func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		entries: make(map[string]idemEntry),
		now:     time.Now,
	}
}

// get returns a live entry. The caller holds s.mu.
func (s *IdempotencyStore) get(key string) (idemEntry, bool) {
	e, ok := s.entries[key]
	if ok && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return idemEntry{}, false
	}
	return e, ok
}

func (s *IdempotencyStore) AcquireLock(_ context.Context, key string, lockTTL time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(key); ok {
		return false, nil
	}
	s.entries[key] = idemEntry{locked: true, expires: s.now().Add(lockTTL)}
	return true, nil
}

func (s *IdempotencyStore) SaveResult(_ context.Context, key string, jsonPayload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = idemEntry{payload: jsonPayload, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) GetResult(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok || e.locked {
		return "", false, nil
	}
	return e.payload, true, nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
