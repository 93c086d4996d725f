package memory

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter keeps hit timestamps per key in memory.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *SlidingWindowLimiter) Allow(_ context.Context, suffix string) (bool, int64, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[suffix][:0]
	for _, t := range l.hits[suffix] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	l.hits[suffix] = kept

	count := int64(len(kept))
	if count > int64(l.limit) {
		return false, count, kept[0].Add(l.window).Sub(now), nil
	}

	return true, count, 0, nil
}
