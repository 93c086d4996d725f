package backend

import (
	"context"
	"fmt"
	"slices"

	"github.com/kirinyoku/ticksy/internal/domain"
)

// MyEvents returns the events p holds paid tickets for, split by whether
// they have started yet.
func (s *Service) MyEvents(ctx context.Context, p *Principal, upcoming bool) ([]domain.Event, error) {
	const op = "service.backend.MyEvents"

	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	now := s.now()

	s.mu.RLock()
	held := make(map[string]bool)
	for _, id := range s.orderIDs {
		rec := s.orders[id]
		if rec.buyerID == p.UserID && rec.order.Status == domain.OrderPaid {
			held[rec.order.EventID] = true
		}
	}
	out := s.eventsWhere(func(e *domain.Event) bool {
		return held[e.ID] && e.StartTime.After(now) == upcoming
	})
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.Event) int { return a.StartTime.Compare(b.StartTime) })
	if !upcoming {
		slices.Reverse(out)
	}

	return out, nil
}
