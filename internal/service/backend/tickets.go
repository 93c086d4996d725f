package backend

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ticksy/internal/domain"
)

type TicketInput struct {
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	QuantityTotal int             `json:"quantity_total"`
}

// ListTickets returns the ticket types of an event visible to p.
func (s *Service) ListTickets(ctx context.Context, p *Principal, eventID string) ([]domain.TicketType, error) {
	const op = "service.backend.ListTickets"

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok || !s.canSee(p, e) {
		return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
	}

	out := slices.Clone(s.tickets[eventID])
	if out == nil {
		out = []domain.TicketType{}
	}

	return out, nil
}

func (s *Service) CreateTicket(ctx context.Context, p *Principal, eventID string, in TicketInput) (domain.TicketType, error) {
	const op = "service.backend.CreateTicket"

	v := validator{}
	v.check(strings.TrimSpace(in.Type) != "", "type", "is required")
	v.check(!in.Price.IsNegative(), "price", "must not be negative")
	v.check(in.QuantityTotal > 0, "quantity_total", "must be positive")
	if err := v.err(); err != nil {
		return domain.TicketType{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedEvent(p, eventID); err != nil {
		return domain.TicketType{}, fmt.Errorf("%s: %w", op, err)
	}

	t := domain.TicketType{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Type:          strings.TrimSpace(in.Type),
		Price:         in.Price,
		QuantityTotal: in.QuantityTotal,
	}
	s.tickets[eventID] = append(slices.Clone(s.tickets[eventID]), t)

	return t, nil
}
