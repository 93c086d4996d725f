package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ticksy/internal/domain"
)

type CheckoutInput struct {
	Attendees []domain.OrderAttendee `json:"attendees"`
	PayNow    bool                   `json:"pay_now"`
}

// Checkout reserves one ticket per attendee and creates a pending order.
// Inventory is taken immediately; payment confirmation arrives later and is
// observed by polling the order.
//
// Returns:
//   - ErrEventNotFound / ErrEventNotOnSale when the event cannot be bought.
//   - *ValidationError for incomplete attendee details or foreign tickets.
//   - ErrSoldOut when a ticket type has fewer tickets left than requested.
func (s *Service) Checkout(ctx context.Context, p *Principal, eventID string, in CheckoutInput) (domain.Order, error) {
	const op = "service.backend.Checkout"

	if p == nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok || !s.canSee(p, e) {
		return domain.Order{}, fmt.Errorf("%s: %w", op, ErrEventNotFound)
	}
	if e.Status != domain.EventApproved || !e.StartTime.After(s.now()) {
		return domain.Order{}, fmt.Errorf("%s: %w", op, ErrEventNotOnSale)
	}

	tickets := s.tickets[eventID]
	index := make(map[string]int, len(tickets))
	for i, t := range tickets {
		index[t.ID] = i
	}

	v := validator{}
	v.check(len(in.Attendees) > 0, "attendees", "at least one attendee is required")
	wanted := make(map[string]int)
	for i, a := range in.Attendees {
		field := fmt.Sprintf("attendees[%d]", i)
		v.check(strings.TrimSpace(a.Name) != "", field+".name", "is required")
		v.check(strings.Contains(a.Email, "@"), field+".email", "is invalid")
		v.check(strings.TrimSpace(a.Phone) != "", field+".phone", "is required")
		_, known := index[a.TicketID]
		v.check(known, field+".ticket_id", "is not offered for this event")
		wanted[a.TicketID]++
	}
	if err := v.err(); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	for id, n := range wanted {
		if tickets[index[id]].Remaining() < n {
			return domain.Order{}, fmt.Errorf("%s: %w", op, ErrSoldOut)
		}
	}

	updated := make([]domain.TicketType, len(tickets))
	copy(updated, tickets)

	total := decimal.Zero
	rec := &orderRecord{buyerID: p.UserID, payNow: in.PayNow}
	rec.order = domain.Order{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Attendees: append([]domain.OrderAttendee(nil), in.Attendees...),
		Status:    domain.OrderPending,
	}
	for _, a := range in.Attendees {
		t := &updated[index[a.TicketID]]
		t.QuantitySold++
		total = total.Add(t.Price)

		rec.attendees = append(rec.attendees, domain.Attendee{
			ID:       uuid.NewString(),
			EventID:  eventID,
			TicketID: a.TicketID,
			Name:     strings.TrimSpace(a.Name),
			Email:    strings.TrimSpace(a.Email),
			Phone:    strings.TrimSpace(a.Phone),
		})
	}
	rec.order.TotalAmount = total

	s.tickets[eventID] = updated
	s.orders[rec.order.ID] = rec
	s.orderIDs = append(s.orderIDs, rec.order.ID)

	s.logger.Info("order created",
		"order_id", rec.order.ID, "event_id", eventID, "tickets", len(in.Attendees), "total", total.String())

	return rec.order, nil
}

// GetOrder returns an order to its buyer or an admin. Every lookup of a
// pay-now order counts as a poll; once PayAfterPolls lookups have answered
// pending the payment is confirmed and a receipt assigned.
func (s *Service) GetOrder(ctx context.Context, p *Principal, id string) (domain.Order, error) {
	const op = "service.backend.GetOrder"

	if p == nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[id]
	if !ok || (rec.buyerID != p.UserID && !p.is(domain.RoleAdmin)) {
		return domain.Order{}, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}

	if rec.order.Status == domain.OrderPending && rec.payNow {
		if rec.polls >= s.cfg.PayAfterPolls {
			rec.order.Status = domain.OrderPaid
			rec.order.MpesaReceipt = receipt()
			s.logger.Info("order paid", "order_id", id, "receipt", rec.order.MpesaReceipt)
		}
		rec.polls++
	}

	return rec.order, nil
}

// receipt mimics a mobile-money confirmation code.
func receipt() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
