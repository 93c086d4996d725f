package backend

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kirinyoku/ticksy/internal/domain"
)

// paidAttendees returns the attendees of paid orders for an event, in order
// of purchase. The caller holds s.mu.
func (s *Service) paidAttendees(eventID string) []domain.Attendee {
	out := make([]domain.Attendee, 0)
	for _, id := range s.orderIDs {
		rec := s.orders[id]
		if rec.order.EventID == eventID && rec.order.Status == domain.OrderPaid {
			out = append(out, rec.attendees...)
		}
	}
	return out
}

func (s *Service) ListAttendees(ctx context.Context, p *Principal, eventID string) ([]domain.Attendee, error) {
	const op = "service.backend.ListAttendees"

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.ownedEvent(p, eventID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.paidAttendees(eventID), nil
}

// SetCheckedIn records whether an attendee has arrived. Setting the current
// value again is not an error.
func (s *Service) SetCheckedIn(ctx context.Context, p *Principal, eventID, attendeeID string, checkedIn bool) (domain.Attendee, error) {
	const op = "service.backend.SetCheckedIn"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedEvent(p, eventID); err != nil {
		return domain.Attendee{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range s.orderIDs {
		rec := s.orders[id]
		if rec.order.EventID != eventID || rec.order.Status != domain.OrderPaid {
			continue
		}
		for i := range rec.attendees {
			if rec.attendees[i].ID == attendeeID {
				rec.attendees[i].CheckedIn = checkedIn
				return rec.attendees[i], nil
			}
		}
	}

	return domain.Attendee{}, fmt.Errorf("%s: %w", op, ErrAttendeeNotFound)
}

// ExportAttendees renders an event's attendee list as csv or json and
// returns the payload with its content type.
func (s *Service) ExportAttendees(ctx context.Context, p *Principal, eventID, format string) ([]byte, string, error) {
	const op = "service.backend.ExportAttendees"

	s.mu.RLock()
	_, err := s.ownedEvent(p, eventID)
	var list []domain.Attendee
	if err == nil {
		list = s.paidAttendees(eventID)
	}
	s.mu.RUnlock()

	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	switch format {
	case "", "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"id", "name", "email", "phone", "ticket_id", "checked_in"})
		for _, a := range list {
			_ = w.Write([]string{a.ID, a.Name, a.Email, a.Phone, a.TicketID, strconv.FormatBool(a.CheckedIn)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		return buf.Bytes(), "text/csv", nil
	case "json":
		b, err := json.Marshal(list)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		return b, "application/json", nil
	}

	return nil, "", fmt.Errorf("%s: %w", op, ErrUnsupportedFormat)
}
