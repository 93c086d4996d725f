package checkout

import (
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ticksy/internal/domain"
)

// Selection holds how many tickets of each type the buyer wants.
type Selection struct {
	mu      sync.Mutex
	tickets map[string]domain.TicketType
	order   []string
	counts  map[string]int
}

func NewSelection(tickets []domain.TicketType) *Selection {
	s := &Selection{
		tickets: make(map[string]domain.TicketType, len(tickets)),
		counts:  make(map[string]int, len(tickets)),
	}
	for _, t := range tickets {
		if _, ok := s.tickets[t.ID]; !ok {
			s.order = append(s.order, t.ID)
		}
		s.tickets[t.ID] = t
	}
	return s
}

func (s *Selection) Increment(ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return ErrUnknownTicket
	}
	s.counts[ticketID]++
	return nil
}

// Decrement lowers a count, never below zero.
func (s *Selection) Decrement(ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return ErrUnknownTicket
	}
	if s.counts[ticketID] > 0 {
		s.counts[ticketID]--
	}
	return nil
}

func (s *Selection) Set(ticketID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return ErrUnknownTicket
	}
	s.counts[ticketID] = max(n, 0)
	return nil
}

func (s *Selection) Count(ticketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[ticketID]
}

// Quantity is the number of tickets selected across all types.
func (s *Selection) Quantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// Total is the exact sum of count × price.
func (s *Selection) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for id, c := range s.counts {
		total = total.Add(s.tickets[id].Price.Mul(decimal.NewFromInt(int64(c))))
	}
	return total
}

// Slots returns one blank attendee per selected ticket, in ticket order,
// for the buyer to fill in.
func (s *Selection) Slots() []domain.OrderAttendee {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OrderAttendee
	for _, id := range s.order {
		for range s.counts[id] {
			out = append(out, domain.OrderAttendee{TicketID: id})
		}
	}
	return out
}

// Validate checks that every attendee has a name, an email containing "@"
// and a phone number. It returns a *ValidationError listing all problems.
func Validate(attendees []domain.OrderAttendee) error {
	var problems []FieldError

	for i, a := range attendees {
		if strings.TrimSpace(a.Name) == "" {
			problems = append(problems, FieldError{Index: i, Field: "name", Message: "is required"})
		}
		switch email := strings.TrimSpace(a.Email); {
		case email == "":
			problems = append(problems, FieldError{Index: i, Field: "email", Message: "is required"})
		case !strings.Contains(email, "@"):
			problems = append(problems, FieldError{Index: i, Field: "email", Message: "is invalid"})
		}
		if strings.TrimSpace(a.Phone) == "" {
			problems = append(problems, FieldError{Index: i, Field: "phone", Message: "is required"})
		}
	}

	if len(problems) > 0 {
		slices.SortStableFunc(problems, func(a, b FieldError) int { return a.Index - b.Index })
		return &ValidationError{Problems: problems}
	}

	return nil
}
