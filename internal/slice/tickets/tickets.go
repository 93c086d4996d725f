package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

type State struct {
	state.Request
	// ByEvent maps an event id to its ticket types.
	ByEvent map[string][]domain.TicketType
}

type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

type Input struct {
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	QuantityTotal int             `json:"quantity_total"`
}

// Sales summarizes ticket inventory for one event as reported by the
// server.
type Sales struct {
	Sold     int
	Capacity int
	Revenue  decimal.Decimal
}

type Slice struct {
	api       API
	logger    *slog.Logger
	container *state.Container[State]
}

func New(api API, logger *slog.Logger) *Slice {
	return &Slice{
		api:       api,
		logger:    logger,
		container: state.New(State{ByEvent: map[string][]domain.TicketType{}}),
	}
}

func (s *Slice) Container() *state.Container[State] { return s.container }

func (s *Slice) request(st *State) *state.Request { return &st.Request }

func path(eventID string) string {
	return "/events/" + url.PathEscape(eventID) + "/tickets"
}

// FetchTickets replaces the ticket types of one event.
func (s *Slice) FetchTickets(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	const op = "tickets.Slice.FetchTickets"

	list, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) ([]domain.TicketType, error) {
			var list []domain.TicketType
			err := s.api.Get(ctx, path(eventID), &list)
			return list, err
		},
		func(st *State, list []domain.TicketType) {
			byEvent := maps.Clone(st.ByEvent)
			byEvent[eventID] = list
			st.ByEvent = byEvent
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Slice) CreateTicket(ctx context.Context, eventID string, in Input) (*domain.TicketType, error) {
	const op = "tickets.Slice.CreateTicket"

	t, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (*domain.TicketType, error) {
			var t domain.TicketType
			if err := s.api.Post(ctx, path(eventID), in, &t); err != nil {
				return nil, err
			}
			return &t, nil
		},
		func(st *State, t *domain.TicketType) {
			prev := st.ByEvent[eventID]
			list := make([]domain.TicketType, 0, len(prev)+1)
			list = append(list, prev...)

			byEvent := maps.Clone(st.ByEvent)
			byEvent[eventID] = append(list, *t)
			st.ByEvent = byEvent
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// Lookup finds a ticket type by id across all fetched events.
func (st State) Lookup(ticketID string) (domain.TicketType, bool) {
	for _, list := range st.ByEvent {
		for _, t := range list {
			if t.ID == ticketID {
				return t, true
			}
		}
	}
	return domain.TicketType{}, false
}

// SalesFor computes sold count, capacity and revenue (sold × price) for an
// event's fetched ticket types.
func (st State) SalesFor(eventID string) Sales {
	sales := Sales{Revenue: decimal.Zero}
	for _, t := range st.ByEvent[eventID] {
		sales.Sold += t.QuantitySold
		sales.Capacity += t.QuantityTotal
		sales.Revenue = sales.Revenue.Add(t.Price.Mul(decimal.NewFromInt(int64(t.QuantitySold))))
	}
	return sales
}
