package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

type API interface {
	Post(ctx context.Context, path string, body, out any) error
}

type State struct {
	state.Request
	// OrderID is the order created by the last successful submission.
	OrderID string
}

type request struct {
	EventID   string                 `json:"event_id"`
	Attendees []domain.OrderAttendee `json:"attendees"`
	PayNow    bool                   `json:"pay_now"`
}

type Service struct {
	api       API
	logger    *slog.Logger
	container *state.Container[State]
}

func New(api API, logger *slog.Logger) *Service {
	return &Service{
		api:       api,
		logger:    logger,
		container: state.New(State{}),
	}
}

func (s *Service) Container() *state.Container[State] { return s.container }

// Submit validates the attendees and creates an order. With payNow the
// server starts the mobile-money payment; the returned order id is then
// polled until it is paid.
func (s *Service) Submit(ctx context.Context, eventID string, attendees []domain.OrderAttendee, payNow bool) (string, error) {
	const op = "checkout.Service.Submit"

	if len(attendees) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptySelection)
	}
	if err := Validate(attendees); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ctx = apiclient.WithIdempotencyKey(ctx, uuid.NewString())

	order, err := state.Dispatch(ctx, s.container,
		func(st *State) *state.Request { return &st.Request },
		func(ctx context.Context) (domain.Order, error) {
			var order domain.Order
			err := s.api.Post(ctx, "/events/"+url.PathEscape(eventID)+"/checkout", request{
				EventID:   eventID,
				Attendees: attendees,
				PayNow:    payNow,
			}, &order)
			return order, err
		},
		func(st *State, order domain.Order) { st.OrderID = order.ID },
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("order created",
		"order_id", order.ID, "event_id", eventID, "tickets", len(attendees), "pay_now", payNow)

	return order.ID, nil
}
