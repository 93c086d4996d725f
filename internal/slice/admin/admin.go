package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

var ErrInvalidStatus = errors.New("moderation status must be approved or rejected")

type State struct {
	state.Request
	// Pending is the moderation queue.
	Pending []domain.Event
	Users   []domain.User
}

type API interface {
	Get(ctx context.Context, path string, out any) error
	Patch(ctx context.Context, path string, body, out any) error
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
		container: state.New(State{}),
	}
}

func (s *Slice) Container() *state.Container[State] { return s.container }

func (s *Slice) request(st *State) *state.Request { return &st.Request }

func (s *Slice) FetchPending(ctx context.Context) ([]domain.Event, error) {
	const op = "admin.Slice.FetchPending"

	list, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) ([]domain.Event, error) {
			var list []domain.Event
			err := s.api.Get(ctx, "/admin/pending", &list)
			return list, err
		},
		func(st *State, list []domain.Event) { st.Pending = list },
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Slice) FetchUsers(ctx context.Context) ([]domain.User, error) {
	const op = "admin.Slice.FetchUsers"

	list, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) ([]domain.User, error) {
			var list []domain.User
			err := s.api.Get(ctx, "/admin/users", &list)
			return list, err
		},
		func(st *State, list []domain.User) { st.Users = list },
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

type statusPatch struct {
	Status domain.EventStatus `json:"status"`
}

// SetEventStatus approves or rejects a pending event. On success the event
// leaves the moderation queue.
func (s *Slice) SetEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error {
	const op = "admin.Slice.SetEventStatus"

	if status != domain.EventApproved && status != domain.EventRejected {
		return fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	_, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.Patch(ctx, "/admin/"+url.PathEscape(eventID), statusPatch{Status: status}, nil)
		},
		func(st *State, _ struct{}) {
			pending := make([]domain.Event, 0, len(st.Pending))
			for _, e := range st.Pending {
				if e.ID != eventID {
					pending = append(pending, e)
				}
			}
			st.Pending = pending
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("event moderated", "event_id", eventID, "status", status)
	return nil
}
