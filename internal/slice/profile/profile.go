package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

type State struct {
	state.Request
	Me       *domain.User
	Upcoming []domain.Event
	Past     []domain.Event
}

type API interface {
	Get(ctx context.Context, path string, out any) error
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

func (s *Slice) FetchMe(ctx context.Context) (*domain.User, error) {
	const op = "profile.Slice.FetchMe"

	me, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (*domain.User, error) {
			var u domain.User
			if err := s.api.Get(ctx, "/profile/me", &u); err != nil {
				return nil, err
			}
			return &u, nil
		},
		func(st *State, u *domain.User) { st.Me = u },
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return me, nil
}

func (s *Slice) FetchUpcoming(ctx context.Context) ([]domain.Event, error) {
	const op = "profile.Slice.FetchUpcoming"

	list, err := s.fetchEvents(ctx, "/profile/my-upcoming-events", func(st *State, l []domain.Event) { st.Upcoming = l })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Slice) FetchPast(ctx context.Context) ([]domain.Event, error) {
	const op = "profile.Slice.FetchPast"

	list, err := s.fetchEvents(ctx, "/profile/my-past-events", func(st *State, l []domain.Event) { st.Past = l })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Slice) fetchEvents(ctx context.Context, path string, set func(*State, []domain.Event)) ([]domain.Event, error) {
	return state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) ([]domain.Event, error) {
			var list []domain.Event
			err := s.api.Get(ctx, path, &list)
			return list, err
		},
		set,
	)
}
