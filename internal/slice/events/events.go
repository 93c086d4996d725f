package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

type State struct {
	state.Request
	// Organizer is the signed-in organizer's own events.
	Organizer Buckets
	// All is the public browse list.
	All []domain.Event
	// Current is the event last fetched by id.
	Current *domain.Event
}

type API interface {
	Get(ctx context.Context, path string, out any) error
	PostMultipart(ctx context.Context, path string, form apiclient.Form, out any) error
	PutMultipart(ctx context.Context, path string, form apiclient.Form, out any) error
}

// Input is an organizer's event submission. Image is optional.
type Input struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Category    string
	Tags        []string
	Image       *apiclient.FilePart
}

func (in Input) form() apiclient.Form {
	f := apiclient.Form{
		Fields: map[string]string{
			"title":       in.Title,
			"description": in.Description,
			"location":    in.Location,
			"start_time":  in.StartTime.UTC().Format(time.RFC3339),
			"end_time":    in.EndTime.UTC().Format(time.RFC3339),
			"category":    in.Category,
			"tags":        strings.Join(in.Tags, ","),
		},
	}
	if in.Image != nil {
		img := *in.Image
		if img.Field == "" {
			img.Field = "image"
		}
		f.File = &img
	}
	return f
}

type Option func(*Slice)

// WithClock replaces time.Now for bucketing.
func WithClock(now func() time.Time) Option {
	return func(s *Slice) { s.now = now }
}

type Slice struct {
	api       API
	logger    *slog.Logger
	now       func() time.Time
	container *state.Container[State]
}

func New(api API, logger *slog.Logger, opts ...Option) *Slice {
	s := &Slice{
		api:    api,
		logger: logger,
		now:    time.Now,
		container: state.New(State{
			Organizer: Partition(nil, time.Time{}),
		}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Slice) Container() *state.Container[State] { return s.container }

func (s *Slice) request(st *State) *state.Request { return &st.Request }

// FetchOrganizerEvents replaces all four buckets with the server's list,
// partitioned against the clock at the moment the response arrives.
func (s *Slice) FetchOrganizerEvents(ctx context.Context) (Buckets, error) {
	const op = "events.Slice.FetchOrganizerEvents"

	b, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (Buckets, error) {
			var list []domain.Event
			if err := s.api.Get(ctx, "/organizer/events", &list); err != nil {
				return Buckets{}, err
			}
			return Partition(list, s.now()), nil
		},
		func(st *State, b Buckets) { st.Organizer = b },
	)
	if err != nil {
		return Buckets{}, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// FetchEvents loads the public list. category may be empty.
func (s *Slice) FetchEvents(ctx context.Context, category string) ([]domain.Event, error) {
	const op = "events.Slice.FetchEvents"

	path := "/events"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}

	list, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) ([]domain.Event, error) {
			var list []domain.Event
			err := s.api.Get(ctx, path, &list)
			return list, err
		},
		func(st *State, list []domain.Event) { st.All = list },
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Slice) FetchEvent(ctx context.Context, id string) (*domain.Event, error) {
	const op = "events.Slice.FetchEvent"

	e, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (*domain.Event, error) {
			var e domain.Event
			if err := s.api.Get(ctx, "/events/"+url.PathEscape(id), &e); err != nil {
				return nil, err
			}
			return &e, nil
		},
		func(st *State, e *domain.Event) { st.Current = e },
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

// CreateEvent submits a new event. New events always await moderation, so
// the result is appended to Pending.
func (s *Slice) CreateEvent(ctx context.Context, in Input) (*domain.Event, error) {
	const op = "events.Slice.CreateEvent"

	e, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (*domain.Event, error) {
			var e domain.Event
			if err := s.api.PostMultipart(ctx, "/events", in.form(), &e); err != nil {
				return nil, err
			}
			e.Status = domain.EventPending
			return &e, nil
		},
		func(st *State, e *domain.Event) {
			st.Organizer.Pending = appendCopy(st.Organizer.Pending, *e)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("event submitted for review", "event_id", e.ID)
	return e, nil
}

// UpdateEvent resubmits an event. It leaves whichever bucket it was in and
// goes back to Pending.
func (s *Slice) UpdateEvent(ctx context.Context, id string, in Input) (*domain.Event, error) {
	const op = "events.Slice.UpdateEvent"

	e, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (*domain.Event, error) {
			var e domain.Event
			if err := s.api.PutMultipart(ctx, "/events/"+url.PathEscape(id), in.form(), &e); err != nil {
				return nil, err
			}
			if e.ID == "" {
				e.ID = id
			}
			e.Status = domain.EventPending
			return &e, nil
		},
		func(st *State, e *domain.Event) {
			b := st.Organizer
			st.Organizer = Buckets{
				Pending:  appendCopy(without(b.Pending, id), *e),
				Rejected: without(b.Rejected, id),
				Approved: without(b.Approved, id),
				History:  without(b.History, id),
			}
			if st.Current != nil && st.Current.ID == id {
				st.Current = e
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}
