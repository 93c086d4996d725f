package attendees

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

type State struct {
	state.Request
	// ByEvent maps an event id to its attendee list.
	ByEvent map[string][]domain.Attendee
	// CheckedIn maps an attendee id to its check-in flag.
	CheckedIn map[string]bool
	// Export is set when an export has been downloaded and is waiting for
	// the effect handler to save it.
	Export *ExportReady
}

// ExportReady is a downloaded attendee export. Seq increases with every
// export so handlers can tell a new payload from one they already saved.
type ExportReady struct {
	Seq         uint64
	EventID     string
	Format      string
	Filename    string
	ContentType string
	Payload     []byte
}

type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Download(ctx context.Context, path string) (*apiclient.Blob, error)
}

type Slice struct {
	api       API
	logger    *slog.Logger
	container *state.Container[State]
	exportSeq uint64
}

func New(api API, logger *slog.Logger) *Slice {
	return &Slice{
		api:    api,
		logger: logger,
		container: state.New(State{
			ByEvent:   map[string][]domain.Attendee{},
			CheckedIn: map[string]bool{},
		}),
	}
}

func (s *Slice) Container() *state.Container[State] { return s.container }

func (s *Slice) request(st *State) *state.Request { return &st.Request }

func basePath(eventID string) string {
	return "/events/" + url.PathEscape(eventID) + "/attendees"
}

// FetchAttendees replaces the event's attendee list and the check-in flags
// of the attendees in it.
func (s *Slice) FetchAttendees(ctx context.Context, eventID string) ([]domain.Attendee, error) {
	const op = "attendees.Slice.FetchAttendees"

	list, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) ([]domain.Attendee, error) {
			var list []domain.Attendee
			err := s.api.Get(ctx, basePath(eventID), &list)
			return list, err
		},
		func(st *State, list []domain.Attendee) {
			checked := maps.Clone(st.CheckedIn)
			for _, a := range st.ByEvent[eventID] {
				delete(checked, a.ID)
			}
			for _, a := range list {
				checked[a.ID] = a.CheckedIn
			}

			byEvent := maps.Clone(st.ByEvent)
			byEvent[eventID] = list

			st.ByEvent = byEvent
			st.CheckedIn = checked
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// CheckIn marks an attendee as present once the server confirms it.
func (s *Slice) CheckIn(ctx context.Context, eventID, attendeeID string) error {
	return s.setCheckedIn(ctx, eventID, attendeeID, true)
}

// UndoCheckIn reverts a check-in once the server confirms it.
func (s *Slice) UndoCheckIn(ctx context.Context, eventID, attendeeID string) error {
	return s.setCheckedIn(ctx, eventID, attendeeID, false)
}

// setCheckedIn sets the flag to value rather than flipping it, so repeated
// calls converge on the last requested value. Attendees that are not in the
// in-memory list are ignored; nothing is refetched.
func (s *Slice) setCheckedIn(ctx context.Context, eventID, attendeeID string, value bool) error {
	const op = "attendees.Slice.setCheckedIn"

	action := "check-in"
	if !value {
		action = "undo-check-in"
	}

	_, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (struct{}, error) {
			p := basePath(eventID) + "/" + url.PathEscape(attendeeID) + "/" + action
			return struct{}{}, s.api.Post(ctx, p, nil, nil)
		},
		func(st *State, _ struct{}) {
			prev := st.ByEvent[eventID]
			idx := -1
			for i, a := range prev {
				if a.ID == attendeeID {
					idx = i
					break
				}
			}
			if idx < 0 {
				return
			}

			list := make([]domain.Attendee, len(prev))
			copy(list, prev)
			list[idx].CheckedIn = value

			byEvent := maps.Clone(st.ByEvent)
			byEvent[eventID] = list

			checked := maps.Clone(st.CheckedIn)
			checked[attendeeID] = value

			st.ByEvent = byEvent
			st.CheckedIn = checked
		},
	)
	if err != nil {
		s.logger.Error("attendee "+action+" failed",
			"event_id", eventID, "attendee_id", attendeeID, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Export downloads the attendee list in the given format (csv when empty).
// The reduction only records the payload; saving it is left to an effect
// handler watching State.Export.
func (s *Slice) Export(ctx context.Context, eventID, format string) (*ExportReady, error) {
	const op = "attendees.Slice.Export"

	if format == "" {
		format = "csv"
	}

	ready, err := state.Dispatch(ctx, s.container, s.request,
		func(ctx context.Context) (*ExportReady, error) {
			blob, err := s.api.Download(ctx, basePath(eventID)+"/export?format="+url.QueryEscape(format))
			if err != nil {
				return nil, err
			}
			return &ExportReady{
				EventID:     eventID,
				Format:      format,
				Filename:    "attendees." + format,
				ContentType: blob.ContentType,
				Payload:     blob.Data,
			}, nil
		},
		func(st *State, r *ExportReady) {
			s.exportSeq++
			r.Seq = s.exportSeq
			st.Export = r
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ready, nil
}

// ClearExport empties the export slot if it still holds export seq.
func (s *Slice) ClearExport(seq uint64) {
	s.container.Update(func(st *State) {
		if st.Export != nil && st.Export.Seq == seq {
			st.Export = nil
		}
	})
}

// CheckedInCount returns how many of an event's attendees are present.
func (st State) CheckedInCount(eventID string) int {
	n := 0
	for _, a := range st.ByEvent[eventID] {
		if st.CheckedIn[a.ID] {
			n++
		}
	}
	return n
}
