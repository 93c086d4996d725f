// Package ui holds view-only state: modal flags, the active tab per event,
// the toast banner and the event list sort/filter selections.
package ui

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
)

const DefaultToastTTL = 3 * time.Second

type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastInfo    ToastType = "info"
)

type Toast struct {
	Show    bool
	Type    ToastType
	Message string
}

type SortKey string

const (
	SortDate  SortKey = "date"
	SortTitle SortKey = "title"
)

type Filter struct {
	Category string
	Query    string
}

type State struct {
	Modals    map[string]bool
	ActiveTab map[string]string
	Toast     Toast
	Sort      SortKey
	Filter    Filter
}

type Slice struct {
	ttl       time.Duration
	container *state.Container[State]

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

func New(toastTTL time.Duration) *Slice {
	if toastTTL <= 0 {
		toastTTL = DefaultToastTTL
	}

	return &Slice{
		ttl:       toastTTL,
		container: state.New(State{Sort: SortDate}),
	}
}

func (s *Slice) Container() *state.Container[State] { return s.container }

func (s *Slice) OpenModal(name string)  { s.setModal(name, true) }
func (s *Slice) CloseModal(name string) { s.setModal(name, false) }

func (s *Slice) setModal(name string, open bool) {
	s.container.Update(func(st *State) {
		m := maps.Clone(st.Modals)
		if m == nil {
			m = make(map[string]bool)
		}
		m[name] = open
		st.Modals = m
	})
}

func (s *Slice) SetActiveTab(eventID, tab string) {
	s.container.Update(func(st *State) {
		m := maps.Clone(st.ActiveTab)
		if m == nil {
			m = make(map[string]string)
		}
		m[eventID] = tab
		st.ActiveTab = m
	})
}

// ShowToast displays a toast and schedules it to be hidden after the
// configured TTL. Only the most recent toast's timer may hide it.
func (s *Slice) ShowToast(typ ToastType, message string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(gen) })
	s.mu.Unlock()

	s.container.Update(func(st *State) {
		st.Toast = Toast{Show: true, Type: typ, Message: message}
	})
}

func (s *Slice) expire(gen uint64) {
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()

	if current {
		s.hide()
	}
}

func (s *Slice) HideToast() {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.hide()
}

func (s *Slice) hide() {
	s.container.Update(func(st *State) {
		st.Toast.Show = false
	})
}

func (s *Slice) SetSort(key SortKey) {
	s.container.Update(func(st *State) { st.Sort = key })
}

func (s *Slice) SetFilter(f Filter) {
	s.container.Update(func(st *State) { st.Filter = f })
}

// Close stops a pending toast timer.
func (s *Slice) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// FilterEvents returns the events matching f. Category matches exactly,
// ignoring case; Query is a case-insensitive substring of title, location
// or any tag.
func FilterEvents(events []domain.Event, f Filter) []domain.Event {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if query != "" && !matches(e, query) {
			continue
		}
		out = append(out, e)
	}

	return out
}

func matches(e domain.Event, query string) bool {
	if strings.Contains(strings.ToLower(e.Title), query) ||
		strings.Contains(strings.ToLower(e.Location), query) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// SortEvents returns a sorted copy. Unknown keys keep the input order.
func SortEvents(events []domain.Event, key SortKey) []domain.Event {
	out := slices.Clone(events)

	switch key {
	case SortDate:
		slices.SortStableFunc(out, func(a, b domain.Event) int {
			return a.StartTime.Compare(b.StartTime)
		})
	case SortTitle:
		slices.SortStableFunc(out, func(a, b domain.Event) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	}

	return out
}

// Visible applies the current filter and sort to events.
func (st State) Visible(events []domain.Event) []domain.Event {
	return SortEvents(FilterEvents(events, st.Filter), st.Sort)
}
