package backend

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/ticksy/internal/domain"
)

type EventInput struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Category    string
	Tags        []string
	// ImageName is the uploaded poster's file name, if any.
	ImageName string
}

func (in EventInput) validate() error {
	v := validator{}
	v.check(strings.TrimSpace(in.Title) != "", "title", "is required")
	v.check(strings.TrimSpace(in.Location) != "", "location", "is required")
	v.check(!in.StartTime.IsZero(), "start_time", "is required")
	v.check(!in.EndTime.IsZero(), "end_time", "is required")
	if !in.StartTime.IsZero() && !in.EndTime.IsZero() {
		v.check(in.EndTime.After(in.StartTime), "end_time", "must be after start_time")
	}
	return v.err()
}

func (in EventInput) apply(e *domain.Event) {
	e.Title = strings.TrimSpace(in.Title)
	e.Description = in.Description
	e.Location = strings.TrimSpace(in.Location)
	e.StartTime = in.StartTime.UTC()
	e.EndTime = in.EndTime.UTC()
	e.Category = strings.TrimSpace(in.Category)
	e.Tags = slices.Clone(in.Tags)
	if in.ImageName != "" {
		e.ImageURL = "/uploads/" + e.ID + "/" + path.Base(in.ImageName)
	}
}

// ListEvents returns approved events, optionally restricted to a category
// (case-insensitive), ordered by start time. A failing cache is bypassed.
func (s *Service) ListEvents(ctx context.Context, category string) ([]domain.Event, error) {
	if s.cache == nil {
		return s.listEvents(category), nil
	}

	out, err := s.cache.Events(ctx, strings.ToLower(category), func(context.Context) ([]domain.Event, error) {
		return s.listEvents(category), nil
	})
	if err != nil {
		s.logger.Warn("event cache unavailable", "error", err)
		return s.listEvents(category), nil
	}

	return out, nil
}

func (s *Service) listEvents(category string) []domain.Event {
	s.mu.RLock()
	out := s.eventsWhere(func(e *domain.Event) bool {
		return e.Status == domain.EventApproved &&
			(category == "" || strings.EqualFold(e.Category, category))
	})
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.Event) int { return a.StartTime.Compare(b.StartTime) })

	return out
}

// invalidateEvents drops cached public lists after a change that can add
// or remove an approved event.
func (s *Service) invalidateEvents(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateEvents(ctx); err != nil {
		s.logger.Warn("event cache invalidation failed", "error", err)
	}
}

// GetEvent returns one event. Events that are not approved are visible only
// to their organizer and to admins; p may be nil for anonymous callers.
func (s *Service) GetEvent(ctx context.Context, p *Principal, id string) (domain.Event, error) {
	const op = "service.backend.GetEvent"

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok || !s.canSee(p, e) {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrEventNotFound)
	}

	return cloneEvent(e), nil
}

func (s *Service) canSee(p *Principal, e *domain.Event) bool {
	if e.Status == domain.EventApproved || p.is(domain.RoleAdmin) {
		return true
	}
	return p != nil && p.UserID == e.OrganizerID
}

// ownedEvent returns the event if p may manage it. The caller holds s.mu.
func (s *Service) ownedEvent(p *Principal, id string) (*domain.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if p.is(domain.RoleAdmin) {
		return e, nil
	}
	if !p.is(domain.RoleOrganizer) || e.OrganizerID != p.UserID {
		if e.Status != domain.EventApproved {
			return nil, ErrEventNotFound
		}
		return nil, ErrForbidden
	}
	return e, nil
}

func (s *Service) OrganizerEvents(ctx context.Context, p *Principal) ([]domain.Event, error) {
	const op = "service.backend.OrganizerEvents"

	if !p.is(domain.RoleOrganizer) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.eventsWhere(func(e *domain.Event) bool { return e.OrganizerID == p.UserID }), nil
}

// CreateEvent stores a new event owned by p. New events always start
// pending moderation.
func (s *Service) CreateEvent(ctx context.Context, p *Principal, in EventInput) (domain.Event, error) {
	const op = "service.backend.CreateEvent"

	if !p.is(domain.RoleOrganizer) {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if err := in.validate(); err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	e := &domain.Event{
		ID:          uuid.NewString(),
		Status:      domain.EventPending,
		OrganizerID: p.UserID,
	}
	in.apply(e)

	s.mu.Lock()
	s.events[e.ID] = e
	s.eventIDs = append(s.eventIDs, e.ID)
	out := cloneEvent(e)
	s.mu.Unlock()

	s.logger.Info("event created", "event_id", e.ID, "organizer_id", p.UserID)

	return out, nil
}

// UpdateEvent replaces an event's details. Any edit sends the event back to
// moderation.
func (s *Service) UpdateEvent(ctx context.Context, p *Principal, id string, in EventInput) (domain.Event, error) {
	const op = "service.backend.UpdateEvent"

	if err := in.validate(); err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	// Runs after the unlock below.
	defer s.invalidateEvents(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.ownedEvent(p, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	in.apply(e)
	e.Status = domain.EventPending

	return cloneEvent(e), nil
}

// PendingEvents is the admin moderation queue.
func (s *Service) PendingEvents(ctx context.Context, p *Principal) ([]domain.Event, error) {
	const op = "service.backend.PendingEvents"

	if !p.is(domain.RoleAdmin) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.eventsWhere(func(e *domain.Event) bool { return e.Status == domain.EventPending }), nil
}

// SetEventStatus approves or rejects an event. Admin only.
func (s *Service) SetEventStatus(ctx context.Context, p *Principal, id string, status domain.EventStatus) (domain.Event, error) {
	const op = "service.backend.SetEventStatus"

	if !p.is(domain.RoleAdmin) {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if status != domain.EventApproved && status != domain.EventRejected {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	defer s.invalidateEvents(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrEventNotFound)
	}
	e.Status = status

	s.logger.Info("event moderated", "event_id", id, "status", status)

	return cloneEvent(e), nil
}
