package events

import (
	"time"

	"github.com/kirinyoku/ticksy/internal/domain"
)

// Buckets partitions an organizer's events. Every event lands in exactly
// one bucket.
type Buckets struct {
	Pending  []domain.Event
	Rejected []domain.Event
	// Approved holds approved events that have not started yet.
	Approved []domain.Event
	// History holds approved events whose start time is before now.
	History []domain.Event
}

func (b Buckets) Len() int {
	return len(b.Pending) + len(b.Rejected) + len(b.Approved) + len(b.History)
}

// Partition buckets events by status first and start time second. An event
// is history only when it is approved and already started; unknown
// statuses are treated as pending, since the server has not approved them.
func Partition(events []domain.Event, now time.Time) Buckets {
	b := Buckets{
		Pending:  []domain.Event{},
		Rejected: []domain.Event{},
		Approved: []domain.Event{},
		History:  []domain.Event{},
	}

	for _, e := range events {
		switch e.Status {
		case domain.EventApproved:
			if e.StartTime.Before(now) {
				b.History = append(b.History, e)
			} else {
				b.Approved = append(b.Approved, e)
			}
		case domain.EventRejected:
			b.Rejected = append(b.Rejected, e)
		default:
			b.Pending = append(b.Pending, e)
		}
	}

	return b
}

// without returns a copy of events minus the one with the given id.
func without(events []domain.Event, id string) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func appendCopy(events []domain.Event, e domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(events)+1)
	out = append(out, events...)
	return append(out, e)
}
