package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/ticksy/internal/domain"
)

func TestSlice_ModalsAndTabs(t *testing.T) {
	s := New(0)
	defer s.Close()

	s.OpenModal("create-ticket")
	before := s.Container().Snapshot()
	s.CloseModal("create-ticket")
	s.SetActiveTab("e1", "attendees")

	snap := s.Container().Snapshot()
	assert.False(t, snap.Modals["create-ticket"])
	assert.True(t, before.Modals["create-ticket"])
	assert.Equal(t, "attendees", snap.ActiveTab["e1"])
}

func TestSlice_ToastAutoDismiss(t *testing.T) {
	s := New(20 * time.Millisecond)
	defer s.Close()

	s.ShowToast(ToastSuccess, "Event created")
	assert.Equal(t, Toast{Show: true, Type: ToastSuccess, Message: "Event created"}, s.Container().Snapshot().Toast)

	require.Eventually(t, func() bool {
		return !s.Container().Snapshot().Toast.Show
	}, time.Second, 5*time.Millisecond)
}

func TestSlice_NewerToastNotHiddenByOlderTimer(t *testing.T) {
	s := New(50 * time.Millisecond)
	defer s.Close()

	s.ShowToast(ToastInfo, "first")
	first := s.gen
	s.ShowToast(ToastError, "second")

	// A stale timer firing must not hide the newer toast.
	s.expire(first)
	snap := s.Container().Snapshot()
	assert.True(t, snap.Toast.Show)
	assert.Equal(t, "second", snap.Toast.Message)
}

func TestSlice_HideToast(t *testing.T) {
	s := New(time.Hour)
	defer s.Close()

	s.ShowToast(ToastError, "boom")
	s.HideToast()
	assert.False(t, s.Container().Snapshot().Toast.Show)
}

func TestFilterAndSort(t *testing.T) {
	base := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	events := []domain.Event{
		{ID: "1", Title: "Zebra Run", Category: "Sports", StartTime: base.Add(48 * time.Hour)},
		{ID: "2", Title: "art expo", Category: "Arts", Location: "Nairobi", StartTime: base},
		{ID: "3", Title: "Jazz Night", Category: "music", Tags: []string{"Live"}, StartTime: base.Add(24 * time.Hour)},
	}

	assert.Equal(t, []string{"3"}, idsOf(FilterEvents(events, Filter{Category: "Music"})))
	assert.Equal(t, []string{"3"}, idsOf(FilterEvents(events, Filter{Query: "live"})))
	assert.Equal(t, []string{"2"}, idsOf(FilterEvents(events, Filter{Query: "nairobi"})))
	assert.Len(t, FilterEvents(events, Filter{}), 3)

	assert.Equal(t, []string{"2", "3", "1"}, idsOf(SortEvents(events, SortDate)))
	assert.Equal(t, []string{"2", "3", "1"}, idsOf(SortEvents(events, SortTitle)))
	assert.Equal(t, []string{"1", "2", "3"}, idsOf(SortEvents(events, "")))

	s := New(0)
	s.SetFilter(Filter{Query: "a"})
	s.SetSort(SortTitle)
	assert.Equal(t, []string{"2", "3", "1"}, idsOf(s.Container().Snapshot().Visible(events)))
}

func idsOf(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
