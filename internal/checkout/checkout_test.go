package checkout

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
)

func tickets() []domain.TicketType {
	return []domain.TicketType{
		{ID: "reg", Type: "Regular", Price: decimal.NewFromInt(3000)},
		{ID: "vip", Type: "VIP", Price: decimal.NewFromInt(60000)},
	}
}

func TestSelection_Total(t *testing.T) {
	s := NewSelection(tickets())

	require.NoError(t, s.Increment("reg"))
	require.NoError(t, s.Increment("reg"))
	require.NoError(t, s.Increment("vip"))

	assert.True(t, decimal.NewFromInt(66000).Equal(s.Total()))
	assert.Equal(t, 3, s.Quantity())
}

func TestSelection_DecimalIsExact(t *testing.T) {
	s := NewSelection([]domain.TicketType{{ID: "a", Price: decimal.RequireFromString("0.10")}})
	require.NoError(t, s.Set("a", 3))

	assert.Equal(t, "0.3", s.Total().String())
}

func TestSelection_DecrementFloorsAtZero(t *testing.T) {
	s := NewSelection(tickets())

	require.NoError(t, s.Decrement("reg"))
	require.NoError(t, s.Decrement("reg"))
	assert.Equal(t, 0, s.Count("reg"))

	require.NoError(t, s.Increment("reg"))
	require.NoError(t, s.Decrement("reg"))
	require.NoError(t, s.Decrement("reg"))
	assert.Equal(t, 0, s.Count("reg"))
	assert.True(t, s.Total().IsZero())

	require.NoError(t, s.Set("vip", -4))
	assert.Equal(t, 0, s.Count("vip"))
}

func TestSelection_UnknownTicket(t *testing.T) {
	s := NewSelection(tickets())
	assert.ErrorIs(t, s.Increment("nope"), ErrUnknownTicket)
}

func TestSelection_Slots(t *testing.T) {
	s := NewSelection(tickets())
	require.NoError(t, s.Increment("vip"))
	require.NoError(t, s.Set("reg", 2))

	slots := s.Slots()
	require.Len(t, slots, 3)
	assert.Equal(t, []string{"reg", "reg", "vip"}, []string{slots[0].TicketID, slots[1].TicketID, slots[2].TicketID})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		in       domain.OrderAttendee
		problems []string
	}{
		{"complete", domain.OrderAttendee{Name: "Ann", Email: "ann@example.com", Phone: "0700"}, nil},
		{"missing all", domain.OrderAttendee{}, []string{"name", "email", "phone"}},
		{"email without at", domain.OrderAttendee{Name: "Ann", Email: "ann.example.com", Phone: "0700"}, []string{"email"}},
		{"blank name", domain.OrderAttendee{Name: "  ", Email: "a@b", Phone: "0700"}, []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]domain.OrderAttendee{tt.in})
			if tt.problems == nil {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrInvalidDetails)

			fields := make([]string, 0, len(verr.Problems))
			for _, p := range verr.Problems {
				fields = append(fields, p.Field)
			}
			assert.Equal(t, tt.problems, fields)
		})
	}
}

type fakeAPI struct {
	path string
	body request
	err  error
}

func (f *fakeAPI) Post(_ context.Context, path string, body, out any) error {
	f.path = path
	f.body = body.(request)
	if f.err != nil {
		return f.err
	}
	b, _ := json.Marshal(domain.Order{ID: "ord-1", Status: domain.OrderPending})
	return json.Unmarshal(b, out)
}

func newService(api API) *Service {
	return New(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_Submit(t *testing.T) {
	api := &fakeAPI{}
	s := newService(api)

	attendees := []domain.OrderAttendee{{Name: "Ann", Email: "ann@example.com", Phone: "0700", TicketID: "reg"}}
	id, err := s.Submit(context.Background(), "e1", attendees, true)
	require.NoError(t, err)

	assert.Equal(t, "ord-1", id)
	assert.Equal(t, "/events/e1/checkout", api.path)
	assert.Equal(t, request{EventID: "e1", Attendees: attendees, PayNow: true}, api.body)
	assert.Equal(t, "ord-1", s.Container().Snapshot().OrderID)
}

func TestService_SubmitRejectsBeforeNetwork(t *testing.T) {
	api := &fakeAPI{}
	s := newService(api)

	_, err := s.Submit(context.Background(), "e1", nil, true)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = s.Submit(context.Background(), "e1", []domain.OrderAttendee{{Name: "Ann"}}, true)
	assert.ErrorIs(t, err, ErrInvalidDetails)
	assert.Empty(t, api.path)
}

func TestService_SubmitServerError(t *testing.T) {
	api := &fakeAPI{err: &apiclient.APIError{Status: 409, Message: "tickets sold out"}}
	s := newService(api)

	_, err := s.Submit(context.Background(), "e1",
		[]domain.OrderAttendee{{Name: "Ann", Email: "a@b", Phone: "1"}}, false)
	require.Error(t, err)

	snap := s.Container().Snapshot()
	assert.Equal(t, "tickets sold out", snap.Error)
	assert.Empty(t, snap.OrderID)
}
