package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/ticksy/internal/domain"
)

func TestCheck(t *testing.T) {
	organizer := &domain.Session{UserID: "17", Role: domain.RoleOrganizer}
	attendee := &domain.Session{UserID: "5", Role: domain.RoleAttendee}
	admin := &domain.Session{UserID: "1", Role: domain.RoleAdmin}

	tests := []struct {
		name string
		sess *domain.Session
		path string
		want Decision
	}{
		{"public root", nil, "/", Decision{Allowed: true}},
		{"public event", nil, "/events/3", Decision{Allowed: true}},
		{"anonymous organizer path", nil, "/organizer/17/dashboard", Decision{Redirect: PathLogin}},
		{"own organizer dashboard", organizer, "/organizer/17/dashboard", Decision{Allowed: true}},
		{"other organizer dashboard", organizer, "/organizer/18/dashboard", Decision{Redirect: PathUnauthorized}},
		{"organizer on admin path", organizer, "/admin/pending", Decision{Redirect: PathUnauthorized}},
		{"admin on admin path", admin, "/admin/users?page=2", Decision{Allowed: true}},
		{"admin on organizer path", admin, "/organizer/17/dashboard", Decision{Redirect: PathUnauthorized}},
		{"attendee own tickets", attendee, "/attendee/5/tickets/", Decision{Allowed: true}},
		{"attendee on organizer path", attendee, "/organizer/5/dashboard", Decision{Redirect: PathUnauthorized}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.sess, tt.path))
		})
	}
}

func TestHome(t *testing.T) {
	assert.Equal(t, PathLogin, Home(nil))
	assert.Equal(t, "/organizer/17/dashboard", Home(&domain.Session{UserID: "17", Role: domain.RoleOrganizer}))
	assert.Equal(t, "/admin/dashboard", Home(&domain.Session{UserID: "1", Role: domain.RoleAdmin}))
	assert.Equal(t, "/attendee/5/events", Home(&domain.Session{UserID: "5", Role: domain.RoleAttendee}))
}
