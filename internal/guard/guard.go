// Package guard decides whether the signed-in user may open a view path.
//
// It is a navigation aid only. The server authorizes every request on its
// own and must never rely on this check: anything enforced here can be
// bypassed by calling the API directly.
package guard

import (
	"strings"

	"github.com/kirinyoku/ticksy/internal/domain"
)

const (
	PathLogin        = "/login"
	PathUnauthorized = "/unauthorized"
)

type Decision struct {
	Allowed bool
	// Redirect is set when Allowed is false.
	Redirect string
}

func allow() Decision               { return Decision{Allowed: true} }
func redirect(path string) Decision { return Decision{Redirect: path} }

// Check applies the role and ownership rules:
//
//	/organizer/<id>/...  organizer whose user id is <id>
//	/attendee/<id>/...   attendee whose user id is <id>
//	/admin/...           any admin
//
// Every other path is public.
func Check(sess *domain.Session, path string) Decision {
	segs := split(path)
	if len(segs) == 0 {
		return allow()
	}

	var (
		role  domain.Role
		owner string
	)

	switch segs[0] {
	case "organizer":
		role = domain.RoleOrganizer
		if len(segs) > 1 {
			owner = segs[1]
		}
	case "attendee":
		role = domain.RoleAttendee
		if len(segs) > 1 {
			owner = segs[1]
		}
	case "admin":
		role = domain.RoleAdmin
	default:
		return allow()
	}

	if sess == nil {
		return redirect(PathLogin)
	}

	if sess.Role != role {
		return redirect(PathUnauthorized)
	}

	if owner != "" && owner != sess.UserID {
		return redirect(PathUnauthorized)
	}

	return allow()
}

// Home is the landing path for a signed-in user.
func Home(sess *domain.Session) string {
	if sess == nil {
		return PathLogin
	}

	switch sess.Role {
	case domain.RoleOrganizer:
		return "/organizer/" + sess.UserID + "/dashboard"
	case domain.RoleAdmin:
		return "/admin/dashboard"
	case domain.RoleAttendee:
		return "/attendee/" + sess.UserID + "/events"
	}
	return "/"
}

func split(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
