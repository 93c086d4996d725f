package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/state"
	"github.com/kirinyoku/ticksy/internal/storage"
)

type Status int

const (
	// StatusUnknown holds only until the first Load completes.
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

type State struct {
	state.Request
	Status Status
	// User is non-nil exactly when Status is StatusAuthenticated.
	User        *domain.Session
	FieldErrors map[string]string
}

// API is the part of the HTTP client the session needs.
type API interface {
	Post(ctx context.Context, path string, body, out any) error
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
}

type authResponse struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token"`
}

type Store struct {
	storage   storage.Storage
	api       API
	logger    *slog.Logger
	container *state.Container[State]
	sf        singleflight.Group
}

func New(st storage.Storage, api API, logger *slog.Logger) *Store {
	return &Store{
		storage:   st,
		api:       api,
		logger:    logger,
		container: state.New(State{}),
	}
}

// Tokens returns a TokenSource that reads the access token from durable
// storage on every call. A missing token yields "" and no error.
func Tokens(st storage.Storage) apiclient.TokenSource {
	return apiclient.TokenFunc(func(ctx context.Context) (string, error) {
		tok, err := st.Get(ctx, storage.KeyAccessToken)
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return tok, err
	})
}

func (s *Store) Container() *state.Container[State] { return s.container }

// Current returns the signed-in user or nil.
func (s *Store) Current() *domain.Session {
	return s.container.Snapshot().User
}

// Load restores the session persisted in durable storage. It does not
// contact the server, so an expired token is only discovered by the next
// request. Concurrent calls share one storage read.
func (s *Store) Load(ctx context.Context) *domain.Session {
	v, _, _ := s.sf.Do("load", func() (any, error) {
		sess := s.read(ctx)

		s.container.Update(func(st *State) {
			st.User = sess
			st.Status = StatusUnauthenticated
			if sess != nil {
				st.Status = StatusAuthenticated
			}
		})

		return sess, nil
	})

	sess, _ := v.(*domain.Session)
	return sess
}

func (s *Store) read(ctx context.Context) *domain.Session {
	token, err := s.storage.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("session restore failed", "key", storage.KeyAccessToken, "error", err)
		}
		return nil
	}

	raw, err := s.storage.Get(ctx, storage.KeyUser)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("session restore failed", "key", storage.KeyUser, "error", err)
		}
		return nil
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("session restore failed: corrupt user record", "error", err)
		return nil
	}

	if token == "" || sess.UserID == "" {
		return nil
	}

	sess.AccessToken = token
	return &sess
}

// Login posts the credentials and, on success, persists and activates the
// returned session. A failed login records field-level validation errors in
// State.FieldErrors and changes nothing else: a signed-out store stays
// unauthenticated, and a store that already holds a session keeps it, both
// in memory and in storage.
func (s *Store) Login(ctx context.Context, creds Credentials) (*domain.Session, error) {
	const op = "session.Store.Login"

	sess, err := state.Dispatch(ctx, s.container,
		func(st *State) *state.Request {
			st.FieldErrors = nil
			return &st.Request
		},
		func(ctx context.Context) (*domain.Session, error) {
			var resp authResponse
			if err := s.api.Post(apiclient.Anonymous(ctx), "/login", creds, &resp); err != nil {
				return nil, err
			}
			if resp.AccessToken == "" {
				return nil, ErrMissingToken
			}

			sess := toSession(resp)
			if err := s.persist(ctx, sess); err != nil {
				return nil, err
			}
			return sess, nil
		},
		func(st *State, sess *domain.Session) {
			st.User = sess
			st.Status = StatusAuthenticated
		},
	)
	if err != nil {
		s.rejectAuth(err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("signed in", "user_id", sess.UserID, "role", sess.Role)
	return sess, nil
}

// Register creates an account. Only attendee sign-ups that come back with a
// token are signed in immediately; other roles return the created profile
// and the caller is expected to send the user to the login view.
func (s *Store) Register(ctx context.Context, reg Registration) (*domain.User, bool, error) {
	const op = "session.Store.Register"

	if reg.Role == "" {
		reg.Role = domain.RoleAttendee
	}

	var authenticated bool

	resp, err := state.Dispatch(ctx, s.container,
		func(st *State) *state.Request {
			st.FieldErrors = nil
			return &st.Request
		},
		func(ctx context.Context) (authResponse, error) {
			var resp authResponse
			if err := s.api.Post(apiclient.Anonymous(ctx), "/signup", reg, &resp); err != nil {
				return resp, err
			}

			if resp.User.Role == domain.RoleAttendee && resp.AccessToken != "" {
				if err := s.persist(ctx, toSession(resp)); err != nil {
					return resp, err
				}
				authenticated = true
			}
			return resp, nil
		},
		func(st *State, resp authResponse) {
			if authenticated {
				st.User = toSession(resp)
				st.Status = StatusAuthenticated
			}
		},
	)
	if err != nil {
		s.rejectAuth(err)
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	user := resp.User
	return &user, authenticated, nil
}

// Logout clears durable and in-memory session state. If the stored keys
// cannot be deleted the token is overwritten with an empty value, which the
// API client and Load both treat as signed out. Storage failures are logged;
// the in-memory session is cleared regardless.
func (s *Store) Logout(ctx context.Context) {
	if err := s.storage.Delete(ctx, storage.KeyAccessToken, storage.KeyUser); err != nil {
		s.logger.Error("failed to clear persisted session", "error", err)

		if err := s.storage.Set(ctx, storage.KeyAccessToken, ""); err != nil {
			s.logger.Error("failed to blank persisted token", "error", err)
		}
	}

	s.container.Update(func(st *State) {
		st.User = nil
		st.Status = StatusUnauthenticated
		st.Request = state.Request{}
		st.FieldErrors = nil
	})
}

// Expire is the unauthorized hook for the API client: the server rejected
// the stored token, so the session is destroyed.
func (s *Store) Expire(ctx context.Context) {
	s.logger.Warn("session rejected by server, signing out")
	s.Logout(ctx)
}

func (s *Store) persist(ctx context.Context, sess *domain.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	if err := s.storage.Set(ctx, storage.KeyAccessToken, sess.AccessToken); err != nil {
		return err
	}

	if err := s.storage.Set(ctx, storage.KeyUser, string(b)); err != nil {
		_ = s.storage.Delete(ctx, storage.KeyAccessToken)
		return err
	}

	return nil
}

// rejectAuth keeps the store in the unauthenticated state after a failed
// login or registration and records field-level errors.
func (s *Store) rejectAuth(err error) {
	var apiErr *apiclient.APIError
	fields := map[string]string(nil)
	if errors.As(err, &apiErr) {
		fields = apiErr.Fields
	}

	s.container.Update(func(st *State) {
		if st.User == nil {
			st.Status = StatusUnauthenticated
		}
		st.FieldErrors = fields
	})
}

func toSession(resp authResponse) *domain.Session {
	return &domain.Session{
		UserID:      resp.User.ID,
		Role:        resp.User.Role,
		FirstName:   resp.User.FirstName,
		LastName:    resp.User.LastName,
		Email:       resp.User.Email,
		Phone:       resp.User.Phone,
		AccessToken: resp.AccessToken,
	}
}
