package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/domain"
	"github.com/kirinyoku/ticksy/internal/storage"
)

type fakeAPI struct {
	mu    sync.Mutex
	paths []string
	resp  authResponse
	err   error
}

func (f *fakeAPI) Post(_ context.Context, path string, _ any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, path)
	if f.err != nil {
		return f.err
	}

	b, _ := json.Marshal(f.resp)
	return json.Unmarshal(b, out)
}

type failingStorage struct {
	*storage.Memory
	deleteErr error
}

func (f failingStorage) Delete(ctx context.Context, keys ...string) error {
	_ = f.Memory.Delete(ctx, keys...)
	return f.deleteErr
}

// stuckStorage refuses to delete anything.
type stuckStorage struct {
	*storage.Memory
}

func (stuckStorage) Delete(context.Context, ...string) error {
	return errors.New("read-only replica")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func organizerResp() authResponse {
	return authResponse{
		User: domain.User{
			ID:        "org-1",
			FirstName: "Wanjiru",
			LastName:  "Kamau",
			Email:     "wanjiru@example.com",
			Phone:     "254700000001",
			Role:      domain.RoleOrganizer,
		},
		AccessToken: "tok-org-1",
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	s := New(storage.NewMemory(), &fakeAPI{}, discardLogger())

	assert.Equal(t, StatusUnknown, s.Container().Snapshot().Status)
	assert.Nil(t, s.Load(context.Background()))
	assert.Equal(t, StatusUnauthenticated, s.Container().Snapshot().Status)
}

func TestStore_LoginPersistsAndLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	api := &fakeAPI{resp: organizerResp()}

	s := New(mem, api, discardLogger())
	sess, err := s.Login(ctx, Credentials{Email: "wanjiru@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOrganizer, sess.Role)
	assert.Equal(t, []string{"/login"}, api.paths)

	tok, err := mem.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-org-1", tok)

	restored := New(mem, api, discardLogger())
	first := restored.Load(ctx)
	second := restored.Load(ctx)

	require.NotNil(t, first)
	assert.Equal(t, *first, *second)
	assert.Equal(t, *sess, *first)
	assert.Equal(t, StatusAuthenticated, restored.Container().Snapshot().Status)
}

func TestStore_LoginFailureKeepsUnauthenticated(t *testing.T) {
	api := &fakeAPI{err: &apiclient.APIError{
		Status:  422,
		Message: "validation failed",
		Fields:  map[string]string{"password": "is required"},
	}}
	s := New(storage.NewMemory(), api, discardLogger())
	s.Load(context.Background())

	_, err := s.Login(context.Background(), Credentials{Email: "x@y.z"})
	require.Error(t, err)

	snap := s.Container().Snapshot()
	assert.Equal(t, StatusUnauthenticated, snap.Status)
	assert.Nil(t, snap.User)
	assert.False(t, snap.Loading)
	assert.Equal(t, "validation failed", snap.Error)
	assert.Equal(t, map[string]string{"password": "is required"}, snap.FieldErrors)
}

func TestStore_FailedLoginKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	api := &fakeAPI{resp: organizerResp()}
	s := New(mem, api, discardLogger())

	sess, err := s.Login(ctx, Credentials{Email: "wanjiru@example.com"})
	require.NoError(t, err)

	api.err = &apiclient.APIError{Status: 401, Message: "invalid credentials"}
	_, err = s.Login(ctx, Credentials{Email: "someone@example.com"})
	require.Error(t, err)

	snap := s.Container().Snapshot()
	assert.Equal(t, StatusAuthenticated, snap.Status)
	require.NotNil(t, snap.User)
	assert.Equal(t, *sess, *snap.User)
	assert.Equal(t, "invalid credentials", snap.Error)

	tok, err := Tokens(mem).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-org-1", tok)
}

func TestStore_LoginWithoutToken(t *testing.T) {
	resp := organizerResp()
	resp.AccessToken = ""
	s := New(storage.NewMemory(), &fakeAPI{resp: resp}, discardLogger())

	_, err := s.Login(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Nil(t, s.Current())
}

func TestStore_RegisterAttendeeSignsIn(t *testing.T) {
	resp := organizerResp()
	resp.User.Role = domain.RoleAttendee
	s := New(storage.NewMemory(), &fakeAPI{resp: resp}, discardLogger())

	user, authed, err := s.Register(context.Background(), Registration{Email: "a@b.c"})
	require.NoError(t, err)
	assert.True(t, authed)
	assert.Equal(t, "org-1", user.ID)
	require.NotNil(t, s.Current())
	assert.Equal(t, domain.RoleAttendee, s.Current().Role)
}

func TestStore_RegisterOrganizerDoesNotSignIn(t *testing.T) {
	mem := storage.NewMemory()
	s := New(mem, &fakeAPI{resp: organizerResp()}, discardLogger())

	user, authed, err := s.Register(context.Background(), Registration{Role: domain.RoleOrganizer})
	require.NoError(t, err)
	assert.False(t, authed)
	assert.Equal(t, domain.RoleOrganizer, user.Role)
	assert.Nil(t, s.Current())

	_, err = mem.Get(context.Background(), storage.KeyAccessToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_LogoutAlwaysClears(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := New(failingStorage{Memory: mem, deleteErr: errors.New("disk full")}, &fakeAPI{resp: organizerResp()}, discardLogger())

	// Logging out before anything happened is fine.
	s.Logout(ctx)
	assert.Equal(t, StatusUnauthenticated, s.Container().Snapshot().Status)

	_, err := s.Login(ctx, Credentials{})
	require.NoError(t, err)

	s.Logout(ctx)
	s.Logout(ctx)

	assert.Nil(t, s.Current())
	assert.Equal(t, StatusUnauthenticated, s.Container().Snapshot().Status)

	tok, err := Tokens(mem).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestStore_LogoutBlanksTokenWhenDeleteFails(t *testing.T) {
	ctx := context.Background()
	st := stuckStorage{Memory: storage.NewMemory()}
	s := New(st, &fakeAPI{resp: organizerResp()}, discardLogger())

	_, err := s.Login(ctx, Credentials{})
	require.NoError(t, err)

	s.Logout(ctx)

	assert.Nil(t, s.Current())

	tok, err := Tokens(st).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	restored := New(st, &fakeAPI{}, discardLogger())
	assert.Nil(t, restored.Load(ctx))
	assert.Equal(t, StatusUnauthenticated, restored.Container().Snapshot().Status)
}

func TestStore_CorruptUserRecord(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(ctx, storage.KeyAccessToken, "tok"))
	require.NoError(t, mem.Set(ctx, storage.KeyUser, "{oops"))

	s := New(mem, &fakeAPI{}, discardLogger())
	assert.Nil(t, s.Load(ctx))
	assert.Equal(t, StatusUnauthenticated, s.Container().Snapshot().Status)
}

func TestTokens_ReadsFreshValue(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	src := Tokens(mem)

	tok, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, mem.Set(ctx, storage.KeyAccessToken, "fresh"))

	tok, err = src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}
