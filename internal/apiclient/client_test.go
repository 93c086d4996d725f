package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, tokens TokenSource, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/"}, tokens, nil, opts...)
	require.NoError(t, err)

	return c
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "/api"}, nil, nil)
	assert.Error(t, err)
}

func TestClient_ReadsTokenOnEveryCall(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`[]`))
	}, nil)

	token := ""
	c.tokens = TokenFunc(func(context.Context) (string, error) { return token, nil })

	require.NoError(t, c.Get(context.Background(), "/events", nil))
	token = "abc"
	require.NoError(t, c.Get(context.Background(), "/events", nil))
	token = "def"
	require.NoError(t, c.Get(context.Background(), "/events", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Bearer abc", "Bearer def"}, seen)
}

func TestClient_PostDecodesJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "a@b.c", in["email"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"42"}`))
	}, nil)

	var out struct {
		ID string `json:"id"`
	}
	err := c.Post(context.Background(), "/signup", map[string]string{"email": "a@b.c"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID)
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		fields  map[string]string
	}{
		{"message field", 400, `{"message":"bad input"}`, "bad input", nil},
		{"error field", 409, `{"error":"event conflict"}`, "event conflict", nil},
		{
			"validation errors", 422,
			`{"message":"validation failed","errors":{"email":["is taken"],"phone":"required"}}`,
			"validation failed",
			map[string]string{"email": "is taken", "phone": "required"},
		},
		{
			"list of errors keeps the message", 400,
			`{"message":"Email already registered","errors":["email taken"]}`,
			"Email already registered",
			nil,
		},
		{"list of errors without message", 400, `{"errors":["email taken"]}`, "email taken", nil},
		{"no body", 500, ``, "request failed with status 500", nil},
		{"html body", 502, `<html>bad gateway</html>`, "request failed with status 502", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, nil)

			err := c.Get(context.Background(), "/x", nil)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.fields, apiErr.Fields)
		})
	}
}

func TestClient_NotFoundSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)

	err := c.Get(context.Background(), "/orders/nope", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url}, nil, nil)
	require.NoError(t, err)

	err = c.Get(context.Background(), "/events", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
	assert.True(t, strings.HasPrefix(apiErr.Message, "network error"))
}

func TestClient_UnauthorizedHookOnlyWithToken(t *testing.T) {
	var calls atomic.Int32
	hook := WithUnauthorizedHook(func(context.Context) { calls.Add(1) })

	token := ""
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid credentials"}`))
	}, TokenFunc(func(context.Context) (string, error) { return token, nil }), hook)

	err := c.Post(context.Background(), "/login", map[string]string{}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(0), calls.Load())

	token = "expired"
	_ = c.Get(context.Background(), "/profile/me", nil)
	assert.Equal(t, int32(1), calls.Load())

	// Credential exchanges go out without the stored token.
	_ = c.Post(Anonymous(context.Background()), "/login", map[string]string{}, nil)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Jazz night", r.FormValue("title"))

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "poster.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(b))

		w.Write([]byte(`{"ok":true}`))
	}, nil)

	form := Form{
		Fields: map[string]string{"title": "Jazz night"},
		File: &FilePart{
			Field:    "image",
			Filename: "poster.png",
			Content:  strings.NewReader("png-bytes"),
		},
	}

	var out map[string]bool
	require.NoError(t, c.PutMultipart(context.Background(), "/events/1", form, &out))
	assert.True(t, out["ok"])
}

func TestClient_Download(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("id,name\n1,Ann\n"))
	}, nil)

	blob, err := c.Download(context.Background(), "/events/1/attendees/export?format=csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", blob.ContentType)
	assert.Equal(t, "id,name\n1,Ann\n", string(blob.Data))
}

func TestClient_IdempotencyKey(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
	}, nil)

	require.NoError(t, c.Post(WithIdempotencyKey(context.Background(), "k-1"), "/events/1/checkout", struct{}{}, nil))
	require.NoError(t, c.Post(context.Background(), "/events/1/checkout", struct{}{}, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"k-1", ""}, got)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(&APIError{Message: "boom"}))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
