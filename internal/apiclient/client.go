package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/ticksy/internal/monitoring"
)

// TokenSource yields the bearer token for a request. It is consulted on
// every call so a login or logout takes effect on the next request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type idemKey struct{}

// WithIdempotencyKey returns a context whose requests carry key in the
// Idempotency-Key header, so the server runs a retried request only once.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idemKey{}, key)
}

type anonKey struct{}

// Anonymous returns a context whose requests are sent without a bearer
// token, as credential exchanges are.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonKey{}, true)
}

type Config struct {
	BaseURL string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithUnauthorizedHook registers fn to run when an authenticated request is
// answered with 401.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

type Client struct {
	baseURL        string
	hc             *http.Client
	tokens         TokenSource
	logger         *slog.Logger
	onUnauthorized func(ctx context.Context)
}

func New(cfg Config, tokens TokenSource, logger *slog.Logger, opts ...Option) (*Client, error) {
	const op = "apiclient.New"

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, cfg.BaseURL)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		hc:      &http.Client{},
		tokens:  tokens,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

// Form is a multipart payload with plain fields and an optional file.
type Form struct {
	Fields map[string]string
	File   *FilePart
}

type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

func (c *Client) PostMultipart(ctx context.Context, path string, form Form, out any) error {
	return c.doMultipart(ctx, http.MethodPost, path, form, out)
}

func (c *Client) PutMultipart(ctx context.Context, path string, form Form, out any) error {
	return c.doMultipart(ctx, http.MethodPut, path, form, out)
}

// Blob is a raw response body, used for file exports.
type Blob struct {
	Data        []byte
	ContentType string
}

func (c *Client) Download(ctx context.Context, path string) (*Blob, error) {
	body, header, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	return &Blob{Data: body, ContentType: header.Get("Content-Type")}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	respBody, _, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	return decode(respBody, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, form Form, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range form.Fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("apiclient: encode form field %s: %w", k, err)
		}
	}

	if form.File != nil && form.File.Content != nil {
		part, err := w.CreateFormFile(form.File.Field, form.File.Filename)
		if err != nil {
			return fmt.Errorf("apiclient: encode form file: %w", err)
		}
		if _, err := io.Copy(part, form.File.Content); err != nil {
			return fmt.Errorf("apiclient: encode form file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("apiclient: encode form: %w", err)
	}

	respBody, _, err := c.do(ctx, method, path, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}

	return decode(respBody, out)
}

// do performs exactly one round-trip. Non-2xx responses and transport
// failures are both returned as *APIError.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body io.Reader,
	contentType string,
) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, networkError(err)
	}

	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if key, ok := ctx.Value(idemKey{}).(string); ok && key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	var token string
	if anon, _ := ctx.Value(anonKey{}).(bool); c.tokens != nil && !anon {
		token, err = c.tokens.Token(ctx)
		if err != nil {
			c.logger.Warn("token lookup failed", "error", err, "request_id", reqID)
			token = ""
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		monitoring.ObserveRequest(method, 0, time.Since(start))
		c.logger.Debug("api request failed",
			"method", method, "path", path, "request_id", reqID, "error", err)
		return nil, nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	took := time.Since(start)
	monitoring.ObserveRequest(method, resp.StatusCode, took)

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"latency", took,
	)

	if err != nil {
		return nil, nil, networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusUnauthorized && token != "" && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, nil, apiErr
	}

	return respBody, resp.Header, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Message: "invalid response: " + err.Error()}
	}

	return nil
}
