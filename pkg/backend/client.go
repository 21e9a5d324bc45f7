// Package backend is the low-level client for the managed ThoughtNet
// backend: filtered row reads, row mutations, remote procedure calls.
//
// All persistence, access control and notification generation live on the
// server side; this package only moves rows and surfaces the backend's
// verdicts as typed errors. Higher layers (pkg/social, pkg/reconcile) decide
// what those verdicts mean for client state.
//
// Example:
//
//	c := backend.New("https://api.thoughtnet.app", apiKey)
//	c.SetToken(session.AccessToken)
//
//	var rows []thoughtRow
//	err := c.From("thoughts").
//	    Select("id,likes_count").
//	    In("id", ids).
//	    Get(ctx, &rows)
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds every request. The backend transport has its own
// timeouts, but an explicit client-side bound keeps pending-state UI from
// hanging indefinitely.
const DefaultTimeout = 10 * time.Second

const tracerName = "thoughtnet.backend"

// Client issues REST queries, mutations and RPCs against the backend.
// Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string

	mu    sync.RWMutex
	token string

	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout (default DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger (default slog.Default).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the backend at baseURL. The apiKey identifies the
// application; per-user authorization comes from the bearer token set with
// SetToken.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend")
	return c
}

// SetToken sets the bearer token used for subsequent requests. Called at
// sign-in; ClearToken at sign-out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Rpc invokes the named server-side procedure with the given params and
// decodes the result into dest (which may be nil when no result is wanted).
// Procedures are atomic black boxes: a single success or failure outcome.
func (c *Client) Rpc(ctx context.Context, name string, params any, dest any) error {
	op := "rpc " + name
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("backend: %s: encode params: %w", op, err)
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+name, nil, body, dest, op)
}

// do performs one HTTP exchange, traces it, and translates non-2xx
// responses into *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, dest any, op string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("backend.method", method),
		attribute.String("backend.path", path),
	))
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("backend: %s: %w", op, err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("apikey", c.apiKey)
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if dest != nil && method != http.MethodGet {
		// Ask the backend to echo the canonical row back so optimistic
		// entities can be replaced with server-assigned ids and timestamps.
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("backend: %s: %w", op, ErrTimeout)
		}
		return fmt.Errorf("backend: %s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("backend.status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, Status: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Debug("request failed", "op", op, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("backend: %s: decode response: %w", op, err)
	}
	return nil
}
