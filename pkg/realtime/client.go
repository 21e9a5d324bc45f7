// Package realtime subscribes to the backend's change feed.
//
// Each UI scope (one open conversation, one thought's comment thread, the
// signed-in user's notification set) owns exactly one Subscription. A
// Subscription carries a channel topic that is unique per scope instance, so
// two concurrently rendered scopes over the same table never cross-talk.
//
// Events are deliberately coarse: table + filter, insert/update/delete. The
// consumer reacts by refetching the whole scope, trading redundant reads for
// guaranteed convergence.
package realtime

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thoughtnet/thoughtnet-go/pkg/metrics"
)

// Reconnect policy defaults: 1s, 2s, 4s, then degrade.
const (
	DefaultRetryBase     = 1 * time.Second
	DefaultRetryAttempts = 3
)

// Client opens change-feed subscriptions. Safe for concurrent use; each
// subscription runs on its own connection so scope teardown never disturbs
// a sibling.
type Client struct {
	url           string
	apiKey        string
	dialer        *websocket.Dialer
	logger        *slog.Logger
	metrics       *metrics.Set
	retryBase     time.Duration
	retryAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger (default slog.Default).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics attaches engine metrics. Nil is fine.
func WithMetrics(m *metrics.Set) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithDialer sets the websocket dialer (default websocket.DefaultDialer).
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithRetry sets the reconnect backoff base and attempt cap.
func WithRetry(base time.Duration, attempts int) Option {
	return func(c *Client) {
		c.retryBase = base
		c.retryAttempts = attempts
	}
}

// New creates a Client for the feed at url (a ws:// or wss:// endpoint).
func New(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:           url,
		apiKey:        apiKey,
		dialer:        websocket.DefaultDialer,
		logger:        slog.Default(),
		retryBase:     DefaultRetryBase,
		retryAttempts: DefaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "realtime")
	return c
}

// Subscribe opens a subscription for changes on table matching filter and
// dispatches each event to handler on the subscription's read goroutine.
// The topic is derived from scope plus a random suffix so repeated mounts of
// the same scope get distinct channel identities.
//
// The returned Subscription must be closed with Unsubscribe when the owning
// scope goes away.
func (c *Client) Subscribe(scope, table, filter string, events []EventType, handler func(Event)) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("realtime: subscribe %s: nil handler", table)
	}
	if len(events) == 0 {
		events = AllEvents
	}
	sub := &Subscription{
		client:  c,
		topic:   fmt.Sprintf("%s:%s", scope, uuid.NewString()),
		table:   table,
		filter:  filter,
		events:  events,
		handler: handler,
		done:    make(chan struct{}),
		logger:  c.logger.With("topic", scope, "table", table),
	}
	conn, err := sub.dial()
	if err != nil {
		return nil, err
	}
	c.metrics.SubscriptionOpened()
	go sub.run(conn)
	return sub, nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("apikey", c.apiKey)
	}
	return h
}
