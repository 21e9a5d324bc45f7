package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSubscriptionClosed is returned by dial attempts after Unsubscribe.
var ErrSubscriptionClosed = errors.New("realtime: subscription closed")

// Subscription is one live change-feed channel. It owns a websocket
// connection and a read goroutine; Unsubscribe tears both down.
type Subscription struct {
	client  *Client
	topic   string
	table   string
	filter  string
	events  []EventType
	handler func(Event)
	logger  *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   bool
	done     chan struct{}
	degraded atomic.Bool
}

// Topic returns the channel identity, unique per scope instance.
func (s *Subscription) Topic() string {
	return s.topic
}

// Degraded reports whether the subscription has exhausted its reconnect
// attempts and stopped delivering events. The owning scope keeps its
// last-known-good state; manual refetch still works.
func (s *Subscription) Degraded() bool {
	return s.degraded.Load()
}

// Unsubscribe closes the channel and releases the connection. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	s.client.metrics.SubscriptionClosed()
	s.logger.Debug("unsubscribed")
}

// dial connects and sends the join frame.
func (s *Subscription) dial() (*websocket.Conn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriptionClosed
	}
	s.mu.Unlock()

	conn, _, err := s.client.dialer.Dial(s.client.url, s.client.header())
	if err != nil {
		return nil, fmt.Errorf("realtime: dial %s: %w", s.table, err)
	}
	join := clientFrame{
		Action: "subscribe",
		Topic:  s.topic,
		Table:  s.table,
		Filter: s.filter,
		Events: s.events,
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime: join %s: %w", s.table, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil, ErrSubscriptionClosed
	}
	s.conn = conn
	s.mu.Unlock()
	return conn, nil
}

// run reads frames until the connection drops, then reconnects with
// exponential backoff up to the client's attempt cap.
func (s *Subscription) run(conn *websocket.Conn) {
	for {
		err := s.readLoop(conn)
		if err == nil || s.isClosed() {
			return
		}
		s.logger.Warn("subscription transport error", "err", err)

		var reconnected bool
		conn, reconnected = s.reconnect()
		if !reconnected {
			return
		}
	}
}

func (s *Subscription) readLoop(conn *websocket.Conn) error {
	for {
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		switch frame.Type {
		case "heartbeat":
			// keepalive only
		case "error":
			return fmt.Errorf("realtime: server error: %s", frame.Error)
		case "change":
			if frame.Event == nil {
				continue
			}
			s.client.metrics.Event(frame.Event.Table)
			s.handler(*frame.Event)
		}
	}
}

// reconnect retries the dial with 1s, 2s, 4s... delays. Beyond the cap the
// subscription degrades to a static snapshot rather than crashing the scope.
func (s *Subscription) reconnect() (*websocket.Conn, bool) {
	delay := s.client.retryBase
	for attempt := 1; attempt <= s.client.retryAttempts; attempt++ {
		select {
		case <-s.done:
			return nil, false
		case <-time.After(delay):
		}
		s.client.metrics.Retry()
		conn, err := s.dial()
		if err == nil {
			s.logger.Debug("subscription reconnected", "attempt", attempt)
			return conn, true
		}
		if errors.Is(err, ErrSubscriptionClosed) {
			return nil, false
		}
		s.logger.Warn("reconnect failed", "attempt", attempt, "err", err)
		delay *= 2
	}
	s.degraded.Store(true)
	s.client.metrics.RetryExhausted()
	s.logger.Warn("subscription degraded, realtime updates stopped")
	return nil, false
}

func (s *Subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
