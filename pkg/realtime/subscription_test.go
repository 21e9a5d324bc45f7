package realtime_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thoughtnet/thoughtnet-go/internal/stubserver"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
)

func newFeed(t *testing.T) (*stubserver.Server, *realtime.Client, func()) {
	t.Helper()
	stub := stubserver.New()
	srv := httptest.NewServer(stub.Handler())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"
	client := realtime.New(wsURL, "test-key",
		realtime.WithRetry(20*time.Millisecond, 3))
	return stub, client, srv.Close
}

func waitEvent(t *testing.T, ch <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return realtime.Event{}
	}
}

func TestSubscribeDeliversMatchingEvents(t *testing.T) {
	stub, client, stop := newFeed(t)
	defer stop()

	events := make(chan realtime.Event, 8)
	sub, err := client.Subscribe("comments:p1", "thought_comments", "thought_id=eq.p1", nil,
		func(ev realtime.Event) { events <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	stub.InsertRow("thought_comments", stubserver.Row{"thought_id": "p1", "content": "hi"})

	ev := waitEvent(t, events)
	if ev.Table != "thought_comments" || ev.Type != realtime.EventInsert {
		t.Errorf("event = %+v, want thought_comments INSERT", ev)
	}
}

func TestSubscribeFiltersOtherScopes(t *testing.T) {
	stub, client, stop := newFeed(t)
	defer stop()

	events := make(chan realtime.Event, 8)
	sub, err := client.Subscribe("comments:p1", "thought_comments", "thought_id=eq.p1", nil,
		func(ev realtime.Event) { events <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	// Different thought: must not reach this scope.
	stub.InsertRow("thought_comments", stubserver.Row{"thought_id": "p2", "content": "other"})
	// Different table: must not reach this scope.
	stub.InsertRow("messages", stubserver.Row{"thought_id": "p1"})
	// Matching row arrives last; if the earlier ones leaked they'd be read
	// first.
	stub.InsertRow("thought_comments", stubserver.Row{"thought_id": "p1", "content": "mine"})

	ev := waitEvent(t, events)
	if ev.Table != "thought_comments" {
		t.Fatalf("leaked event from table %s", ev.Table)
	}
	var row map[string]any
	if err := json.Unmarshal(ev.New, &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row["thought_id"] != "p1" || row["content"] != "mine" {
		t.Errorf("got row %v, want the p1 insert", row)
	}
}

func TestEventTypeFilter(t *testing.T) {
	stub, client, stop := newFeed(t)
	defer stop()

	events := make(chan realtime.Event, 8)
	sub, err := client.Subscribe("feed", "thoughts", "",
		[]realtime.EventType{realtime.EventUpdate},
		func(ev realtime.Event) { events <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	stub.InsertRow("thoughts", stubserver.Row{"id": "p9", "likes_count": 0})
	// The like insert bumps likes_count on thoughts -> UPDATE event.
	stub.InsertRow("thought_likes", stubserver.Row{"thought_id": "p9", "user_id": "u1"})

	ev := waitEvent(t, events)
	if ev.Type != realtime.EventUpdate {
		t.Errorf("event type = %s, want UPDATE only", ev.Type)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	stub, client, stop := newFeed(t)
	defer stop()

	events := make(chan realtime.Event, 8)
	sub, err := client.Subscribe("saved", "saved_thoughts", "", nil,
		func(ev realtime.Event) { events <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	stub.InsertRow("saved_thoughts", stubserver.Row{"thought_id": "p1"})
	select {
	case ev := <-events:
		t.Errorf("received %+v after Unsubscribe", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTopicsAreUniquePerScopeInstance(t *testing.T) {
	_, client, stop := newFeed(t)
	defer stop()

	a, err := client.Subscribe("comments:p1", "thought_comments", "", nil, func(realtime.Event) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer a.Unsubscribe()
	b, err := client.Subscribe("comments:p1", "thought_comments", "", nil, func(realtime.Event) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer b.Unsubscribe()

	if a.Topic() == b.Topic() {
		t.Error("two mounts of the same scope share a channel identity")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	stub, client, stop := newFeed(t)
	defer stop()

	events := make(chan realtime.Event, 8)
	sub, err := client.Subscribe("notifications", "notifications", "user_id=eq.u1", nil,
		func(ev realtime.Event) { events <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	stub.DropSubscribers()

	// Give the backoff a cycle to re-establish, then publish.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stub.InsertRow("notifications", stubserver.Row{"user_id": "u1", "type": "like"})
		select {
		case <-events:
			if sub.Degraded() {
				t.Error("subscription marked degraded after successful reconnect")
			}
			return
		case <-time.After(50 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("no events after reconnect")
			}
		}
	}
}

func TestDegradesAfterRetryCap(t *testing.T) {
	stub, client, stop := newFeed(t)

	sub, err := client.Subscribe("notifications", "notifications", "", nil, func(realtime.Event) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	_ = stub

	// Kill the server entirely: every reconnect attempt must fail.
	stop()

	deadline := time.Now().Add(2 * time.Second)
	for !sub.Degraded() {
		if time.Now().After(deadline) {
			t.Fatal("subscription never degraded after retry cap")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
