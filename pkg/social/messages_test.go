package social_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/thoughtnet/thoughtnet-go/internal/stubserver"
)

// seedHistory inserts n alternating messages between u1 and u2, oldest
// first, one minute apart.
func seedHistory(s *stack, n int) {
	base := time.Now().Add(-time.Duration(n+1) * time.Minute)
	for i := 0; i < n; i++ {
		sender, receiver := "u1", "u2"
		if i%2 == 1 {
			sender, receiver = "u2", "u1"
		}
		s.stub.Seed("messages", stubserver.Row{
			"id":          fmt.Sprintf("m-%03d", i),
			"sender_id":   sender,
			"receiver_id": receiver,
			"content":     fmt.Sprintf("message %d", i),
			"is_read":     false,
			"created_at":  base.Add(time.Duration(i) * time.Minute).UTC().Format(time.RFC3339Nano),
		})
	}
}

func TestConversationPagesOldestFirst(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	seedHistory(s, 55)
	ctx := context.Background()

	conv := s.api.Conversation(session("u1", "ada"), "u2")
	if err := conv.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()

	got := conv.List()
	if len(got) != 50 {
		t.Fatalf("initial page has %d messages, want 50", len(got))
	}
	if !conv.HasMore() {
		t.Fatal("HasMore = false with 5 older messages remaining")
	}

	if err := conv.LoadOlder(ctx); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	got = conv.List()
	if len(got) != 55 {
		t.Fatalf("after LoadOlder list has %d messages, want 55", len(got))
	}
	// Prepending the older page must not scramble creation-time order.
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("list out of order at %d: %s after %s", i, got[i].ID, got[i-1].ID)
		}
	}
	if got[0].ID != "m-000" {
		t.Errorf("oldest message = %s, want m-000", got[0].ID)
	}
}

func TestSendAppearsImmediately(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	conv := s.api.Conversation(session("u1", "ada"), "u2")
	if err := conv.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()

	commit := conv.Send(ctx, "hey lin", "", "")
	got := conv.List()
	if len(got) != 1 || got[0].Content != "hey lin" {
		t.Fatalf("list after send = %v, want the new message", got)
	}

	mustWait(t, commit)
	rows := s.stub.Rows("messages")
	if len(rows) != 1 || rows[0]["receiver_id"] != "u2" {
		t.Errorf("server rows = %v, want one message to u2", rows)
	}
}

func TestSendDeniedSurfacesConnectionWording(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	conv := s.api.Conversation(session("u1", "ada"), "u2")
	if err := conv.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()

	// Not connected: the row policy refuses the insert.
	s.stub.SetDeny(func(method, table string) bool {
		return method == "POST" && table == "messages"
	})

	commit := conv.Send(ctx, "hey stranger", "", "")
	if err := commit.Wait(); err == nil {
		t.Fatal("send succeeded despite denial")
	}
	if !commit.RolledBack() {
		t.Error("denied send was not rolled back")
	}
	if got := conv.List(); len(got) != 0 {
		t.Errorf("denied message still listed: %v", got)
	}
	waitFor(t, "denial alert", func() bool { return s.alerts.count() > 0 })
	if got := s.alerts.last(); got != "error: You can only message your connections." {
		t.Errorf("alert = %q", got)
	}
}

func TestIncomingMessageArrivesLive(t *testing.T) {
	s := newStack(t, true)
	s.seedUsers()
	ctx := context.Background()

	conv := s.api.Conversation(session("u1", "ada"), "u2")
	if err := conv.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()

	s.stub.InsertRow("messages", stubserver.Row{
		"sender_id":   "u2",
		"receiver_id": "u1",
		"content":     "are you there?",
		"is_read":     false,
	})

	waitFor(t, "incoming message", func() bool {
		got := conv.List()
		return len(got) == 1 && got[0].Content == "are you there?"
	})
}

func TestMarkReadFlagsOtherPartysMessages(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	seedHistory(s, 4)
	ctx := context.Background()

	conv := s.api.Conversation(session("u1", "ada"), "u2")
	if err := conv.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conv.Close()

	if err := conv.MarkRead(ctx); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	for _, m := range conv.List() {
		if m.SenderID == "u2" && !m.Read {
			t.Errorf("message %s from u2 still unread locally", m.ID)
		}
	}
	for _, row := range s.stub.Rows("messages") {
		if row["sender_id"] == "u2" && row["is_read"] != true {
			t.Errorf("server row %v from u2 still unread", row["id"])
		}
	}
}
