package social_test

import (
	"context"
	"testing"

	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

func TestConnectionRequestAcceptFlow(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	mine := s.api.Connections(session("u2", "lin"))
	if err := mine.Open(ctx); err != nil {
		t.Fatalf("Open u2: %v", err)
	}
	defer mine.Close()

	commit := mine.Request(ctx, "u1")
	if got := mine.With("u1"); got != social.RelationshipOutgoing {
		t.Errorf("With(u1) right after request = %s, want outgoing", got)
	}
	mustWait(t, commit)

	// The addressee sees it as incoming and unviewed.
	theirs := s.api.Connections(session("u1", "ada"))
	if err := theirs.Open(ctx); err != nil {
		t.Fatalf("Open u1: %v", err)
	}
	defer theirs.Close()

	if got := theirs.With("u2"); got != social.RelationshipIncoming {
		t.Fatalf("With(u2) = %s, want incoming", got)
	}
	incoming := theirs.PendingIncoming()
	if len(incoming) != 1 {
		t.Fatalf("PendingIncoming has %d entries, want 1", len(incoming))
	}
	if n := theirs.UnviewedCount(); n != 1 {
		t.Errorf("UnviewedCount = %d, want 1", n)
	}

	mustWait(t, theirs.Accept(ctx, incoming[0].ID))
	if got := theirs.With("u2"); got != social.RelationshipAccepted {
		t.Errorf("With(u2) after accept = %s, want accepted", got)
	}
	if got := theirs.Connected(); len(got) != 1 || got[0] != "u2" {
		t.Errorf("Connected = %v, want [u2]", got)
	}

	// The requester converges after a refetch.
	if err := mine.Open(ctx); err != nil {
		t.Fatalf("reopen u2: %v", err)
	}
	if got := mine.With("u1"); got != social.RelationshipAccepted {
		t.Errorf("requester sees %s after accept, want accepted", got)
	}

	waitFor(t, "connection notification", func() bool {
		for _, n := range s.stub.Rows("notifications") {
			if n["user_id"] == "u1" && n["type"] == "connection" {
				return true
			}
		}
		return false
	})
}

func TestDeclineRestoresOnFailure(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	mine := s.api.Connections(session("u2", "lin"))
	if err := mine.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mine.Close()
	mustWait(t, mine.Request(ctx, "u1"))

	theirs := s.api.Connections(session("u1", "ada"))
	if err := theirs.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer theirs.Close()
	id := theirs.PendingIncoming()[0].ID

	s.stub.FailNext("DELETE", "connections", 1)

	commit := theirs.Decline(ctx, id)
	if len(theirs.PendingIncoming()) != 0 {
		t.Error("request still listed right after optimistic decline")
	}
	if err := commit.Wait(); err == nil {
		t.Fatal("decline succeeded despite forced failure")
	}
	if len(theirs.PendingIncoming()) != 1 {
		t.Error("failed decline did not restore the request")
	}
}

func TestDuplicateRequestConflictIsBenign(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	mine := s.api.Connections(session("u2", "lin"))
	if err := mine.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mine.Close()

	mustWait(t, mine.Request(ctx, "u1"))
	// Double-submit: the unique pair constraint rejects the second insert,
	// which the engine treats as already-done.
	if err := mine.Request(ctx, "u1").Wait(); err != nil {
		t.Fatalf("duplicate request surfaced as error: %v", err)
	}
	if got := mine.With("u1"); got != social.RelationshipOutgoing {
		t.Errorf("With(u1) = %s, want outgoing", got)
	}
}

func TestMarkViewedClearsBadge(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	mine := s.api.Connections(session("u2", "lin"))
	if err := mine.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mine.Close()
	mustWait(t, mine.Request(ctx, "u1"))

	theirs := s.api.Connections(session("u1", "ada"))
	if err := theirs.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer theirs.Close()

	if err := theirs.MarkViewed(ctx); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if n := theirs.UnviewedCount(); n != 0 {
		t.Errorf("UnviewedCount after MarkViewed = %d, want 0", n)
	}
	// Still pending: viewing is not answering.
	if len(theirs.PendingIncoming()) != 1 {
		t.Error("MarkViewed removed the pending request")
	}
}
