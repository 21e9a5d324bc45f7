package social_test

import (
	"context"
	"testing"
	"time"

	"github.com/thoughtnet/thoughtnet-go/internal/stubserver"
)

func TestLikeToggleUpdatesStateAndServer(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	feed := s.api.Likes(session("u2", "lin"), []string{"p1"})
	if err := feed.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	commit := feed.Toggle(ctx, "p1")

	// The flip is synchronous: no waiting on the round trip.
	st := feed.State("p1")
	if !st.Liked || st.Count != 1 {
		t.Errorf("after toggle: liked=%v count=%d, want liked 1", st.Liked, st.Count)
	}

	mustWait(t, commit)
	if n := len(s.stub.Rows("thought_likes")); n != 1 {
		t.Errorf("server has %d like rows, want 1", n)
	}
}

func TestLikeToggleSequenceSettlesConsistently(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	feed := s.api.Likes(session("u2", "lin"), []string{"p1"})
	if err := feed.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	// like, unlike, like: local state decides direction each time.
	mustWait(t, feed.Toggle(ctx, "p1"))
	mustWait(t, feed.Toggle(ctx, "p1"))
	mustWait(t, feed.Toggle(ctx, "p1"))

	st := feed.State("p1")
	if !st.Liked || st.Count != 1 {
		t.Errorf("final state liked=%v count=%d, want liked 1", st.Liked, st.Count)
	}
	if n := len(s.stub.Rows("thought_likes")); n != 1 {
		t.Errorf("server has %d like rows, want 1", n)
	}
}

func TestLikeConflictIsBenign(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	feed := s.api.Likes(session("u2", "lin"), []string{"p1"})
	if err := feed.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	// The same like lands from another device after Open: the insert will
	// hit the unique constraint.
	s.stub.Seed("thought_likes", stubserver.Row{"thought_id": "p1", "user_id": "u2"})

	commit := feed.Toggle(ctx, "p1")
	if err := commit.Wait(); err != nil {
		t.Fatalf("conflict surfaced as error: %v", err)
	}
	if commit.RolledBack() {
		t.Error("conflict rolled the like back; desired state was already reached")
	}
	if st := feed.State("p1"); !st.Liked {
		t.Error("like flag lost after swallowed conflict")
	}
	if n := s.alerts.count(); n != 0 {
		t.Errorf("%d alerts raised for a benign conflict", n)
	}
}

func TestLikeRollsBackOnServerFailure(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	feed := s.api.Likes(session("u2", "lin"), []string{"p1"})
	if err := feed.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	s.stub.FailNext("POST", "thought_likes", 1)

	commit := feed.Toggle(ctx, "p1")
	if err := commit.Wait(); err == nil {
		t.Fatal("commit succeeded despite forced failure")
	}
	if !commit.RolledBack() {
		t.Error("failed like was not rolled back")
	}
	st := feed.State("p1")
	if st.Liked || st.Count != 0 {
		t.Errorf("state after rollback: liked=%v count=%d, want unliked 0", st.Liked, st.Count)
	}
	waitFor(t, "failure alert", func() bool { return s.alerts.count() > 0 })
	if got := s.alerts.last(); got != "error: Something went wrong. Please try again." {
		t.Errorf("alert = %q", got)
	}
}

func TestLikeNotifiesThoughtAuthor(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	feed := s.api.Likes(session("u2", "lin"), []string{"p1"})
	if err := feed.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	mustWait(t, feed.Toggle(ctx, "p1"))

	waitFor(t, "author notification", func() bool {
		for _, n := range s.stub.Rows("notifications") {
			if n["user_id"] == "u1" && n["type"] == "like" {
				return true
			}
		}
		return false
	})
}

func TestSelfLikeDoesNotNotify(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	feed := s.api.Likes(session("u1", "ada"), []string{"p1"})
	if err := feed.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	mustWait(t, feed.Toggle(ctx, "p1"))

	// Give the side effect time to run, then confirm nothing landed.
	waitFor(t, "like row", func() bool { return len(s.stub.Rows("thought_likes")) == 1 })
	time.Sleep(100 * time.Millisecond)
	if n := len(s.stub.Rows("notifications")); n != 0 {
		t.Errorf("self-like produced %d notifications", n)
	}
}
