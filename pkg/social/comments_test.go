package social_test

import (
	"context"
	"strings"
	"testing"

	"github.com/thoughtnet/thoughtnet-go/internal/stubserver"
	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

func commentBy(userID string) social.Comment {
	return social.Comment{ID: "c-" + userID, ThoughtID: "p1", UserID: userID, Content: "x"}
}

func TestPostCommentConvergesWithoutDuplicates(t *testing.T) {
	s := newStack(t, true)
	s.seedUsers()
	ctx := context.Background()

	thread := s.api.Comments(session("u2", "lin"), "p1", "u1")
	if err := thread.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer thread.Close()

	commit := thread.Post(ctx, "nice thought")

	// The optimistic entry is in the list before the write settles.
	if got := thread.List(); len(got) != 1 || got[0].Content != "nice thought" {
		t.Fatalf("list after post = %v, want the one new comment", got)
	}

	mustWait(t, commit)

	// The insert also triggers a feed event and a refetch; whichever path
	// lands first, the list must settle at exactly one canonical row.
	waitFor(t, "canonical comment", func() bool {
		got := thread.List()
		return len(got) == 1 && !got[0].Pending && !strings.HasPrefix(got[0].ID, "local-")
	})
	if got := thread.List(); len(got) != 1 {
		t.Fatalf("converged list has %d comments, want 1", len(got))
	}
	if n := len(s.stub.Rows("thought_comments")); n != 1 {
		t.Errorf("server has %d comment rows, want 1", n)
	}
}

func TestCommentThreadsAreIsolated(t *testing.T) {
	s := newStack(t, true)
	s.seedUsers()
	s.stub.Seed("thoughts", stubserver.Row{
		"id": "p2", "user_id": "u2", "content": "second thought",
		"visibility": "public", "likes_count": 0, "comments_count": 0,
	})
	ctx := context.Background()

	first := s.api.Comments(session("u2", "lin"), "p1", "u1")
	if err := first.Open(ctx); err != nil {
		t.Fatalf("Open p1: %v", err)
	}
	defer first.Close()

	second := s.api.Comments(session("u2", "lin"), "p2", "u2")
	if err := second.Open(ctx); err != nil {
		t.Fatalf("Open p2: %v", err)
	}
	defer second.Close()

	mustWait(t, first.Post(ctx, "only for p1"))

	waitFor(t, "comment on first thread", func() bool { return len(first.List()) == 1 })
	if got := second.List(); len(got) != 0 {
		t.Errorf("comment leaked into the other thread: %v", got)
	}
}

func TestCommentAuthorIsAttached(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	thread := s.api.Comments(session("u2", "lin"), "p1", "u1")
	if err := thread.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer thread.Close()

	mustWait(t, thread.Post(ctx, "hello"))
	if err := thread.Open(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	got := thread.List()
	if len(got) != 1 {
		t.Fatalf("list has %d comments, want 1", len(got))
	}
	if got[0].Author == nil || got[0].Author.Username != "lin" {
		t.Errorf("author = %+v, want joined profile lin", got[0].Author)
	}
}

func TestDeleteCommentRestoredOnDenial(t *testing.T) {
	s := newStack(t, false)
	s.seedUsers()
	ctx := context.Background()

	thread := s.api.Comments(session("u2", "lin"), "p1", "u1")
	if err := thread.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer thread.Close()

	mustWait(t, thread.Post(ctx, "delete me"))
	waitFor(t, "comment present", func() bool { return len(thread.List()) == 1 })
	id := thread.List()[0].ID

	s.stub.SetDeny(func(method, table string) bool {
		return method == "DELETE" && table == "thought_comments"
	})

	commit := thread.Delete(ctx, id)
	if len(thread.List()) != 0 {
		t.Error("comment still listed right after optimistic delete")
	}
	if err := commit.Wait(); err == nil {
		t.Fatal("delete succeeded despite denial")
	}
	if got := thread.List(); len(got) != 1 {
		t.Fatalf("denied delete did not restore the comment, list = %v", got)
	}
	waitFor(t, "denial alert", func() bool { return s.alerts.count() > 0 })
	if got := s.alerts.last(); got != "error: You don't have permission to do that." {
		t.Errorf("alert = %q", got)
	}
}

func TestCanDelete(t *testing.T) {
	s := newStack(t, false)
	thread := s.api.Comments(session("u2", "lin"), "p1", "u1")

	mine := commentBy("u2")
	theirs := commentBy("u3")
	if !thread.CanDelete(mine) {
		t.Error("author cannot delete own comment")
	}
	if thread.CanDelete(theirs) {
		t.Error("bystander can delete someone else's comment")
	}

	owner := s.api.Comments(session("u1", "ada"), "p1", "u1")
	if !owner.CanDelete(theirs) {
		t.Error("thought owner cannot moderate the thread")
	}
}
