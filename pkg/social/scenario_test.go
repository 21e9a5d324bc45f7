package social_test

import (
	"context"
	"testing"
)

// TestLikeAndCommentReachAuthorLive walks the full loop: one user reacts to
// a thought, the author's open surfaces converge without any manual
// refresh.
func TestLikeAndCommentReachAuthorLive(t *testing.T) {
	s := newStack(t, true)
	s.seedUsers()
	ctx := context.Background()

	ada := session("u1", "ada")
	lin := session("u2", "lin")

	// Ada has her notification feed and the thought's like state open.
	notifications := s.api.Notifications(ada)
	if err := notifications.Open(ctx); err != nil {
		t.Fatalf("open notifications: %v", err)
	}
	defer notifications.Close()

	adaLikes := s.api.Likes(ada, []string{"p1"})
	if err := adaLikes.Open(ctx); err != nil {
		t.Fatalf("open ada's likes: %v", err)
	}
	defer adaLikes.Close()

	// Lin likes and comments from his own session.
	linLikes := s.api.Likes(lin, []string{"p1"})
	if err := linLikes.Open(ctx); err != nil {
		t.Fatalf("open lin's likes: %v", err)
	}
	defer linLikes.Close()

	thread := s.api.Comments(lin, "p1", "u1")
	if err := thread.Open(ctx); err != nil {
		t.Fatalf("open thread: %v", err)
	}
	defer thread.Close()

	mustWait(t, linLikes.Toggle(ctx, "p1"))
	mustWait(t, thread.Post(ctx, "love this"))

	// Ada's like count converges through the change feed.
	waitFor(t, "ada's like count", func() bool {
		return adaLikes.State("p1").Count == 1
	})
	if adaLikes.State("p1").Liked {
		t.Error("lin's like shows as ada's own")
	}

	// Both notifications reach ada without a refresh.
	waitFor(t, "ada's notifications", func() bool {
		return notifications.UnreadCount() == 2
	})
	var sawLike, sawComment bool
	for _, n := range notifications.List() {
		switch string(n.Type) {
		case "like":
			sawLike = true
		case "comment":
			sawComment = true
		}
	}
	if !sawLike || !sawComment {
		t.Errorf("notification types missing: like=%v comment=%v", sawLike, sawComment)
	}
}
