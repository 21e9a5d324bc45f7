package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// LikeFeed tracks like counts and the viewer's own likes for one rendered
// set of thoughts. Toggling is purely a function of local state: no round
// trip decides the direction.
type LikeFeed struct {
	api     *API
	session *Session
	ids     []string
	scope   *reconcile.Scope[LikeState]
}

// Likes creates a like feed for the given thought ids. Call Open to seed
// state and subscribe, Close when the view unmounts.
func (a *API) Likes(session *Session, thoughtIDs []string) *LikeFeed {
	f := &LikeFeed{api: a, session: session, ids: thoughtIDs}
	f.scope = reconcile.New(
		"likes",
		f.fetch,
		scopeOptions[LikeState](a)...,
	)
	return f
}

// Open seeds the feed and subscribes to changes on thought_likes (any
// event) and on the thoughts rows themselves (count updates).
func (f *LikeFeed) Open(ctx context.Context) error {
	if !f.session.Valid() {
		return ErrNoSession
	}
	if err := f.scope.Refetch(ctx); err != nil {
		return err
	}
	inFilter := fmt.Sprintf("thought_id=in.(%s)", strings.Join(f.ids, ","))
	if err := f.api.watch(func(rt *realtime.Client) error {
		return f.scope.Watch(rt, TableLikes, inFilter, nil)
	}); err != nil {
		return err
	}
	idFilter := fmt.Sprintf("id=in.(%s)", strings.Join(f.ids, ","))
	return f.api.watch(func(rt *realtime.Client) error {
		return f.scope.Watch(rt, TableThoughts, idFilter, []realtime.EventType{realtime.EventUpdate})
	})
}

// Close tears the feed down.
func (f *LikeFeed) Close() {
	f.scope.Close()
}

// State returns the current like state for a thought. Unknown ids report
// zero likes.
func (f *LikeFeed) State(thoughtID string) LikeState {
	if s, ok := f.scope.Store().Get(thoughtID); ok {
		return s
	}
	return LikeState{ThoughtID: thoughtID}
}

// Toggle flips the viewer's like on a thought: the flag and count change
// locally before the write is issued. Unliking deletes the pair; liking
// inserts it and fires the like-notification RPC as a side effect whose
// failure never rolls back the like. A duplicate-insert conflict (double
// click racing itself) is a benign no-op.
func (f *LikeFeed) Toggle(ctx context.Context, thoughtID string) *reconcile.Commit {
	cur := f.State(thoughtID)

	if cur.Liked {
		return f.scope.Toggle(ctx,
			func() { f.set(thoughtID, cur.Count-1, false) },
			func() { f.set(thoughtID, cur.Count, true) },
			func(ctx context.Context) error {
				return f.api.backend.From(TableLikes).
					Eq("thought_id", thoughtID).
					Eq("user_id", f.session.UserID).
					Delete(ctx)
			},
		)
	}

	commit := f.scope.Toggle(ctx,
		func() { f.set(thoughtID, cur.Count+1, true) },
		func() { f.set(thoughtID, cur.Count, false) },
		func(ctx context.Context) error {
			return f.api.backend.From(TableLikes).Insert(ctx, Like{
				ThoughtID: thoughtID,
				UserID:    f.session.UserID,
			}, nil)
		},
	)
	f.scope.SideEffect(ctx, "like notification", func(ctx context.Context) error {
		return f.api.backend.Rpc(ctx, "create_like_notification_rpc", map[string]any{
			"p_thought_id": thoughtID,
			"p_liker_id":   f.session.UserID,
		}, nil)
	})
	return commit
}

func (f *LikeFeed) set(thoughtID string, count int, liked bool) {
	if count < 0 {
		count = 0
	}
	f.scope.Store().Upsert(LikeState{ThoughtID: thoughtID, Count: count, Liked: liked})
}

// fetch rebuilds like state from the thoughts' aggregate counts plus the
// viewer's rows in thought_likes.
func (f *LikeFeed) fetch(ctx context.Context) ([]LikeState, error) {
	if len(f.ids) == 0 {
		return nil, nil
	}
	var counts []struct {
		ID         string `json:"id"`
		LikesCount int    `json:"likes_count"`
	}
	err := f.api.backend.From(TableThoughts).
		Select("id,likes_count").
		In("id", f.ids).
		Get(ctx, &counts)
	if err != nil {
		return nil, err
	}

	var mine []Like
	err = f.api.backend.From(TableLikes).
		Select("thought_id").
		In("thought_id", f.ids).
		Eq("user_id", f.session.UserID).
		Get(ctx, &mine)
	if err != nil {
		return nil, err
	}
	liked := make(map[string]bool, len(mine))
	for _, l := range mine {
		liked[l.ThoughtID] = true
	}

	states := make([]LikeState, 0, len(counts))
	for _, c := range counts {
		n := c.LikesCount
		if n < 0 {
			n = 0
		}
		states = append(states, LikeState{ThoughtID: c.ID, Count: n, Liked: liked[c.ID]})
	}
	return states, nil
}
