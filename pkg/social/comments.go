package social

import (
	"context"
	"time"

	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// CommentThread is the comment list under one thought. Each rendered
// thought owns its own thread; two open threads never share state, only
// the backend feed.
type CommentThread struct {
	api       *API
	session   *Session
	thoughtID string
	ownerID   string
	scope     *reconcile.Scope[Comment]
}

// Comments creates the thread for a thought. ownerID is the thought
// author's id, used for the owner-may-delete affordance (the server
// enforces the actual rule).
func (a *API) Comments(session *Session, thoughtID, ownerID string) *CommentThread {
	t := &CommentThread{api: a, session: session, thoughtID: thoughtID, ownerID: ownerID}
	opts := append(
		scopeOptions[Comment](a),
		reconcile.WithSameContent[Comment](SameComment),
	)
	t.scope = reconcile.New("comments:"+thoughtID, t.fetch, opts...)
	return t
}

// Open seeds the thread and subscribes to its slice of thought_comments.
func (t *CommentThread) Open(ctx context.Context) error {
	if !t.session.Valid() {
		return ErrNoSession
	}
	if err := t.scope.Refetch(ctx); err != nil {
		return err
	}
	return t.api.watch(func(rt *realtime.Client) error {
		return t.scope.Watch(rt, TableComments, "thought_id=eq."+t.thoughtID, nil)
	})
}

// Close tears the thread down.
func (t *CommentThread) Close() {
	t.scope.Close()
}

// List returns the thread in creation-time order, pending entries
// included.
func (t *CommentThread) List() []Comment {
	return t.scope.Store().Sorted(func(a, b Comment) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// Post appends an optimistic comment (temp id, pending flag) and commits
// the insert in the background. The server-returned row replaces the temp
// entry; a racing feed event is deduped by author+body. The comment
// notification to the thought's author is fire-and-forget.
func (t *CommentThread) Post(ctx context.Context, content string) *reconcile.Commit {
	temp := Comment{
		ID:        reconcile.TempID(),
		ThoughtID: t.thoughtID,
		UserID:    t.session.UserID,
		Content:   content,
		CreatedAt: time.Now(),
		Author: &Profile{
			ID:       t.session.UserID,
			Username: t.session.Username,
		},
		Pending: true,
	}

	commit := t.scope.OptimisticInsert(ctx, temp, func(ctx context.Context) (Comment, error) {
		var rows []Comment
		err := t.api.backend.From(TableComments).Insert(ctx, map[string]any{
			"thought_id": t.thoughtID,
			"user_id":    t.session.UserID,
			"content":    content,
		}, &rows)
		if err != nil {
			return Comment{}, err
		}
		if len(rows) == 0 {
			return temp, nil
		}
		return rows[0].Normalize(), nil
	})

	t.scope.SideEffect(ctx, "comment notification", func(ctx context.Context) error {
		return t.api.backend.Rpc(ctx, "create_comment_notification_rpc", map[string]any{
			"p_thought_id":      t.thoughtID,
			"p_commenter_id":    t.session.UserID,
			"p_comment_content": content,
		}, nil)
	})
	return commit
}

// CanDelete reports whether the session user may delete a comment: its
// author, or the thread's thought owner.
func (t *CommentThread) CanDelete(c Comment) bool {
	return c.UserID == t.session.UserID || t.ownerID == t.session.UserID
}

// Delete hard-removes a comment, restoring it if the server refuses.
func (t *CommentThread) Delete(ctx context.Context, commentID string) *reconcile.Commit {
	return t.scope.OptimisticRemove(ctx, commentID, func(ctx context.Context) error {
		return t.api.backend.From(TableComments).
			Eq("id", commentID).
			Delete(ctx)
	})
}

func (t *CommentThread) fetch(ctx context.Context) ([]Comment, error) {
	var rows []Comment
	err := t.api.backend.From(TableComments).
		Select("*,author:profiles(id,username,display_name,avatar_url)").
		Eq("thought_id", t.thoughtID).
		Order("created_at", false).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = rows[i].Normalize()
	}
	return rows, nil
}
