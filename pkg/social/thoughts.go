package social

import (
	"context"
	"time"

	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// DefaultFeedLimit bounds the initial feed fetch.
const DefaultFeedLimit = 50

// FeedFilter narrows the thought feed.
type FeedFilter struct {
	// Visibility restricts to one visibility level; empty means all the
	// viewer can see (the server's row policies decide that).
	Visibility Visibility

	// CommunityID restricts to one community's thoughts.
	CommunityID string

	// AuthorID restricts to one author (profile pages).
	AuthorID string
}

// ThoughtFeed is one rendered list of thoughts: the home feed, a community
// feed or a profile's posts.
type ThoughtFeed struct {
	api     *API
	session *Session
	filter  FeedFilter
	limit   int
	scope   *reconcile.Scope[Thought]
}

// Feed creates a thought feed with the given filter.
func (a *API) Feed(session *Session, filter FeedFilter) *ThoughtFeed {
	f := &ThoughtFeed{api: a, session: session, filter: filter, limit: DefaultFeedLimit}
	opts := append(
		scopeOptions[Thought](a),
		reconcile.WithSameContent[Thought](func(x, y Thought) bool {
			return x.UserID == y.UserID && x.Content == y.Content
		}),
	)
	f.scope = reconcile.New("feed", f.fetch, opts...)
	return f
}

// Open seeds the feed and subscribes to thought inserts and deletes.
// Like-count churn is left to per-card LikeFeed scopes; reloading the whole
// feed for every like would defeat the point of the aggregate columns.
func (f *ThoughtFeed) Open(ctx context.Context) error {
	if !f.session.Valid() {
		return ErrNoSession
	}
	if err := f.scope.Refetch(ctx); err != nil {
		return err
	}
	filter := ""
	if f.filter.CommunityID != "" {
		filter = "community_id=eq." + f.filter.CommunityID
	} else if f.filter.AuthorID != "" {
		filter = "user_id=eq." + f.filter.AuthorID
	}
	return f.api.watch(func(rt *realtime.Client) error {
		return f.scope.Watch(rt, TableThoughts, filter,
			[]realtime.EventType{realtime.EventInsert, realtime.EventDelete})
	})
}

// Close tears the feed down.
func (f *ThoughtFeed) Close() {
	f.scope.Close()
}

// List returns the feed newest-first, pending entries included.
func (f *ThoughtFeed) List() []Thought {
	return f.scope.Store().Sorted(func(a, b Thought) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// ThoughtIDs returns the rendered ids, in feed order, for wiring a
// LikeFeed.
func (f *ThoughtFeed) ThoughtIDs() []string {
	list := f.List()
	ids := make([]string, len(list))
	for i, t := range list {
		ids[i] = t.ID
	}
	return ids
}

// LoadMore raises the fetch limit and reloads.
func (f *ThoughtFeed) LoadMore(ctx context.Context, limit int) error {
	if limit > f.limit {
		f.limit = limit
	}
	return f.scope.Refetch(ctx)
}

// Compose posts a new thought optimistically. mediaURL comes from a prior
// media upload; communityID and parentID may be empty.
func (f *ThoughtFeed) Compose(ctx context.Context, content, mediaURL string, visibility Visibility, communityID, parentID string) *reconcile.Commit {
	if visibility == "" {
		visibility = VisibilityPublic
	}
	temp := Thought{
		ID:          reconcile.TempID(),
		UserID:      f.session.UserID,
		Content:     content,
		MediaURL:    mediaURL,
		Visibility:  visibility,
		CommunityID: communityID,
		ParentID:    parentID,
		CreatedAt:   time.Now(),
		Author: &Profile{
			ID:       f.session.UserID,
			Username: f.session.Username,
		},
		Pending: true,
	}

	commit := f.scope.OptimisticInsert(ctx, temp, func(ctx context.Context) (Thought, error) {
		row := map[string]any{
			"user_id":    f.session.UserID,
			"content":    content,
			"visibility": visibility,
		}
		if mediaURL != "" {
			row["media_url"] = mediaURL
		}
		if communityID != "" {
			row["community_id"] = communityID
		}
		if parentID != "" {
			row["parent_id"] = parentID
		}
		var rows []Thought
		if err := f.api.backend.From(TableThoughts).Insert(ctx, row, &rows); err != nil {
			return Thought{}, err
		}
		if len(rows) == 0 {
			return temp.Normalize(), nil
		}
		return rows[0].Normalize(), nil
	})

	// Mention notifications are generated server-side from the inserted
	// row; the client only reports who was mentioned.
	if mentions := MentionedUsernames(content); len(mentions) > 0 {
		f.scope.SideEffect(ctx, "mention notifications", func(ctx context.Context) error {
			return f.api.backend.Rpc(ctx, "create_mention_notifications_rpc", map[string]any{
				"p_author_id": f.session.UserID,
				"p_usernames": mentions,
			}, nil)
		})
	}
	return commit
}

// Delete removes the session user's own thought, restoring it on refusal.
func (f *ThoughtFeed) Delete(ctx context.Context, thoughtID string) *reconcile.Commit {
	return f.scope.OptimisticRemove(ctx, thoughtID, func(ctx context.Context) error {
		return f.api.backend.From(TableThoughts).
			Eq("id", thoughtID).
			Delete(ctx)
	})
}

func (f *ThoughtFeed) fetch(ctx context.Context) ([]Thought, error) {
	q := f.api.backend.From(TableThoughts).
		Select("*,author:profiles(id,username,display_name,avatar_url)")
	if f.filter.Visibility != "" {
		q = q.Eq("visibility", string(f.filter.Visibility))
	}
	if f.filter.CommunityID != "" {
		q = q.Eq("community_id", f.filter.CommunityID)
	}
	if f.filter.AuthorID != "" {
		q = q.Eq("user_id", f.filter.AuthorID)
	}
	var rows []Thought
	err := q.Order("created_at", true).Limit(f.limit).Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = rows[i].Normalize()
	}
	return rows, nil
}
