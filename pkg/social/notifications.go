package social

import (
	"context"
	"time"

	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// RetentionWindow is how long notifications live before the purge removes
// them.
const RetentionWindow = 24 * time.Hour

// DefaultNotificationLimit bounds the initial fetch; LoadMore raises it.
const DefaultNotificationLimit = 50

// NotificationFeed is the signed-in user's notification set. Notifications
// are created by backend triggers and RPCs in response to other users'
// actions; this client only reads, marks and purges them.
type NotificationFeed struct {
	api     *API
	session *Session
	limit   int
	scope   *reconcile.Scope[Notification]
}

// Notifications creates the feed for the session's user.
func (a *API) Notifications(session *Session) *NotificationFeed {
	f := &NotificationFeed{api: a, session: session, limit: DefaultNotificationLimit}
	f.scope = reconcile.New("notifications", f.fetch, scopeOptions[Notification](a)...)
	return f
}

// Open purges expired notifications, seeds the feed and subscribes to the
// user's notification rows.
func (f *NotificationFeed) Open(ctx context.Context) error {
	if !f.session.Valid() {
		return ErrNoSession
	}
	if err := f.PurgeExpired(ctx); err != nil {
		// Retention is best-effort on open; the feed still loads.
		f.api.logger.Warn("notification purge failed", "err", err)
	}
	if err := f.scope.Refetch(ctx); err != nil {
		return err
	}
	return f.api.watch(func(rt *realtime.Client) error {
		return f.scope.Watch(rt, TableNotifications, "user_id=eq."+f.session.UserID, nil)
	})
}

// Close tears the feed down.
func (f *NotificationFeed) Close() {
	f.scope.Close()
}

// List returns notifications newest-first.
func (f *NotificationFeed) List() []Notification {
	return f.scope.Store().Sorted(func(a, b Notification) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Degraded reports whether any of the feed's subscriptions gave up
// reconnecting; the list is then a static last-known-good snapshot.
func (f *NotificationFeed) Degraded() bool {
	for _, sub := range f.scope.Subscriptions() {
		if sub.Degraded() {
			return true
		}
	}
	return false
}

// UnreadCount returns the number of unread notifications held locally.
func (f *NotificationFeed) UnreadCount() int {
	return len(f.scope.Store().Filter(func(n Notification) bool {
		return !n.Read
	}))
}

// LoadMore raises the fetch limit and reloads.
func (f *NotificationFeed) LoadMore(ctx context.Context, limit int) error {
	if limit > f.limit {
		f.limit = limit
	}
	return f.scope.Refetch(ctx)
}

// MarkAllRead flips every local notification to read immediately and
// invokes the mark-all RPC; on failure the unread flags are restored.
func (f *NotificationFeed) MarkAllRead(ctx context.Context) *reconcile.Commit {
	unread := f.scope.Store().Filter(func(n Notification) bool { return !n.Read })
	return f.scope.Toggle(ctx,
		func() {
			for _, n := range unread {
				n.Read = true
				f.scope.Store().Upsert(n)
			}
		},
		func() {
			for _, n := range unread {
				f.scope.Store().Upsert(n)
			}
		},
		func(ctx context.Context) error {
			return f.api.backend.Rpc(ctx, "mark_all_notifications_read", map[string]any{
				"p_user_id": f.session.UserID,
			}, nil)
		},
	)
}

// MarkRead flips one notification to read.
func (f *NotificationFeed) MarkRead(ctx context.Context, id string) *reconcile.Commit {
	prev, ok := f.scope.Store().Get(id)
	return f.scope.Toggle(ctx,
		func() {
			if ok {
				prev.Read = true
				f.scope.Store().Upsert(prev)
			}
		},
		func() {
			if ok {
				prev.Read = false
				f.scope.Store().Upsert(prev)
			}
		},
		func(ctx context.Context) error {
			return f.api.backend.From(TableNotifications).
				Eq("id", id).
				Update(ctx, map[string]any{"is_read": true}, nil)
		},
	)
}

// PurgeExpired deletes the user's notifications older than the retention
// window, locally and remotely.
func (f *NotificationFeed) PurgeExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-RetentionWindow)
	for _, n := range f.scope.Store().All() {
		if n.CreatedAt.Before(cutoff) {
			f.scope.Store().Remove(n.ID)
		}
	}
	return f.api.backend.From(TableNotifications).
		Eq("user_id", f.session.UserID).
		Lt("created_at", cutoff.UTC().Format(time.RFC3339)).
		Delete(ctx)
}

func (f *NotificationFeed) fetch(ctx context.Context) ([]Notification, error) {
	var rows []Notification
	err := f.api.backend.From(TableNotifications).
		Eq("user_id", f.session.UserID).
		Order("created_at", true).
		Limit(f.limit).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	// Expired rows the backend hasn't purged yet stay out of local state.
	cutoff := time.Now().Add(-RetentionWindow)
	kept := rows[:0]
	for _, n := range rows {
		if !n.CreatedAt.Before(cutoff) {
			kept = append(kept, n)
		}
	}
	return kept, nil
}
