package social

import (
	"context"
	"time"

	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// UnsaveDelay debounces the remote delete behind rapid save/unsave
// clicking. The local flag always flips synchronously; only the write
// waits.
const UnsaveDelay = 300 * time.Millisecond

// SavedList is the viewer's saved-thoughts collection.
type SavedList struct {
	api     *API
	session *Session
	scope   *reconcile.Scope[SavedThought]
}

// Saved creates the saved list for the session's user.
func (a *API) Saved(session *Session) *SavedList {
	l := &SavedList{api: a, session: session}
	l.scope = reconcile.New("saved", l.fetch, scopeOptions[SavedThought](a)...)
	return l
}

// Open seeds the list and subscribes to the user's saved rows.
func (l *SavedList) Open(ctx context.Context) error {
	if !l.session.Valid() {
		return ErrNoSession
	}
	if err := l.scope.Refetch(ctx); err != nil {
		return err
	}
	return l.api.watch(func(rt *realtime.Client) error {
		return l.scope.Watch(rt, TableSaved, "user_id=eq."+l.session.UserID, nil)
	})
}

// Close tears the list down.
func (l *SavedList) Close() {
	l.scope.Close()
}

// IsSaved reports whether the viewer has saved the thought.
func (l *SavedList) IsSaved(thoughtID string) bool {
	return l.scope.Store().Has(thoughtID)
}

// ThoughtIDs returns the saved thought ids, newest first.
func (l *SavedList) ThoughtIDs() []string {
	rows := l.scope.Store().Sorted(func(a, b SavedThought) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ThoughtID
	}
	return ids
}

// Save marks the thought saved immediately and commits the insert. A
// conflict (already saved) is a no-op.
func (l *SavedList) Save(ctx context.Context, thoughtID string) *reconcile.Commit {
	temp := SavedThought{
		ID:        reconcile.TempID(),
		ThoughtID: thoughtID,
		UserID:    l.session.UserID,
		CreatedAt: time.Now(),
		Pending:   true,
	}
	return l.scope.OptimisticInsert(ctx, temp, func(ctx context.Context) (SavedThought, error) {
		var rows []SavedThought
		err := l.api.backend.From(TableSaved).Insert(ctx, map[string]any{
			"thought_id": thoughtID,
			"user_id":    l.session.UserID,
		}, &rows)
		if err != nil {
			return SavedThought{}, err
		}
		if len(rows) == 0 {
			return temp, nil
		}
		return rows[0], nil
	})
}

// Unsave clears the flag immediately; the remote delete runs after the
// debounce interval and the row is restored if it fails.
func (l *SavedList) Unsave(ctx context.Context, thoughtID string) *reconcile.Commit {
	return l.scope.OptimisticRemoveAfter(ctx, thoughtID, UnsaveDelay, func(ctx context.Context) error {
		return l.api.backend.From(TableSaved).
			Eq("thought_id", thoughtID).
			Eq("user_id", l.session.UserID).
			Delete(ctx)
	})
}

func (l *SavedList) fetch(ctx context.Context) ([]SavedThought, error) {
	var rows []SavedThought
	err := l.api.backend.From(TableSaved).
		Eq("user_id", l.session.UserID).
		Order("created_at", true).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
