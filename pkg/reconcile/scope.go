// Package reconcile implements the optimistic-mutation and realtime-
// reconciliation engine shared by likes, comments, notifications, saved
// lists and conversations.
//
// A Scope binds one store.Store to one fetch function and, optionally, one
// or more change-feed subscriptions. User actions go through the optimistic
// operations (OptimisticInsert, Toggle, OptimisticRemove): the local effect
// is applied synchronously, the remote write runs asynchronously, and the
// store is reconciled on success or rolled back on failure. Independently,
// any matching change-feed event triggers a coalesced full refetch that
// merges authoritative rows with still-pending optimistic entries.
//
// Example:
//
//	thread := reconcile.New("comments:"+thoughtID, fetchComments,
//	    reconcile.WithSameContent[social.Comment](social.SameComment))
//	defer thread.Close()
//	thread.Watch(rt, "thought_comments", "thought_id=eq."+thoughtID, nil)
//
//	temp := social.Comment{ID: reconcile.TempID(), Body: text, Pending: true}
//	thread.OptimisticInsert(ctx, temp, func(ctx context.Context) (social.Comment, error) {
//	    return api.InsertComment(ctx, thoughtID, text)
//	})
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/metrics"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/store"
)

// tempIDPrefix keeps locally generated ids disjoint from server-assigned
// ones.
const tempIDPrefix = "local-"

// TempID returns a fresh id for an optimistic entity, drawn from a space
// the server never assigns from.
func TempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated by TempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// FetchFunc loads the authoritative rows for a scope.
type FetchFunc[T store.Entity] func(ctx context.Context) ([]T, error)

// defaultErrorMessage is what users see when a commit fails and no mapper
// supplied something more specific.
const defaultErrorMessage = "Something went wrong. Please try again."

// Scope is one instance of the engine, owned by one UI scope and torn down
// with it.
type Scope[T store.Entity] struct {
	name    string
	entries *store.Store[T]
	fetch   FetchFunc[T]

	sameContent func(a, b T) bool
	errMessage  func(error) string
	alerter     Alerter
	logger      *slog.Logger
	metrics     *metrics.Set

	pendingMu sync.Mutex
	pending   map[string]T

	ctx       context.Context
	cancel    context.CancelFunc
	refetchCh chan struct{}
	loopOnce  sync.Once

	subMu sync.Mutex
	subs  []*realtime.Subscription
}

// Option configures a Scope.
type Option[T store.Entity] func(*Scope[T])

// WithSameContent sets the content-equality heuristic used to correlate a
// pending optimistic entity with an authoritative row whose server id the
// committer hasn't reported yet (same body and author, typically). Without
// it, pending entries are only matched by id.
func WithSameContent[T store.Entity](eq func(a, b T) bool) Option[T] {
	return func(s *Scope[T]) {
		s.sameContent = eq
	}
}

// WithAlerter sets where user-visible failure notices go. Defaults to
// logging.
func WithAlerter[T store.Entity](a Alerter) Option[T] {
	return func(s *Scope[T]) {
		s.alerter = a
	}
}

// WithErrorMessage sets the mapping from a commit error to the user-facing
// message. Domain scopes use this for actionable wording, e.g. a row-level
// security denial on messages becoming "You can only message your
// connections."
func WithErrorMessage[T store.Entity](fn func(error) string) Option[T] {
	return func(s *Scope[T]) {
		s.errMessage = fn
	}
}

// WithLogger sets the logger (default slog.Default).
func WithLogger[T store.Entity](l *slog.Logger) Option[T] {
	return func(s *Scope[T]) {
		s.logger = l
	}
}

// WithMetrics attaches engine metrics. Nil is fine.
func WithMetrics[T store.Entity](m *metrics.Set) Option[T] {
	return func(s *Scope[T]) {
		s.metrics = m
	}
}

// New creates a Scope named name (used for channel identity, logging and
// metrics) over the given fetch function.
func New[T store.Entity](name string, fetch FetchFunc[T], opts ...Option[T]) *Scope[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scope[T]{
		name:      name,
		entries:   store.New[T](),
		fetch:     fetch,
		logger:    slog.Default(),
		pending:   make(map[string]T),
		ctx:       ctx,
		cancel:    cancel,
		refetchCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "reconcile", "scope", name)
	if s.alerter == nil {
		s.alerter = LogAlerter(s.logger)
	}
	return s
}

// Store exposes the scope's local state holder.
func (s *Scope[T]) Store() *store.Store[T] {
	return s.entries
}

// Name returns the scope name.
func (s *Scope[T]) Name() string {
	return s.name
}

// PendingCount returns the number of optimistic entities not yet confirmed.
func (s *Scope[T]) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// Close tears down the scope: every subscription is released and background
// work stops. Safe to call more than once.
func (s *Scope[T]) Close() {
	s.cancel()
	s.subMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Refetch loads authoritative rows and merges them with pending optimistic
// entries. A pending entry is dropped once an authoritative row matches it
// by id or by the content heuristic; the rest are re-applied on top so a
// fast-arriving feed event can't erase or duplicate a user's own
// just-posted entity.
func (s *Scope[T]) Refetch(ctx context.Context) error {
	rows, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("refetch failed", "err", err)
		return err
	}
	s.metrics.Refetch(s.name)

	s.pendingMu.Lock()
	for id, p := range s.pending {
		for _, r := range rows {
			if r.EntityID() == id || (s.sameContent != nil && s.sameContent(p, r)) {
				delete(s.pending, id)
				break
			}
		}
	}
	keep := make([]T, 0, len(s.pending))
	for _, p := range s.pending {
		keep = append(keep, p)
	}
	s.pendingMu.Unlock()

	s.entries.Replace(rows)
	for _, p := range keep {
		s.entries.Upsert(p)
	}
	return nil
}

// OptimisticInsert applies temp to the store immediately and commits it
// remotely in the background. On success the temp entity is replaced by the
// server-returned canonical one; on failure it is removed and the error is
// surfaced. A duplicate-row conflict counts as success.
func (s *Scope[T]) OptimisticInsert(ctx context.Context, temp T, commit func(ctx context.Context) (T, error)) *Commit {
	tempID := temp.EntityID()
	s.pendingMu.Lock()
	s.pending[tempID] = temp
	s.pendingMu.Unlock()
	s.entries.Upsert(temp)

	c := newCommit()
	go func() {
		canonical, err := commit(ctx)
		switch {
		case err == nil:
			s.confirm(tempID, canonical)
			s.metrics.Commit(s.name, true)
			c.settle(nil, false)
		case backend.IsConflict(err):
			// The row already exists server-side; keep the optimistic entry
			// and let the next refetch fold it into the authoritative one.
			s.metrics.ConflictSwallowed()
			s.requestRefetch()
			c.settle(nil, false)
		default:
			s.dropPending(tempID)
			s.entries.Remove(tempID)
			s.metrics.Commit(s.name, false)
			s.metrics.Rollback(s.name)
			s.surface(err)
			c.settle(err, true)
		}
	}()
	return c
}

// Toggle applies a reversible local change (a like flip, a saved flag) and
// commits it in the background. On failure revert restores the pre-action
// state; a duplicate-row conflict means the desired end state already holds
// and is treated as success.
func (s *Scope[T]) Toggle(ctx context.Context, apply, revert func(), commit func(ctx context.Context) error) *Commit {
	apply()
	c := newCommit()
	go func() {
		err := commit(ctx)
		switch {
		case err == nil:
			s.metrics.Commit(s.name, true)
			c.settle(nil, false)
		case backend.IsConflict(err):
			s.metrics.ConflictSwallowed()
			c.settle(nil, false)
		default:
			revert()
			s.metrics.Commit(s.name, false)
			s.metrics.Rollback(s.name)
			s.surface(err)
			c.settle(err, true)
		}
	}()
	return c
}

// OptimisticRemove removes the entity locally and commits the delete in the
// background, restoring the entity on failure.
func (s *Scope[T]) OptimisticRemove(ctx context.Context, id string, commit func(ctx context.Context) error) *Commit {
	return s.OptimisticRemoveAfter(ctx, id, 0, commit)
}

// OptimisticRemoveAfter is OptimisticRemove with the remote delete delayed
// by the given interval. The local effect is still synchronous; the delay
// only debounces the write, smoothing rapid save/unsave toggles. Closing
// the scope cancels a delete still in its delay window.
func (s *Scope[T]) OptimisticRemoveAfter(ctx context.Context, id string, delay time.Duration, commit func(ctx context.Context) error) *Commit {
	snapshot, existed := s.entries.Get(id)
	s.entries.Remove(id)

	c := newCommit()
	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				c.settle(s.ctx.Err(), false)
				return
			}
		}
		err := commit(ctx)
		if err != nil && !backend.IsConflict(err) {
			if existed {
				s.entries.Upsert(snapshot)
			}
			s.metrics.Commit(s.name, false)
			s.metrics.Rollback(s.name)
			s.surface(err)
			c.settle(err, true)
			return
		}
		s.metrics.Commit(s.name, true)
		c.settle(nil, false)
	}()
	return c
}

// SideEffect runs a secondary write (a notification RPC after a like or
// comment) in the background. Its failure never rolls back the primary
// action: it is logged and dropped.
func (s *Scope[T]) SideEffect(ctx context.Context, name string, fn func(ctx context.Context) error) {
	go func() {
		if err := fn(ctx); err != nil {
			s.logger.Warn("side effect failed", "effect", name, "err", err)
		}
	}()
}

// Watch subscribes the scope to the change feed for table+filter. Any
// matching event schedules a coalesced Refetch. A scope may watch several
// tables (likes watch both thought_likes and thoughts). All subscriptions
// are released by Close.
func (s *Scope[T]) Watch(rt *realtime.Client, table, filter string, events []realtime.EventType) error {
	sub, err := rt.Subscribe(s.name, table, filter, events, func(realtime.Event) {
		s.requestRefetch()
	})
	if err != nil {
		return err
	}
	s.subMu.Lock()
	closed := s.ctx.Err() != nil
	if !closed {
		s.subs = append(s.subs, sub)
	}
	s.subMu.Unlock()
	if closed {
		sub.Unsubscribe()
		return s.ctx.Err()
	}
	s.loopOnce.Do(func() {
		go s.refetchLoop()
	})
	return nil
}

// Subscriptions returns the scope's live subscriptions, for health checks.
func (s *Scope[T]) Subscriptions() []*realtime.Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return append([]*realtime.Subscription(nil), s.subs...)
}

// requestRefetch coalesces refetch triggers: any number of events while a
// refetch is queued collapse into one.
func (s *Scope[T]) requestRefetch() {
	select {
	case s.refetchCh <- struct{}{}:
	default:
	}
}

func (s *Scope[T]) refetchLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.refetchCh:
			// Errors here drive logging only; the feed will trigger again,
			// and manual Refetch remains available.
			_ = s.Refetch(s.ctx)
		}
	}
}

// confirm replaces the temp entity with the canonical server row.
func (s *Scope[T]) confirm(tempID string, canonical T) {
	s.dropPending(tempID)
	if !s.entries.Rekey(tempID, canonical) {
		// A refetch already folded the temp entry away; upserting by the
		// canonical id stays duplicate-free.
		s.entries.Upsert(canonical)
	}
}

func (s *Scope[T]) dropPending(id string) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

func (s *Scope[T]) surface(err error) {
	msg := defaultErrorMessage
	if s.errMessage != nil {
		if m := s.errMessage(err); m != "" {
			msg = m
		}
	}
	s.logger.Warn("commit failed", "err", err)
	s.alerter.Alert(LevelError, msg)
}
