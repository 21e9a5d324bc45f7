package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// DefaultMessagePage is the batch size for conversation history.
const DefaultMessagePage = 50

// Conversation is the message history between the session user and one
// other user. Reads and writes are gated server-side on the pair having an
// accepted connection; a denial surfaces as actionable wording, not a
// generic failure.
type Conversation struct {
	api     *API
	session *Session
	otherID string
	scope   *reconcile.Scope[Message]

	// pagination watermark: the oldest creation time loaded so far
	oldest time.Time
	more   bool
}

// Conversation creates the scope for messages with otherID. Switching
// conversations means closing this one and opening another; subscriptions
// never carry across.
func (a *API) Conversation(session *Session, otherID string) *Conversation {
	c := &Conversation{api: a, session: session, otherID: otherID}
	opts := append(
		scopeOptions[Message](a),
		reconcile.WithSameContent[Message](SameMessage),
		reconcile.WithErrorMessage[Message](messageUserError),
	)
	c.scope = reconcile.New("messages:"+otherID, c.fetch, opts...)
	return c
}

// messageUserError gives the connection-gate denial its specific wording.
func messageUserError(err error) string {
	if errors.Is(err, backend.ErrPermissionDenied) {
		return "You can only message your connections."
	}
	return userMessage(err)
}

// Open seeds the conversation and subscribes to both directions of the
// pair's messages.
func (c *Conversation) Open(ctx context.Context) error {
	if !c.session.Valid() {
		return ErrNoSession
	}
	if err := c.scope.Refetch(ctx); err != nil {
		return err
	}
	if err := c.api.watch(func(rt *realtime.Client) error {
		return c.scope.Watch(rt, TableMessages, "receiver_id=eq."+c.session.UserID, nil)
	}); err != nil {
		return err
	}
	return c.api.watch(func(rt *realtime.Client) error {
		return c.scope.Watch(rt, TableMessages, "sender_id=eq."+c.session.UserID, nil)
	})
}

// Close tears the conversation down.
func (c *Conversation) Close() {
	c.scope.Close()
}

// List returns the conversation in creation-time order. Every merge and
// pagination prepend goes through this sort, so ordering survives
// out-of-order arrivals.
func (c *Conversation) List() []Message {
	return c.scope.Store().Sorted(func(a, b Message) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// HasMore reports whether older history remains to page in.
func (c *Conversation) HasMore() bool {
	return c.more
}

// Send appends an optimistic message and commits the insert. replyToID and
// audioURL may be empty.
func (c *Conversation) Send(ctx context.Context, content, replyToID, audioURL string) *reconcile.Commit {
	temp := Message{
		ID:         reconcile.TempID(),
		SenderID:   c.session.UserID,
		ReceiverID: c.otherID,
		Content:    content,
		AudioURL:   audioURL,
		ReplyToID:  replyToID,
		CreatedAt:  time.Now(),
		Pending:    true,
	}
	return c.scope.OptimisticInsert(ctx, temp, func(ctx context.Context) (Message, error) {
		row := map[string]any{
			"sender_id":   c.session.UserID,
			"receiver_id": c.otherID,
			"content":     content,
		}
		if replyToID != "" {
			row["reply_to_id"] = replyToID
		}
		if audioURL != "" {
			row["audio_url"] = audioURL
		}
		var rows []Message
		if err := c.api.backend.From(TableMessages).Insert(ctx, row, &rows); err != nil {
			return Message{}, err
		}
		if len(rows) == 0 {
			return temp, nil
		}
		return rows[0], nil
	})
}

// MarkRead flags every message from the other party as read.
func (c *Conversation) MarkRead(ctx context.Context) error {
	for _, m := range c.scope.Store().All() {
		if m.SenderID == c.otherID && !m.Read {
			m.Read = true
			c.scope.Store().Upsert(m)
		}
	}
	return c.api.backend.From(TableMessages).
		Eq("sender_id", c.otherID).
		Eq("receiver_id", c.session.UserID).
		Eq("is_read", false).
		Update(ctx, map[string]any{"is_read": true}, nil)
}

// LoadOlder prepends the next page of history. The merged list is re-sorted
// by creation time, so prepending can't scramble ordering.
func (c *Conversation) LoadOlder(ctx context.Context) error {
	if c.oldest.IsZero() {
		return c.scope.Refetch(ctx)
	}
	var rows []Message
	err := c.pairQuery().
		Lt("created_at", c.oldest.UTC().Format(time.RFC3339Nano)).
		Order("created_at", true).
		Limit(DefaultMessagePage).
		Get(ctx, &rows)
	if err != nil {
		return err
	}
	for _, m := range rows {
		c.scope.Store().Upsert(m)
	}
	c.noteWatermark(rows)
	return nil
}

func (c *Conversation) fetch(ctx context.Context) ([]Message, error) {
	var rows []Message
	err := c.pairQuery().
		Order("created_at", true).
		Limit(DefaultMessagePage).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	c.noteWatermark(rows)
	return rows, nil
}

func (c *Conversation) pairQuery() *backend.Builder {
	me, them := c.session.UserID, c.otherID
	return c.api.backend.From(TableMessages).
		Or(fmt.Sprintf(
			"and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s)",
			me, them, them, me,
		))
}

func (c *Conversation) noteWatermark(batch []Message) {
	c.more = len(batch) == DefaultMessagePage
	for _, m := range batch {
		if c.oldest.IsZero() || m.CreatedAt.Before(c.oldest) {
			c.oldest = m.CreatedAt
		}
	}
}
