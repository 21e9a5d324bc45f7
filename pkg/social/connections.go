package social

import (
	"context"
	"time"

	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
)

// RelationshipState is what the UI renders for a pair of users.
type RelationshipState string

const (
	RelationshipNone     RelationshipState = "none"     // "Request" affordance
	RelationshipOutgoing RelationshipState = "outgoing" // request sent, waiting
	RelationshipIncoming RelationshipState = "incoming" // "Respond" affordance
	RelationshipAccepted RelationshipState = "accepted" // connected
)

// ConnectionList is the session user's connections and pending requests.
type ConnectionList struct {
	api     *API
	session *Session
	scope   *reconcile.Scope[Connection]
}

// Connections creates the list for the session's user.
func (a *API) Connections(session *Session) *ConnectionList {
	l := &ConnectionList{api: a, session: session}
	l.scope = reconcile.New("connections", l.fetch, scopeOptions[Connection](a)...)
	return l
}

// Open seeds the list and subscribes to rows on either side of the user.
func (l *ConnectionList) Open(ctx context.Context) error {
	if !l.session.Valid() {
		return ErrNoSession
	}
	if err := l.scope.Refetch(ctx); err != nil {
		return err
	}
	if err := l.api.watch(func(rt *realtime.Client) error {
		return l.scope.Watch(rt, TableConnections, "requester_id=eq."+l.session.UserID, nil)
	}); err != nil {
		return err
	}
	return l.api.watch(func(rt *realtime.Client) error {
		return l.scope.Watch(rt, TableConnections, "addressee_id=eq."+l.session.UserID, nil)
	})
}

// Close tears the list down.
func (l *ConnectionList) Close() {
	l.scope.Close()
}

// With returns the relationship state between the session user and another
// user. Direction matters only while the request is pending.
func (l *ConnectionList) With(otherID string) RelationshipState {
	for _, c := range l.scope.Store().All() {
		if !c.Involves(l.session.UserID) || c.Other(l.session.UserID) != otherID {
			continue
		}
		switch {
		case c.Status == ConnectionAccepted:
			return RelationshipAccepted
		case c.RequesterID == l.session.UserID:
			return RelationshipOutgoing
		default:
			return RelationshipIncoming
		}
	}
	return RelationshipNone
}

// Connected returns the ids of all accepted connections.
func (l *ConnectionList) Connected() []string {
	var out []string
	for _, c := range l.scope.Store().All() {
		if c.Status == ConnectionAccepted {
			out = append(out, c.Other(l.session.UserID))
		}
	}
	return out
}

// PendingIncoming returns requests awaiting the session user's response,
// for the badge and the respond list.
func (l *ConnectionList) PendingIncoming() []Connection {
	return l.scope.Store().Filter(func(c Connection) bool {
		return c.Status == ConnectionPending && c.AddresseeID == l.session.UserID
	})
}

// UnviewedCount counts incoming requests not yet seen, for badge
// suppression.
func (l *ConnectionList) UnviewedCount() int {
	n := 0
	for _, c := range l.PendingIncoming() {
		if !c.Viewed {
			n++
		}
	}
	return n
}

// Request sends a connection request to otherID, optimistically pending.
func (l *ConnectionList) Request(ctx context.Context, otherID string) *reconcile.Commit {
	temp := Connection{
		ID:          reconcile.TempID(),
		RequesterID: l.session.UserID,
		AddresseeID: otherID,
		Status:      ConnectionPending,
		CreatedAt:   time.Now(),
		Pending:     true,
	}
	commit := l.scope.OptimisticInsert(ctx, temp, func(ctx context.Context) (Connection, error) {
		var rows []Connection
		err := l.api.backend.From(TableConnections).Insert(ctx, map[string]any{
			"requester_id": l.session.UserID,
			"addressee_id": otherID,
			"status":       ConnectionPending,
		}, &rows)
		if err != nil {
			return Connection{}, err
		}
		if len(rows) == 0 {
			return temp, nil
		}
		return rows[0], nil
	})
	l.scope.SideEffect(ctx, "connection notification", func(ctx context.Context) error {
		return l.api.backend.Rpc(ctx, "create_connection_notification_rpc", map[string]any{
			"p_requester_id": l.session.UserID,
			"p_addressee_id": otherID,
		}, nil)
	})
	return commit
}

// Accept answers an incoming request. Once accepted the connection is
// undirected.
func (l *ConnectionList) Accept(ctx context.Context, connectionID string) *reconcile.Commit {
	prev, ok := l.scope.Store().Get(connectionID)
	return l.scope.Toggle(ctx,
		func() {
			if ok {
				prev.Status = ConnectionAccepted
				l.scope.Store().Upsert(prev)
			}
		},
		func() {
			if ok {
				prev.Status = ConnectionPending
				l.scope.Store().Upsert(prev)
			}
		},
		func(ctx context.Context) error {
			return l.api.backend.From(TableConnections).
				Eq("id", connectionID).
				Update(ctx, map[string]any{"status": ConnectionAccepted}, nil)
		},
	)
}

// Decline removes an incoming request, restoring it on failure.
func (l *ConnectionList) Decline(ctx context.Context, connectionID string) *reconcile.Commit {
	return l.scope.OptimisticRemove(ctx, connectionID, func(ctx context.Context) error {
		return l.api.backend.From(TableConnections).
			Eq("id", connectionID).
			Delete(ctx)
	})
}

// MarkViewed flags all incoming pending requests as seen.
func (l *ConnectionList) MarkViewed(ctx context.Context) error {
	for _, c := range l.PendingIncoming() {
		if !c.Viewed {
			c.Viewed = true
			l.scope.Store().Upsert(c)
		}
	}
	return l.api.backend.From(TableConnections).
		Eq("addressee_id", l.session.UserID).
		Eq("status", ConnectionPending).
		Eq("viewed", false).
		Update(ctx, map[string]any{"viewed": true}, nil)
}

func (l *ConnectionList) fetch(ctx context.Context) ([]Connection, error) {
	var rows []Connection
	err := l.api.backend.From(TableConnections).
		Or("requester_id.eq." + l.session.UserID + ",addressee_id.eq." + l.session.UserID).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
