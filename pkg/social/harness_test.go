package social_test

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thoughtnet/thoughtnet-go/internal/stubserver"
	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

// alertRecorder captures user-facing notices for assertions.
type alertRecorder struct {
	mu      sync.Mutex
	notices []string
}

func (r *alertRecorder) Alert(level reconcile.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, string(level)+": "+message)
}

func (r *alertRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

func (r *alertRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

// stack is one stub backend plus an API wired to it.
type stack struct {
	stub   *stubserver.Server
	api    *social.API
	alerts *alertRecorder
}

// newStack starts a stub backend and returns an API over it. When live is
// true the API also gets a change-feed client with a short reconnect
// backoff.
func newStack(t *testing.T, live bool) *stack {
	t.Helper()
	stub := stubserver.New()
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	b := backend.New(srv.URL, "test-key", backend.WithTimeout(5*time.Second))
	alerts := &alertRecorder{}
	opts := []social.Option{social.WithAlerter(alerts)}
	if live {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"
		rt := realtime.New(wsURL, "test-key", realtime.WithRetry(20*time.Millisecond, 3))
		opts = append(opts, social.WithRealtime(rt))
	}
	return &stack{
		stub:   stub,
		api:    social.NewAPI(b, opts...),
		alerts: alerts,
	}
}

// seedUsers installs the standard two-profile fixture: ada (u1) owns
// thought p1, lin (u2) is the other party.
func (s *stack) seedUsers() {
	s.stub.Seed("profiles",
		stubserver.Row{"id": "u1", "username": "ada", "display_name": "Ada"},
		stubserver.Row{"id": "u2", "username": "lin", "display_name": "Lin"},
	)
	s.stub.Seed("thoughts", stubserver.Row{
		"id": "p1", "user_id": "u1", "content": "first thought",
		"visibility": "public", "likes_count": 0, "comments_count": 0,
		"created_at": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano),
	})
}

func session(userID, username string) *social.Session {
	return social.NewSession(userID, username, "token-"+userID)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// mustWait asserts the commit settles without error.
func mustWait(t *testing.T, c *reconcile.Commit) {
	t.Helper()
	if err := c.Wait(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
}
