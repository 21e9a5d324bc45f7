package social

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/metrics"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
	"github.com/thoughtnet/thoughtnet-go/pkg/store"
)

// API bundles the backend clients the domain scopes share. One API serves
// the whole app; scopes are created and closed per UI surface.
type API struct {
	backend  *backend.Client
	realtime *realtime.Client
	metrics  *metrics.Set
	alerter  reconcile.Alerter
	logger   *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithRealtime attaches the change-feed client. Without it, scopes work in
// fetch-only mode and Open skips subscriptions.
func WithRealtime(rt *realtime.Client) Option {
	return func(a *API) {
		a.realtime = rt
	}
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.Set) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithAlerter sets where user-visible notices go (a toast binding,
// typically). Defaults to logging.
func WithAlerter(al reconcile.Alerter) Option {
	return func(a *API) {
		a.alerter = al
	}
}

// WithLogger sets the logger (default slog.Default).
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		a.logger = l
	}
}

// NewAPI creates the domain API over a backend client.
func NewAPI(b *backend.Client, opts ...Option) *API {
	a := &API{
		backend: b,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "social")
	return a
}

// Backend exposes the underlying REST client for callers that need raw
// queries (profile pages, search).
func (a *API) Backend() *backend.Client {
	return a.backend
}

// scopeOptions are the options every domain scope shares.
func scopeOptions[T store.Entity](a *API) []reconcile.Option[T] {
	opts := []reconcile.Option[T]{
		reconcile.WithLogger[T](a.logger),
		reconcile.WithMetrics[T](a.metrics),
		reconcile.WithErrorMessage[T](userMessage),
	}
	if a.alerter != nil {
		opts = append(opts, reconcile.WithAlerter[T](a.alerter))
	}
	return opts
}

// userMessage maps commit errors onto user-facing wording. Authorization
// denials get specific, actionable text; everything else stays generic.
func userMessage(err error) string {
	switch {
	case errors.Is(err, backend.ErrPermissionDenied):
		return "You don't have permission to do that."
	case errors.Is(err, backend.ErrTimeout):
		return "The server is taking too long. Please try again."
	default:
		return ""
	}
}

// watch subscribes a scope when realtime is configured; fetch-only mode
// otherwise.
func (a *API) watch(sub func(rt *realtime.Client) error) error {
	if a.realtime == nil {
		return nil
	}
	return sub(a.realtime)
}

// AssignReferralCode asks the backend to mint (or return the existing)
// referral code for the session's user.
func (a *API) AssignReferralCode(ctx context.Context, session *Session) (string, error) {
	if !session.Valid() {
		return "", ErrNoSession
	}
	var code string
	err := a.backend.Rpc(ctx, "assign_referral_code", map[string]any{
		"p_user_id": session.UserID,
	}, &code)
	if err != nil {
		return "", err
	}
	return code, nil
}

// ReferralInfo is the session user's referral standing.
type ReferralInfo struct {
	Code  string `json:"referral_code"`
	Count int    `json:"referral_count"`
}

// Referral fetches the session user's referral code and redemption count.
func (a *API) Referral(ctx context.Context, session *Session) (ReferralInfo, error) {
	if !session.Valid() {
		return ReferralInfo{}, ErrNoSession
	}
	var rows []ReferralInfo
	err := a.backend.From(TableProfiles).
		Select("referral_code,referral_count").
		Eq("id", session.UserID).
		Limit(1).
		Get(ctx, &rows)
	if err != nil {
		return ReferralInfo{}, err
	}
	if len(rows) == 0 {
		return ReferralInfo{}, backend.ErrNotFound
	}
	return rows[0], nil
}
