// Package thoughtnet provides the public API for the ThoughtNet Go client.
//
// This is the recommended import for most applications:
//
//	import "github.com/thoughtnet/thoughtnet-go"
//
// Usage:
//
//	b := thoughtnet.NewBackend(cfg.BackendURL, cfg.APIKey)
//	rt := thoughtnet.NewRealtime(cfg.RealtimeURL, cfg.APIKey)
//	api := thoughtnet.NewAPI(b, thoughtnet.WithRealtime(rt))
//
//	session := thoughtnet.NewSession(userID, username, token)
//	likes := api.Likes(session, thoughtIDs)
//	defer likes.Close()
package thoughtnet

import (
	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

// =============================================================================
// Domain API (social re-exports)
// =============================================================================

// API is the domain-level client: one per app, scopes per UI surface.
type API = social.API

// Session is the signed-in identity, passed explicitly into every scope.
type Session = social.Session

// NewAPI creates the domain API over a backend client.
var NewAPI = social.NewAPI

// NewSession creates a session for the given identity.
var NewSession = social.NewSession

// WithRealtime attaches the change-feed client to an API.
var WithRealtime = social.WithRealtime

// WithMetrics attaches engine metrics to an API.
var WithMetrics = social.WithMetrics

// WithAlerter routes user-visible notices (toasts) from an API's scopes.
var WithAlerter = social.WithAlerter

// =============================================================================
// Transport clients
// =============================================================================

// Backend is the REST/RPC client for the managed backend.
type Backend = backend.Client

// NewBackend creates a REST/RPC client.
var NewBackend = backend.New

// Realtime is the change-feed subscription client.
type Realtime = realtime.Client

// NewRealtime creates a change-feed client.
var NewRealtime = realtime.New

// =============================================================================
// Engine surface most apps touch
// =============================================================================

// Commit tracks one asynchronous remote write.
type Commit = reconcile.Commit

// Alerter receives user-visible notices from the engine.
type Alerter = reconcile.Alerter

// AlertFunc adapts a function to the Alerter interface.
type AlertFunc = reconcile.AlertFunc
