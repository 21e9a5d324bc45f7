package main

import (
	"fmt"
	"os"

	"github.com/thoughtnet/thoughtnet-go/internal/config"
	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/reconcile"
	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

// newAPI wires config, backend, realtime and the terminal alerter into a
// domain API plus the signed-in session.
func newAPI() (*social.API, *social.Session, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, err
	}

	session := social.NewSession(
		os.Getenv("THOUGHTNET_USER_ID"),
		os.Getenv("THOUGHTNET_USERNAME"),
		os.Getenv("THOUGHTNET_ACCESS_TOKEN"),
	)
	if !session.Valid() {
		return nil, nil, fmt.Errorf("not signed in: set THOUGHTNET_USER_ID and THOUGHTNET_ACCESS_TOKEN")
	}

	b := backend.New(cfg.BackendURL, cfg.APIKey, backend.WithTimeout(cfg.RequestTimeout()))
	b.SetToken(session.AccessToken)

	opts := []social.Option{social.WithAlerter(terminalAlerter())}
	if cfg.RealtimeURL != "" {
		rt := realtime.New(cfg.RealtimeURL, cfg.APIKey,
			realtime.WithRetry(realtime.DefaultRetryBase, cfg.RetryAttempts))
		opts = append(opts, social.WithRealtime(rt))
	}
	return social.NewAPI(b, opts...), session, nil
}

// terminalAlerter renders engine notices as terminal lines, the CLI's
// stand-in for toasts.
func terminalAlerter() reconcile.Alerter {
	return reconcile.AlertFunc(func(level reconcile.Level, message string) {
		switch level {
		case reconcile.LevelError, reconcile.LevelWarning:
			warn("%s", message)
		default:
			info("%s", message)
		}
	})
}
