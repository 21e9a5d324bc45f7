// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// A single Set is shared by the reconciliation scopes and the realtime
// client. Construction is optional everywhere: a nil *Set is a valid
// no-op receiver, so instrumentation never becomes a wiring requirement.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures metric registration.
type Config struct {
	// Namespace is the metrics namespace (default: "thoughtnet").
	Namespace string

	// Subsystem is the metrics subsystem (default: "sync").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures metric registration.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "thoughtnet",
		Subsystem: "sync",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Set holds the engine's metrics. The zero/nil Set discards everything.
type Set struct {
	commitsTotal        *prometheus.CounterVec
	rollbacksTotal      *prometheus.CounterVec
	conflictsSwallowed  prometheus.Counter
	refetchesTotal      *prometheus.CounterVec
	eventsTotal         *prometheus.CounterVec
	retriesTotal        prometheus.Counter
	retriesExhausted    prometheus.Counter
	activeSubscriptions prometheus.Gauge
}

// NewSet registers and returns the engine metrics.
func NewSet(opts ...Option) *Set {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Set{
		commitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "commits_total",
			Help:        "Remote commits by scope and outcome (ok, error).",
			ConstLabels: cfg.ConstLabels,
		}, []string{"scope", "outcome"}),
		rollbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "rollbacks_total",
			Help:        "Optimistic changes reverted after a failed commit.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"scope"}),
		conflictsSwallowed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "conflicts_swallowed_total",
			Help:        "Duplicate-row conflicts treated as success.",
			ConstLabels: cfg.ConstLabels,
		}),
		refetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "refetches_total",
			Help:        "Full scope refetches triggered by realtime events.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"scope"}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "realtime_events_total",
			Help:        "Change-feed events received by table.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"table"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "subscription_retries_total",
			Help:        "Realtime subscription reconnect attempts.",
			ConstLabels: cfg.ConstLabels,
		}),
		retriesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "subscription_retries_exhausted_total",
			Help:        "Subscriptions degraded after exhausting reconnect attempts.",
			ConstLabels: cfg.ConstLabels,
		}),
		activeSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "active_subscriptions",
			Help:        "Currently open change-feed subscriptions.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Commit records a remote commit outcome for a scope.
func (s *Set) Commit(scope string, ok bool) {
	if s == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	s.commitsTotal.WithLabelValues(scope, outcome).Inc()
}

// Rollback records a reverted optimistic change.
func (s *Set) Rollback(scope string) {
	if s == nil {
		return
	}
	s.rollbacksTotal.WithLabelValues(scope).Inc()
}

// ConflictSwallowed records a duplicate-row conflict treated as success.
func (s *Set) ConflictSwallowed() {
	if s == nil {
		return
	}
	s.conflictsSwallowed.Inc()
}

// Refetch records a realtime-triggered scope refetch.
func (s *Set) Refetch(scope string) {
	if s == nil {
		return
	}
	s.refetchesTotal.WithLabelValues(scope).Inc()
}

// Event records a received change-feed event.
func (s *Set) Event(table string) {
	if s == nil {
		return
	}
	s.eventsTotal.WithLabelValues(table).Inc()
}

// Retry records a subscription reconnect attempt.
func (s *Set) Retry() {
	if s == nil {
		return
	}
	s.retriesTotal.Inc()
}

// RetryExhausted records a subscription giving up on reconnecting.
func (s *Set) RetryExhausted() {
	if s == nil {
		return
	}
	s.retriesExhausted.Inc()
}

// SubscriptionOpened increments the active subscription gauge.
func (s *Set) SubscriptionOpened() {
	if s == nil {
		return
	}
	s.activeSubscriptions.Inc()
}

// SubscriptionClosed decrements the active subscription gauge.
func (s *Set) SubscriptionClosed() {
	if s == nil {
		return
	}
	s.activeSubscriptions.Dec()
}
