package livedata

import (
	"time"

	"go.uber.org/zap"
)

// Metrics receives subscription lifecycle events. Implementations must be
// safe for concurrent use.
type Metrics interface {
	SubscriptionOpened(kind string)
	SubscriptionClosed(kind string)
	SnapshotApplied(kind string)
	SubscriptionFailed(kind, reason string)
}

type noopMetrics struct{}

func (noopMetrics) SubscriptionOpened(string)         {}
func (noopMetrics) SubscriptionClosed(string)         {}
func (noopMetrics) SnapshotApplied(string)            {}
func (noopMetrics) SubscriptionFailed(string, string) {}

type config struct {
	emitter     *Emitter
	logger      *zap.Logger
	loadTimeout time.Duration
	metrics     Metrics
}

// Option configures a watcher.
type Option func(*config)

// WithEmitter publishes channel failures on e instead of DefaultEmitter.
func WithEmitter(e *Emitter) Option {
	return func(c *config) { c.emitter = e }
}

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithLoadTimeout resolves a reference that produced neither a snapshot nor
// an error within d to an idle state carrying ErrLoadTimeout. Zero disables
// the timeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *config) { c.loadTimeout = d }
}

// WithMetrics reports subscription lifecycle events to m.
func WithMetrics(m Metrics) Option {
	return func(c *config) { c.metrics = m }
}

func newConfig(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.emitter == nil {
		cfg.emitter = DefaultEmitter()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.metrics == nil {
		cfg.metrics = noopMetrics{}
	}
	return cfg
}
