package kvo

import (
	"github.com/rs/zerolog"
)

type Option func(*RegistryImp)

// WithHost sets the primitive observation mechanism. A host that also
// implements DestructionNotifier gets its destruction hooks wired to the
// registry.
func WithHost(host Host) Option {
	return func(r *RegistryImp) {
		r.host = host
		r.notifier, _ = host.(DestructionNotifier)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *RegistryImp) {
		r.logger = logger
	}
}

// WithReporter replaces the default reporter, which logs failed callbacks at
// error level.
func WithReporter(reporter Reporter) Option {
	return func(r *RegistryImp) {
		r.reporter = reporter
	}
}

// WithCleanupTracking controls whether subscriptions are dropped when the
// garbage collector reclaims their observer or target. Enabled by default.
func WithCleanupTracking(enabled bool) Option {
	return func(r *RegistryImp) {
		r.trackCleanup = enabled
	}
}
