package subscription

import (
	"log/slog"
	"time"

	"github.com/lessonkit/lessonkit/pkg/clock"
)

// Option configures a Service instance.
type Option func(*Service)

// WithClock injects the time source. Tests pass a *clock.Mock so expiry and
// grace windows can be driven deterministically.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithGracePeriod sets the dunning window granted after a failed renewal.
// The exact length is a policy parameter; the default is DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithMaxSaveRetries bounds the optimistic-concurrency retry loop before a
// transition is surfaced as ErrBusy.
func WithMaxSaveRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxSaveRetries = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDedupeIndex replaces the in-memory dedupe index, e.g. with the Redis
// implementation for multi-node deployments.
func WithDedupeIndex(idx DedupeIndex) Option {
	return func(s *Service) {
		if idx != nil {
			s.dedupe = idx
		}
	}
}

// WithIntentHandler registers a callback for non-mirroring intents.
func WithIntentHandler(fn IntentHandler) Option {
	return func(s *Service) {
		if fn != nil {
			s.onIntent = fn
		}
	}
}
