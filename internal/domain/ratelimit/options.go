package ratelimit

import "time"

// Option applies a configuration option to the in-memory limiter.
type Option func(*inMemoryLimiter)

// WithLimit sets the window and max used by Allow.
func WithLimit(window time.Duration, max int) Option {
	return func(l *inMemoryLimiter) {
		l.window = window
		l.max = max
	}
}

// WithCleanupInterval sets how often stale keys are dropped.
// Zero or negative disables passive cleanup.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *inMemoryLimiter) {
		l.cleanupInterval = d
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *inMemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}
