// Package ratelimit implements a per-key request limiter over a time window.
//
// State is process-local: two instances of the service each admit their own
// quota. Sharing counters across instances would need an external store.
package ratelimit

import (
	"sync"
	"time"

	"github.com/okian/whovapes/internal/domain/model"
)

// Limiter admits or rejects calls per key.
type Limiter interface {
	// CheckAndRecord admits the call and records it, or rejects it with the
	// time until the oldest admitted call leaves the window.
	CheckAndRecord(key string, window time.Duration, max int) Decision

	// Allow is CheckAndRecord with the limiter's configured window and max.
	Allow(key string) Decision

	// Reset forgets every timestamp recorded for key.
	Reset(key string)

	// Size returns the number of tracked keys.
	Size() int
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// Err converts a rejection into a model.RateLimitedError; nil when allowed.
func (d Decision) Err(scope string) error {
	if d.Allowed {
		return nil
	}
	return &model.RateLimitedError{Scope: scope, RetryAfter: d.RetryAfter}
}

type bucket struct {
	stamps []time.Time // ascending
	window time.Duration
}

// inMemoryLimiter keeps admitted timestamps per key behind a mutex.
type inMemoryLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*bucket
	window          time.Duration
	max             int
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// NewInMemoryLimiter creates a limiter with configuration options.
func NewInMemoryLimiter(opts ...Option) Limiter {
	l := &inMemoryLimiter{
		buckets:         make(map[string]*bucket),
		window:          time.Minute,
		max:             30,
		cleanupInterval: time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.now()
	return l
}

// CheckAndRecord admits the call when fewer than max calls fall inside the
// window. A non-positive window or max disables limiting for the call.
func (l *inMemoryLimiter) CheckAndRecord(key string, window time.Duration, max int) Decision {
	if window <= 0 || max <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}
	b.window = window
	b.prune(now)

	if len(b.stamps) >= max {
		retry := b.stamps[0].Add(window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}

	b.stamps = append(b.stamps, now)
	return Decision{Allowed: true, Remaining: max - len(b.stamps)}
}

// Allow checks key against the configured window and max.
func (l *inMemoryLimiter) Allow(key string) Decision {
	return l.CheckAndRecord(key, l.window, l.max)
}

// Reset drops key's history.
func (l *inMemoryLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Size returns the number of tracked keys.
func (l *inMemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// cleanupLocked drops keys whose newest timestamp left the window.
// Must be called with l.mu held.
func (l *inMemoryLimiter) cleanupLocked(now time.Time) {
	if l.cleanupInterval <= 0 || now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	l.lastCleanup = now
	for key, b := range l.buckets {
		if len(b.stamps) == 0 || now.Sub(b.stamps[len(b.stamps)-1]) >= b.window {
			delete(l.buckets, key)
		}
	}
}

func (b *bucket) prune(now time.Time) {
	i := 0
	for i < len(b.stamps) && now.Sub(b.stamps[i]) >= b.window {
		i++
	}
	if i > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[i:]...)
	}
}
