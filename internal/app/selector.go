package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/okian/whovapes/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultSnapshotTTL bounds how stale the pair snapshot may get.
const DefaultSnapshotTTL = 5 * time.Minute

// snapshotRefreshTimeout bounds a shared refresh, which outlives the request
// that started it.
const snapshotRefreshTimeout = 30 * time.Second

// CelebritySource lists every celebrity.
type CelebritySource interface {
	AllCelebrities(ctx context.Context) ([]model.Celebrity, error)
}

// SelectorOption applies a configuration option to the PairSelector.
type SelectorOption func(*PairSelector)

// WithSnapshotTTL sets how long a snapshot is served before a refresh.
func WithSnapshotTTL(ttl time.Duration) SelectorOption {
	return func(p *PairSelector) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithRandom replaces the index source; intn must return a value in [0, n).
func WithRandom(intn func(n int) int) SelectorOption {
	return func(p *PairSelector) {
		if intn != nil {
			p.intn = intn
		}
	}
}

// WithSelectorClock replaces the time source used for snapshot age.
func WithSelectorClock(now func() time.Time) SelectorOption {
	return func(p *PairSelector) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSelectorLogger sets the selector logger.
func WithSelectorLogger(l logger.Logger) SelectorOption {
	return func(p *PairSelector) {
		if l != nil {
			p.log = l
		}
	}
}

// PairSelector draws random pairs from a process-local snapshot of all
// celebrities. The snapshot may lag the store by up to the TTL.
type PairSelector struct {
	source CelebritySource
	ttl    time.Duration

	mu          sync.RWMutex
	snapshot    []model.Celebrity
	refreshedAt time.Time
	group       singleflight.Group

	rngMu sync.Mutex
	intn  func(n int) int

	now func() time.Time
	log logger.Logger
}

// NewPairSelector creates a selector reading from source.
func NewPairSelector(source CelebritySource, opts ...SelectorOption) *PairSelector {
	p := &PairSelector{
		source: source,
		ttl:    DefaultSnapshotTTL,
		intn:   rand.IntN,
		now:    time.Now,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RandomPair returns two distinct celebrities chosen uniformly.
func (p *PairSelector) RandomPair(ctx context.Context) (model.Pair, error) {
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return model.Pair{}, err
	}
	if len(snap) < 2 {
		return model.Pair{}, model.ErrInsufficientData
	}

	p.rngMu.Lock()
	i := p.intn(len(snap))
	j := p.intn(len(snap))
	for j == i {
		j = p.intn(len(snap))
	}
	p.rngMu.Unlock()

	return model.Pair{A: snap[i], B: snap[j]}, nil
}

// Snapshot returns the current snapshot, refreshing it when empty or expired.
// Concurrent refreshes share one store scan that is not tied to any single
// caller's cancellation. Callers must not modify the slice.
func (p *PairSelector) Snapshot(ctx context.Context) ([]model.Celebrity, error) {
	if snap, ok := p.fresh(); ok {
		return snap, nil
	}

	ch := p.group.DoChan("snapshot", func() (any, error) {
		if snap, ok := p.fresh(); ok {
			return snap, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotRefreshTimeout)
		defer cancel()
		return p.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Celebrity), nil
	}
}

// Age returns how old the snapshot is, or zero when there is none.
func (p *PairSelector) Age() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.refreshedAt.IsZero() {
		return 0
	}
	return p.now().Sub(p.refreshedAt)
}

// Invalidate drops the snapshot so the next call reloads it.
func (p *PairSelector) Invalidate() {
	p.mu.Lock()
	p.snapshot = nil
	p.refreshedAt = time.Time{}
	p.mu.Unlock()
}

func (p *PairSelector) fresh() ([]model.Celebrity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.snapshot) > 0 && p.now().Sub(p.refreshedAt) < p.ttl {
		return p.snapshot, true
	}
	return nil, false
}

func (p *PairSelector) refresh(ctx context.Context) ([]model.Celebrity, error) {
	start := time.Now()
	all, err := p.source.AllCelebrities(ctx)
	if err != nil {
		p.log.Error(ctx, "snapshot refresh failed", logger.Error(err))
		return nil, err
	}

	p.mu.Lock()
	p.snapshot = all
	p.refreshedAt = p.now()
	p.mu.Unlock()

	metrics.RecordSnapshotRefresh(float64(time.Since(start).Microseconds())/1000, len(all))
	p.log.Debug(ctx, "snapshot refreshed", logger.Int("size", len(all)))
	return all, nil
}
