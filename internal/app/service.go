// Package service composes the domain components and storage into the
// operations the HTTP API exposes.
package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/whovapes/internal/adapters/mq/queue"
	workerpool "github.com/okian/whovapes/internal/adapters/mq/worker"
	"github.com/okian/whovapes/internal/adapters/repository"
	"github.com/okian/whovapes/internal/adapters/wikipedia"
	"github.com/okian/whovapes/internal/domain/dedupe"
	"github.com/okian/whovapes/internal/domain/elo"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/internal/domain/ratelimit"
	"github.com/okian/whovapes/internal/domain/stats"
	"github.com/okian/whovapes/internal/domain/vaper"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/okian/whovapes/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultSkipQueueSize      = 10000
	defaultMaxRecentMatches   = 100
	defaultRecentMatches      = 20
	defaultIdempotencyKeys    = 50_000
	idempotencyKeyTTL         = 24 * time.Hour
	defaultConfirmVoteLimit   = 10
	defaultConfirmVoteWindow  = time.Minute
	defaultLimiterCleanup     = time.Minute
	skipBackpressureRetryHint = time.Second
)

// Enricher decorates celebrities with Wikipedia summaries.
type Enricher interface {
	Summary(ctx context.Context, key string) (wikipedia.Summary, error)
	EnrichAll(ctx context.Context, keys []string) map[string]wikipedia.Summary
}

// RankedCelebrity is one row of the rankings.
type RankedCelebrity struct {
	model.Celebrity
	Rank       int                `json:"rank"`
	WinRate    float64            `json:"win_rate"`
	Losses     int                `json:"losses"`
	Likelihood vaper.Likelihood   `json:"vaper_likelihood"`
	Wiki       *wikipedia.Summary `json:"wiki,omitempty"`
}

// Profile is the detail view of a single celebrity.
type Profile struct {
	model.Celebrity
	WinRate    float64            `json:"win_rate"`
	Losses     int                `json:"losses"`
	Skips      int64              `json:"skips"`
	Likelihood vaper.Likelihood   `json:"vaper_likelihood"`
	Wiki       *wikipedia.Summary `json:"wiki,omitempty"`
}

// RecentMatch is a logged outcome with display names attached.
type RecentMatch struct {
	model.MatchOutcome
	NameA string `json:"name_a,omitempty"`
	NameB string `json:"name_b,omitempty"`
}

// ConfirmResult is the celebrity after a community vote.
type ConfirmResult struct {
	Celebrity  model.Celebrity  `json:"celebrity"`
	Likelihood vaper.Likelihood `json:"vaper_likelihood"`
}

// Stats is the monitoring view of the service.
type Stats struct {
	Started        bool          `json:"started"`
	WorkerCount    int           `json:"worker_count"`
	SkipQueueSize  int           `json:"skip_queue_size"`
	SkipQueueLen   int           `json:"skip_queue_length"`
	SkipsProcessed int64         `json:"skips_processed"`
	SnapshotAge    string        `json:"snapshot_age"`
	LimiterKeys    int           `json:"limiter_keys"`
	Population     stats.Summary `json:"population"`
}

// Service implements the API dependencies for the voting site.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	engine     *elo.Engine
	limiter    ratelimit.Limiter
	recorder   *Recorder
	selector   *PairSelector
	enricher   Enricher
	skipQueue  eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	defaultK         int
	voteLimit        int
	voteWindow       time.Duration
	confirmLimit     int
	confirmWindow    time.Duration
	adminSecret      string
	skipQueueSize    int
	workerCount      int
	maxRecentMatches int
	snapshotTTL      time.Duration
	idempotencyKeys  int

	// State
	started bool

	logger logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDefaultK sets the K-factor used when a vote does not name one.
func WithDefaultK(k int) Option {
	return func(s *Service) {
		if elo.ValidK(k) {
			s.defaultK = k
		}
	}
}

// WithVoteQuota sets the per-client vote quota.
func WithVoteQuota(limit int, window time.Duration) Option {
	return func(s *Service) {
		if limit > 0 && window > 0 {
			s.voteLimit, s.voteWindow = limit, window
		}
	}
}

// WithConfirmVoteQuota sets the per-client community vote quota.
func WithConfirmVoteQuota(limit int, window time.Duration) Option {
	return func(s *Service) {
		if limit > 0 && window > 0 {
			s.confirmLimit, s.confirmWindow = limit, window
		}
	}
}

// WithAdminSecret sets the shared admin secret. An empty secret disables
// every admin operation.
func WithAdminSecret(secret string) Option {
	return func(s *Service) {
		s.adminSecret = secret
	}
}

// WithSkipQueueSize sets the capacity of the skip queue.
func WithSkipQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.skipQueueSize = size
		}
	}
}

// WithWorkerCount sets the number of skip workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithMaxRecentMatches caps the recent matches limit.
func WithMaxRecentMatches(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecentMatches = n
		}
	}
}

// WithIdempotencyCacheSize bounds how many vote idempotency keys are kept.
// The oldest keys are forgotten first.
func WithIdempotencyCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.idempotencyKeys = n
		}
	}
}

// WithPairSnapshotTTL sets the pair snapshot TTL.
func WithPairSnapshotTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.snapshotTTL = ttl
		}
	}
}

// WithEnricher attaches a Wikipedia enricher.
func WithEnricher(e Enricher) Option {
	return func(s *Service) {
		s.enricher = e
	}
}

// WithLimiter shares a rate limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over store. Votes, pairs and reads work
// immediately; skips need Start.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		defaultK:         elo.DefaultK,
		voteLimit:        DefaultVoteLimit,
		voteWindow:       DefaultVoteWindow,
		confirmLimit:     defaultConfirmVoteLimit,
		confirmWindow:    defaultConfirmVoteWindow,
		skipQueueSize:    defaultSkipQueueSize,
		workerCount:      runtime.NumCPU(),
		maxRecentMatches: defaultMaxRecentMatches,
		idempotencyKeys:  defaultIdempotencyKeys,
		snapshotTTL:      DefaultSnapshotTTL,
		logger:           logger.Nop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil {
		s.limiter = ratelimit.NewInMemoryLimiter(
			ratelimit.WithLimit(s.voteWindow, s.voteLimit),
			ratelimit.WithCleanupInterval(defaultLimiterCleanup),
			ratelimit.WithClock(s.now),
		)
	}
	s.engine = elo.NewEngine(elo.WithDefaultK(s.defaultK))
	s.recorder = NewRecorder(store, s.engine, s.limiter,
		WithVoteLimit(s.voteLimit, s.voteWindow),
		WithRecorderClock(s.now),
		WithIdempotency(dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(s.idempotencyKeys),
			dedupe.WithTTL(idempotencyKeyTTL),
			dedupe.WithClock(s.now),
		)),
		WithRecorderLogger(s.logger.Named("recorder")),
	)
	s.selector = NewPairSelector(store,
		WithSnapshotTTL(s.snapshotTTL),
		WithSelectorClock(s.now),
		WithSelectorLogger(s.logger.Named("selector")),
	)
	s.skipQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.skipQueueSize))
	return s
}

// Start launches the skip workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.skipQueue.IsClosed() {
		return fmt.Errorf("start: %w", eventqueue.ErrClosed)
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.skipQueue, s.store,
		workerpool.WithLogger(s.logger.Named("skips")),
	)
	s.workerPool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("skip_queue_size", s.skipQueueSize),
		logger.Int("default_k", s.defaultK),
		logger.Int("vote_limit", s.voteLimit),
		logger.Duration("vote_window", s.voteWindow),
	)
	return nil
}

// Stop drains the skip queue and stops the workers. The store stays open;
// its owner closes it.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		_ = s.skipQueue.Close()
		return
	}

	s.logger.Info(ctx, "stopping service...")
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "skip workers did not drain", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "service stopped", logger.Int64("skips_processed", s.workerPool.Processed()))
}

// RecordVote commits a vote; see Recorder.RecordVote.
func (s *Service) RecordVote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	return s.recorder.RecordVote(ctx, req)
}

// RandomPair returns two distinct celebrities; see PairSelector.RandomPair.
func (s *Service) RandomPair(ctx context.Context) (model.Pair, error) {
	return s.selector.RandomPair(ctx)
}

// RecordSkip queues a skip for background persistence.
func (s *Service) RecordSkip(ctx context.Context, a, b string) (model.SkipEvent, error) {
	ev, err := model.NewSkipEvent(a, b, s.now())
	if err != nil {
		return model.SkipEvent{}, err
	}

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started || s.skipQueue.IsClosed() {
		return model.SkipEvent{}, fmt.Errorf("record skip: %w", eventqueue.ErrClosed)
	}

	if !s.skipQueue.Enqueue(ctx, ev) {
		metrics.RecordSkipDropped()
		return model.SkipEvent{}, fmt.Errorf("%w: %w", eventqueue.ErrFull,
			&model.RateLimitedError{Scope: "skip", RetryAfter: skipBackpressureRetryHint})
	}
	return ev, nil
}

// GetAllCelebrities scans every celebrity, sorted by rating then name.
func (s *Service) GetAllCelebrities(ctx context.Context) ([]model.Celebrity, error) {
	all, err := s.store.AllCelebrities(ctx)
	if err != nil {
		return nil, err
	}
	SortByRating(all)
	return all, nil
}

// Rankings returns every celebrity with rank, win rate and likelihood. With
// enrich set, Wikipedia summaries are attached; failures leave them out.
func (s *Service) Rankings(ctx context.Context, enrich bool) ([]RankedCelebrity, error) {
	all, err := s.GetAllCelebrities(ctx)
	if err != nil {
		return nil, err
	}

	var summaries map[string]wikipedia.Summary
	if enrich && s.enricher != nil {
		keys := make([]string, 0, len(all))
		for _, c := range all {
			if c.WikiKey != "" {
				keys = append(keys, c.WikiKey)
			}
		}
		summaries = s.enricher.EnrichAll(ctx, keys)
	}

	out := make([]RankedCelebrity, len(all))
	for i, c := range all {
		out[i] = RankedCelebrity{
			Celebrity:  c,
			Rank:       i + 1,
			WinRate:    stats.WinRate(c.Wins, c.Matches),
			Losses:     stats.Losses(c.Wins, c.Matches),
			Likelihood: vaper.Estimate(c.YesVotes, c.NoVotes),
		}
		if sum, ok := summaries[c.WikiKey]; ok && !sum.Empty() {
			out[i].Wiki = &sum
		}
	}
	return out, nil
}

// GetCelebrity returns the profile of one celebrity.
func (s *Service) GetCelebrity(ctx context.Context, id string) (Profile, error) {
	if strings.TrimSpace(id) == "" {
		return Profile{}, model.NewValidationError("id", "must not be empty")
	}
	c, err := s.store.GetCelebrity(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	skips, err := s.store.CountSkips(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		Celebrity:  c,
		WinRate:    stats.WinRate(c.Wins, c.Matches),
		Losses:     stats.Losses(c.Wins, c.Matches),
		Skips:      skips,
		Likelihood: vaper.Estimate(c.YesVotes, c.NoVotes),
	}
	if s.enricher != nil && c.WikiKey != "" {
		sum, err := s.enricher.Summary(ctx, c.WikiKey)
		switch {
		case err == nil:
			p.Wiki = &sum
		case !model.IsClientError(err):
			s.logger.Warn(ctx, "wikipedia summary unavailable", logger.String("id", id), logger.Error(err))
		}
	}
	return p, nil
}

// CastConfirmVote records one community yes/no answer.
func (s *Service) CastConfirmVote(ctx context.Context, id string, yes bool, clientKey string) (ConfirmResult, error) {
	inc := model.VoteIncrement{ID: strings.TrimSpace(id), Yes: yes}
	if err := inc.Validate(); err != nil {
		return ConfirmResult{}, err
	}
	if clientKey == "" {
		clientKey = "unknown"
	}
	if err := s.limiter.CheckAndRecord("confirm:"+clientKey+":"+inc.ID, s.confirmWindow, s.confirmLimit).Err("confirm vote"); err != nil {
		metrics.RecordRateLimited("confirm_vote")
		return ConfirmResult{}, err
	}

	c, err := s.store.IncrementVote(ctx, inc)
	if err != nil {
		return ConfirmResult{}, err
	}
	metrics.RecordConfirmVote(yes)
	return ConfirmResult{Celebrity: c, Likelihood: vaper.Estimate(c.YesVotes, c.NoVotes)}, nil
}

// RecentMatches returns the newest outcomes with names from the snapshot.
// A non-positive limit selects the default; larger limits are capped.
func (s *Service) RecentMatches(ctx context.Context, limit int) ([]RecentMatch, error) {
	if limit <= 0 {
		limit = defaultRecentMatches
	}
	limit = min(limit, s.maxRecentMatches)

	matches, err := s.store.RecentMatches(ctx, limit)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	if snap, err := s.selector.Snapshot(ctx); err == nil {
		for _, c := range snap {
			names[c.ID] = c.Name
		}
	}

	out := make([]RecentMatch, len(matches))
	for i, m := range matches {
		out[i] = RecentMatch{MatchOutcome: m, NameA: names[m.CelebrityA], NameB: names[m.CelebrityB]}
	}
	return out, nil
}

// Authorize checks secret against the admin secret in constant time.
func (s *Service) Authorize(secret string) error {
	if s.adminSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.adminSecret)) != 1 {
		return model.ErrUnauthorized
	}
	return nil
}

// CreateCelebrity adds a celebrity and drops the pair snapshot so it becomes
// selectable immediately.
func (s *Service) CreateCelebrity(ctx context.Context, secret, name, wikiKey string) (model.Celebrity, error) {
	if err := s.Authorize(secret); err != nil {
		return model.Celebrity{}, err
	}
	c, err := model.NewCelebrity(name, wikiKey, s.now())
	if err != nil {
		return model.Celebrity{}, err
	}
	if err := s.store.CreateCelebrity(ctx, c); err != nil {
		return model.Celebrity{}, err
	}
	s.selector.Invalidate()
	s.logger.Info(ctx, "celebrity created", logger.String("id", c.ID), logger.String("name", c.Name))
	return c, nil
}

// SetConfirmedFlag sets or clears the moderation flag.
func (s *Service) SetConfirmedFlag(ctx context.Context, id string, value *bool, secret string) (model.Celebrity, error) {
	if err := s.Authorize(secret); err != nil {
		return model.Celebrity{}, err
	}
	c, err := s.store.SetConfirmed(ctx, model.FlagUpdate{ID: strings.TrimSpace(id), Value: value})
	if err != nil {
		return model.Celebrity{}, err
	}
	s.logger.Info(ctx, "confirmed flag updated", logger.String("id", c.ID), logger.Any("confirmed", value))
	return c, nil
}

// ResetVotes zeroes the community counters of a celebrity.
func (s *Service) ResetVotes(ctx context.Context, id, secret string) (model.Celebrity, error) {
	if err := s.Authorize(secret); err != nil {
		return model.Celebrity{}, err
	}
	c, err := s.store.ResetVotes(ctx, model.VoteReset{ID: strings.TrimSpace(id)})
	if err != nil {
		return model.Celebrity{}, err
	}
	s.logger.Info(ctx, "community votes reset", logger.String("id", c.ID))
	return c, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	out := Stats{
		Started:       s.started,
		WorkerCount:   s.workerCount,
		SkipQueueSize: s.skipQueueSize,
		SkipQueueLen:  s.skipQueue.Len(ctx),
		LimiterKeys:   s.limiter.Size(),
	}
	if s.workerPool != nil {
		out.SkipsProcessed = s.workerPool.Processed()
	}
	s.mu.RUnlock()

	snap, err := s.selector.Snapshot(ctx)
	if err != nil {
		return out, err
	}
	matches, err := s.store.CountMatches(ctx)
	if err != nil {
		return out, err
	}
	skips, err := s.store.CountSkips(ctx, "")
	if err != nil {
		return out, err
	}
	out.Population = stats.Summarize(snap, matches, skips)
	out.SnapshotAge = s.selector.Age().Round(time.Second).String()

	metrics.UpdateQueueSize(out.SkipQueueLen)
	return out, nil
}

// Workload reports the skip queue length and the configured worker count
// without touching the store.
func (s *Service) Workload(ctx context.Context) (queued, workers int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipQueue.Len(ctx), s.workerCount
}

// InvalidateSnapshot drops the pair snapshot.
func (s *Service) InvalidateSnapshot() {
	s.selector.Invalidate()
}

// SortByRating orders celebrities by rating descending, then name ascending,
// then id for a total order.
func SortByRating(cs []model.Celebrity) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Rating != cs[j].Rating {
			return cs[i].Rating > cs[j].Rating
		}
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return cs[i].ID < cs[j].ID
	})
}
