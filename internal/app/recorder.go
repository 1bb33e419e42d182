package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/whovapes/internal/domain/dedupe"
	"github.com/okian/whovapes/internal/domain/elo"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/internal/domain/ratelimit"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/okian/whovapes/pkg/metrics"
)

// Default per-client vote quota.
const (
	DefaultVoteLimit  = 30
	DefaultVoteWindow = time.Minute
)

// MatchStore is the part of the store the recorder needs.
type MatchStore interface {
	GetCelebrity(ctx context.Context, id string) (model.Celebrity, error)
	RecordMatch(ctx context.Context, m model.MatchOutcome) error
}

// VoteRequest is one vote between two celebrities. K == 0 selects the default.
// A non-empty IdempotencyKey makes retries of the same vote from the same
// client a no-op that fails with model.ErrDuplicate.
type VoteRequest struct {
	CelebrityA     string
	CelebrityB     string
	Winner         model.Side
	K              int
	ClientKey      string
	IdempotencyKey string
}

const maxIdempotencyKeyLength = 128

// VoteResult carries the committed outcome and both celebrities after it.
type VoteResult struct {
	Match     model.MatchOutcome `json:"match"`
	A         model.Celebrity    `json:"celebrity_a"`
	B         model.Celebrity    `json:"celebrity_b"`
	ExpectedA float64            `json:"expected_a"`
}

// RecorderOption applies a configuration option to the Recorder.
type RecorderOption func(*Recorder)

// WithVoteLimit sets the per-client vote quota.
func WithVoteLimit(limit int, window time.Duration) RecorderOption {
	return func(r *Recorder) {
		if limit > 0 && window > 0 {
			r.limit = limit
			r.window = window
		}
	}
}

// WithRecorderClock replaces the time source used for match timestamps.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIdempotency makes the recorder reject repeated idempotency keys seen by d.
func WithIdempotency(d dedupe.Deduper) RecorderOption {
	return func(r *Recorder) {
		r.seen = d
	}
}

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(l logger.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// Recorder validates, rate limits and commits votes.
type Recorder struct {
	store   MatchStore
	engine  *elo.Engine
	limiter ratelimit.Limiter
	seen    dedupe.Deduper
	limit   int
	window  time.Duration
	now     func() time.Time
	log     logger.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store MatchStore, engine *elo.Engine, limiter ratelimit.Limiter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		engine:  engine,
		limiter: limiter,
		limit:   DefaultVoteLimit,
		window:  DefaultVoteWindow,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		r.engine = elo.NewEngine()
	}
	if r.seen == nil {
		r.seen = dedupe.NewInMemoryDeduper()
	}
	return r
}

// RecordVote commits one vote. Both celebrities move together or not at all;
// a failure is returned to the caller without retrying.
func (r *Recorder) RecordVote(ctx context.Context, req VoteRequest) (_ VoteResult, err error) {
	if err := validateVote(req); err != nil {
		metrics.RecordVoteRejected("invalid")
		return VoteResult{}, err
	}

	key := req.ClientKey
	if key == "" {
		key = "unknown"
	}

	if req.IdempotencyKey != "" {
		idem := "vote:" + key + ":" + req.IdempotencyKey
		if r.seen.SeenAndRecord(ctx, idem) {
			metrics.RecordVoteRejected("duplicate")
			return VoteResult{}, fmt.Errorf("idempotency key %q: %w", req.IdempotencyKey, model.ErrDuplicate)
		}
		defer func() {
			if err != nil {
				r.seen.Unrecord(ctx, idem)
			}
		}()
	}

	if err := r.limiter.CheckAndRecord("vote:"+key, r.window, r.limit).Err("vote"); err != nil {
		metrics.RecordVoteRejected("rate_limited")
		metrics.RecordRateLimited("vote")
		return VoteResult{}, err
	}

	a, err := r.store.GetCelebrity(ctx, req.CelebrityA)
	if err != nil {
		metrics.RecordVoteRejected(reason(err))
		return VoteResult{}, err
	}
	b, err := r.store.GetCelebrity(ctx, req.CelebrityB)
	if err != nil {
		metrics.RecordVoteRejected(reason(err))
		return VoteResult{}, err
	}

	calc, err := r.engine.Calculate(elo.Input{RatingA: a.Rating, RatingB: b.Rating, Winner: req.Winner, K: req.K})
	if err != nil {
		metrics.RecordVoteRejected("invalid")
		return VoteResult{}, err
	}

	now := r.now().UTC()
	winnerID := a.ID
	if req.Winner == model.SideB {
		winnerID = b.ID
	}
	outcome := model.MatchOutcome{
		ID:            uuid.NewString(),
		CelebrityA:    a.ID,
		CelebrityB:    b.ID,
		WinnerID:      winnerID,
		KFactor:       calc.K,
		RatingABefore: a.Rating,
		RatingAAfter:  calc.RatingA,
		RatingBBefore: b.Rating,
		RatingBAfter:  calc.RatingB,
		ClientKey:     req.ClientKey,
		CreatedAt:     now,
	}

	if err := r.store.RecordMatch(ctx, outcome); err != nil {
		metrics.RecordVoteRejected(reason(err))
		r.log.Warn(ctx, "vote not recorded",
			logger.String("celebrity_a", a.ID),
			logger.String("celebrity_b", b.ID),
			logger.Error(err),
		)
		return VoteResult{}, err
	}

	ua, ub := outcome.Updates()
	afterA, errA := a.ApplyRating(ua, now)
	afterB, errB := b.ApplyRating(ub, now)
	if errA != nil || errB != nil {
		return VoteResult{}, fmt.Errorf("apply committed ratings: %w", firstErr(errA, errB))
	}

	swing := calc.DeltaA
	if req.Winner == model.SideB {
		swing = calc.DeltaB
	}
	metrics.RecordVote(swing)
	r.log.Debug(ctx, "vote recorded",
		logger.String("match_id", outcome.ID),
		logger.String("winner", winnerID),
		logger.Int("swing", swing),
	)

	return VoteResult{Match: outcome, A: afterA, B: afterB, ExpectedA: calc.ExpectedA}, nil
}

func validateVote(req VoteRequest) error {
	switch {
	case strings.TrimSpace(req.CelebrityA) == "":
		return model.NewValidationError("celebrity_a", "must not be empty")
	case strings.TrimSpace(req.CelebrityB) == "":
		return model.NewValidationError("celebrity_b", "must not be empty")
	case req.CelebrityA == req.CelebrityB:
		return model.NewValidationError("celebrity_b", "must differ from celebrity_a")
	case !req.Winner.Valid():
		return model.NewValidationError("winner", "must be A or B")
	case len(req.IdempotencyKey) > maxIdempotencyKeyLength:
		return model.NewValidationError("idempotency_key", "too long")
	case req.K != 0 && !elo.ValidK(req.K):
		return model.NewValidationError("k_factor", fmt.Sprintf("must be between %d and %d", elo.MinK, elo.MaxK))
	}
	return nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "store_error"
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
