// Package elo computes pairwise Elo rating updates.
package elo

import (
	"fmt"
	"math"

	"github.com/okian/whovapes/internal/domain/model"
)

// K-factor bounds.
const (
	DefaultK = 32
	MinK     = 1
	MaxK     = 64
)

// ratingScale is the rating gap at which the favourite is expected to win ten times as often.
const ratingScale = 400.0

// Input is a single pairwise outcome. K == 0 selects the engine default.
// Ratings have no floor and may be negative.
type Input struct {
	RatingA int
	RatingB int
	Winner  model.Side
	K       int
}

// Result holds the rounded new ratings and the figures they were derived from.
type Result struct {
	RatingA   int
	RatingB   int
	ExpectedA float64
	ExpectedB float64
	DeltaA    int
	DeltaB    int
	K         int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDefaultK sets the K-factor used when Input.K is zero.
func WithDefaultK(k int) Option {
	return func(e *Engine) {
		if ValidK(k) {
			e.defaultK = k
		}
	}
}

// Engine is a stateless rating calculator; the zero value uses DefaultK.
type Engine struct {
	defaultK int
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{defaultK: DefaultK}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultK returns the K-factor used when none is requested.
func (e *Engine) DefaultK() int {
	if e == nil || e.defaultK == 0 {
		return DefaultK
	}
	return e.defaultK
}

// ValidK reports whether k lies in the accepted range.
func ValidK(k int) bool {
	return k >= MinK && k <= MaxK
}

// ExpectedScore is the probability that a player rated ra beats one rated rb.
func ExpectedScore(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/ratingScale))
}

// Calculate applies one outcome to both ratings. Rounding is math.Round,
// halves away from zero.
func (e *Engine) Calculate(in Input) (Result, error) {
	k := in.K
	if k == 0 {
		k = e.DefaultK()
	}
	if !ValidK(k) {
		return Result{}, model.NewValidationError("k_factor", fmt.Sprintf("must be between %d and %d", MinK, MaxK))
	}
	if !in.Winner.Valid() {
		return Result{}, model.NewValidationError("winner", "must be A or B")
	}

	expA := ExpectedScore(in.RatingA, in.RatingB)
	expB := 1 - expA

	actualA, actualB := 1.0, 0.0
	if in.Winner == model.SideB {
		actualA, actualB = 0, 1
	}

	newA := int(math.Round(float64(in.RatingA) + float64(k)*(actualA-expA)))
	newB := int(math.Round(float64(in.RatingB) + float64(k)*(actualB-expB)))

	return Result{
		RatingA:   newA,
		RatingB:   newB,
		ExpectedA: expA,
		ExpectedB: expB,
		DeltaA:    newA - in.RatingA,
		DeltaB:    newB - in.RatingB,
		K:         k,
	}, nil
}

// Calculate runs an outcome through a default engine.
func Calculate(in Input) (Result, error) {
	return NewEngine().Calculate(in)
}
