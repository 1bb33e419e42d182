package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side designates one of the two celebrities shown in a pair.
type Side string

// Sides of a pair.
const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide accepts "a"/"b" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	}
	return "", NewValidationError("winner", "must be A or B")
}

// Valid reports whether s is A or B.
func (s Side) Valid() bool { return s == SideA || s == SideB }

// Pair is two distinct celebrities shown together.
type Pair struct {
	A Celebrity `json:"a"`
	B Celebrity `json:"b"`
}

// MatchOutcome is the immutable audit record of one committed vote.
type MatchOutcome struct {
	ID            string    `json:"id"`
	CelebrityA    string    `json:"celebrity_a"`
	CelebrityB    string    `json:"celebrity_b"`
	WinnerID      string    `json:"winner_id"`
	KFactor       int       `json:"k_factor"`
	RatingABefore int       `json:"rating_a_before"`
	RatingAAfter  int       `json:"rating_a_after"`
	RatingBBefore int       `json:"rating_b_before"`
	RatingBAfter  int       `json:"rating_b_after"`
	ClientKey     string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Updates splits the outcome into the two per-celebrity rating updates.
func (m MatchOutcome) Updates() (RatingUpdate, RatingUpdate) {
	return RatingUpdate{ID: m.CelebrityA, Before: m.RatingABefore, After: m.RatingAAfter, Won: m.WinnerID == m.CelebrityA},
		RatingUpdate{ID: m.CelebrityB, Before: m.RatingBBefore, After: m.RatingBAfter, Won: m.WinnerID == m.CelebrityB}
}

// Validate checks the structural invariants of a match record.
func (m MatchOutcome) Validate() error {
	if err := validatePair(m.CelebrityA, m.CelebrityB); err != nil {
		return err
	}
	if m.WinnerID != m.CelebrityA && m.WinnerID != m.CelebrityB {
		return NewValidationError("winner_id", "must be one of the two celebrities")
	}
	if m.KFactor <= 0 {
		return NewValidationError("k_factor", "must be positive")
	}
	return nil
}

// SkipEvent records that a voter declined to choose between a pair.
type SkipEvent struct {
	ID         string    `json:"id"`
	CelebrityA string    `json:"celebrity_a"`
	CelebrityB string    `json:"celebrity_b"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewSkipEvent validates the pair and stamps a new skip record.
func NewSkipEvent(a, b string, now time.Time) (SkipEvent, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if err := validatePair(a, b); err != nil {
		return SkipEvent{}, err
	}
	return SkipEvent{ID: uuid.NewString(), CelebrityA: a, CelebrityB: b, CreatedAt: now.UTC()}, nil
}

func validatePair(a, b string) error {
	switch {
	case strings.TrimSpace(a) == "":
		return NewValidationError("celebrity_a", "must not be empty")
	case strings.TrimSpace(b) == "":
		return NewValidationError("celebrity_b", "must not be empty")
	case a == b:
		return NewValidationError("celebrity_b", "must differ from celebrity_a")
	}
	return nil
}
