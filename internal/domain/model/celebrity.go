// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRating is the rating every new celebrity starts from.
const DefaultRating = 1000

// Name length bounds accepted for new celebrities.
const (
	maxNameLength    = 120
	maxWikiKeyLength = 255
)

// Celebrity is the aggregate that votes, community confirmation and moderation
// mutate. Each kind of mutation has its own operation type below.
type Celebrity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WikiKey   string    `json:"wiki_key,omitempty"`
	Rating    int       `json:"rating"`
	Wins      int       `json:"wins"`
	Matches   int       `json:"matches"`
	YesVotes  int       `json:"yes_votes"`
	NoVotes   int       `json:"no_votes"`
	Confirmed *bool     `json:"confirmed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCelebrity builds a celebrity with a fresh id and the default rating.
func NewCelebrity(name, wikiKey string, now time.Time) (Celebrity, error) {
	name = strings.TrimSpace(name)
	wikiKey = strings.TrimSpace(wikiKey)
	switch {
	case name == "":
		return Celebrity{}, NewValidationError("name", "must not be empty")
	case len(name) > maxNameLength:
		return Celebrity{}, NewValidationError("name", "too long")
	case len(wikiKey) > maxWikiKeyLength:
		return Celebrity{}, NewValidationError("wiki_key", "too long")
	}
	now = now.UTC()
	return Celebrity{
		ID:        uuid.NewString(),
		Name:      name,
		WikiKey:   strings.ReplaceAll(wikiKey, " ", "_"),
		Rating:    DefaultRating,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Losses is the number of matches the celebrity did not win.
func (c Celebrity) Losses() int {
	return c.Matches - c.Wins
}

// Validate checks the counter invariants: matches >= wins >= 0 and
// non-negative vote counters.
func (c Celebrity) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return NewValidationError("id", "must not be empty")
	case c.Wins < 0:
		return NewValidationError("wins", "must not be negative")
	case c.Matches < c.Wins:
		return NewValidationError("matches", "must not be lower than wins")
	case c.YesVotes < 0 || c.NoVotes < 0:
		return NewValidationError("votes", "must not be negative")
	}
	return nil
}

// RatingUpdate is one side of a recorded match: the new rating, one more
// match, and one more win for the winner.
type RatingUpdate struct {
	ID     string
	Before int
	After  int
	Won    bool
}

// Validate rejects updates without a target.
func (u RatingUpdate) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	return nil
}

// ApplyRating returns the celebrity as it looks after u commits.
func (c Celebrity) ApplyRating(u RatingUpdate, now time.Time) (Celebrity, error) {
	if err := u.Validate(); err != nil {
		return c, err
	}
	if u.ID != c.ID {
		return c, NewValidationError("id", "update targets a different celebrity")
	}
	c.Rating = u.After
	c.Matches++
	if u.Won {
		c.Wins++
	}
	c.UpdatedAt = now.UTC()
	return c, c.Validate()
}

// VoteIncrement is one community answer to "do they vape?".
type VoteIncrement struct {
	ID  string
	Yes bool
}

// Validate rejects increments without a target.
func (v VoteIncrement) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	return nil
}

// FlagUpdate sets or clears the moderation flag. A nil Value clears it.
type FlagUpdate struct {
	ID    string
	Value *bool
}

// Validate rejects flag updates without a target.
func (f FlagUpdate) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	return nil
}

// VoteReset zeroes both community vote counters. Only administrators issue it.
type VoteReset struct {
	ID string
}

// Validate rejects resets without a target.
func (r VoteReset) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	return nil
}
