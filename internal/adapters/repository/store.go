// Package repository persists celebrities and the match and skip logs.
package repository

import (
	"context"

	"github.com/okian/whovapes/internal/domain/model"
)

// Store provides read/write access to the celebrity aggregate and the
// append-only logs.
type Store interface {
	// CreateCelebrity inserts a new celebrity.
	CreateCelebrity(ctx context.Context, c model.Celebrity) error

	// GetCelebrity returns a celebrity or an error wrapping model.ErrNotFound.
	GetCelebrity(ctx context.Context, id string) (model.Celebrity, error)

	// AllCelebrities scans the whole table page by page, in id order.
	AllCelebrities(ctx context.Context) ([]model.Celebrity, error)

	// RecordMatch applies both rating updates and appends the outcome in one
	// transaction. A vanished celebrity fails the whole unit with model.ErrConflict.
	RecordMatch(ctx context.Context, m model.MatchOutcome) error

	// AppendSkip appends a skip event.
	AppendSkip(ctx context.Context, s model.SkipEvent) error

	// IncrementVote bumps the yes or no counter and returns the updated celebrity.
	IncrementVote(ctx context.Context, v model.VoteIncrement) (model.Celebrity, error)

	// SetConfirmed sets or clears the moderation flag.
	SetConfirmed(ctx context.Context, f model.FlagUpdate) (model.Celebrity, error)

	// ResetVotes zeroes both community counters.
	ResetVotes(ctx context.Context, r model.VoteReset) (model.Celebrity, error)

	// RecentMatches returns the newest outcomes first.
	RecentMatches(ctx context.Context, limit int) ([]model.MatchOutcome, error)

	// CountMatches returns the length of the match log.
	CountMatches(ctx context.Context) (int64, error)

	// CountSkips counts skips involving celebrityID, or all skips when it is empty.
	CountSkips(ctx context.Context, celebrityID string) (int64, error)

	// Close releases the underlying connections.
	Close() error
}
