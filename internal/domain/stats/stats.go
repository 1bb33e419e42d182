// Package stats derives display statistics from celebrity counters.
package stats

import "github.com/okian/whovapes/internal/domain/model"

// WinRate is wins/matches as a percentage, 0 without matches.
func WinRate(wins, matches int) float64 {
	if matches <= 0 {
		return 0
	}
	return float64(wins) / float64(matches) * 100
}

// Losses is matches minus wins, never negative.
func Losses(wins, matches int) int {
	return max(matches-wins, 0)
}

// Summary aggregates the whole population.
type Summary struct {
	Celebrities    int     `json:"celebrities"`
	Matches        int64   `json:"matches"`
	Skips          int64   `json:"skips"`
	CommunityVotes int64   `json:"community_votes"`
	AverageRating  float64 `json:"average_rating"`
	TopRating      int     `json:"top_rating"`
}

// Summarize folds celebrity counters into a Summary. Match and skip totals
// come from the append-only logs, not from the per-celebrity counters.
func Summarize(celebs []model.Celebrity, matches, skips int64) Summary {
	s := Summary{Celebrities: len(celebs), Matches: matches, Skips: skips}
	if len(celebs) == 0 {
		return s
	}
	var sum int64
	s.TopRating = celebs[0].Rating
	for _, c := range celebs {
		sum += int64(c.Rating)
		s.CommunityVotes += int64(c.YesVotes + c.NoVotes)
		s.TopRating = max(s.TopRating, c.Rating)
	}
	s.AverageRating = float64(sum) / float64(len(celebs))
	return s
}
