// Package votesim drives the voting API with simulated voters and reports how
// closely the resulting rankings recover a hidden ground truth.
package votesim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Voters        int           // Number of simulated voters
	VotesPerVoter int           // Pairs each voter is shown
	Workers       int           // Number of concurrent workers
	SkipRate      float64       // Probability a voter skips a pair
	Noise         float64       // Probability a vote ignores the hidden order
	Timeout       time.Duration // HTTP request timeout
	Seed          uint64        // Seed for the hidden order and voter choices
	Verbose       bool          // Log every failed request
}

// Celebrity is the subset of the rankings payload the simulator reads.
type Celebrity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Rank   int    `json:"rank"`
}

// Pair mirrors GET /pair.
type Pair struct {
	A Celebrity `json:"a"`
	B Celebrity `json:"b"`
}

type voteRequest struct {
	CelebrityA string `json:"celebrity_a"`
	CelebrityB string `json:"celebrity_b"`
	Winner     string `json:"winner"`
}

type skipRequest struct {
	CelebrityA string `json:"celebrity_a"`
	CelebrityB string `json:"celebrity_b"`
}

// Stats holds run statistics.
type Stats struct {
	PairsFetched    int
	PairsFailed     int
	VotesSubmitted  int
	VotesSuccessful int
	VotesFailed     int
	RateLimited     int
	Skips           int
	SkipsFailed     int
	Celebrities     int
	ComparedPairs   int
	Concordance     float64
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
