// Package vaper turns community yes/no votes into a likelihood signal.
package vaper

// Policy thresholds for calling a celebrity a likely vaper.
const (
	MinVotes         = 10
	LikelyPercentage = 60.0
)

// Likelihood is the share of yes votes and whether it clears the policy.
type Likelihood struct {
	Percentage    float64 `json:"percentage"`
	IsLikelyVaper bool    `json:"is_likely_vaper"`
	TotalVotes    int     `json:"total_votes"`
}

// Estimate derives the likelihood from yes/no counters. Negative counts are
// treated as zero.
func Estimate(yes, no int) Likelihood {
	yes, no = max(yes, 0), max(no, 0)
	total := yes + no
	if total == 0 {
		return Likelihood{}
	}
	pct := float64(yes) / float64(total) * 100
	return Likelihood{
		Percentage:    pct,
		IsLikelyVaper: total >= MinVotes && pct >= LikelyPercentage,
		TotalVotes:    total,
	}
}
