package votesim

import (
	"fmt"
	"math/rand/v2"
)

// HiddenOrder assigns every celebrity a secret vape score. Higher scores
// should win more often and end up ranked higher.
func HiddenOrder(celebs []Celebrity, seed uint64) map[string]float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	truth := make(map[string]float64, len(celebs))
	for _, c := range celebs {
		truth[c.ID] = rng.Float64()
	}
	return truth
}

// choice is what a simulated voter does with one pair.
type choice int

const (
	choiceA choice = iota
	choiceB
	choiceSkip
)

// decide picks the side with the higher hidden score, except that with
// probability noise the voter picks at random and with probability skipRate
// they skip.
func decide(rng *rand.Rand, p Pair, truth map[string]float64, noise, skipRate float64) choice {
	if rng.Float64() < skipRate {
		return choiceSkip
	}
	if rng.Float64() < noise {
		if rng.IntN(2) == 0 {
			return choiceA
		}
		return choiceB
	}
	if truth[p.A.ID] >= truth[p.B.ID] {
		return choiceA
	}
	return choiceB
}

// Concordance compares a ranking (best first) with the hidden order. It
// returns the share of ranked pairs whose relative order agrees with the
// hidden scores, Kendall style, and the number of pairs compared. Celebrities
// missing from truth and tied hidden scores are ignored.
func Concordance(ranking []Celebrity, truth map[string]float64) (float64, int) {
	concordant, compared := 0, 0
	for i := 0; i < len(ranking); i++ {
		si, ok := truth[ranking[i].ID]
		if !ok {
			continue
		}
		for j := i + 1; j < len(ranking); j++ {
			sj, ok := truth[ranking[j].ID]
			if !ok || si == sj {
				continue
			}
			compared++
			if si > sj {
				concordant++
			}
		}
	}
	if compared == 0 {
		return 0, 0
	}
	return float64(concordant) / float64(compared), compared
}

// voterAddress gives voter n its own /24 so per-network quotas apply per voter.
func voterAddress(n int) string {
	return fmt.Sprintf("10.%d.%d.7", (n/256)%256, n%256)
}
