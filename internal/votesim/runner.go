package votesim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/whovapes/pkg/logger"
)

// ErrTooFewCelebrities is returned when the service cannot form a pair.
var ErrTooFewCelebrities = errors.New("need at least two celebrities")

// counters are shared by the voter workers.
type counters struct {
	pairsFetched, pairsFailed                 atomic.Int64
	votesSubmitted, votesSuccessful, votesBad atomic.Int64
	rateLimited, skips, skipsFailed           atomic.Int64
}

// Run executes a complete simulation and returns its statistics.
func Run(ctx context.Context, config *Config, log logger.Logger) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config.BaseURL, config.Timeout)

	log.Info(ctx, "starting vote simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("voters", config.Voters),
		logger.Int("votesPerVoter", config.VotesPerVoter),
		logger.Int("workers", config.Workers),
		logger.Float64("noise", config.Noise),
		logger.Float64("skipRate", config.SkipRate))

	if err := checkServiceHealth(ctx, client, log); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	var celebs []Celebrity
	if err := client.getJSON(ctx, "/celebrities", &celebs); err != nil {
		return nil, fmt.Errorf("celebrity listing failed: %w", err)
	}
	if len(celebs) < 2 {
		return nil, ErrTooFewCelebrities
	}
	truth := HiddenOrder(celebs, config.Seed)

	c := simulateVoters(ctx, client, config, truth, log)
	stats.PairsFetched = int(c.pairsFetched.Load())
	stats.PairsFailed = int(c.pairsFailed.Load())
	stats.VotesSubmitted = int(c.votesSubmitted.Load())
	stats.VotesSuccessful = int(c.votesSuccessful.Load())
	stats.VotesFailed = int(c.votesBad.Load())
	stats.RateLimited = int(c.rateLimited.Load())
	stats.Skips = int(c.skips.Load())
	stats.SkipsFailed = int(c.skipsFailed.Load())

	var ranked []Celebrity
	if err := client.getJSON(ctx, "/celebrities", &ranked); err != nil {
		return nil, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	stats.Celebrities = len(ranked)
	stats.Concordance, stats.ComparedPairs = Concordance(ranked, truth)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.Voters <= 0 {
		config.Voters = defaultVoters
	}
	if config.VotesPerVoter <= 0 {
		config.VotesPerVoter = defaultVotesPerVoter
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, log logger.Logger) error {
	log.Info(ctx, "checking service health")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// The service answers with Prometheus metrics; any 200 is healthy.
	if err := client.do(req, http.StatusOK, nil); err != nil {
		return err
	}
	log.Info(ctx, "service is healthy")
	return nil
}

// simulateVoters fans voters out over a fixed worker pool.
func simulateVoters(ctx context.Context, client *HTTPClient, config *Config, truth map[string]float64, log logger.Logger) *counters {
	c := &counters{}
	voterChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for voter := range voterChan {
				if ctx.Err() != nil {
					return
				}
				runVoter(ctx, client, config, truth, voter, c, log)
			}
		}()
	}

	go func() {
		defer close(voterChan)
		for v := 0; v < config.Voters; v++ {
			select {
			case <-ctx.Done():
				return
			case voterChan <- v:
			}
		}
	}()

	wg.Wait()
	return c
}

// runVoter plays one voter's session. Each voter has its own deterministic
// random source and network address.
func runVoter(ctx context.Context, client *HTTPClient, config *Config, truth map[string]float64, voter int, c *counters, log logger.Logger) {
	rng := rand.New(rand.NewPCG(config.Seed, uint64(voter)+1))
	addr := voterAddress(voter)

	for i := 0; i < config.VotesPerVoter; i++ {
		if ctx.Err() != nil {
			return
		}
		var p Pair
		if err := client.getJSON(ctx, "/pair", &p); err != nil {
			c.pairsFailed.Add(1)
			if config.Verbose {
				log.Warn(ctx, "pair fetch failed", logger.Int("voter", voter), logger.Error(err))
			}
			continue
		}
		c.pairsFetched.Add(1)

		pick := decide(rng, p, truth, config.Noise, config.SkipRate)
		switch pick {
		case choiceSkip:
			err := client.postJSON(ctx, "/skips", addr, skipRequest{CelebrityA: p.A.ID, CelebrityB: p.B.ID}, http.StatusAccepted)
			if err != nil {
				c.skipsFailed.Add(1)
				continue
			}
			c.skips.Add(1)
		case choiceA, choiceB:
			winner := "A"
			if pick == choiceB {
				winner = "B"
			}
			c.votesSubmitted.Add(1)
			err := client.postJSON(ctx, "/votes", addr, voteRequest{CelebrityA: p.A.ID, CelebrityB: p.B.ID, Winner: winner}, http.StatusOK)
			switch {
			case err == nil:
				c.votesSuccessful.Add(1)
			case errors.Is(err, ErrRateLimited):
				c.rateLimited.Add(1)
			default:
				c.votesBad.Add(1)
				if config.Verbose {
					log.Warn(ctx, "vote failed", logger.Int("voter", voter), logger.Error(err))
				}
			}
		}
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, votesPerSecond float64
	if stats.VotesSubmitted > 0 {
		successRate = float64(stats.VotesSuccessful) / float64(stats.VotesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		votesPerSecond = float64(stats.VotesSubmitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("pairsFetched", stats.PairsFetched),
		logger.Int("pairsFailed", stats.PairsFailed),
		logger.Int("votesSubmitted", stats.VotesSubmitted),
		logger.Int("votesSuccessful", stats.VotesSuccessful),
		logger.Int("votesFailed", stats.VotesFailed),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("skips", stats.Skips),
		logger.Int("skipsFailed", stats.SkipsFailed),
		logger.Int("celebrities", stats.Celebrities),
		logger.Int("comparedPairs", stats.ComparedPairs),
		logger.Float64("concordance", stats.Concordance),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("votesPerSecond", votesPerSecond))
}
