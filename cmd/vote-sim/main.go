package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/whovapes/internal/votesim"
	"github.com/okian/whovapes/pkg/logger"
)

// Default configuration constants.
const (
	defaultVoters        = 50
	defaultVotesPerVoter = 20
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultNoise         = 0.1
	defaultSkipRate      = 0.05
	defaultTimeout       = 10 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		voters   = flag.Int("voters", defaultVoters, "Number of simulated voters")
		votes    = flag.Int("votes", defaultVotesPerVoter, "Pairs shown to each voter")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		noise    = flag.Float64("noise", defaultNoise, "Probability a vote ignores the hidden order")
		skipRate = flag.Float64("skip", defaultSkipRate, "Probability a voter skips a pair")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for the hidden order")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Log every failed request")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		votesim.ShowHelp()
		return nil
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &votesim.Config{
		BaseURL:       *baseURL,
		Voters:        *voters,
		VotesPerVoter: *votes,
		Workers:       *workers,
		SkipRate:      *skipRate,
		Noise:         *noise,
		Timeout:       *timeout,
		Seed:          *seed,
		Verbose:       *verbose,
	}

	_, err := votesim.Run(ctx, config, logger.Named("vote-sim"))
	return err
}
