package votesim

import "os"

// ShowHelp prints usage information for the vote simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`whovapes vote simulator
=======================

Drives a running whovapes service with simulated voters who prefer the
celebrity with the higher hidden vape score, then reports how well the
resulting rankings agree with that hidden order.

Each voter sends its own X-Forwarded-For address. The service only honours
it from trusted proxies, so start it with e.g.
WHOVAPES_TRUSTED_PROXIES=127.0.0.1,::1 or every voter shares one vote quota.

Usage:
  go run ./cmd/vote-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -voters int
        Number of simulated voters (default 50)
  -votes int
        Pairs shown to each voter (default 20)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -noise float
        Probability a vote ignores the hidden order (default 0.1)
  -skip float
        Probability a voter skips a pair (default 0.05)
  -seed uint
        Seed for the hidden order (default: current time)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every failed request
  -help
        Show this help message

Examples:
  # Smoke test against a local service
  go run ./cmd/vote-sim -voters 10 -votes 5

  # Noisy voters, reproducible run
  go run ./cmd/vote-sim -noise 0.3 -seed 42
`)
}
