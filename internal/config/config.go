// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Defaults live in New; Load layers a YAML file and the environment on top.
//   - Durations are configured as whole seconds or milliseconds and exposed
//     through typed accessors.
//   - Errors wrap this package's sentinels so callers can use errors.Is.
package config

import (
	"fmt"
	"net/netip"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver selects the store backend: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver specific data source name.
	DBDSN string `koanf:"db_dsn"`

	// ScanPageSize is the keyset page size used for full celebrity scans.
	ScanPageSize int `koanf:"scan_page_size"`

	// SnapshotTTLSeconds bounds how stale the pair snapshot may get.
	SnapshotTTLSeconds int `koanf:"snapshot_ttl_seconds"`

	// DefaultKFactor applies to votes that do not name one.
	DefaultKFactor int `koanf:"default_k_factor"`

	// VoteLimit votes per VoteWindowSeconds per client network.
	VoteLimit         int `koanf:"vote_limit"`
	VoteWindowSeconds int `koanf:"vote_window_seconds"`

	// ConfirmVoteLimit community votes per window per client and celebrity.
	ConfirmVoteLimit         int `koanf:"confirm_vote_limit"`
	ConfirmVoteWindowSeconds int `koanf:"confirm_vote_window_seconds"`

	// AdminSecret guards the admin endpoints. Empty disables them.
	AdminSecret string `koanf:"admin_secret"`

	// SkipQueueSize bounds the in-memory skip queue.
	SkipQueueSize int `koanf:"skip_queue_size"`

	// SkipWorkerCount sets the number of skip persistence workers.
	SkipWorkerCount int `koanf:"skip_worker_count"`

	// MaxRecentMatches caps GET /matches/recent?limit.
	MaxRecentMatches int `koanf:"max_recent_matches"`

	// IdempotencyCacheSize bounds how many vote idempotency keys are remembered.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	WikipediaBaseURL           string `koanf:"wikipedia_base_url"`
	WikipediaTimeoutMS         int    `koanf:"wikipedia_timeout_ms"`
	WikipediaCacheTTLSeconds   int    `koanf:"wikipedia_cache_ttl_seconds"`
	WikipediaCacheSize         int    `koanf:"wikipedia_cache_size"`
	WikipediaRateLimit         int    `koanf:"wikipedia_rate_limit"`
	WikipediaEnrichConcurrency int    `koanf:"wikipedia_enrich_concurrency"`

	// CORSOrigins is a comma separated list of allowed browser origins.
	// Empty allows any origin.
	CORSOrigins string `koanf:"cors_origins"`

	// TrustedProxies is a comma separated list of addresses or CIDR ranges
	// whose X-Forwarded-For header is believed. Empty trusts nobody.
	TrustedProxies string `koanf:"trusted_proxies"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		Addr:                       ":9080",
		DBDriver:                   "sqlite",
		DBDSN:                      "whovapes.db",
		ScanPageSize:               200,
		SnapshotTTLSeconds:         300,
		DefaultKFactor:             32,
		VoteLimit:                  30,
		VoteWindowSeconds:          60,
		ConfirmVoteLimit:           10,
		ConfirmVoteWindowSeconds:   60,
		SkipQueueSize:              10_000,
		SkipWorkerCount:            runtime.NumCPU(),
		MaxRecentMatches:           100,
		IdempotencyCacheSize:       50_000,
		WikipediaBaseURL:           "https://en.wikipedia.org/api/rest_v1",
		WikipediaTimeoutMS:         3000,
		WikipediaCacheTTLSeconds:   3600,
		WikipediaCacheSize:         10_000,
		WikipediaRateLimit:         50,
		WikipediaEnrichConcurrency: 4,
	}
}

// SnapshotTTL returns the pair snapshot TTL.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

// VoteWindow returns the vote quota window.
func (c *Config) VoteWindow() time.Duration {
	return time.Duration(c.VoteWindowSeconds) * time.Second
}

// ConfirmVoteWindow returns the community vote quota window.
func (c *Config) ConfirmVoteWindow() time.Duration {
	return time.Duration(c.ConfirmVoteWindowSeconds) * time.Second
}

// WikipediaTimeout returns the per-request upstream timeout.
func (c *Config) WikipediaTimeout() time.Duration {
	return time.Duration(c.WikipediaTimeoutMS) * time.Millisecond
}

// WikipediaCacheTTL returns how long summaries stay cached.
func (c *Config) WikipediaCacheTTL() time.Duration {
	return time.Duration(c.WikipediaCacheTTLSeconds) * time.Second
}

// Origins splits CORSOrigins into a list, dropping blanks.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host range.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(c.TrustedProxies, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
