package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix  = "WHOVAPES_"
	EnvConfig  = "WHOVAPES_CONFIG"
	EnvDotFile = "WHOVAPES_ENV_FILE"
)

const defaultDotFile = ".env"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if WHOVAPES_CONFIG is set
//  3. env (prefix WHOVAPES_), after a .env file has been merged into it
func Load(_ context.Context) (*Config, error) {
	base := New()

	// A missing .env file is normal; variables already set are never overridden.
	dotFile := os.Getenv(EnvDotFile)
	if dotFile == "" {
		dotFile = defaultDotFile
	}
	if err := godotenv.Load(dotFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, dotFile, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like WHOVAPES_VOTE_LIMIT -> vote_limit (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges after loading.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr", "must not be empty")
	case c.DBDriver != "sqlite" && c.DBDriver != "postgres":
		return invalid("db_driver", "must be sqlite or postgres")
	case strings.TrimSpace(c.DBDSN) == "":
		return invalid("db_dsn", "must not be empty")
	case c.ScanPageSize < 1:
		return invalid("scan_page_size", "must be positive")
	case c.SnapshotTTLSeconds < 1:
		return invalid("snapshot_ttl_seconds", "must be positive")
	case c.DefaultKFactor < 1 || c.DefaultKFactor > 64:
		return invalid("default_k_factor", "must be between 1 and 64")
	case c.VoteLimit < 1 || c.VoteWindowSeconds < 1:
		return invalid("vote_limit", "limit and window must be positive")
	case c.ConfirmVoteLimit < 1 || c.ConfirmVoteWindowSeconds < 1:
		return invalid("confirm_vote_limit", "limit and window must be positive")
	case c.SkipQueueSize < 1:
		return invalid("skip_queue_size", "must be positive")
	case c.SkipWorkerCount < 1:
		return invalid("skip_worker_count", "must be positive")
	case c.MaxRecentMatches < 1:
		return invalid("max_recent_matches", "must be positive")
	case c.IdempotencyCacheSize < 1:
		return invalid("idempotency_cache_size", "must be positive")
	case c.WikipediaTimeoutMS < 1 || c.WikipediaCacheTTLSeconds < 1:
		return invalid("wikipedia_timeout_ms", "timeout and cache ttl must be positive")
	case c.WikipediaCacheSize < 1:
		return invalid("wikipedia_cache_size", "must be positive")
	case c.WikipediaRateLimit < 1 || c.WikipediaEnrichConcurrency < 1:
		return invalid("wikipedia_rate_limit", "rate limit and concurrency must be positive")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return invalid("trusted_proxies", err.Error())
	}
	return nil
}

func invalid(key, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, key, msg)
}
