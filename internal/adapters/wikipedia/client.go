// Package wikipedia fetches page summaries used to decorate celebrity profiles.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/internal/domain/ratelimit"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/okian/whovapes/pkg/metrics"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the REST endpoint of English Wikipedia.
const DefaultBaseURL = "https://en.wikipedia.org/api/rest_v1"

const limiterKey = "wikipedia"

// Summary is the subset of a page summary the site displays.
type Summary struct {
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Extract      string `json:"extract,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PageURL      string `json:"page_url,omitempty"`
}

// Empty reports whether nothing was found for the page.
func (s Summary) Empty() bool { return s == Summary{} }

type summaryResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	Thumbnail   struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type cacheEntry struct {
	summary Summary
	expires time.Time
}

// Client is a cached, rate limited page summary client.
type Client struct {
	baseURL     string
	userAgent   string
	http        *fasthttp.Client
	timeout     time.Duration
	ttl         time.Duration
	concurrency int

	limiter ratelimit.Limiter
	limit   int
	window  time.Duration

	mu         sync.RWMutex
	cache      map[string]cacheEntry
	maxEntries int
	lastSweep  time.Time
	group      singleflight.Group

	log logger.Logger
	now func() time.Time
}

// New creates a client with configuration options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		userAgent:   "whovapes/1.0",
		timeout:     3 * time.Second,
		ttl:         time.Hour,
		concurrency: 4,
		limit:       50,
		window:      time.Minute,
		cache:       make(map[string]cacheEntry),
		maxEntries:  10_000,
		log:         logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewInMemoryLimiter(ratelimit.WithClock(c.now))
	}
	c.http = &fasthttp.Client{
		MaxConnsPerHost:     32,
		ReadTimeout:         c.timeout,
		WriteTimeout:        c.timeout,
		MaxIdleConnDuration: time.Minute,
	}
	return c
}

// Summary returns the page summary for key. Missing pages yield an error
// wrapping model.ErrNotFound; transport and decoding failures wrap
// model.ErrUpstream.
func (c *Client) Summary(ctx context.Context, key string) (Summary, error) {
	key = normalizeKey(key)
	if key == "" {
		return Summary{}, model.NewValidationError("wiki_key", "must not be empty")
	}

	if s, ok := c.cached(key); ok {
		metrics.RecordUpstreamCacheHit()
		if s.Empty() {
			return Summary{}, &model.NotFoundError{Kind: "wikipedia page", ID: key}
		}
		return s, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return Summary{}, err
	}
	s := v.(Summary)
	if s.Empty() {
		return Summary{}, &model.NotFoundError{Kind: "wikipedia page", ID: key}
	}
	return s, nil
}

// EnrichAll fetches summaries for keys with bounded concurrency. Failures are
// isolated per key and degrade to an empty Summary.
func (c *Client) EnrichAll(ctx context.Context, keys []string) map[string]Summary {
	out := make(map[string]Summary, len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		g.Go(func() error {
			s, err := c.Summary(gctx, key)
			if err != nil && !model.IsClientError(err) {
				c.log.Debug(gctx, "summary degraded", logger.String("key", key), logger.Error(err))
			}
			mu.Lock()
			out[key] = s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Invalidate drops the cached entry for key.
func (c *Client) Invalidate(key string) {
	c.mu.Lock()
	delete(c.cache, normalizeKey(key))
	c.mu.Unlock()
}

func (c *Client) cached(key string) (Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[key]
	if !ok || c.now().After(e.expires) {
		return Summary{}, false
	}
	return e.summary, true
}

// CacheLen returns the number of cached summaries, expired ones included
// until the next sweep.
func (c *Client) CacheLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// store caches s. Expired entries are swept at most once per ttl, or whenever
// the cache is full; a full cache then drops the entry closest to expiry.
func (c *Client) store(key string, s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	_, exists := c.cache[key]
	full := !exists && len(c.cache) >= c.maxEntries
	if full || now.Sub(c.lastSweep) >= c.ttl {
		c.sweepLocked(now)
	}
	if !exists && len(c.cache) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.cache[key] = cacheEntry{summary: s, expires: now.Add(c.ttl)}
}

func (c *Client) sweepLocked(now time.Time) {
	for k, e := range c.cache {
		if now.After(e.expires) {
			delete(c.cache, k)
		}
	}
	c.lastSweep = now
}

func (c *Client) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for k, e := range c.cache {
		if oldest == "" || e.expires.Before(at) {
			oldest, at = k, e.expires
		}
	}
	delete(c.cache, oldest)
}

func (c *Client) fetch(ctx context.Context, key string) (Summary, error) {
	if err := c.limiter.CheckAndRecord(limiterKey, c.window, c.limit).Err("wikipedia"); err != nil {
		metrics.RecordRateLimited("wikipedia")
		return Summary{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/page/summary/" + url.PathEscape(key))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.SetUserAgent(c.userAgent)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordUpstreamRequest("error", elapsed)
		return Summary{}, model.Upstream("wikipedia summary", err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		metrics.RecordUpstreamRequest("not_found", elapsed)
		c.store(key, Summary{})
		return Summary{}, nil
	case status != fasthttp.StatusOK:
		metrics.RecordUpstreamRequest("error", elapsed)
		return Summary{}, model.Upstream("wikipedia summary", fmt.Errorf("unexpected status %d", status))
	}

	var body summaryResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.RecordUpstreamRequest("error", elapsed)
		return Summary{}, model.Upstream("wikipedia summary", err)
	}
	metrics.RecordUpstreamRequest("ok", elapsed)

	s := Summary{
		Title:        body.Title,
		Description:  body.Description,
		Extract:      body.Extract,
		ThumbnailURL: body.Thumbnail.Source,
		PageURL:      body.ContentURLs.Desktop.Page,
	}
	c.store(key, s)
	return s, nil
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), " ", "_")
}
