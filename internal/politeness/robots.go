package politeness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// failureTTL is how long a fail-open result is cached after robots.txt
// could not be fetched or parsed.
const failureTTL = 5 * time.Minute

// maxRobotsSize caps the robots.txt body; larger files are truncated.
const maxRobotsSize = 512 * 1024

// Decision is the robots.txt verdict for one URL.
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsAgent evaluates robots.txt rules with a per-host cache.
//
// Any failure to obtain rules (network error, 5xx, unparsable body) allows
// the URL. A 4xx robots.txt is treated as "no rules". Concurrent first
// contact with a host performs a single fetch.
type RobotsAgent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	cacheDir  string
	logger    *slog.Logger

	// gate, when set, is awaited before each robots.txt request so that
	// it counts against the host's politeness budget.
	gate func(ctx context.Context, host string) error

	mu    sync.RWMutex
	cache map[string]robotsEntry
	group singleflight.Group
}

type robotsEntry struct {
	expires time.Time
	// rules is nil when the host is unrestricted or lookup failed.
	rules *robotstxt.RobotsData
}

// RobotsOption configures a RobotsAgent.
type RobotsOption func(*RobotsAgent)

// WithCacheTTL sets how long fetched rules stay valid.
func WithCacheTTL(ttl time.Duration) RobotsOption {
	return func(a *RobotsAgent) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithCacheDir stores fetched robots.txt bodies under dir so that a
// resumed crawl does not refetch them within the TTL.
func WithCacheDir(dir string) RobotsOption {
	return func(a *RobotsAgent) {
		a.cacheDir = dir
	}
}

// WithRobotsLogger sets the logger.
func WithRobotsLogger(logger *slog.Logger) RobotsOption {
	return func(a *RobotsAgent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewRobotsAgent creates a RobotsAgent that fetches with client and
// matches groups by userAgent.
func NewRobotsAgent(client *http.Client, userAgent string, opts ...RobotsOption) *RobotsAgent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	a := &RobotsAgent{
		client:    client,
		userAgent: userAgent,
		ttl:       24 * time.Hour,
		logger:    slog.Default(),
		cache:     make(map[string]robotsEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check returns the robots.txt decision for target.
func (a *RobotsAgent) Check(ctx context.Context, target *url.URL) Decision {
	allow := Decision{Allowed: true}
	if target == nil || !target.IsAbs() {
		return allow
	}

	rules := a.rules(ctx, target)
	if rules == nil {
		return allow
	}

	group := rules.FindGroup(a.userAgent)
	if group == nil {
		return allow
	}

	p := target.EscapedPath()
	if p == "" {
		p = "/"
	}
	if target.RawQuery != "" {
		p += "?" + target.RawQuery
	}
	return Decision{
		Allowed:    group.Test(p),
		CrawlDelay: group.CrawlDelay,
	}
}

func (a *RobotsAgent) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, ok := a.cache[host]
	a.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.rules
	}

	v, _, _ := a.group.Do(host, func() (any, error) {
		entry := a.load(ctx, target.Scheme, host)
		a.mu.Lock()
		a.cache[host] = entry
		a.mu.Unlock()
		return entry, nil
	})
	return v.(robotsEntry).rules //nolint:forcetypeassert // only robotsEntry is stored
}

func (a *RobotsAgent) load(ctx context.Context, scheme, host string) robotsEntry {
	if data, fetched, ok := a.readDisk(host); ok {
		if rules, err := robotstxt.FromBytes(data); err == nil {
			return robotsEntry{expires: fetched.Add(a.ttl), rules: rules}
		}
	}

	if a.gate != nil {
		if err := a.gate(ctx, host); err != nil {
			// An already expired entry is looked up again next time.
			return robotsEntry{}
		}
	}

	robotsURL := scheme + "://" + host + "/robots.txt"
	rules, body, err := a.fetch(ctx, robotsURL)
	if err != nil {
		if ctx.Err() != nil {
			return robotsEntry{}
		}
		a.logger.Warn("robots.txt unavailable, allowing all",
			"host", host,
			"error", err)
		return robotsEntry{expires: time.Now().Add(failureTTL)}
	}
	if body != nil {
		a.writeDisk(host, body)
	}
	return robotsEntry{expires: time.Now().Add(a.ttl), rules: rules}
}

// fetch downloads and parses robots.txt. The returned body is nil when
// the response carried no rules worth caching on disk.
func (a *RobotsAgent) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read robots.txt: %w", err)
	}
	rules, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}
	return rules, body, nil
}

func (a *RobotsAgent) diskPath(host string) string {
	return filepath.Join(a.cacheDir, strings.ReplaceAll(host, ":", "_")+".txt")
}

func (a *RobotsAgent) readDisk(host string) ([]byte, time.Time, bool) {
	if a.cacheDir == "" {
		return nil, time.Time{}, false
	}
	p := a.diskPath(host)
	info, err := os.Stat(p)
	if err != nil || time.Since(info.ModTime()) >= a.ttl {
		return nil, time.Time{}, false
	}
	data, err := os.ReadFile(p) //nolint:gosec // path is built from the project cache dir
	if err != nil {
		return nil, time.Time{}, false
	}
	return data, info.ModTime(), true
}

func (a *RobotsAgent) writeDisk(host string, body []byte) {
	if a.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(a.cacheDir, 0o750); err != nil {
		a.logger.Debug("failed to create robots cache dir", "error", err)
		return
	}
	if err := os.WriteFile(a.diskPath(host), body, 0o600); err != nil {
		a.logger.Debug("failed to cache robots.txt", "host", host, "error", err)
	}
}
