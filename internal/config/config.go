package config

import (
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Most of them mirror the politeness expectations of public wiki farms:
// one request per second and at most sixty requests per minute per host.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "wikiacrawl"

	// DefaultUserAgent identifies the crawler in HTTP requests and is the
	// agent name used when evaluating robots.txt groups.
	DefaultUserAgent = "WikiaAnalyzer/0.1.0"

	// DefaultDelay is the minimum spacing between two requests to one host.
	DefaultDelay = 1 * time.Second

	// DefaultMaxRequestsPerMinute caps requests to one host in any rolling
	// 60-second window.
	DefaultMaxRequestsPerMinute = 60

	// DefaultTimeout bounds a single HTTP request including body transfer.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt
	// for a retryable failure.
	DefaultMaxRetries = 3

	// DefaultSaveStateEveryNPages is the checkpoint interval counted in
	// successfully crawled pages.
	DefaultSaveStateEveryNPages = 10

	// DefaultDataDir is the root under which projects/<name>/ is created.
	DefaultDataDir = "data"

	// DefaultArticlePath is the MediaWiki article path ($wgArticlePath
	// without the $1 placeholder). Fandom and Wikipedia both use /wiki/.
	DefaultArticlePath = "/wiki/"

	// DefaultConcurrency is the number of pages fetched in parallel.
	// One worker keeps the crawl strictly sequential.
	DefaultConcurrency = 1

	// DefaultMaxBodySize limits the response body size to read.
	// Wiki pages with large infoboxes rarely exceed 2MB of HTML.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMaxBackoff caps the exponential retry delay.
	DefaultMaxBackoff = 300 * time.Second

	// DefaultRobotsCacheTTL is how long a fetched robots.txt stays valid.
	DefaultRobotsCacheTTL = 24 * time.Hour
)

// DefaultNamespace is the MediaWiki namespace that holds articles.
const DefaultNamespace = "Main"

// CrawlConfig holds every option that shapes a crawl.
// It is built from defaults, then overlaid with a YAML file and CLI flags,
// and validated once before a WikiaCrawler is constructed.
type CrawlConfig struct {
	// RespectRobotsTxt enables robots.txt evaluation before every fetch.
	RespectRobotsTxt bool

	// UserAgent is sent with every request and used for robots.txt matching.
	UserAgent string

	// DefaultDelay is the minimum spacing between requests to one host.
	// It also seeds the exponential retry backoff.
	DefaultDelay time.Duration

	// MaxRequestsPerMinute caps requests per host in a rolling 60s window.
	MaxRequestsPerMinute int

	// TargetNamespaces lists the namespaces a URL must belong to.
	// An entry starting with "/" is a literal path prefix; anything else
	// is a MediaWiki namespace name such as "Main" or "Category".
	TargetNamespaces []string

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// ExcludePatterns removes matching URLs from the crawl.
	// "re:" prefixes a regular expression, a pattern with *, ? or [ is a glob,
	// anything else is a substring.
	ExcludePatterns []string

	// SaveStateEveryNPages is the checkpoint interval in crawled pages.
	SaveStateEveryNPages int

	// DataDir is the root of the project storage tree.
	DataDir string

	// ArticlePath is the path prefix under which namespaces are resolved.
	ArticlePath string

	// Concurrency is the number of fetch workers per batch.
	Concurrency int

	// MaxBodySize is the maximum response body in bytes.
	// Larger responses fail permanently. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// MaxBackoff caps the retry delay. Zero disables the cap.
	MaxBackoff time.Duration

	// RobotsCacheTTL is how long a robots.txt result stays cached.
	RobotsCacheTTL time.Duration

	// Cookie is sent with every request ("name=value; name2=value2").
	// It is redacted from logs.
	Cookie string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	// Empty means a direct connection.
	ProxyAddress string

	// Sites holds per-host overrides for cookie, headers and exclusions.
	Sites map[string]SiteConfig

	// Verbose enables debug logging.
	Verbose bool
}

// NewCrawlConfig creates a CrawlConfig with default values.
func NewCrawlConfig() *CrawlConfig {
	return &CrawlConfig{
		RespectRobotsTxt:     true,
		UserAgent:            DefaultUserAgent,
		DefaultDelay:         DefaultDelay,
		MaxRequestsPerMinute: DefaultMaxRequestsPerMinute,
		TargetNamespaces:     []string{DefaultNamespace},
		Timeout:              DefaultTimeout,
		MaxRetries:           DefaultMaxRetries,
		SaveStateEveryNPages: DefaultSaveStateEveryNPages,
		DataDir:              DefaultDataDir,
		ArticlePath:          DefaultArticlePath,
		Concurrency:          DefaultConcurrency,
		MaxBodySize:          DefaultMaxBodySize,
		MaxBackoff:           DefaultMaxBackoff,
		RobotsCacheTTL:       DefaultRobotsCacheTTL,
	}
}

// XDGDataDir returns the XDG data directory for wikiacrawl.
// On Linux: ~/.local/share/wikiacrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wikiacrawl.
// On Linux: ~/.config/wikiacrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// BodyLimit returns the effective response body limit.
func (c *CrawlConfig) BodyLimit() int64 {
	if c.MaxBodySize == 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}

// Validate checks if the configuration is valid.
// It returns the first violated rule; every returned error matches
// ErrConfiguration with errors.Is.
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.UserAgent) == "" {
		return ErrEmptyUserAgent
	}
	if c.DefaultDelay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxRequestsPerMinute <= 0 {
		return ErrInvalidRequestsPerMinute
	}
	if len(c.TargetNamespaces) == 0 {
		return ErrNoNamespaces
	}
	for _, ns := range c.TargetNamespaces {
		if strings.TrimSpace(ns) == "" {
			return ErrNoNamespaces
		}
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.SaveStateEveryNPages < 1 {
		return ErrInvalidSaveInterval
	}
	if err := validatePatterns(c.ExcludePatterns); err != nil {
		return err
	}
	for _, site := range c.Sites {
		if err := validatePatterns(site.ExcludePatterns); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return ErrEmptyDataDir
	}
	if !strings.HasPrefix(c.ArticlePath, "/") || !strings.HasSuffix(c.ArticlePath, "/") {
		return ErrInvalidArticlePath
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxBackoff < 0 {
		return ErrInvalidMaxBackoff
	}
	if c.ProxyAddress != "" {
		if _, _, err := net.SplitHostPort(c.ProxyAddress); err != nil {
			return ErrInvalidProxyAddress
		}
	}
	return nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return ErrInvalidExcludePattern
		}
		if expr, ok := strings.CutPrefix(p, RegexPatternPrefix); ok {
			if _, err := regexp.Compile(expr); err != nil {
				return ErrInvalidExcludePattern
			}
		}
	}
	return nil
}

// RegexPatternPrefix marks an exclude pattern as a regular expression.
const RegexPatternPrefix = "re:"
