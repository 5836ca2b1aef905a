package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched in the
// working directory.
const DefaultConfigFile = "wikiacrawl.yaml"

// legacyConfigFile is the location used by earlier analyzer deployments.
const legacyConfigFile = "config/crawler_config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrMissingKey is returned when a required key is absent from the
	// crawler section of a configuration file.
	ErrMissingKey = fmt.Errorf("%w: missing required key", ErrConfiguration)
)

// File represents the structure of a wikiacrawl configuration file.
type File struct {
	Crawler CrawlerSection        `yaml:"crawler"`
	Sites   map[string]SiteConfig `yaml:"sites,omitempty"`
}

// CrawlerSection is the "crawler:" block of a configuration file.
// Required keys are pointers so that absence can be told apart from
// a zero value.
type CrawlerSection struct {
	RespectRobotsTxt     *bool             `yaml:"respect_robots_txt"`
	UserAgent            *string           `yaml:"user_agent"`
	DefaultDelaySeconds  *float64          `yaml:"default_delay_seconds"`
	TargetNamespaces     []string          `yaml:"target_namespaces"`
	MaxRequestsPerMinute int               `yaml:"max_requests_per_minute,omitempty"`
	TimeoutSeconds       float64           `yaml:"timeout_seconds,omitempty"`
	MaxRetries           *int              `yaml:"max_retries,omitempty"`
	ExcludePatterns      []string          `yaml:"exclude_patterns,omitempty"`
	SaveStateEveryNPages int               `yaml:"save_state_every_n_pages,omitempty"`
	DataDir              string            `yaml:"data_dir,omitempty"`
	ArticlePath          string            `yaml:"article_path,omitempty"`
	Concurrency          int               `yaml:"concurrency,omitempty"`
	MaxBodySize          int64             `yaml:"max_body_size,omitempty"`
	MaxBackoffSeconds    float64           `yaml:"max_backoff_seconds,omitempty"`
	RobotsCacheTTLHours  float64           `yaml:"robots_cache_ttl_hours,omitempty"`
	Cookie               string            `yaml:"cookie,omitempty"`
	Headers              map[string]string `yaml:"headers,omitempty"`
	Proxy                string            `yaml:"proxy,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrConfiguration, path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// Apply overlays the file onto cfg.
// Keys absent from the file keep the values already in cfg, except the
// required keys, whose absence is reported as ErrMissingKey.
func (f *File) Apply(cfg *CrawlConfig) error {
	s := f.Crawler
	switch {
	case s.RespectRobotsTxt == nil:
		return fmt.Errorf("%w: respect_robots_txt", ErrMissingKey)
	case s.UserAgent == nil:
		return fmt.Errorf("%w: user_agent", ErrMissingKey)
	case s.DefaultDelaySeconds == nil:
		return fmt.Errorf("%w: default_delay_seconds", ErrMissingKey)
	case s.TargetNamespaces == nil:
		return fmt.Errorf("%w: target_namespaces", ErrMissingKey)
	}

	cfg.RespectRobotsTxt = *s.RespectRobotsTxt
	cfg.UserAgent = *s.UserAgent
	cfg.DefaultDelay = seconds(*s.DefaultDelaySeconds)
	cfg.TargetNamespaces = s.TargetNamespaces

	if s.MaxRequestsPerMinute != 0 {
		cfg.MaxRequestsPerMinute = s.MaxRequestsPerMinute
	}
	if s.TimeoutSeconds != 0 {
		cfg.Timeout = seconds(s.TimeoutSeconds)
	}
	if s.MaxRetries != nil {
		cfg.MaxRetries = *s.MaxRetries
	}
	if s.ExcludePatterns != nil {
		cfg.ExcludePatterns = s.ExcludePatterns
	}
	if s.SaveStateEveryNPages != 0 {
		cfg.SaveStateEveryNPages = s.SaveStateEveryNPages
	}
	if s.DataDir != "" {
		cfg.DataDir = s.DataDir
	}
	if s.ArticlePath != "" {
		cfg.ArticlePath = s.ArticlePath
	}
	if s.Concurrency != 0 {
		cfg.Concurrency = s.Concurrency
	}
	if s.MaxBodySize != 0 {
		cfg.MaxBodySize = s.MaxBodySize
	}
	if s.MaxBackoffSeconds != 0 {
		cfg.MaxBackoff = seconds(s.MaxBackoffSeconds)
	}
	if s.RobotsCacheTTLHours != 0 {
		cfg.RobotsCacheTTL = time.Duration(s.RobotsCacheTTLHours * float64(time.Hour))
	}
	if s.Cookie != "" {
		cfg.Cookie = s.Cookie
	}
	if len(s.Headers) > 0 {
		cfg.Headers = s.Headers
	}
	if s.Proxy != "" {
		cfg.ProxyAddress = s.Proxy
	}
	if len(f.Sites) > 0 {
		cfg.Sites = f.Sites
	}
	return nil
}

// Load builds a validated CrawlConfig from defaults and the file at path.
// An empty path yields the validated defaults.
func Load(path string) (*CrawlConfig, error) {
	cfg := NewCrawlConfig()
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := f.Apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. wikiacrawl.yaml in the current directory
// 3. config/crawler_config.yaml in the current directory
// 4. config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		for _, name := range []string{DefaultConfigFile, legacyConfigFile} {
			candidate := filepath.Join(cwd, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}
	return ""
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
