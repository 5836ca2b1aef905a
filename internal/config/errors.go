package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every configuration error.
// Callers test for it with errors.Is to tell bad input apart from
// runtime failures.
var ErrConfiguration = errors.New("configuration error")

// Configuration validation errors returned by CrawlConfig.Validate().
var (
	// ErrEmptyUserAgent is returned when the user agent is blank.
	// robots.txt groups are selected by agent name, so it is mandatory.
	ErrEmptyUserAgent = fmt.Errorf("%w: user agent must not be empty", ErrConfiguration)

	// ErrInvalidDelay is returned when the default delay is negative.
	ErrInvalidDelay = fmt.Errorf("%w: default delay must be non-negative", ErrConfiguration)

	// ErrInvalidRequestsPerMinute is returned when the per-minute cap is not positive.
	ErrInvalidRequestsPerMinute = fmt.Errorf("%w: max requests per minute must be positive", ErrConfiguration)

	// ErrNoNamespaces is returned when no target namespace is configured
	// or one of them is blank.
	ErrNoNamespaces = fmt.Errorf("%w: at least one non-empty target namespace is required", ErrConfiguration)

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = fmt.Errorf("%w: timeout must be positive", ErrConfiguration)

	// ErrInvalidMaxRetries is returned when max retries is negative.
	ErrInvalidMaxRetries = fmt.Errorf("%w: max retries must be non-negative", ErrConfiguration)

	// ErrInvalidSaveInterval is returned when the checkpoint interval is below one page.
	ErrInvalidSaveInterval = fmt.Errorf("%w: save state interval must be at least 1", ErrConfiguration)

	// ErrInvalidExcludePattern is returned for a blank pattern or a "re:"
	// pattern that does not compile.
	ErrInvalidExcludePattern = fmt.Errorf("%w: invalid exclude pattern", ErrConfiguration)

	// ErrEmptyDataDir is returned when the data directory is blank.
	ErrEmptyDataDir = fmt.Errorf("%w: data directory must not be empty", ErrConfiguration)

	// ErrInvalidArticlePath is returned when the article path does not
	// start and end with "/".
	ErrInvalidArticlePath = fmt.Errorf("%w: article path must start and end with /", ErrConfiguration)

	// ErrInvalidConcurrency is returned when concurrency is below one.
	ErrInvalidConcurrency = fmt.Errorf("%w: concurrency must be at least 1", ErrConfiguration)

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = fmt.Errorf("%w: max body size must be non-negative", ErrConfiguration)

	// ErrInvalidMaxBackoff is returned when the backoff cap is negative.
	ErrInvalidMaxBackoff = fmt.Errorf("%w: max backoff must be non-negative", ErrConfiguration)

	// ErrInvalidProxyAddress is returned when the proxy is not "host:port".
	ErrInvalidProxyAddress = fmt.Errorf("%w: proxy address must be host:port", ErrConfiguration)
)
