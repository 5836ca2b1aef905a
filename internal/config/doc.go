// Package config provides the crawl configuration for wikiacrawl.
// It defines CrawlConfig with its defaults and validation rules, loads
// the YAML configuration file, and resolves per-host overrides.
package config
