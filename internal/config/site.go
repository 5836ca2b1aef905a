package config

import "maps"

// SiteConfig holds per-host overrides.
// Fandom wikis behind a login or a regional gateway often need a session
// cookie or an extra header that must not leak to other hosts.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use for this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// ExcludePatterns are added to the global exclude patterns for this host.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
}

// Site returns the effective configuration for a host.
// The global cookie, headers and exclude patterns act as defaults;
// a host entry overrides the cookie, merges headers and appends patterns.
func (c *CrawlConfig) Site(host string) SiteConfig {
	result := SiteConfig{
		Cookie:          c.Cookie,
		ExcludePatterns: append([]string(nil), c.ExcludePatterns...),
	}
	if len(c.Headers) > 0 {
		result.Headers = maps.Clone(c.Headers)
	}

	site, ok := c.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	result.ExcludePatterns = append(result.ExcludePatterns, site.ExcludePatterns...)
	return result
}
