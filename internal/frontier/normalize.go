package frontier

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidURL is returned for URLs that cannot be crawled:
// unparsable input, a scheme other than http/https, or a missing host.
var ErrInvalidURL = errors.New("invalid URL")

// NormalizeURL returns the canonical form of rawURL used as the frontier
// and visited key.
//
// The following rules are applied:
//  1. Scheme and host are lowercased, default ports are removed
//  2. The fragment is dropped
//  3. The path is cleaned, NFC-normalized and re-escaped; an empty path
//     becomes "/" and a non-root trailing slash is removed
//  4. Query parameters are sorted by key
//
// Two spellings of the same wiki title ("Aang's" and "Aang%27s") therefore
// share one key.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidURL, rawURL, err)
	}
	return normalize(u)
}

// NormalizeParsed is NormalizeURL for an already parsed URL.
// u is not modified.
func NormalizeParsed(u *url.URL) (string, error) {
	c := *u
	return normalize(&c)
}

func normalize(u *url.URL) (string, error) {
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	u.Host = normalizeHost(u.Scheme, u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	p := norm.NFC.String(u.Path)
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u.Path = p
	u.RawPath = ""

	if u.RawQuery != "" {
		if q, err := url.ParseQuery(u.RawQuery); err == nil {
			u.RawQuery = q.Encode()
		}
	}
	u.ForceQuery = false

	return u.String(), nil
}

func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// Host returns the lowercased host (with port) of a normalized URL.
func Host(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return ""
	}
	return u.Host
}
