package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/nao1215/wikiacrawl/internal/config"
)

// mainNamespace is the folded name of the article namespace.
const mainNamespace = "main"

// knownNamespaces are the MediaWiki and Fandom namespace prefixes, folded
// and with underscores as spaces. A title prefix outside this list (and
// outside the configured namespaces) is part of an article title, as in
// "Avatar: The Last Airbender".
var knownNamespaces = map[string]struct{}{
	"media": {}, "special": {}, "talk": {}, "user": {}, "user talk": {},
	"project": {}, "project talk": {}, "file": {}, "file talk": {}, "image": {},
	"mediawiki": {}, "mediawiki talk": {}, "template": {}, "template talk": {},
	"help": {}, "help talk": {}, "category": {}, "category talk": {},
	"forum": {}, "forum talk": {}, "module": {}, "module talk": {},
	"blog": {}, "user blog": {}, "user blog comment": {}, "message wall": {},
	"message wall greeting": {}, "thread": {}, "board": {}, "board thread": {},
	"topic": {}, "map": {}, "map talk": {}, "w": {},
}

// LinkFilter decides whether a link belongs to the crawl.
//
// A link passes when all of the following hold:
//  1. its host is one of the allowed hosts
//  2. its path lies in a target namespace
//  3. no exclude pattern for its host matches it
type LinkFilter struct {
	cfg   *config.CrawlConfig
	hosts map[string]struct{}

	articlePath  string
	namespaces   map[string]struct{}
	pathPrefixes []string

	mu       sync.Mutex
	excludes map[string][]excludeRule
}

// NewLinkFilter creates a LinkFilter for the allowed hosts.
func NewLinkFilter(cfg *config.CrawlConfig, hosts []string) (*LinkFilter, error) {
	f := &LinkFilter{
		cfg:         cfg,
		hosts:       make(map[string]struct{}, len(hosts)),
		articlePath: cfg.ArticlePath,
		namespaces:  make(map[string]struct{}),
		excludes:    make(map[string][]excludeRule),
	}
	for _, h := range hosts {
		f.hosts[strings.ToLower(h)] = struct{}{}
	}
	for _, ns := range cfg.TargetNamespaces {
		ns = strings.TrimSpace(ns)
		if strings.HasPrefix(ns, "/") {
			f.pathPrefixes = append(f.pathPrefixes, ns)
			continue
		}
		f.namespaces[foldNamespace(ns)] = struct{}{}
	}
	// Surface bad patterns now rather than on the first link.
	for _, h := range hosts {
		if _, err := f.rulesFor(strings.ToLower(h)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Allow reports whether link is in scope.
func (f *LinkFilter) Allow(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return f.AllowURL(u)
}

// AllowURL is Allow for a parsed URL.
func (f *LinkFilter) AllowURL(u *url.URL) bool {
	host := strings.ToLower(u.Host)
	if _, ok := f.hosts[host]; !ok {
		return false
	}
	if !f.inNamespace(u) {
		return false
	}
	rules, err := f.rulesFor(host)
	if err != nil {
		return false
	}
	full := u.String()
	for _, r := range rules {
		if r.match(full, u.Path) {
			return false
		}
	}
	return true
}

// Filter returns the links that pass, keeping their order.
func (f *LinkFilter) Filter(links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if f.Allow(l) {
			out = append(out, l)
		}
	}
	return out
}

func (f *LinkFilter) inNamespace(u *url.URL) bool {
	for _, prefix := range f.pathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	if len(f.namespaces) == 0 {
		return false
	}

	// The article path root serves the main page. Normalized URLs lose the
	// trailing slash, so both spellings are accepted.
	if u.Path == f.articlePath || u.Path+"/" == f.articlePath {
		_, ok := f.namespaces[mainNamespace]
		return ok
	}
	title, ok := strings.CutPrefix(u.Path, f.articlePath)
	if !ok || title == "" {
		return false
	}
	_, ok = f.namespaces[f.namespaceOf(title)]
	return ok
}

// namespaceOf returns the folded namespace of a title.
func (f *LinkFilter) namespaceOf(title string) string {
	prefix, _, found := strings.Cut(title, ":")
	if !found {
		return mainNamespace
	}
	ns := foldNamespace(prefix)
	if _, ok := knownNamespaces[ns]; ok {
		return ns
	}
	if _, ok := f.namespaces[ns]; ok {
		return ns
	}
	return mainNamespace
}

// foldNamespace canonicalizes a namespace name for comparison.
// MediaWiki treats "Category", "category" and "CATEGORY" alike and uses
// underscores and spaces interchangeably.
func foldNamespace(ns string) string {
	ns = strings.TrimSpace(strings.ReplaceAll(ns, "_", " "))
	return cases.Fold().String(ns)
}

func (f *LinkFilter) rulesFor(host string) ([]excludeRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rules, ok := f.excludes[host]; ok {
		return rules, nil
	}
	patterns := f.cfg.Site(host).ExcludePatterns
	rules := make([]excludeRule, 0, len(patterns))
	for _, p := range patterns {
		r, err := newExcludeRule(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	f.excludes[host] = rules
	return rules, nil
}

// excludeRule is one compiled exclude pattern.
type excludeRule struct {
	raw    string
	re     *regexp.Regexp
	isGlob bool
}

func newExcludeRule(pattern string) (excludeRule, error) {
	if expr, ok := strings.CutPrefix(pattern, config.RegexPatternPrefix); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return excludeRule{}, fmt.Errorf("%w: %q: %w", config.ErrInvalidExcludePattern, pattern, err)
		}
		return excludeRule{raw: pattern, re: re}, nil
	}
	return excludeRule{raw: pattern, isGlob: strings.ContainsAny(pattern, "*?[")}, nil
}

func (r excludeRule) match(fullURL, path string) bool {
	switch {
	case r.re != nil:
		return r.re.MatchString(fullURL)
	case r.isGlob:
		return matchPattern(r.raw, path)
	default:
		return strings.Contains(fullURL, r.raw)
	}
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/wiki/Special:*" matches "/wiki/Special:Random"
//   - "/wiki/*/*" matches "/wiki/Aang/Gallery"
//   - "*.png" matches "/wiki/File:Aang.png"
func matchPattern(pattern, path string) bool {
	// "/prefix/*" matches everything below prefix, including deeper paths.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last segment.
	if !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	// A trailing * after a non-slash prefix ("/wiki/Special:*") also spans
	// deeper paths such as "/wiki/Special:Contributions/Foo".
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, "*?[") {
		return strings.HasPrefix(path, prefix)
	}
	return false
}
