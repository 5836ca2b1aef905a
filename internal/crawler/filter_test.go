package crawler

import (
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/wikiacrawl/internal/config"
)

func newTestFilter(t *testing.T, namespaces, excludes []string) *LinkFilter {
	t.Helper()

	cfg := config.NewCrawlConfig()
	cfg.TargetNamespaces = namespaces
	cfg.ExcludePatterns = excludes
	f, err := NewLinkFilter(cfg, []string{"avatar.fandom.com"})
	if err != nil {
		t.Fatalf("failed to create filter: %v", err)
	}
	return f
}

// TestLinkFilterNamespaces tests namespace scoping.
func TestLinkFilterNamespaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		namespaces []string
		link       string
		want       bool
	}{
		{name: "main article", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki/Aang", want: true},
		{name: "main rejects category", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki/Category:Characters", want: false},
		{name: "main rejects special", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki/Special:Random", want: false},
		{name: "main rejects talk with underscore", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki/User_talk:Someone", want: false},
		{name: "colon inside article title", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki/Avatar:_The_Last_Airbender", want: true},
		{name: "category namespace", namespaces: []string{"Category"}, link: "https://avatar.fandom.com/wiki/Category:Characters", want: true},
		{name: "namespace case-insensitive", namespaces: []string{"category"}, link: "https://avatar.fandom.com/wiki/CATEGORY:Characters", want: true},
		{name: "category only rejects article", namespaces: []string{"Category"}, link: "https://avatar.fandom.com/wiki/Aang", want: false},
		{name: "custom namespace", namespaces: []string{"Transcript"}, link: "https://avatar.fandom.com/wiki/Transcript:The_Boy_in_the_Iceberg", want: true},
		{name: "path prefix", namespaces: []string{"/es/wiki/"}, link: "https://avatar.fandom.com/es/wiki/Aang", want: true},
		{name: "outside article path", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/f/p/123", want: false},
		{name: "index.php query link", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/index.php?title=Aang&action=edit", want: false},
		{name: "article path root", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki/", want: true},
		{name: "article path root without slash", namespaces: []string{"Main"}, link: "https://avatar.fandom.com/wiki", want: true},
		{name: "article path root outside main", namespaces: []string{"Category"}, link: "https://avatar.fandom.com/wiki/", want: false},
		{name: "other host", namespaces: []string{"Main"}, link: "https://starwars.fandom.com/wiki/Yoda", want: false},
		{name: "host comparison ignores case", namespaces: []string{"Main"}, link: "https://Avatar.Fandom.com/wiki/Aang", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newTestFilter(t, tt.namespaces, nil)
			if got := f.Allow(tt.link); got != tt.want {
				t.Errorf("Allow(%q) = %v, want %v", tt.link, got, tt.want)
			}
		})
	}
}

// TestLinkFilterExcludes tests the three exclude pattern forms.
func TestLinkFilterExcludes(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, []string{"Main"}, []string{
		"re:(?i)/wiki/.*_\\(disambiguation\\)$",
		"/wiki/*/Gallery",
		"action=",
		"*.png",
	})

	tests := []struct {
		link string
		want bool
	}{
		{"https://avatar.fandom.com/wiki/Aang", true},
		{"https://avatar.fandom.com/wiki/Appa_(Disambiguation)", false},
		{"https://avatar.fandom.com/wiki/Aang/Gallery", false},
		{"https://avatar.fandom.com/wiki/Aang?action=history", false},
		{"https://avatar.fandom.com/wiki/Aang.png", false},
		{"https://avatar.fandom.com/wiki/Aang/History", true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			t.Parallel()

			if got := f.Allow(tt.link); got != tt.want {
				t.Errorf("Allow(%q) = %v, want %v", tt.link, got, tt.want)
			}
		})
	}
}

// TestLinkFilterSiteExcludes tests per-host exclude patterns.
func TestLinkFilterSiteExcludes(t *testing.T) {
	t.Parallel()

	cfg := config.NewCrawlConfig()
	cfg.Sites = map[string]config.SiteConfig{
		"avatar.fandom.com": {ExcludePatterns: []string{"/wiki/Transcript*"}},
	}
	f, err := NewLinkFilter(cfg, []string{"avatar.fandom.com", "legendofkorra.fandom.com"})
	if err != nil {
		t.Fatal(err)
	}

	if f.Allow("https://avatar.fandom.com/wiki/Transcripts") {
		t.Error("expected site pattern to exclude link")
	}
	if !f.Allow("https://legendofkorra.fandom.com/wiki/Transcripts") {
		t.Error("expected site pattern to apply to its own host only")
	}
}

// TestLinkFilterInvalidPattern tests that bad regular expressions surface early.
func TestLinkFilterInvalidPattern(t *testing.T) {
	t.Parallel()

	cfg := config.NewCrawlConfig()
	cfg.ExcludePatterns = []string{"re:([unclosed"}
	_, err := NewLinkFilter(cfg, []string{"avatar.fandom.com"})
	if !errors.Is(err, config.ErrInvalidExcludePattern) {
		t.Errorf("expected ErrInvalidExcludePattern, got %v", err)
	}
}

// TestLinkFilterFilter tests that Filter keeps order.
func TestLinkFilterFilter(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, []string{"Main"}, nil)
	got := f.Filter([]string{
		"https://avatar.fandom.com/wiki/Zuko",
		"https://avatar.fandom.com/wiki/Special:Search",
		"https://avatar.fandom.com/wiki/Azula",
		"https://example.com/wiki/Azula",
		"::not a url",
	})
	want := []string{"https://avatar.fandom.com/wiki/Zuko", "https://avatar.fandom.com/wiki/Azula"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestMatchPattern tests glob matching against paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"prefix match", "/wiki/Special/*", "/wiki/Special/Random", true},
		{"prefix exact", "/wiki/Special/*", "/wiki/Special", true},
		{"prefix partial no match", "/wiki/Special/*", "/wiki/Specialist", false},
		{"extension", "*.png", "/wiki/File:Aang.png", true},
		{"extension no match", "*.png", "/wiki/Aang", false},
		{"segment glob", "/wiki/*/Gallery", "/wiki/Aang/Gallery", true},
		{"single character", "/wiki/Book_?", "/wiki/Book_1", true},
		{"single character no match", "/wiki/Book_?", "/wiki/Book_10", false},
		{"trailing star spans segments", "/wiki/Special:*", "/wiki/Special:Contributions/Someone", true},
		{"trailing star no match", "/wiki/Special:*", "/wiki/Aang", false},
		{"last segment", "Gallery*", "/wiki/Aang/Gallery_of_images", true},
		{"exact", "/wiki/Aang", "/wiki/Aang", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
