package crawler

import (
	"slices"
	"testing"
)

// TestParser tests HTML link parsing.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result := parser.Parse(ParseHTML([]byte(`<html><head><title>Aang | Avatar Wiki | Fandom</title></head><body></body></html>`)))
		if result.Title != "Aang | Avatar Wiki | Fandom" {
			t.Errorf("unexpected title %q", result.Title)
		}
	})

	t.Run("resolves and normalizes links in document order", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/wiki/Katara">Katara</a>
			<a href="Sokka#Early_life">Sokka</a>
			<a href="https://AVATAR.fandom.com:443/wiki/Appa/">Appa</a>
			<a href="/wiki/Katara#Personality">Katara again</a>
			<map><area href="/wiki/Omashu"></map>
			<a href="https://example.com/elsewhere">External</a>
		</body></html>`

		parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
		if err != nil {
			t.Fatal(err)
		}
		got := parser.Parse(ParseHTML([]byte(html))).Links
		want := []string{
			"https://avatar.fandom.com/wiki/Katara",
			"https://avatar.fandom.com/wiki/Sokka",
			"https://avatar.fandom.com/wiki/Appa",
			"https://avatar.fandom.com/wiki/Omashu",
			"https://example.com/elsewhere",
		}
		if !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("honors base element", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
		if err != nil {
			t.Fatal(err)
		}
		got := parser.Parse(ParseHTML([]byte(`<html><head><base href="https://avatar.fandom.com/es/wiki/"></head><body><a href="Zuko">Zuko</a></body></html>`))).Links
		if len(got) != 1 || got[0] != "https://avatar.fandom.com/es/wiki/Zuko" {
			t.Errorf("unexpected links %v", got)
		}
	})

	t.Run("skips non-navigational links", func(t *testing.T) {
		t.Parallel()

		html := `<a href="javascript:void(0)">js</a>
			<a href="mailto:someone@example.com">mail</a>
			<a href="tel:123">tel</a>
			<a href="data:text/plain,hi">data</a>
			<a href="#top">top</a>
			<a href="">empty</a>
			<a>no href</a>
			<a href="ftp://files.example.com/a">ftp</a>`

		parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
		if err != nil {
			t.Fatal(err)
		}
		if got := parser.Parse(ParseHTML([]byte(html))).Links; len(got) != 0 {
			t.Errorf("expected no links, got %v", got)
		}
	})

	t.Run("malformed HTML yields partial result", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><div><a href="/wiki/Toph">Toph<table><tr><td><a href="/wiki/Iroh">Iroh</td></div><p><b>unclosed`
		parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
		if err != nil {
			t.Fatal(err)
		}
		got := parser.Parse(ParseHTML([]byte(html))).Links
		if !slices.Contains(got, "https://avatar.fandom.com/wiki/Toph") || !slices.Contains(got, "https://avatar.fandom.com/wiki/Iroh") {
			t.Errorf("expected both links, got %v", got)
		}
	})

	t.Run("page without links", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
		if err != nil {
			t.Fatal(err)
		}
		got := parser.Parse(ParseHTML([]byte(`<html><body><p>No links here.</p></body></html>`))).Links
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil links, got %#v", got)
		}
	})

	t.Run("invalid base URL", func(t *testing.T) {
		t.Parallel()

		if _, err := NewParser("://bad"); err == nil {
			t.Error("expected error for invalid base URL")
		}
	})
}

// TestResolveURL tests relative link resolution.
func TestResolveURL(t *testing.T) {
	t.Parallel()

	parser, err := NewParser("https://avatar.fandom.com/wiki/Aang")
	if err != nil {
		t.Fatal(err)
	}
	base := parser.baseURL

	tests := []struct {
		name string
		href string
		want string
	}{
		{name: "absolute path", href: "/wiki/Katara", want: "https://avatar.fandom.com/wiki/Katara"},
		{name: "relative", href: "Katara", want: "https://avatar.fandom.com/wiki/Katara"},
		{name: "parent", href: "../Special:Random", want: "https://avatar.fandom.com/Special:Random"},
		{name: "protocol relative", href: "//avatar.fandom.com/wiki/Zuko", want: "https://avatar.fandom.com/wiki/Zuko"},
		{name: "query sorted", href: "/index.php?title=Aang&action=history", want: "https://avatar.fandom.com/index.php?action=history&title=Aang"},
		{name: "whitespace", href: "  /wiki/Toph  ", want: "https://avatar.fandom.com/wiki/Toph"},
		{name: "fragment only", href: "#History", want: ""},
		{name: "mailto", href: "MAILTO:x@example.com", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := resolveURL(base, tt.href); got != tt.want {
				t.Errorf("resolveURL(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}
