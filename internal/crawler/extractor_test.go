package crawler

import (
	"slices"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Aang | Avatar Wiki | Fandom</title></head>
<body>
<nav class="wds-global-navigation"><a href="/wiki/Special:Search">Search</a></nav>
<h1 class="page-header__title">Aang</h1>
<div class="page-header__categories">
  <a href="/wiki/Category:Air_Nomads">Air Nomads</a>
  <a href="/wiki/Category:Avatars">Avatars</a>
  <a href="/wiki/Category:Avatars">Avatars</a>
</div>
<div id="mw-content-text"><div class="mw-parser-output">
  <aside class="portable-infobox">
    <div class="pi-data" data-source="nationality">
      <h3 class="pi-data-label">Nationality</h3>
      <div class="pi-data-value">Southern Air Temple</div>
    </div>
    <div class="pi-data" data-source="age">
      <div class="pi-data-value">12 (112)</div>
    </div>
  </aside>
  <p>Aang was the Avatar and the last surviving Air Nomad. He was a monk of the
     Southern Air Temple and a friend of <a href="/wiki/Katara">Katara</a>
     and <a href="/wiki/Sokka">Sokka</a>.</p>
  <span class="mw-editsection">[edit]</span>
  <script>var hidden = 1;</script>
  <p>See also <a href="/wiki/Category:Characters">characters</a> and
     <a href="https://example.com/fan-site">a fan site</a>.</p>
</div></div>
</body>
</html>`

// TestLinkExtractor tests that only in-scope links are returned.
func TestLinkExtractor(t *testing.T) {
	t.Parallel()

	e := NewLinkExtractor(newTestFilter(t, []string{"Main"}, nil))
	got := e.ExtractLinks(ParseHTML([]byte(articleHTML)), "https://avatar.fandom.com/wiki/Aang")
	want := []string{
		"https://avatar.fandom.com/wiki/Katara",
		"https://avatar.fandom.com/wiki/Sokka",
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	t.Run("invalid base yields no links", func(t *testing.T) {
		t.Parallel()
		if got := e.ExtractLinks(ParseHTML([]byte(articleHTML)), "://bad"); len(got) != 0 {
			t.Errorf("expected no links, got %v", got)
		}
	})
}

// TestExtractContent tests article content extraction.
func TestExtractContent(t *testing.T) {
	t.Parallel()

	c := ExtractContent(ParseHTML([]byte(articleHTML)))

	if c.Title != "Aang" {
		t.Errorf("expected title Aang, got %q", c.Title)
	}
	if !slices.Equal(c.Categories, []string{"Air Nomads", "Avatars"}) {
		t.Errorf("unexpected categories %v", c.Categories)
	}
	if c.Infobox["Nationality"] != "Southern Air Temple" {
		t.Errorf("unexpected infobox %v", c.Infobox)
	}
	if c.Infobox["age"] != "12 (112)" {
		t.Errorf("expected data-source label fallback, got %v", c.Infobox)
	}
	if !strings.HasPrefix(c.Text, "Aang was the Avatar and the last surviving Air Nomad. He was a monk of the Southern Air Temple") {
		t.Errorf("unexpected text %q", c.Text)
	}
	for _, unwanted := range []string{"[edit]", "var hidden", "Nationality"} {
		if strings.Contains(c.Text, unwanted) {
			t.Errorf("expected %q to be removed from text %q", unwanted, c.Text)
		}
	}
}

// TestExtractContentFallbacks tests pages without wiki markup.
func TestExtractContentFallbacks(t *testing.T) {
	t.Parallel()

	t.Run("title from title element", func(t *testing.T) {
		t.Parallel()
		c := ExtractContent(ParseHTML([]byte(`<html><head><title>Katara | Avatar Wiki | Fandom</title></head><body><p>Short</p></body></html>`)))
		if c.Title != "Katara" {
			t.Errorf("expected Katara, got %q", c.Title)
		}
		if c.Text != "Short" {
			t.Errorf("expected short body text, got %q", c.Text)
		}
		if c.Infobox != nil || c.Categories != nil {
			t.Errorf("expected no infobox or categories, got %v %v", c.Infobox, c.Categories)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()
		c := ExtractContent(ParseHTML(nil))
		if c.Title != "" || c.Text != "" {
			t.Errorf("expected empty content, got %+v", c)
		}
	})
}

// TestExtractFromOneTree tests links and content taken from a single parse.
func TestExtractFromOneTree(t *testing.T) {
	t.Parallel()

	doc := ParseHTML([]byte(`<html><body>` +
		`<nav><a href="/wiki/Katara">Katara</a></nav>` +
		`<div class="mw-parser-output"><p>Sokka is a warrior of the Southern Water Tribe and brother of Katara.</p>` +
		`<a href="/wiki/Sokka">Sokka</a></div></body></html>`))
	e := NewLinkExtractor(newTestFilter(t, []string{"Main"}, nil))

	links := e.ExtractLinks(doc, "https://avatar.fandom.com/wiki/Aang")
	want := []string{"https://avatar.fandom.com/wiki/Katara", "https://avatar.fandom.com/wiki/Sokka"}
	if !slices.Equal(links, want) {
		t.Errorf("expected links %v, got %v", want, links)
	}

	c := ExtractContent(doc)
	if !strings.HasPrefix(c.Text, "Sokka is a warrior") {
		t.Errorf("unexpected text %q", c.Text)
	}
}
