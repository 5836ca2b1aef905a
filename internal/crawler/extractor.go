package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LinkExtractor turns a fetched page into in-scope links.
type LinkExtractor struct {
	filter *LinkFilter
}

// NewLinkExtractor creates a LinkExtractor that keeps links passing filter.
func NewLinkExtractor(filter *LinkFilter) *LinkExtractor {
	return &LinkExtractor{filter: filter}
}

// ExtractLinks returns the normalized, in-scope, de-duplicated links of
// doc resolved against baseURL, in document order.
func (e *LinkExtractor) ExtractLinks(doc *html.Node, baseURL string) []string {
	p, err := NewParser(baseURL)
	if err != nil {
		return []string{}
	}
	return e.filter.Filter(p.Parse(doc).Links)
}

// Content is the readable part of a wiki article.
type Content struct {
	Title      string
	Text       string
	Categories []string
	Infobox    map[string]string
}

// minContentLength is the shortest article text accepted from a content
// selector; shorter matches fall through to the next selector.
const minContentLength = 50

var (
	titleSelectors = []string{
		"h1.page-header__title",
		"h1#firstHeading",
		"h1",
	}

	contentSelectors = []string{
		".mw-parser-output",
		"#mw-content-text",
		"main",
		"article",
		"#content",
		"body",
	}

	// ignoreSelectors are removed from the article before taking its text.
	ignoreSelectors = strings.Join([]string{
		"script", "style", "noscript", "nav", "footer", "aside",
		".toc", ".navbox", ".mw-editsection", ".reference", ".references",
		".portable-infobox", ".printfooter", ".catlinks",
		".wds-global-navigation", ".global-navigation",
	}, ", ")

	categorySelectors = strings.Join([]string{
		".page-header__categories a",
		"#articleCategories a",
		"#catlinks .mw-normal-catlinks li a",
	}, ", ")
)

// ExtractContent pulls the title, article text, categories and infobox out
// of a parsed wiki page. Missing parts are left empty.
//
// Navigation and other boilerplate elements are removed from root, so
// links must be extracted before calling it.
func ExtractContent(root *html.Node) Content {
	var c Content
	if root == nil {
		return c
	}
	doc := goquery.NewDocumentFromNode(root)

	c.Title = extractTitle(doc)
	c.Categories = extractCategories(doc)
	c.Infobox = extractInfobox(doc)

	doc.Find(ignoreSelectors).Remove()
	for _, sel := range contentSelectors {
		text := collapseSpace(doc.Find(sel).First().Text())
		if len(text) >= minContentLength {
			c.Text = text
			break
		}
		if c.Text == "" {
			c.Text = text
		}
	}
	return c
}

func extractTitle(doc *goquery.Document) string {
	for _, sel := range titleSelectors {
		if t := collapseSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	// "Aang | Avatar Wiki | Fandom" -> "Aang"
	t := collapseSpace(doc.Find("title").First().Text())
	if i := strings.Index(t, " | "); i > 0 {
		t = t[:i]
	}
	return t
}

func extractCategories(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	doc.Find(categorySelectors).Each(func(_ int, s *goquery.Selection) {
		name := collapseSpace(s.Text())
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	})
	return out
}

func extractInfobox(doc *goquery.Document) map[string]string {
	box := doc.Find(".portable-infobox").First()
	if box.Length() == 0 {
		return nil
	}
	fields := make(map[string]string)
	box.Find(".pi-data").Each(func(_ int, s *goquery.Selection) {
		label := collapseSpace(s.Find(".pi-data-label").Text())
		if label == "" {
			label, _ = s.Attr("data-source")
		}
		value := collapseSpace(s.Find(".pi-data-value").Text())
		if label != "" && value != "" {
			fields[label] = value
		}
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// collapseSpace trims s and collapses runs of whitespace to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
