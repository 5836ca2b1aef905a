package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/wikiacrawl/internal/frontier"
)

// Parser extracts links from wiki HTML.
//
// It uses golang.org/x/net/html, whose tokenizer recovers from the
// unbalanced markup that templates and user edits leave behind, so a
// malformed page still yields every anchor that could be recognized.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	// A <base href> element replaces it for the rest of the document.
	baseURL *url.URL
}

// ParseResult contains the links found on a page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links are absolute, normalized link targets in document order,
	// without duplicates.
	Links []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// ParseHTML parses a page body into a node tree shared by the link parser
// and content extraction. Malformed markup is repaired the way browsers
// do; the result is never nil.
func ParseHTML(body []byte) *html.Node {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil || doc == nil {
		return &html.Node{Type: html.DocumentNode}
	}
	return doc
}

// Parse extracts the title and links from doc.
// It never fails: a damaged tree yields whatever anchors it still holds.
func (p *Parser) Parse(doc *html.Node) *ParseResult {
	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]struct{})
	if doc == nil {
		return result
	}

	base := p.baseURL
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if href := getAttr(n, "href"); href != "" {
					if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
						base = u
					}
				}
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a", "area":
				if link := resolveURL(base, getAttr(n, "href")); link != "" {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						result.Links = append(result.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result
}

// resolveURL resolves href against base and normalizes the result.
// Non-navigational hrefs (javascript:, mailto:, tel:, data:, bare
// fragments) and anything that does not normalize yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	normalized, err := frontier.NormalizeParsed(base.ResolveReference(u))
	if err != nil {
		return ""
	}
	return normalized
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
