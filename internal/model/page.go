package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// PageArtifact is the durable output produced for every successfully
// fetched page. It is written as JSON under processed/ and indexed in
// the project database; the raw body lives under raw/ addressed by hash.
type PageArtifact struct {
	// URL is the normalized URL the page was requested as.
	URL string `json:"url"`

	// FinalURL is the URL after redirects.
	// Equal to URL when no redirect happened.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// FetchedAt is when the successful response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// ContentHash is the SHA3-256 hex digest of the raw body.
	ContentHash string `json:"content_hash"`

	// RawPath is the project-relative path of the stored raw body.
	RawPath string `json:"raw_path,omitempty"`

	// Title is the page title without the site suffix.
	Title string `json:"title,omitempty"`

	// Content is the readable text of the article body.
	Content string `json:"content,omitempty"`

	// Categories lists the wiki categories the page belongs to.
	Categories []string `json:"categories,omitempty"`

	// Infobox holds label/value pairs of the first portable infobox.
	Infobox map[string]string `json:"infobox,omitempty"`

	// Links are the in-scope links discovered on the page, normalized.
	Links []string `json:"links,omitempty"`

	// Depth is the link distance from the nearest seed.
	Depth int `json:"depth"`

	// DiscoveredFrom is the URL of the page that linked here.
	// Empty for seeds.
	DiscoveredFrom string `json:"discovered_from,omitempty"`

	// Raw contains the decoded response body.
	Raw []byte `json:"-"` // Stored separately under raw/
}

// ComputeHash sets ContentHash from Raw.
// Empty content produces an empty hash.
func (p *PageArtifact) ComputeHash() {
	p.ContentHash = ContentHash(p.Raw)
}

// ContentHash returns the SHA3-256 hex digest of data, or "" when data is empty.
func ContentHash(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
