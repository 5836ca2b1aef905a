package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// maxSlugLength bounds the readable part of an artifact file name.
const maxSlugLength = 100

// ArtifactStore writes PageArtifacts under processed/ and raw bodies
// under raw/.
type ArtifactStore struct {
	project *Project
}

// Write stores the raw body (once per content hash) and the artifact JSON.
// It sets a.RawPath and returns the project-relative path of the JSON file.
func (s *ArtifactStore) Write(a *model.PageArtifact) (string, error) {
	if a.ContentHash == "" {
		a.ComputeHash()
	}

	if len(a.Raw) > 0 {
		rawRel := filepath.Join(RawDir, a.ContentHash+".html")
		rawPath := filepath.Join(s.project.Root, rawRel)
		if _, err := os.Stat(rawPath); errors.Is(err, os.ErrNotExist) {
			if err := WriteFileAtomic(rawPath, a.Raw, 0o600); err != nil {
				return "", fmt.Errorf("failed to write raw page: %w", err)
			}
		}
		a.RawPath = filepath.ToSlash(rawRel)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode page artifact: %w", err)
	}
	rel := filepath.Join(ProcessedDir, Slug(a.URL)+".json")
	if err := WriteFileAtomic(filepath.Join(s.project.Root, rel), data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write page artifact: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// Read loads an artifact by its project-relative path.
func (s *ArtifactStore) Read(rel string) (*model.PageArtifact, error) {
	data, err := os.ReadFile(filepath.Join(s.project.Root, filepath.FromSlash(rel))) //nolint:gosec // rel comes from our own index
	if err != nil {
		return nil, fmt.Errorf("failed to read page artifact: %w", err)
	}
	var a model.PageArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode page artifact: %w", err)
	}
	return &a, nil
}

// Slug turns a page URL into a file name: the host and path with every
// character outside [A-Za-z0-9._-] replaced by "_", truncated, and
// suffixed with a hash of the full URL so distinct URLs never collide.
func Slug(rawURL string) string {
	readable := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		readable = u.Host + u.Path
	}

	var b strings.Builder
	for _, r := range readable {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	slug := strings.Trim(b.String(), "_.")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	h := model.ContentHash([]byte(rawURL))
	if h == "" {
		return slug
	}
	return slug + "-" + h[:12]
}
