package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/wikiacrawl/internal/config"
)

const testPage = "<html><head><title>Aang</title></head><body><p>Avatar</p></body></html>"

func newTestFetcher(t *testing.T, mutate func(*config.CrawlConfig)) *Fetcher {
	t.Helper()
	cfg := config.NewCrawlConfig()
	cfg.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

// TestFetchSuccess tests successful fetches including content decoding.
func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	encoders := map[string]func([]byte) []byte{
		"": func(b []byte) []byte { return b },
		"gzip": func(b []byte) []byte {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, _ = w.Write(b) //nolint:errcheck
			_ = w.Close()     //nolint:errcheck
			return buf.Bytes()
		},
		"deflate": func(b []byte) []byte {
			var buf bytes.Buffer
			w, _ := flate.NewWriter(&buf, flate.DefaultCompression) //nolint:errcheck
			_, _ = w.Write(b)                                         //nolint:errcheck
			_ = w.Close()                                             //nolint:errcheck
			return buf.Bytes()
		},
		"br": func(b []byte) []byte {
			var buf bytes.Buffer
			w := brotli.NewWriter(&buf)
			_, _ = w.Write(b) //nolint:errcheck
			_ = w.Close()     //nolint:errcheck
			return buf.Bytes()
		},
	}

	for encoding, encode := range encoders {
		t.Run("encoding "+encoding, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Accept-Encoding"); !strings.Contains(got, "br") {
					t.Errorf("expected br in Accept-Encoding, got %q", got)
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				if encoding != "" {
					w.Header().Set("Content-Encoding", encoding)
				}
				_, _ = w.Write(encode([]byte(testPage))) //nolint:errcheck
			}))
			defer srv.Close()

			res := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL+"/wiki/Aang")
			if res.Outcome != OutcomeSuccess {
				t.Fatalf("expected success, got %s: %v", res.Outcome, res.Err)
			}
			if string(res.Body) != testPage {
				t.Errorf("unexpected body %q", res.Body)
			}
			if !res.IsHTML() {
				t.Error("expected HTML content type")
			}
			if res.FetchedAt.IsZero() {
				t.Error("expected FetchedAt to be set")
			}
		})
	}
}

// TestFetchClassification tests status code and transport classification.
func TestFetchClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   Outcome
	}{
		{http.StatusNotFound, OutcomePermanent},
		{http.StatusForbidden, OutcomePermanent},
		{http.StatusGone, OutcomePermanent},
		{http.StatusRequestTimeout, OutcomeRetryable},
		{http.StatusTooManyRequests, OutcomeRetryable},
		{http.StatusInternalServerError, OutcomeRetryable},
		{http.StatusBadGateway, OutcomeRetryable},
		{http.StatusServiceUnavailable, OutcomeRetryable},
		{http.StatusGatewayTimeout, OutcomeRetryable},
		{522, OutcomeRetryable},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			res := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL+"/wiki/X")
			if res.Outcome != tt.want {
				t.Errorf("status %d: expected %s, got %s", tt.status, tt.want, res.Outcome)
			}
			if res.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, res.StatusCode)
			}
			if !errors.Is(res.Err, ErrStatus) {
				t.Errorf("expected ErrStatus, got %v", res.Err)
			}
		})
	}

	t.Run("malformed URL is permanent", func(t *testing.T) {
		t.Parallel()
		for _, raw := range []string{"://bad", "ftp://a.fandom.com/x", "https:///nohost"} {
			res := newTestFetcher(t, nil).Fetch(context.Background(), raw)
			if res.Outcome != OutcomePermanent || !errors.Is(res.Err, ErrMalformedURL) {
				t.Errorf("%q: expected permanent ErrMalformedURL, got %s %v", raw, res.Outcome, res.Err)
			}
		}
	})

	t.Run("connection refused is retryable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		target := srv.URL + "/wiki/X"
		srv.Close()

		res := newTestFetcher(t, nil).Fetch(context.Background(), target)
		if res.Outcome != OutcomeRetryable {
			t.Errorf("expected retryable, got %s: %v", res.Outcome, res.Err)
		}
	})

	t.Run("timeout is retryable", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		f := newTestFetcher(t, func(c *config.CrawlConfig) { c.Timeout = 100 * time.Millisecond })
		res := f.Fetch(context.Background(), srv.URL+"/wiki/Slow")
		if res.Outcome != OutcomeRetryable {
			t.Errorf("expected retryable, got %s: %v", res.Outcome, res.Err)
		}
	})

	t.Run("oversized body is permanent", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("a"), 2048)) //nolint:errcheck
		}))
		defer srv.Close()

		f := newTestFetcher(t, func(c *config.CrawlConfig) { c.MaxBodySize = 1024 })
		res := f.Fetch(context.Background(), srv.URL+"/wiki/Big")
		if res.Outcome != OutcomePermanent || !errors.Is(res.Err, ErrBodyTooLarge) {
			t.Errorf("expected permanent ErrBodyTooLarge, got %s %v", res.Outcome, res.Err)
		}
	})
}

// TestFetchRetryAfter tests Retry-After extraction on 429.
func TestFetchRetryAfter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL+"/wiki/X")
	if res.Outcome != OutcomeRetryable {
		t.Fatalf("expected retryable, got %s", res.Outcome)
	}
	if res.RetryAfter != 7*time.Second {
		t.Errorf("expected 7s Retry-After, got %v", res.RetryAfter)
	}
}

// TestParseRetryAfter tests both Retry-After formats.
func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"-5", 0},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

// TestFetchRedirect tests that the final URL is reported after redirects.
func TestFetchRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/Old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/wiki/New", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/wiki/New", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testPage)) //nolint:errcheck
	})
	mux.HandleFunc("/wiki/Loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/wiki/Loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(t, nil)

	res := f.Fetch(context.Background(), srv.URL+"/wiki/Old")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s: %v", res.Outcome, res.Err)
	}
	if res.FinalURL != srv.URL+"/wiki/New" {
		t.Errorf("expected final URL %s/wiki/New, got %s", srv.URL, res.FinalURL)
	}

	res = f.Fetch(context.Background(), srv.URL+"/wiki/Loop")
	if res.Outcome != OutcomePermanent {
		t.Errorf("expected redirect loop to be permanent, got %s", res.Outcome)
	}
}

// TestFetchInjectsSiteHeaders tests per-host cookie and header injection.
func TestFetchInjectsSiteHeaders(t *testing.T) {
	t.Parallel()

	type seen struct{ cookie, header, ua string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{r.Header.Get("Cookie"), r.Header.Get("X-Wiki-Token"), r.Header.Get("User-Agent")}
		_, _ = w.Write([]byte(testPage)) //nolint:errcheck
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL) //nolint:errcheck
	f := newTestFetcher(t, func(c *config.CrawlConfig) {
		c.UserAgent = "TestBot/1.0"
		c.Sites = map[string]config.SiteConfig{
			u.Host: {Cookie: "session=abc", Headers: map[string]string{"X-Wiki-Token": "secret"}},
		}
	})

	if res := f.Fetch(context.Background(), srv.URL+"/wiki/X"); res.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s", res.Outcome)
	}
	s := <-got
	if s.cookie != "session=abc" {
		t.Errorf("expected cookie, got %q", s.cookie)
	}
	if s.header != "secret" {
		t.Errorf("expected header, got %q", s.header)
	}
	if s.ua != "TestBot/1.0" {
		t.Errorf("expected user agent, got %q", s.ua)
	}
}

// TestNewWithProxy tests that requests through an unreachable SOCKS5
// proxy are retryable.
func TestNewWithProxy(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, func(c *config.CrawlConfig) {
		c.ProxyAddress = "127.0.0.1:1"
		c.Timeout = time.Second
	})
	res := f.Fetch(context.Background(), "http://a.fandom.com/wiki/X")
	if res.Outcome != OutcomeRetryable {
		t.Errorf("expected unreachable proxy to be retryable, got %s: %v", res.Outcome, res.Err)
	}
}

// TestBackoffDelay tests the exponential schedule.
func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := NewBackoff(time.Second, 10*time.Second)
	tests := []struct {
		attempt    int
		retryAfter time.Duration
		want       time.Duration
	}{
		{1, 0, time.Second},
		{2, 0, 2 * time.Second},
		{3, 0, 4 * time.Second},
		{4, 0, 8 * time.Second},
		{5, 0, 10 * time.Second},
		{0, 0, time.Second},
		{1, 5 * time.Second, 5 * time.Second},
		{1, time.Hour, 10 * time.Second},
		{100, 0, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt, tt.retryAfter); got != tt.want {
			t.Errorf("Delay(%d, %v) = %v, expected %v", tt.attempt, tt.retryAfter, got, tt.want)
		}
	}

	t.Run("zero base yields zero delay", func(t *testing.T) {
		t.Parallel()
		if got := NewBackoff(0, time.Minute).Delay(3, 0); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("uncapped backoff grows", func(t *testing.T) {
		t.Parallel()
		if got := NewBackoff(time.Second, 0).Delay(11, 0); got != 1024*time.Second {
			t.Errorf("expected 1024s, got %v", got)
		}
	})
}
