package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/wikiacrawl/internal/config"
)

// Outcome tags the result of a single fetch attempt.
type Outcome int

const (
	// OutcomeSuccess is a 2xx response whose body was read in full.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable is a transient failure: timeout, connection error,
	// 408, 429 or 5xx.
	OutcomeRetryable
	// OutcomePermanent is a failure that retrying cannot fix: other 4xx,
	// malformed URL, oversized or undecodable body.
	OutcomePermanent
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Fetch errors carried in Result.Err.
var (
	// ErrMalformedURL is returned for URLs that cannot be requested.
	ErrMalformedURL = errors.New("malformed URL")

	// ErrBodyTooLarge is returned when the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrStatus wraps a non-success HTTP status.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrDecode is returned when the Content-Encoding cannot be decoded.
	ErrDecode = errors.New("failed to decode response body")
)

// Result is the tagged outcome of one fetch attempt.
type Result struct {
	Outcome     Outcome
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time

	// RetryAfter is the server-requested wait on a retryable response.
	RetryAfter time.Duration

	// Err describes a non-success outcome.
	Err error
}

// IsHTML reports whether the response declared an HTML content type.
// An empty content type is treated as HTML.
func (r *Result) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Fetcher performs single HTTP GET attempts and classifies the outcome.
// It owns the HTTP session of a crawl; call Close to release it.
type Fetcher struct {
	client       *http.Client
	transport    *http.Transport
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher for cfg.
func New(cfg *config.CrawlConfig, opts ...Option) (*Fetcher, error) {
	client, transport, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		client:       client,
		transport:    transport,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.BodyLimit(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Client exposes the session client for reuse by robots.txt fetches.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Close releases idle connections of the session.
func (f *Fetcher) Close() {
	if f.transport != nil {
		f.transport.CloseIdleConnections()
	}
}

// Fetch performs one GET of rawURL.
// It never returns an error; every failure is expressed in the Result.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Result {
	res := &Result{URL: rawURL, FinalURL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return res.permanent(fmt.Errorf("%w: %s", ErrMalformedURL, rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return res.permanent(fmt.Errorf("%w: %w", ErrMalformedURL, err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return res.classifyTransportError(err)
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case isRetryableStatus(resp.StatusCode):
		res.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck
		return res.retryable(fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode))
	default:
		return res.permanent(fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode))
	}

	body, err := f.readBody(resp)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) || errors.Is(err, ErrDecode) {
			return res.permanent(err)
		}
		return res.retryable(err)
	}

	res.Outcome = OutcomeSuccess
	res.Body = body
	res.FetchedAt = time.Now()
	return res
}

func (r *Result) permanent(err error) *Result {
	r.Outcome = OutcomePermanent
	r.Err = err
	return r
}

func (r *Result) retryable(err error) *Result {
	r.Outcome = OutcomeRetryable
	r.Err = err
	return r
}

// classifyTransportError maps errors from http.Client.Do.
// Certificate problems will not heal on retry; everything else at the
// transport level (timeouts, refused or reset connections, DNS hiccups)
// is treated as transient.
func (r *Result) classifyTransportError(err error) *Result {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return r.permanent(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return r.retryable(fmt.Errorf("timeout: %w", err))
	}
	return r.retryable(err)
}

// isRetryableStatus reports whether status is worth retrying.
// 520-524 are Cloudflare origin errors commonly seen in front of wiki farms.
func isRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500 && status <= 599
}

// parseRetryAfter parses a Retry-After header given as seconds or as an
// HTTP date. Unparsable or past values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	var closer io.Closer

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrDecode, err)
		}
		reader, closer = gz, gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader, closer = fl, fl
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrDecode, encoding)
	}
	if closer != nil {
		defer closer.Close()
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		var netErr net.Error
		if encoding != "" && encoding != "identity" && !errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}
	return body, nil
}
