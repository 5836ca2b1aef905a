package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/wikiacrawl/internal/config"
)

// maxRedirects is the redirect limit per request. The last response is
// returned once it is reached.
const maxRedirects = 10

// newHTTPClient creates the HTTP client shared by page and robots.txt
// fetches for one crawl session.
//
// The transport dials directly or through a SOCKS5 proxy, never decompresses
// on its own (the fetcher decodes gzip, deflate and br itself), and injects
// the cookie and headers configured for the request host.
func newHTTPClient(cfg *config.CrawlConfig) (*http.Client, *http.Transport, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   max(cfg.Concurrency, 2),
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}

	if cfg.ProxyAddress != "" {
		socks, err := proxy.SOCKS5("tcp", cfg.ProxyAddress, nil, dialer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = contextDialer(socks)
	}

	// cookiejar.New only fails with invalid options
	jar, _ := cookiejar.New(nil) //nolint:errcheck

	client := &http.Client{
		Transport: &headerInjectingTransport{
			base: transport,
			site: cfg.Site,
		},
		Timeout: cfg.Timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return client, transport, nil
}

// contextDialer adapts a proxy.Dialer to a DialContext function.
// The SOCKS5 dialer from x/net implements proxy.ContextDialer; other
// dialers are raced against ctx.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// headerInjectingTransport wraps an http.RoundTripper to inject the
// per-host cookie and headers into every request.
type headerInjectingTransport struct {
	base http.RoundTripper
	site func(host string) config.SiteConfig
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sc := t.site(req.URL.Host)
	if sc.Cookie == "" && len(sc.Headers) == 0 {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if sc.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+sc.Cookie)
		} else {
			clone.Header.Set("Cookie", sc.Cookie)
		}
	}
	for key, value := range sc.Headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
