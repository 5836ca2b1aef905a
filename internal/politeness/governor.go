package politeness

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWindow is the rolling window over which MaxRequestsPerMinute applies.
const DefaultWindow = time.Minute

// ErrRobotsDisallowed marks a URL that robots.txt forbids for our agent.
// It is a permanent skip, never retried.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Governor enforces per-host politeness.
//
// Two constraints apply to every host independently:
//  1. consecutive grants are at least the host delay apart
//  2. no more than maxPerWindow grants fall in any rolling window
//
// Waiters for one host are served one at a time, so both constraints hold
// under concurrent workers. The host delay starts at the configured default
// and is raised by a robots.txt Crawl-delay.
type Governor struct {
	delay        time.Duration
	maxPerWindow int
	window       time.Duration
	robots       *RobotsAgent
	logger       *slog.Logger

	mu    sync.Mutex
	hosts map[string]*hostState
}

type hostState struct {
	// turn is a one-slot semaphore that serializes waiters of one host.
	turn    chan struct{}
	limiter *rate.Limiter
	delay   time.Duration
	grants  []time.Time
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithWindow overrides the rolling window length.
func WithWindow(d time.Duration) GovernorOption {
	return func(g *Governor) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithRobots enables robots.txt evaluation through agent.
// Without it every URL is allowed. The agent's own robots.txt requests
// then wait for their turn like any other request to the host.
func WithRobots(agent *RobotsAgent) GovernorOption {
	return func(g *Governor) {
		g.robots = agent
	}
}

// WithGovernorLogger sets the logger.
func WithGovernorLogger(logger *slog.Logger) GovernorOption {
	return func(g *Governor) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGovernor creates a Governor with the default spacing delay and the
// per-window request cap.
func NewGovernor(delay time.Duration, maxPerWindow int, opts ...GovernorOption) *Governor {
	g := &Governor{
		delay:        delay,
		maxPerWindow: maxPerWindow,
		window:       DefaultWindow,
		logger:       slog.Default(),
		hosts:        make(map[string]*hostState),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.robots != nil {
		g.robots.gate = g.AwaitTurn
	}
	return g
}

func (g *Governor) host(host string) *hostState {
	host = strings.ToLower(host)

	g.mu.Lock()
	defer g.mu.Unlock()

	hs, ok := g.hosts[host]
	if !ok {
		hs = &hostState{
			turn:  make(chan struct{}, 1),
			delay: g.delay,
		}
		if g.delay > 0 {
			hs.limiter = rate.NewLimiter(rate.Every(g.delay), 1)
		}
		g.hosts[host] = hs
	}
	return hs
}

// SetHostDelay raises the spacing delay for host to d.
// A delay at or below the current one is ignored.
func (g *Governor) SetHostDelay(host string, d time.Duration) {
	hs := g.host(host)

	g.mu.Lock()
	defer g.mu.Unlock()

	if d <= hs.delay {
		return
	}
	hs.delay = d
	if hs.limiter == nil {
		hs.limiter = rate.NewLimiter(rate.Every(d), 1)
		return
	}
	hs.limiter.SetLimit(rate.Every(d))
}

// HostDelay returns the spacing delay currently applied to host.
func (g *Governor) HostDelay(host string) time.Duration {
	hs := g.host(host)
	g.mu.Lock()
	defer g.mu.Unlock()
	return hs.delay
}

// AwaitTurn blocks until a request to host is permitted and records the
// grant. It returns ctx.Err() if the context ends first; no grant is
// recorded in that case.
func (g *Governor) AwaitTurn(ctx context.Context, host string) error {
	hs := g.host(host)

	select {
	case hs.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-hs.turn }()

	if err := g.waitWindow(ctx, hs); err != nil {
		return err
	}

	g.mu.Lock()
	limiter := hs.limiter
	g.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}

	hs.grants = append(hs.grants, time.Now())
	return nil
}

// waitWindow blocks until fewer than maxPerWindow grants fall inside the
// rolling window. hs.grants is only touched by the holder of hs.turn.
func (g *Governor) waitWindow(ctx context.Context, hs *hostState) error {
	if g.maxPerWindow <= 0 {
		return nil
	}
	for {
		now := time.Now()
		cutoff := now.Add(-g.window)
		i := 0
		for i < len(hs.grants) && !hs.grants[i].After(cutoff) {
			i++
		}
		hs.grants = hs.grants[i:]

		if len(hs.grants) < g.maxPerWindow {
			return nil
		}

		wait := hs.grants[0].Add(g.window).Sub(now)
		g.logger.Debug("request window full, waiting",
			"requests", len(hs.grants),
			"wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// IsAllowed reports whether robots.txt permits fetching target.
// It always returns true when robots evaluation is disabled. A Crawl-delay
// found for our agent raises the host delay.
func (g *Governor) IsAllowed(ctx context.Context, target *url.URL) bool {
	if g.robots == nil {
		return true
	}
	d := g.robots.Check(ctx, target)
	if d.CrawlDelay > 0 {
		g.SetHostDelay(target.Host, d.CrawlDelay)
	}
	return d.Allowed
}
