// Package source holds the boundary adapters for the two geodata providers: a
// WFS server publishing GeoJSON and the Overpass API. Each adapter converts the
// provider's coordinate order into geo.Point and the provider's features into
// model types. Adapters issue one request per call and never retry.
package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a provider answers 429.
var ErrRateLimited = eris.New("source: rate limited")

// HTTPOptions configures the provider HTTP client.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// AdaptiveLimiter wraps a rate.Limiter whose rate rises 20% after each success
// (up to 2x initial) and halves after a 429 (down to initial/4).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.set(a.Limit() * 1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.set(a.Limit() * 0.5)
	zap.L().Warn("source: provider rate limited, reducing request rate",
		zap.Float64("new_rate", float64(a.Limit())),
	)
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r = min(max(r, a.minRate), a.maxRate)
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// Client is the rate-limited HTTP client shared by the provider adapters.
// Each host gets its own AdaptiveLimiter.
type Client struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewClient creates a Client. Zero options fall back to a 60s timeout and 2
// requests per second per host.
func NewClient(opts HTTPOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "school-risk/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

func (c *Client) limiterFor(u *url.URL) *AdaptiveLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[u.Host]
	if !ok {
		burst := max(int(c.opts.RequestsPerSecond), 1)
		lim = NewAdaptiveLimiter(rate.Limit(c.opts.RequestsPerSecond), burst)
		c.limiters[u.Host] = lim
	}
	return lim
}

// Do sends req after waiting on the host limiter. 429 and 5xx responses are
// returned as errors with the body closed. Do satisfies the HTTP client
// interface expected by go-overpass.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	lim := c.limiterFor(req.URL)
	if err := lim.Wait(req.Context()); err != nil {
		return nil, eris.Wrap(err, "source: rate limiter wait")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s %s", req.Method, req.URL.Redacted())
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		lim.OnRateLimit()
		return nil, eris.Wrapf(ErrRateLimited, "source: %s", req.URL.Host)
	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, eris.Errorf("source: http %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	lim.OnSuccess()
	return resp, nil
}

// Get fetches rawURL and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: create request")
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("source: unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	return resp.Body, nil
}

// contextDoer binds every request it sends to ctx. go-overpass builds its own
// requests without a context.
type contextDoer struct {
	ctx  context.Context
	next interface {
		Do(*http.Request) (*http.Response, error)
	}
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.next.Do(req.WithContext(d.ctx))
}
