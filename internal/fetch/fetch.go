// Package fetch resolves remote resource metadata for storage accounting.
//
// The engine only needs content lengths of uploaded file references; a HEAD
// request is enough and the response body is never read.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one metadata request. Size lookups are best-effort;
// a slow host must not stall answer recording.
const DefaultTimeout = 10 * time.Second

// Opts holds configuration options for the fetch client.
type Opts struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the fetch client.
type Option func(*Opts)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient sets the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client fetches content lengths via HEAD requests.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a metadata fetch client.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{http: cfg.HTTPClient, timeout: cfg.Timeout}
}

// ContentLength issues a HEAD request and returns the resource size in
// bytes. A reachable resource without a Content-Length header returns
// (0, false, nil): absent length is a valid, non-error outcome.
func (c *Client) ContentLength(ctx context.Context, url string) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build HEAD request for %s: %w", url, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("HEAD %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, fmt.Errorf("HEAD %s: unexpected status %d", url, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		slog.Debug("fetch.ContentLength: no Content-Length header", "url", url)
		return 0, false, nil
	}
	return resp.ContentLength, true, nil
}
