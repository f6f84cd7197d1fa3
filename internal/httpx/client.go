// Package httpx provides the shared HTTP client wrapper used by the
// API-JSON and API-OAuth platform adapters: a fixed per-request timeout, a
// configured User-Agent, and small JSON decode helpers.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Client wraps http.Client with the adapter-shared request shape from §4.1.
type Client struct {
	hc        *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRateLimit caps outbound requests to rps per second (burst rps, at
// least 1), so a misbehaving roster can't hammer a platform's API on every
// refresh tick.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func New(userAgent string, opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{Timeout: defaultTimeout},
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// GetJSON issues a GET with the given query params and decodes a JSON body
// into out. The caller's ctx governs cancellation; the client's own timeout
// is a backstop in case ctx carries no deadline.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out any) (*http.Response, error) {
	u := rawURL
	if query != nil && len(query) > 0 {
		u = rawURL + "?" + query.Encode()
	}
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.applyHeaders(req, headers)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// PostForm issues a POST with url-encoded form values, decoding a JSON
// response body into out if non-nil.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, out any) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.URL.RawQuery = form.Encode()
	c.applyHeaders(req, nil)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

func (c *Client) applyHeaders(req *http.Request, headers map[string]string) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
