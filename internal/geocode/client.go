// Package geocode proxies reverse geocoding lookups to an upstream provider.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/newsroom-edge/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Config configures the upstream client.
type Config struct {
	// BaseURL is the full reverse-lookup endpoint, e.g.
	// https://nominatim.openstreetmap.org/reverse.
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	// RPS caps upstream calls per second. Zero or less disables the cap.
	RPS   float64
	Burst int
}

// Client calls the upstream reverse geocoder.
type Client struct {
	http    *http.Client
	base    *url.URL
	limiter *rate.Limiter
	cfg     Config
}

// New validates cfg and builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("geocode.base_url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid geocode.base_url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		http:    httpClient,
		base:    base,
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
	}, nil
}

// Reverse resolves a coordinate pair and returns the upstream JSON body
// unchanged.
func (c *Client) Reverse(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	body, err := c.reverse(ctx, lat, lon)
	metrics.ObserveGeocodeUpstream(err)
	return body, err
}

func (c *Client) reverse(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveGeocodeRateLimitDelay(waited)
	}

	u := *c.base
	q := u.Query()
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("format", "json")
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read geocode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode upstream status %d", resp.StatusCode)
	}
	if !json.Valid(data) {
		return nil, errors.New("geocode upstream returned invalid JSON")
	}
	return json.RawMessage(data), nil
}
