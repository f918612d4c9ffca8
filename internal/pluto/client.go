// SPDX-License-Identifier: MIT

// Package pluto is the HTTP client for the Pluto TV boot and guide services.
package pluto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/plutoepg/internal/log"
	"github.com/ManuGH/plutoepg/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Default upstream endpoints.
const (
	DefaultSiteURL     = "https://pluto.tv/"
	DefaultBootURL     = "https://boot.pluto.tv/v4/start"
	DefaultChannelsURL = "https://service-channels.clusters.pluto.tv/v2/guide/channels"
	DefaultTimelineURL = "https://service-channels.clusters.pluto.tv/v2/guide/timelines"

	// ClientModelNumber is sent on session start.
	ClientModelNumber = "1.2.0"

	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

	// maxBodySize bounds JSON and HTML responses.
	maxBodySize = 32 * 1024 * 1024
)

// Config configures a Client.
type Config struct {
	SiteURL     string
	BootURL     string
	ChannelsURL string
	TimelineURL string

	Region   string // e.g. "IT"
	Lang     string // e.g. "it"
	TimeZone string // e.g. "Europe/Rome"

	// ForwardedFor is sent as X-Forwarded-For to select the catalog region.
	ForwardedFor string
	// Proxy is an optional http(s) proxy URL.
	Proxy string

	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
}

func (c *Config) applyDefaults() {
	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	if c.BootURL == "" {
		c.BootURL = DefaultBootURL
	}
	if c.ChannelsURL == "" {
		c.ChannelsURL = DefaultChannelsURL
	}
	if c.TimelineURL == "" {
		c.TimelineURL = DefaultTimelineURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client talks to the Pluto TV web, boot and guide endpoints.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a Client. Requests are traced through otelhttp.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// localeParams returns the region query parameters shared by every API call.
func (c *Client) localeParams() url.Values {
	q := url.Values{}
	if c.cfg.Region != "" {
		q.Set("region", c.cfg.Region)
	}
	if c.cfg.Lang != "" {
		q.Set("lang", c.cfg.Lang)
	}
	if c.cfg.TimeZone != "" {
		q.Set("timeZone", c.cfg.TimeZone)
	}
	return q
}

func (c *Client) acceptLanguage() string {
	if c.cfg.Lang == "" {
		return "en-US,en;q=0.9"
	}
	tag := c.cfg.Lang
	if c.cfg.Region != "" {
		tag = c.cfg.Lang + "-" + strings.ToUpper(c.cfg.Region)
	}
	return fmt.Sprintf("%s,%s;q=0.9,en-US;q=0.8,en;q=0.7", tag, c.cfg.Lang)
}

// get performs a GET against rawURL with query q and returns the body of a
// 2xx response.
func (c *Client) get(ctx context.Context, op, rawURL string, q url.Values, header http.Header) ([]byte, error) {
	logger := xglog.WithComponentFromContext(ctx, "pluto")
	started := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapError(op, err, 0, nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("pluto: %s: invalid URL %q: %w", op, rawURL, err)
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("pluto: %s: build request: %w", op, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.cfg.ForwardedFor != "" {
		req.Header.Set("X-Forwarded-For", c.cfg.ForwardedFor)
	}

	res, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstreamRequest(op, "error", time.Since(started))
		return nil, wrapError(op, err, 0, nil)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		metrics.ObserveUpstreamRequest(op, "error", time.Since(started))
		return nil, wrapError(op, err, 0, nil)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		metrics.ObserveUpstreamRequest(op, "http_"+strconv.Itoa(res.StatusCode), time.Since(started))
		return nil, wrapError(op, nil, res.StatusCode, body)
	}

	metrics.ObserveUpstreamRequest(op, "success", time.Since(started))
	logger.Debug().
		Str(xglog.FieldEvent, "upstream.response").
		Str("operation", op).
		Int("status", res.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(started)).
		Msg("upstream request completed")
	return body, nil
}

// getJSON is get followed by decoding the body into v.
func (c *Client) getJSON(ctx context.Context, op, rawURL string, q url.Values, header http.Header, v any) error {
	body, err := c.get(ctx, op, rawURL, q, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return wrapError(op, fmt.Errorf("decode json: %w", err), http.StatusOK, nil)
	}
	return nil
}

func (c *Client) apiHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", c.acceptLanguage())
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
