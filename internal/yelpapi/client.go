// Package yelpapi is a thin client for the RapidAPI Yelp business API. Every
// call is a single GET whose JSON body is returned untouched.
package yelpapi

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

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

const (
	DefaultBaseURL = "https://yelp-business-api.p.rapidapi.com"
	DefaultAPIHost = "yelp-business-api.p.rapidapi.com"
	DefaultTimeout = 30 * time.Second

	headerRapidAPIHost = "x-rapidapi-host"
	headerRapidAPIKey  = "x-rapidapi-key"

	DefaultMaxResponseBytes = 32 << 20

	bodySnippetLen = 200
)

var tracer = otel.Tracer("yelpmcp/yelpapi")

// Config holds the client configuration. The API key is injected here rather
// than read from the process environment.
type Config struct {
	BaseURL string
	APIHost string
	APIKey  string

	// Timeout bounds a single request including the body read.
	Timeout time.Duration

	// MaxResponseBytes caps the body size; larger bodies are an upstream failure.
	MaxResponseBytes int64

	// HTTPClient overrides the default otelhttp-instrumented client.
	HTTPClient *http.Client
}

// DefaultConfig returns the production endpoint configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		APIHost: DefaultAPIHost,
		APIKey:  apiKey,
		Timeout: DefaultTimeout,
	}
}

// Client issues GET requests against the business API. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiHost    string
	apiKey     string
	maxBytes   int64
	logger     zerolog.Logger
}

// New creates a client. An empty API key is accepted; the upstream will
// reject the calls.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := logging.NewLogger("yelpapi")
	if cfg.APIKey == "" {
		logger.Warn().Msg("RapidAPI key is empty; upstream requests will be rejected")
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiHost:    cfg.APIHost,
		apiKey:     cfg.APIKey,
		maxBytes:   cfg.MaxResponseBytes,
		logger:     logger,
	}, nil
}

// Get performs one GET on path with q and returns the body when it is valid
// JSON, whatever the HTTP status. Transport failures and non-JSON bodies are
// reported as ErrUpstream.
func (c *Client) Get(ctx context.Context, path string, q *Query) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "yelpapi.get", trace.WithAttributes(
		attribute.String("yelp.endpoint", path),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	endpoint := c.baseURL + path
	if q != nil && q.Len() > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build_request")
		return nil, upstreamf(err, "failed to build request for %s", path)
	}
	req.Header.Set(headerRapidAPIHost, c.apiHost)
	req.Header.Set(headerRapidAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiRequestsTotal.WithLabelValues(path, "error").Inc()
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ErrorClassNetwork))
		c.logger.Error().Err(err).Str("endpoint", path).Msg("upstream request failed")
		return nil, upstreamf(err, "GET %s failed", path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	status := strconv.Itoa(resp.StatusCode)
	apiRequestsTotal.WithLabelValues(path, status).Inc()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	// One byte past the cap tells an oversized body from one that fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ErrorClassNetwork))
		return nil, upstreamf(err, "failed to read %s response (status %d)", path, resp.StatusCode)
	}
	if int64(len(body)) > c.maxBytes {
		apiErrorsTotal.WithLabelValues(string(ErrorClassSize)).Inc()
		span.SetStatus(codes.Error, string(ErrorClassSize))
		c.logger.Error().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			Int64("limit_bytes", c.maxBytes).
			Msg("upstream response exceeds size limit")
		return nil, upstreamf(nil, "%s response exceeds the %d byte limit (status %d)", path, c.maxBytes, resp.StatusCode)
	}

	if !json.Valid(body) {
		apiErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		span.SetStatus(codes.Error, string(ErrorClassDecode))
		c.logger.Error().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			Str("body", snippet(body)).
			Msg("upstream returned a non-JSON body")
		return nil, upstreamf(nil, "%s returned a non-JSON body (status %d): %s", path, resp.StatusCode, snippet(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErrorsTotal.WithLabelValues(string(ErrorClassStatus)).Inc()
		c.logger.Warn().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			Msg("upstream returned non-2xx status, passing body through")
	}

	c.logger.Debug().
		Str("endpoint", path).
		Str("query", queryForLog(q)).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(body)).
		Msg("upstream request completed")

	return json.RawMessage(body), nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodySnippetLen {
		return s[:bodySnippetLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

func queryForLog(q *Query) string {
	if q == nil {
		return ""
	}
	return q.Encode()
}
