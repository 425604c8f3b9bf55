// Package httpclient is the single outbound HTTP call used by every API client:
// one synchronous request, no retries, one timeout.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "tp-linkshortener/1.0"

	// screenshots are the largest payloads we expect
	maxResponseBytes = 20 << 20
)

var ErrResponseTooLarge = errors.New("response body exceeds limit")

type RequestOptions struct {
	Headers map[string]string
	Query   url.Values
	Body    []byte
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Client interface {
	Request(ctx context.Context, method, url string, opts RequestOptions) (*Response, error)
}

type HTTPClient struct {
	client    *http.Client
	userAgent string
}

type Option func(*HTTPClient)

func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = timeout
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *HTTPClient) {
		c.userAgent = userAgent
	}
}

// WithHTTPClient replaces the underlying client, e.g. with httptest.Server.Client().
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

func New(opts ...Option) *HTTPClient {
	c := &HTTPClient{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Request(ctx context.Context, method, rawURL string, opts RequestOptions) (*Response, error) {
	target, err := BuildURL(rawURL, opts.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", req.URL.Redacted()).
		Int("body_bytes", len(opts.Body)).
		Msg("Sending request")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("method", method).
			Str("url", req.URL.Redacted()).
			Dur("duration", time.Since(start)).
			Msg("Request failed")
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}

	log.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Response received")

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// BuildURL merges query into rawURL, keeping any parameters already present.
func BuildURL(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
