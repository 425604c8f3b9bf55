// Package snapcapture talks to the SnapCapture screenshot API.
package snapcapture

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/apierror"
	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/models"
)

const (
	ServiceName = "snapcapture"

	screenshotPath = "/screenshot"

	headerCache        = "X-Cache"
	headerResponseTime = "X-Response-Time"
)

type Config struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	http    httpclient.Client
	baseURL string
	apiKey  string
}

func NewClient(cfg Config, hc httpclient.Client) *Client {
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// Capture requests the raw image and reads metadata from the response headers.
func (c *Client) Capture(ctx context.Context, req models.ScreenshotRequest) (*models.ScreenshotResponse, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return nil, err
	}

	// some deployments answer with the JSON envelope regardless of the query flag
	if isJSON(resp.Headers.Get("Content-Type")) {
		return c.decodeJSON(resp)
	}

	if len(resp.Body) == 0 {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, models.ErrEmptyImage.Error(), nil)
	}

	contentType := resp.Headers.Get("Content-Type")
	format := models.FormatFromContentType(contentType)
	if contentType == "" {
		contentType = req.Format.ContentType()
		format = req.Format
	}

	shot := &models.ScreenshotResponse{
		Image:        resp.Body,
		ContentType:  contentType,
		Format:       format,
		Cached:       strings.EqualFold(strings.TrimSpace(resp.Headers.Get(headerCache)), "HIT"),
		ResponseTime: parseResponseTime(resp.Headers.Get(headerResponseTime)),
		CapturedAt:   time.Now().UTC(),
	}
	logCaptured(req, shot)
	return shot, nil
}

// CaptureJSON requests the base64 JSON envelope (?json=true).
func (c *Client) CaptureJSON(ctx context.Context, req models.ScreenshotRequest) (*models.ScreenshotResponse, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	shot, err := c.decodeJSON(resp)
	if err != nil {
		return nil, err
	}
	logCaptured(req, shot)
	return shot, nil
}

func (c *Client) send(ctx context.Context, req models.ScreenshotRequest, jsonMode bool) (*httpclient.Response, error) {
	if err := models.Validate(req); err != nil {
		return nil, apierror.Validation(ServiceName, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	opts := httpclient.RequestOptions{
		Headers: map[string]string{"Accept": req.Format.ContentType()},
		Body:    body,
	}
	if jsonMode {
		opts.Headers["Accept"] = "application/json"
		opts.Query = url.Values{"json": {"true"}}
	}
	if c.apiKey != "" {
		opts.Headers["X-API-Key"] = c.apiKey
	}

	log.Debug().
		Str("url", req.URL).
		Str("format", string(req.Format)).
		Bool("json", jsonMode).
		Msg("Requesting screenshot")

	resp, err := c.http.Request(ctx, http.MethodPost, c.baseURL+screenshotPath, opts)
	if err != nil {
		return nil, apierror.Transport(ServiceName, err)
	}

	if !resp.IsSuccess() {
		apiErr := apierror.FromResponse(ServiceName, resp.StatusCode, resp.Headers, resp.Body)
		log.Error().
			Err(apiErr).
			Str("url", req.URL).
			Msg("Screenshot request failed")
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) decodeJSON(resp *httpclient.Response) (*models.ScreenshotResponse, error) {
	var envelope models.ScreenshotJSONResponse
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, "invalid JSON response: "+err.Error(), resp.Body)
	}
	if !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = "service reported failure"
		}
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, msg, resp.Body)
	}

	shot, err := envelope.Decode()
	if err != nil {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, err.Error(), nil)
	}
	if !shot.Cached {
		shot.Cached = strings.EqualFold(strings.TrimSpace(resp.Headers.Get(headerCache)), "HIT")
	}
	if shot.ResponseTime == 0 {
		shot.ResponseTime = parseResponseTime(resp.Headers.Get(headerResponseTime))
	}
	shot.CapturedAt = time.Now().UTC()
	return shot, nil
}

// parseResponseTime accepts "350", "350ms" or any time.ParseDuration string.
func parseResponseTime(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if ms, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(ms * float64(time.Millisecond))
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return 0
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func logCaptured(req models.ScreenshotRequest, shot *models.ScreenshotResponse) {
	log.Debug().
		Str("url", req.URL).
		Int("bytes", shot.Size()).
		Bool("cached", shot.Cached).
		Dur("response_time", shot.ResponseTime).
		Msg("Screenshot captured")
}
