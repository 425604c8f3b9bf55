// Package shortcode talks to the short-code generation service.
package shortcode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/apierror"
	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/models"
)

const (
	ServiceName = "shortcode"

	generatePath = "/generate-short-code"
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

// EndpointFor returns the request path for a tier.
func EndpointFor(tier models.ShortCodeTier) (string, error) {
	switch tier {
	case models.TierDefault:
		return generatePath, nil
	case models.TierFast, models.TierSmart, models.TierAI:
		return generatePath + "/" + string(tier), nil
	default:
		return "", fmt.Errorf("unknown short code tier %q", string(tier))
	}
}

func (c *Client) Generate(ctx context.Context, req models.GenerateShortCodeRequest, tier models.ShortCodeTier) (*models.GenerateShortCodeResponse, error) {
	path, err := EndpointFor(tier)
	if err != nil {
		return nil, apierror.Validation(ServiceName, err)
	}
	if err := models.Validate(req); err != nil {
		return nil, apierror.Validation(ServiceName, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Debug().
		Str("url", req.URL).
		Str("domain", req.Domain).
		Str("tier", tier.String()).
		Msg("Generating short code")

	resp, err := c.http.Request(ctx, http.MethodPost, c.baseURL+path, httpclient.RequestOptions{
		Headers: c.headers(),
		Body:    body,
	})
	if err != nil {
		return nil, apierror.Transport(ServiceName, err)
	}

	if !resp.IsSuccess() {
		apiErr := apierror.FromResponse(ServiceName, resp.StatusCode, resp.Headers, resp.Body)
		log.Error().
			Err(apiErr).
			Str("tier", tier.String()).
			Msg("Short code generation failed")
		return nil, apiErr
	}

	var out models.GenerateShortCodeResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, "invalid JSON response: "+err.Error(), resp.Body)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "service reported failure"
		}
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, msg, resp.Body)
	}
	if strings.TrimSpace(out.Source.ShortCode) == "" {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, "response did not include a short code", resp.Body)
	}

	log.Debug().
		Str("short_code", out.Source.ShortCode).
		Str("method", out.Source.Method).
		Bool("was_modified", out.Source.WasModified).
		Msg("Short code generated")

	return &out, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		h["X-API-Key"] = c.apiKey
	}
	return h
}
