// Package trafficportal manages masked records (short key -> destination) in the
// Traffic Portal API.
package trafficportal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/apierror"
	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/models"
)

const (
	ServiceName = "trafficportal"

	itemsPath  = "/items"
	lookupPath = "/items/lookup"
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

func (c *Client) CreateMaskedRecord(ctx context.Context, req models.CreateMapRequest) (*models.MapResponse, error) {
	if err := models.Validate(req); err != nil {
		return nil, apierror.Validation(ServiceName, err)
	}

	log.Debug().
		Str("tp_key", req.TPKey).
		Str("domain", req.Domain).
		Str("destination", req.Destination).
		Msg("Creating masked record")

	return c.sendRecord(ctx, http.MethodPost, c.baseURL+itemsPath, req)
}

func (c *Client) UpdateMaskedRecord(ctx context.Context, req models.UpdateMapRequest) (*models.MapResponse, error) {
	if err := models.Validate(req); err != nil {
		return nil, apierror.Validation(ServiceName, err)
	}

	log.Debug().
		Int64("mid", req.MID).
		Str("destination", req.Destination).
		Msg("Updating masked record")

	target := c.baseURL + itemsPath + "/" + strconv.FormatInt(req.MID, 10)
	return c.sendRecord(ctx, http.MethodPut, target, req)
}

func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	if err := models.Validate(req); err != nil {
		return nil, apierror.Validation(ServiceName, err)
	}

	resp, err := c.do(ctx, http.MethodGet, c.baseURL+itemsPath, req.Values(), nil)
	if err != nil {
		return nil, err
	}

	var out models.SearchResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, "invalid JSON response: "+err.Error(), resp.Body)
	}
	if !out.Success {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, failureMessage(out.Message), resp.Body)
	}

	log.Debug().
		Int("records", len(out.Source.Records)).
		Int64("total", out.Source.Total.Int64()).
		Msg("Search completed")

	return &out, nil
}

// Lookup fetches the record behind domain/tpKey. A missing record is apierror.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, domain, tpKey string) (*models.MaskedRecord, error) {
	if strings.TrimSpace(domain) == "" || strings.TrimSpace(tpKey) == "" {
		return nil, apierror.Validation(ServiceName, errors.New("domain and tpKey are required"))
	}

	query := url.Values{"domain": {domain}, "tpKey": {tpKey}}
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+lookupPath, query, nil)
	if err != nil {
		return nil, err
	}

	out, err := decodeMapResponse(resp)
	if err != nil {
		return nil, err
	}
	return out.Source, nil
}

// KeyAvailable reports whether tpKey is still free on domain.
func (c *Client) KeyAvailable(ctx context.Context, domain, tpKey string) (bool, error) {
	_, err := c.Lookup(ctx, domain, tpKey)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, apierror.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func (c *Client) sendRecord(ctx context.Context, method, target string, payload any) (*models.MapResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, method, target, nil, body)
	if err != nil {
		return nil, err
	}

	out, err := decodeMapResponse(resp)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("mid", out.Source.MID.Int64()).
		Str("tp_key", out.Source.TPKey).
		Msg("Masked record saved")

	return out, nil
}

func (c *Client) do(ctx context.Context, method, target string, query url.Values, body []byte) (*httpclient.Response, error) {
	headers := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		headers["X-API-Key"] = c.apiKey
	}

	resp, err := c.http.Request(ctx, method, target, httpclient.RequestOptions{
		Headers: headers,
		Query:   query,
		Body:    body,
	})
	if err != nil {
		return nil, apierror.Transport(ServiceName, err)
	}

	if !resp.IsSuccess() {
		apiErr := apierror.FromResponse(ServiceName, resp.StatusCode, resp.Headers, resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			log.Debug().Err(apiErr).Msg("Traffic Portal record not found")
		} else {
			log.Error().
				Err(apiErr).
				Str("method", method).
				Msg("Traffic Portal request failed")
		}
		return nil, apiErr
	}
	return resp, nil
}

func decodeMapResponse(resp *httpclient.Response) (*models.MapResponse, error) {
	var out models.MapResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, "invalid JSON response: "+err.Error(), resp.Body)
	}
	if !out.Success {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, failureMessage(out.Message), resp.Body)
	}
	if out.Source == nil {
		return nil, apierror.Unexpected(ServiceName, resp.StatusCode, "response did not include a record", resp.Body)
	}
	return &out, nil
}

func failureMessage(msg string) string {
	if msg == "" {
		return "service reported failure"
	}
	return msg
}
