package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ScreenshotFormat string

const (
	FormatPNG  ScreenshotFormat = "png"
	FormatJPEG ScreenshotFormat = "jpeg"
	FormatWebP ScreenshotFormat = "webp"
)

const (
	DefaultQuality        = 80
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
)

var ErrEmptyImage = errors.New("screenshot image is empty")

func (f ScreenshotFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// FormatFromContentType maps a response Content-Type back to a format, defaulting to png.
func FormatFromContentType(contentType string) ScreenshotFormat {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

type Viewport struct {
	Width  int `json:"width" validate:"min=1,max=10000"`
	Height int `json:"height" validate:"min=1,max=10000"`
}

type ScreenshotRequest struct {
	URL      string           `json:"url" validate:"required,url,url_scheme"`
	Format   ScreenshotFormat `json:"format" validate:"oneof=png jpeg webp"`
	Quality  int              `json:"quality" validate:"min=1,max=100"`
	Viewport Viewport         `json:"viewport"`
	FullPage bool             `json:"fullPage"`
	Mobile   bool             `json:"mobile"`
}

func NewScreenshotRequest(url string) ScreenshotRequest {
	return ScreenshotRequest{
		URL:     url,
		Format:  FormatPNG,
		Quality: DefaultQuality,
		Viewport: Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	}
}

// Options returns every capture setting except the URL, rendered as strings.
func (r ScreenshotRequest) Options() map[string]string {
	return map[string]string{
		"format":   string(r.Format),
		"quality":  strconv.Itoa(r.Quality),
		"viewport": fmt.Sprintf("%dx%d", r.Viewport.Width, r.Viewport.Height),
		"fullPage": strconv.FormatBool(r.FullPage),
		"mobile":   strconv.FormatBool(r.Mobile),
	}
}

type ScreenshotResponse struct {
	Image        []byte           `json:"image"`
	ContentType  string           `json:"content_type"`
	Format       ScreenshotFormat `json:"format"`
	Cached       bool             `json:"cached"`
	ResponseTime time.Duration    `json:"response_time"`
	CapturedAt   time.Time        `json:"captured_at"`
}

func (r ScreenshotResponse) Size() int {
	return len(r.Image)
}

// DataURI renders the image as an inline data: URI.
func (r ScreenshotResponse) DataURI() string {
	return "data:" + r.ContentType + ";base64," + base64.StdEncoding.EncodeToString(r.Image)
}

type ScreenshotJSONResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Image          string `json:"image"`
	ContentType    string `json:"content_type"`
	Cached         bool   `json:"cached"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// Decode turns the base64 payload into a ScreenshotResponse. Payloads may be bare
// base64 or a data: URI.
func (r ScreenshotJSONResponse) Decode() (*ScreenshotResponse, error) {
	payload := strings.TrimSpace(r.Image)
	contentType := r.ContentType
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("malformed data uri")
		}
		if contentType == "" {
			contentType = strings.TrimSuffix(meta, ";base64")
		}
		payload = data
	}
	if payload == "" {
		return nil, ErrEmptyImage
	}

	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot payload: %w", err)
	}

	format := FormatFromContentType(contentType)
	if contentType == "" {
		contentType = format.ContentType()
	}

	return &ScreenshotResponse{
		Image:        image,
		ContentType:  contentType,
		Format:       format,
		Cached:       r.Cached,
		ResponseTime: time.Duration(r.ResponseTimeMs) * time.Millisecond,
	}, nil
}
