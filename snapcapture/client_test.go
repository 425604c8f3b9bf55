package snapcapture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficportal/linkshortener/apierror"
	"github.com/trafficportal/linkshortener/httpclient"
	"github.com/trafficportal/linkshortener/models"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	os.Exit(m.Run())
}

func imageHeaders(contentType, cache, took string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	if cache != "" {
		h.Set("X-Cache", cache)
	}
	if took != "" {
		h.Set("X-Response-Time", took)
	}
	return h
}

func TestCapture_Binary(t *testing.T) {
	mock := httpclient.NewMock().Queue(http.StatusOK, pngBytes, imageHeaders("image/png", "HIT", "420ms"))
	client := NewClient(Config{BaseURL: "https://snap.test", APIKey: "snap-key"}, mock)

	req := models.NewScreenshotRequest("https://example.com")
	req.FullPage = true

	shot, err := client.Capture(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, shot.Image)
	assert.Equal(t, models.FormatPNG, shot.Format)
	assert.True(t, shot.Cached)
	assert.Equal(t, 420*time.Millisecond, shot.ResponseTime)
	assert.False(t, shot.CapturedAt.IsZero())

	call, _ := mock.LastCall()
	assert.Equal(t, "https://snap.test/screenshot", call.URL)
	assert.Equal(t, "snap-key", call.Options.Headers["X-API-Key"])
	assert.Equal(t, "image/png", call.Options.Headers["Accept"])

	var sent map[string]any
	require.NoError(t, json.Unmarshal(call.Options.Body, &sent))
	assert.Equal(t, "https://example.com", sent["url"])
	assert.Equal(t, "png", sent["format"])
	assert.Equal(t, true, sent["fullPage"])
	assert.Equal(t, false, sent["mobile"])
	assert.Equal(t, map[string]any{"width": float64(1280), "height": float64(800)}, sent["viewport"])
}

func TestCapture_BinaryWithoutContentTypeUsesRequestFormat(t *testing.T) {
	mock := httpclient.NewMock().Queue(http.StatusOK, []byte("jpegdata"), nil)
	client := NewClient(Config{BaseURL: "https://snap.test"}, mock)

	req := models.NewScreenshotRequest("https://example.com")
	req.Format = models.FormatJPEG

	shot, err := client.Capture(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.FormatJPEG, shot.Format)
	assert.Equal(t, "image/jpeg", shot.ContentType)
	assert.False(t, shot.Cached)
}

func TestCapture_JSONEnvelopeInBinaryMode(t *testing.T) {
	mock := httpclient.NewMock().QueueJSON(http.StatusOK, models.ScreenshotJSONResponse{
		Success:     true,
		Image:       base64.StdEncoding.EncodeToString(pngBytes),
		ContentType: "image/png",
	})
	client := NewClient(Config{BaseURL: "https://snap.test"}, mock)

	shot, err := client.Capture(context.Background(), models.NewScreenshotRequest("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, shot.Image)
}

func TestCapture_EmptyBody(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://snap.test"}, httpclient.NewMock().Queue(http.StatusOK, nil, imageHeaders("image/png", "", "")))

	_, err := client.Capture(context.Background(), models.NewScreenshotRequest("https://example.com"))
	assert.ErrorIs(t, err, apierror.ErrAPI)
}

func TestCaptureJSON(t *testing.T) {
	mock := httpclient.NewMock().QueueJSON(http.StatusOK, models.ScreenshotJSONResponse{
		Success:        true,
		Image:          "data:image/webp;base64," + base64.StdEncoding.EncodeToString(pngBytes),
		Cached:         false,
		ResponseTimeMs: 1200,
	})
	client := NewClient(Config{BaseURL: "https://snap.test/"}, mock)

	req := models.NewScreenshotRequest("https://example.com")
	req.Format = models.FormatWebP

	shot, err := client.CaptureJSON(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, shot.Image)
	assert.Equal(t, models.FormatWebP, shot.Format)
	assert.Equal(t, 1200*time.Millisecond, shot.ResponseTime)

	call, _ := mock.LastCall()
	assert.Equal(t, "https://snap.test/screenshot?json=true", call.URL)
	assert.Equal(t, "application/json", call.Options.Headers["Accept"])
}

func TestCaptureJSON_FailureEnvelope(t *testing.T) {
	mock := httpclient.NewMock().QueueJSON(http.StatusOK, map[string]any{"success": false, "message": "page timed out"})
	client := NewClient(Config{BaseURL: "https://snap.test"}, mock)

	_, err := client.CaptureJSON(context.Background(), models.NewScreenshotRequest("https://example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page timed out")
}

func TestCapture_ErrorKindPerStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, apierror.ErrValidation},
		{http.StatusUnauthorized, apierror.ErrAuthentication},
		{http.StatusForbidden, apierror.ErrAuthentication},
		{http.StatusTooManyRequests, apierror.ErrRateLimit},
		{http.StatusInternalServerError, apierror.ErrServer},
		{http.StatusGatewayTimeout, apierror.ErrServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := NewClient(Config{BaseURL: "https://snap.test"}, httpclient.NewMock().QueueJSON(tt.status, map[string]string{"error": "denied"}))

			_, err := client.Capture(context.Background(), models.NewScreenshotRequest("https://example.com"))
			assert.ErrorIs(t, err, tt.kind)

			var apiErr *apierror.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "denied", apiErr.Message)
		})
	}
}

func TestCapture_ValidationAndNetwork(t *testing.T) {
	mock := httpclient.NewMock().QueueError(errors.New("tls handshake timeout"))
	client := NewClient(Config{BaseURL: "https://snap.test"}, mock)

	bad := models.NewScreenshotRequest("https://example.com")
	bad.Quality = 0
	_, err := client.Capture(context.Background(), bad)
	assert.ErrorIs(t, err, apierror.ErrValidation)
	assert.Empty(t, mock.Calls())

	_, err = client.Capture(context.Background(), models.NewScreenshotRequest("https://example.com"))
	assert.ErrorIs(t, err, apierror.ErrNetwork)
}

func TestParseResponseTime(t *testing.T) {
	assert.Equal(t, 350*time.Millisecond, parseResponseTime("350"))
	assert.Equal(t, 350*time.Millisecond, parseResponseTime(" 350ms "))
	assert.Equal(t, 2*time.Second, parseResponseTime("2s"))
	assert.Equal(t, 1500*time.Microsecond, parseResponseTime("1.5"))
	assert.Zero(t, parseResponseTime("fast"))
	assert.Zero(t, parseResponseTime(""))
}

func TestCapture_OversizedResponse(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://snap.test"}, httpclient.NewMock().QueueError(httpclient.ErrResponseTooLarge))

	_, err := client.Capture(context.Background(), models.NewScreenshotRequest("https://example.com"))
	assert.ErrorIs(t, err, apierror.ErrAPI)
	assert.ErrorIs(t, err, httpclient.ErrResponseTooLarge)
	assert.False(t, errors.Is(err, apierror.ErrNetwork))
}
