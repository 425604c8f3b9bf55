package models

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip decodes doc into T, re-encodes it and decodes both sides generically.
func roundTrip[T any](t *testing.T, doc string) (want, got map[string]any) {
	t.Helper()

	var dto T
	require.NoError(t, json.Unmarshal([]byte(doc), &dto))

	encoded, err := json.Marshal(dto)
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal([]byte(doc), &want))
	require.NoError(t, json.Unmarshal(encoded, &got))
	return want, got
}

func TestDTORoundTrip(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T) (map[string]any, map[string]any)
	}{
		{
			name: "short code response",
			run: func(t *testing.T) (map[string]any, map[string]any) {
				return roundTrip[GenerateShortCodeResponse](t, `{
					"message": "ok",
					"success": true,
					"source": {
						"short_code": "summer-sale",
						"method": "ai",
						"was_modified": true,
						"original_code": "summersale",
						"keywords": ["summer", "sale"]
					}
				}`)
			},
		},
		{
			name: "screenshot request",
			run: func(t *testing.T) (map[string]any, map[string]any) {
				return roundTrip[ScreenshotRequest](t, `{
					"url": "https://example.com",
					"format": "webp",
					"quality": 70,
					"viewport": {"width": 390, "height": 844},
					"fullPage": true,
					"mobile": true
				}`)
			},
		},
		{
			name: "map response with usage",
			run: func(t *testing.T) (map[string]any, map[string]any) {
				return roundTrip[MapResponse](t, `{
					"message": "created",
					"success": true,
					"source": {
						"mid": 12,
						"uid": 4,
						"tpKey": "launch",
						"domain": "trfc.link",
						"destination": "https://example.com/launch",
						"status": "active",
						"type": "redirect",
						"is_set": 0,
						"created_at": "2025-03-01 10:00:00",
						"usage": {
							"total": 10,
							"unique": 7,
							"qr": 3,
							"regular": 7,
							"daily": [{"date": "2025-03-01", "total": 10, "qr": 3, "regular": 7}]
						}
					}
				}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, got := tt.run(t)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlexInt_AcceptsStringsAndNumbers(t *testing.T) {
	var record MaskedRecord
	err := json.Unmarshal([]byte(`{"mid": "15", "uid": 2, "is_set": null, "usage": {"total": "9"}}`), &record)
	require.NoError(t, err)

	assert.Equal(t, int64(15), record.MID.Int64())
	assert.Equal(t, int64(2), record.UID.Int64())
	assert.Equal(t, int64(0), record.IsSet.Int64())
	assert.Equal(t, FlexInt(9), record.Usage.Total)

	err = json.Unmarshal([]byte(`{"mid": "fifteen"}`), &record)
	assert.Error(t, err)
}

func TestMaskedRecord_Helpers(t *testing.T) {
	record := MaskedRecord{TPKey: "abc", Domain: "trfc.link", CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-02T08:30:00Z"}

	assert.Equal(t, "https://trfc.link/abc", record.ShortURL(""))
	assert.Equal(t, "http://trfc.link/abc", record.ShortURL("http"))

	created, err := record.Created()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), created)

	updated, err := record.Updated()
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Hour())

	_, err = MaskedRecord{CreatedAt: "yesterday"}.Created()
	assert.Error(t, err)
}

func TestScreenshotRequest_Options(t *testing.T) {
	req := NewScreenshotRequest("https://example.com")
	opts := req.Options()

	assert.NotContains(t, opts, "url")
	assert.Equal(t, map[string]string{
		"format":   "png",
		"quality":  "80",
		"viewport": "1280x800",
		"fullPage": "false",
		"mobile":   "false",
	}, opts)
}

func TestScreenshotJSONResponse_Decode(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(raw)

	t.Run("bare base64", func(t *testing.T) {
		resp, err := ScreenshotJSONResponse{Success: true, Image: encoded, ContentType: "image/png", Cached: true, ResponseTimeMs: 250}.Decode()
		require.NoError(t, err)
		assert.Equal(t, raw, resp.Image)
		assert.Equal(t, FormatPNG, resp.Format)
		assert.True(t, resp.Cached)
		assert.Equal(t, 250*time.Millisecond, resp.ResponseTime)
	})

	t.Run("data uri", func(t *testing.T) {
		resp, err := ScreenshotJSONResponse{Success: true, Image: "data:image/webp;base64," + encoded}.Decode()
		require.NoError(t, err)
		assert.Equal(t, raw, resp.Image)
		assert.Equal(t, "image/webp", resp.ContentType)
		assert.Equal(t, FormatWebP, resp.Format)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := ScreenshotJSONResponse{Success: true}.Decode()
		assert.ErrorIs(t, err, ErrEmptyImage)
	})

	t.Run("garbage payload", func(t *testing.T) {
		_, err := ScreenshotJSONResponse{Success: true, Image: "%%%"}.Decode()
		assert.Error(t, err)
	})
}

func TestParseShortCodeTier(t *testing.T) {
	for raw, want := range map[string]ShortCodeTier{"": TierDefault, "default": TierDefault, "FAST": TierFast, " smart ": TierSmart, "ai": TierAI} {
		got, err := ParseShortCodeTier(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseShortCodeTier("turbo")
	assert.Error(t, err)
}
