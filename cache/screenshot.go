package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/models"
)

const DefaultTTL = 24 * time.Hour

// Capturer takes a screenshot remotely. *snapcapture.Client satisfies it.
type Capturer interface {
	Capture(ctx context.Context, req models.ScreenshotRequest) (*models.ScreenshotResponse, error)
}

type ScreenshotCache struct {
	adapter  Adapter
	capturer Capturer
	ttl      time.Duration
	now      func() time.Time
}

func NewScreenshotCache(adapter Adapter, capturer Capturer, ttl time.Duration) *ScreenshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ScreenshotCache{
		adapter:  adapter,
		capturer: capturer,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *ScreenshotCache) Key(req models.ScreenshotRequest) string {
	return Key(req.URL, req.Options())
}

// Get returns the stored screenshot for req, if any. Entries that no longer
// decode are dropped and reported as misses.
func (c *ScreenshotCache) Get(ctx context.Context, req models.ScreenshotRequest) (*models.ScreenshotResponse, bool, error) {
	key := c.Key(req)

	raw, ok, err := c.adapter.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	var resp models.ScreenshotResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Dropping undecodable cache entry")
		_ = c.adapter.Delete(ctx, key)
		return nil, false, nil
	}

	resp.Cached = true
	return &resp, true, nil
}

// Capture returns the cached screenshot for req or takes a new one and stores it.
// Cache read and write failures are logged and never fail the capture.
func (c *ScreenshotCache) Capture(ctx context.Context, req models.ScreenshotRequest) (*models.ScreenshotResponse, error) {
	cached, ok, err := c.Get(ctx, req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("url", req.URL).
			Msg("Cache read failed, capturing fresh screenshot")
	} else if ok {
		log.Debug().
			Str("url", req.URL).
			Int("bytes", cached.Size()).
			Msg("Screenshot cache hit")
		return cached, nil
	}

	resp, err := c.capturer.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.CapturedAt.IsZero() {
		resp.CapturedAt = c.now().UTC()
	}

	c.store(ctx, req, *resp)
	return resp, nil
}

func (c *ScreenshotCache) Invalidate(ctx context.Context, req models.ScreenshotRequest) error {
	return c.adapter.Delete(ctx, c.Key(req))
}

func (c *ScreenshotCache) store(ctx context.Context, req models.ScreenshotRequest, resp models.ScreenshotResponse) {
	key := c.Key(req)
	resp.Cached = false

	raw, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to encode screenshot for cache")
		return
	}

	if err := c.adapter.Set(ctx, key, raw, c.ttl); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Failed to store screenshot in cache")
		return
	}

	log.Debug().
		Str("key", key).
		Int("bytes", resp.Size()).
		Dur("ttl", c.ttl).
		Msg("Screenshot cached")
}
