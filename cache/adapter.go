// Package cache keeps SnapCapture screenshots in a key/value backend so repeat
// captures of the same URL and options skip the remote call.
package cache

import (
	"context"
	"time"
)

// Adapter is a key/value backend with per-entry ttl. A ttl <= 0 never expires.
// Get reports a miss with ok == false and a nil error.
type Adapter interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by adapters that can drop expired entries in bulk.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
