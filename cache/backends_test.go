package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficportal/linkshortener/models"
	"github.com/trafficportal/linkshortener/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	_ Adapter = (*Memory)(nil)
	_ Purger  = (*Memory)(nil)
	_ Adapter = (*repository.SQLTransientRepository)(nil)
	_ Purger  = (*repository.SQLTransientRepository)(nil)
	_ Adapter = repository.TransientRepository(nil)
)

func TestScreenshotCache_TransientBackend(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))

	capturer := &stubCapturer{resp: pngResponse()}
	c := NewScreenshotCache(repository.NewTransientRepository(db), capturer, time.Hour)
	req := models.NewScreenshotRequest("https://example.com/pricing")

	_, err = c.Capture(context.Background(), req)
	require.NoError(t, err)

	resp, err := c.Capture(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, pngResponse().Image, resp.Image)
	assert.Equal(t, 1, capturer.calls)
}
