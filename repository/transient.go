package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransientRepository stores named values with an optional expiry. A ttl <= 0
// never expires. Expired rows read as misses until PurgeExpired removes them.
type TransientRepository interface {
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Set(ctx context.Context, name string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, name string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type transientRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTransientRepository(db *gorm.DB) TransientRepository {
	return &transientRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *transientRepository) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var row models.TransientDB

	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		log.Error().
			Err(err).
			Str("name", name).
			Msg("Failed to read transient")
		return nil, false, err
	}

	if row.Expired(r.now()) {
		log.Debug().
			Str("name", name).
			Msg("Transient expired")
		return nil, false, nil
	}
	return row.Value, true, nil
}

func (r *transientRepository) Set(ctx context.Context, name string, value []byte, ttl time.Duration) error {
	now := r.now()
	row := models.TransientDB{
		Name:      name,
		Value:     value,
		ExpiresAt: expiryFor(now, ttl),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *transientRepository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.TransientDB{}).Error
}

func (r *transientRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", r.now().UTC()).
		Delete(&models.TransientDB{})
	if result.Error != nil {
		return 0, result.Error
	}

	log.Debug().
		Int64("deleted", result.RowsAffected).
		Msg("Purged expired transients")
	return result.RowsAffected, nil
}

func expiryFor(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	exp := now.Add(ttl).UTC()
	return &exp
}
