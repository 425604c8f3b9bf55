package repository

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/models"
	"gorm.io/gorm"
)

type LinkRepository interface {
	FindExistingLink(ctx context.Context, domain, destination string, uid int64) (*models.LinkRecordDB, error)
	CreateLink(ctx context.Context, link *models.LinkRecordDB) error
	GetLinkByKey(ctx context.Context, domain, tpKey string) (*models.LinkRecordDB, error)
	GetLinkByMID(ctx context.Context, mid int64) (*models.LinkRecordDB, error)
	UpdateDestination(ctx context.Context, mid int64, destination string) error
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{
		db: db,
	}
}

func (r *linkRepository) FindExistingLink(ctx context.Context, domain, destination string, uid int64) (*models.LinkRecordDB, error) {
	var link models.LinkRecordDB

	err := r.db.WithContext(ctx).
		Where("domain = ?", domain).
		Where("destination_hash = ?", models.HashDestination(destination)).
		Where("uid = ?", uid).
		Order("id").
		Limit(1).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		log.Error().
			Err(err).
			Str("domain", domain).
			Msg("Error querying for existing link")
		return nil, err
	}

	return &link, nil
}

func (r *linkRepository) CreateLink(ctx context.Context, link *models.LinkRecordDB) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *linkRepository) GetLinkByKey(ctx context.Context, domain, tpKey string) (*models.LinkRecordDB, error) {
	var link models.LinkRecordDB

	err := r.db.WithContext(ctx).
		Where("domain = ? AND tp_key = ?", domain, tpKey).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debug().
				Str("domain", domain).
				Str("tp_key", tpKey).
				Msg("Link not found in database")
			return nil, ErrLinkNotFound
		}
		log.Error().
			Err(err).
			Str("domain", domain).
			Str("tp_key", tpKey).
			Msg("Failed to retrieve link from database")
		return nil, err
	}

	return &link, nil
}

func (r *linkRepository) GetLinkByMID(ctx context.Context, mid int64) (*models.LinkRecordDB, error) {
	var link models.LinkRecordDB

	err := r.db.WithContext(ctx).Where("mid = ?", mid).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// UpdateDestination rewrites the destination of the link with the given Traffic
// Portal mid. The destination hash follows through the save hook.
func (r *linkRepository) UpdateDestination(ctx context.Context, mid int64, destination string) error {
	link, err := r.GetLinkByMID(ctx, mid)
	if err != nil {
		return err
	}

	link.Destination = destination
	return r.db.WithContext(ctx).Save(link).Error
}
