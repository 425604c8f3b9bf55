package repository

import (
	"github.com/trafficportal/linkshortener/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables used by the gorm repositories.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.TransientDB{}, &models.LinkRecordDB{})
}
