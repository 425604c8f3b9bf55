package models

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/trafficportal/linkshortener/utils"
	"gorm.io/gorm"
)

// TransientDB is one key/value row with an optional expiry, the same shape as a
// WordPress transient.
type TransientDB struct {
	Name      string     `gorm:"primaryKey;size:191"`
	Value     []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TransientDB) TableName() string {
	return "tp_transients"
}

func (t *TransientDB) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// LinkRecordDB is the local copy of a masked record created through this toolkit.
type LinkRecordDB struct {
	ID              int64  `gorm:"primaryKey"`
	MID             int64  `gorm:"column:mid;index"`
	UID             int64  `gorm:"index"`
	TPKey           string `gorm:"size:64;uniqueIndex:idx_tp_links_domain_key"`
	Domain          string `gorm:"size:191;uniqueIndex:idx_tp_links_domain_key"`
	Destination     string `gorm:"not null"`
	DestinationHash string `gorm:"size:64;index"`
	Method          string `gorm:"size:32"`
	Tier            string `gorm:"size:16"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (LinkRecordDB) TableName() string {
	return "tp_links"
}

func (l *LinkRecordDB) BeforeSave(tx *gorm.DB) error {
	l.DestinationHash = l.ComputeDestinationHash()
	return nil
}

// ComputeDestinationHash computes a SHA256 of the normalized destination for duplicate detection
func (l *LinkRecordDB) ComputeDestinationHash() string {
	return HashDestination(l.Destination)
}

func HashDestination(destination string) string {
	hash := sha256.Sum256([]byte(utils.NormalizeDestination(destination)))
	return fmt.Sprintf("%x", hash)
}

func (l *LinkRecordDB) ToMaskedRecord() MaskedRecord {
	return MaskedRecord{
		MID:         FlexInt(l.MID),
		UID:         FlexInt(l.UID),
		TPKey:       l.TPKey,
		Domain:      l.Domain,
		Destination: l.Destination,
		Status:      StatusActive,
		Type:        TypeRedirect,
		CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func FromMaskedRecord(r MaskedRecord, method string, tier ShortCodeTier) *LinkRecordDB {
	return &LinkRecordDB{
		MID:         r.MID.Int64(),
		UID:         r.UID.Int64(),
		TPKey:       r.TPKey,
		Domain:      r.Domain,
		Destination: r.Destination,
		Method:      method,
		Tier:        tier.String(),
	}
}
