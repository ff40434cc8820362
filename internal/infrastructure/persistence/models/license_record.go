package models

import (
	"time"

	"github.com/tenantapp/backend/internal/domain/license"
)

// LicenseRecordModel maps the license_cache table, the durable mirror of the
// license gate's last verdict. Only the key hash is stored.
type LicenseRecordModel struct {
	BaseModel
	LicenseKeyHash string `gorm:"type:char(64);not null;uniqueIndex"`
	Status         string `gorm:"type:varchar(20);not null"`
	ExpiresAt      *time.Time
	LastCheckedAt  time.Time `gorm:"not null"`
	GraceUntil     *time.Time
}

// TableName returns the table name for GORM
func (LicenseRecordModel) TableName() string {
	return "license_cache"
}

// ToDomain converts the model to a domain MirrorRecord
func (m *LicenseRecordModel) ToDomain() *license.MirrorRecord {
	return &license.MirrorRecord{
		KeyHash:       m.LicenseKeyHash,
		Status:        license.Status(m.Status),
		ExpiresAt:     m.ExpiresAt,
		LastCheckedAt: m.LastCheckedAt,
		GraceUntil:    m.GraceUntil,
	}
}
