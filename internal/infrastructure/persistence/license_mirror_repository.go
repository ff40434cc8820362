package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenantapp/backend/internal/domain/license"
	"github.com/tenantapp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLicenseMirrorRepository keeps the durable copy of the license state.
type GormLicenseMirrorRepository struct {
	db *gorm.DB
}

// NewGormLicenseMirrorRepository creates a new GormLicenseMirrorRepository
func NewGormLicenseMirrorRepository(db *gorm.DB) *GormLicenseMirrorRepository {
	return &GormLicenseMirrorRepository{db: db}
}

// Upsert inserts the record or replaces the row with the same key hash.
func (r *GormLicenseMirrorRepository) Upsert(ctx context.Context, record *license.MirrorRecord) error {
	m := &models.LicenseRecordModel{
		LicenseKeyHash: record.KeyHash,
		Status:         string(record.Status),
		ExpiresAt:      record.ExpiresAt,
		LastCheckedAt:  record.LastCheckedAt,
		GraceUntil:     record.GraceUntil,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_key_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "expires_at", "last_checked_at", "grace_until", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert license record: %w", err)
	}
	return nil
}

// FindByKeyHash returns the mirror row, or (nil, nil) when none exists.
func (r *GormLicenseMirrorRepository) FindByKeyHash(ctx context.Context, keyHash string) (*license.MirrorRecord, error) {
	var m models.LicenseRecordModel
	err := r.db.WithContext(ctx).Where("license_key_hash = ?", keyHash).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license record: %w", err)
	}
	return m.ToDomain(), nil
}

var _ license.MirrorRepository = (*GormLicenseMirrorRepository)(nil)
