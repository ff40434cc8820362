package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tenantapp/backend/internal/domain/wms"
	"github.com/tenantapp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	defaultSyncRunLimit = 20
	maxSyncRunLimit     = 200
)

// GormSyncRunRepository stores sync audit records. It may sit on a separate
// database from the products.
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Create inserts a new run.
func (r *GormSyncRunRepository) Create(ctx context.Context, run *wms.SyncRun) error {
	if err := r.db.WithContext(ctx).Create(models.SyncRunModelFromDomain(run)).Error; err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Update persists the run's final state.
func (r *GormSyncRunRepository) Update(ctx context.Context, run *wms.SyncRun) error {
	m := models.SyncRunModelFromDomain(run)
	result := r.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":            m.Status,
			"records_processed": m.RecordsProcessed,
			"records_failed":    m.RecordsFailed,
			"errors":            m.Errors,
			"completed_at":      m.CompletedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update sync run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return wms.ErrSyncRunNotFound
	}
	return nil
}

// FindByID returns one run.
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*wms.SyncRun, error) {
	var m models.SyncRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wms.ErrSyncRunNotFound
		}
		return nil, fmt.Errorf("failed to find sync run: %w", err)
	}
	return m.ToDomain(), nil
}

// FindRecent returns runs newest first.
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, filter wms.SyncRunFilter) ([]wms.SyncRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSyncRunLimit
	}
	if limit > maxSyncRunLimit {
		limit = maxSyncRunLimit
	}

	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
	if filter.SyncType != "" {
		query = query.Where("sync_type = ?", string(filter.SyncType))
	}
	if filter.Source != "" {
		query = query.Where("source = ?", string(filter.Source))
	}

	var rows []models.SyncRunModel
	if err := query.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	runs := make([]wms.SyncRun, len(rows))
	for i := range rows {
		runs[i] = *rows[i].ToDomain()
	}
	return runs, nil
}

var _ wms.SyncRunRepository = (*GormSyncRunRepository)(nil)
