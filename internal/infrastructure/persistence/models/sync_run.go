package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tenantapp/backend/internal/domain/wms"
)

// ItemErrors stores a run's error list as a JSON column.
type ItemErrors []wms.ItemError

// Value implements driver.Valuer
func (e ItemErrors) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (e *ItemErrors) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*e = ItemErrors{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for sync run errors")
	}
	if len(raw) == 0 {
		*e = ItemErrors{}
		return nil
	}
	return json.Unmarshal(raw, e)
}

// SyncRunModel maps the sync_runs table.
type SyncRunModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	SyncType         string     `gorm:"type:varchar(20);not null;index"`
	Source           string     `gorm:"type:varchar(20);not null"`
	Status           string     `gorm:"type:varchar(20);not null"`
	RecordsProcessed int        `gorm:"not null;default:0"`
	RecordsFailed    int        `gorm:"not null;default:0"`
	Errors           ItemErrors `gorm:"type:jsonb"`
	StartedAt        time.Time  `gorm:"not null;index"`
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the model to a domain SyncRun
func (m *SyncRunModel) ToDomain() *wms.SyncRun {
	errs := make([]wms.ItemError, len(m.Errors))
	copy(errs, m.Errors)
	return &wms.SyncRun{
		ID:               m.ID,
		SyncType:         wms.SyncType(m.SyncType),
		Source:           wms.SyncSource(m.Source),
		Status:           wms.SyncRunStatus(m.Status),
		RecordsProcessed: m.RecordsProcessed,
		RecordsFailed:    m.RecordsFailed,
		Errors:           errs,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
	}
}

// SyncRunModelFromDomain converts a domain SyncRun to its model
func SyncRunModelFromDomain(r *wms.SyncRun) *SyncRunModel {
	return &SyncRunModel{
		ID:               r.ID,
		SyncType:         string(r.SyncType),
		Source:           string(r.Source),
		Status:           string(r.Status),
		RecordsProcessed: r.RecordsProcessed,
		RecordsFailed:    r.RecordsFailed,
		Errors:           ItemErrors(r.Errors),
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
}
