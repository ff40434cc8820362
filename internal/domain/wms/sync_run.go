package wms

import (
	"time"

	"github.com/google/uuid"
)

// SyncType is what a sync run moved.
type SyncType string

const (
	SyncTypeStock    SyncType = "stock"
	SyncTypePrice    SyncType = "price"
	SyncTypeProducts SyncType = "products"
	SyncTypeBrands   SyncType = "brands"
)

// SyncSource is what started a sync run.
type SyncSource string

const (
	SyncSourceScheduled SyncSource = "scheduled"
	SyncSourceWebhook   SyncSource = "webhook"
	SyncSourceManual    SyncSource = "manual"
)

// SyncRunStatus is the lifecycle state of a run.
type SyncRunStatus string

const (
	SyncRunStatusStarted   SyncRunStatus = "started"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// SyncRun is the audit record of one synchronization. It is created when
// the run starts and finished exactly once.
type SyncRun struct {
	ID               uuid.UUID
	SyncType         SyncType
	Source           SyncSource
	Status           SyncRunStatus
	RecordsProcessed int
	RecordsFailed    int
	Errors           []ItemError
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// NewSyncRun starts a run.
func NewSyncRun(syncType SyncType, source SyncSource) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		SyncType:  syncType,
		Source:    source,
		Status:    SyncRunStatusStarted,
		Errors:    make([]ItemError, 0),
		StartedAt: time.Now(),
	}
}

// IsFinished reports whether the run was completed or failed.
func (r *SyncRun) IsFinished() bool {
	return r.Status != SyncRunStatusStarted
}

// Complete finishes the run with its counts.
func (r *SyncRun) Complete(processed, failed int, errs []ItemError) error {
	if r.IsFinished() {
		return ErrSyncRunFinished
	}
	now := time.Now()
	r.Status = SyncRunStatusCompleted
	r.RecordsProcessed = processed
	r.RecordsFailed = failed
	if errs != nil {
		r.Errors = errs
	}
	r.CompletedAt = &now
	return nil
}

// Fail finishes the run with an error message.
func (r *SyncRun) Fail(message string) error {
	if r.IsFinished() {
		return ErrSyncRunFinished
	}
	now := time.Now()
	r.Status = SyncRunStatusFailed
	r.Errors = append(r.Errors, ItemError{Message: message})
	r.CompletedAt = &now
	return nil
}

// Duration is the wall time of a finished run, zero otherwise.
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
