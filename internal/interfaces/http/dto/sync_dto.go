package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/tenantapp/backend/internal/domain/wms"
)

// SyncRunResponse is the API view of a sync audit record.
type SyncRunResponse struct {
	ID               uuid.UUID       `json:"id"`
	SyncType         string          `json:"sync_type"`
	Source           string          `json:"source"`
	Status           string          `json:"status"`
	RecordsProcessed int             `json:"records_processed"`
	RecordsFailed    int             `json:"records_failed"`
	Errors           []wms.ItemError `json:"errors,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	DurationMs       int64           `json:"duration_ms"`
}

// SyncRunListQuery filters the sync run history.
type SyncRunListQuery struct {
	LimitRequest
	SyncType string `form:"sync_type" binding:"omitempty,oneof=stock price products brands"`
	Source   string `form:"source" binding:"omitempty,oneof=scheduled webhook manual"`
}

// Filter converts the query to a repository filter.
func (q SyncRunListQuery) Filter() wms.SyncRunFilter {
	return wms.SyncRunFilter{
		SyncType: wms.SyncType(q.SyncType),
		Source:   wms.SyncSource(q.Source),
		Limit:    q.Resolve(),
	}
}

// ToSyncRunResponse converts a domain sync run.
func ToSyncRunResponse(run *wms.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:               run.ID,
		SyncType:         string(run.SyncType),
		Source:           string(run.Source),
		Status:           string(run.Status),
		RecordsProcessed: run.RecordsProcessed,
		RecordsFailed:    run.RecordsFailed,
		Errors:           run.Errors,
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
		DurationMs:       run.Duration().Milliseconds(),
	}
}

// ToSyncRunResponses converts a list of sync runs.
func ToSyncRunResponses(runs []wms.SyncRun) []SyncRunResponse {
	out := make([]SyncRunResponse, len(runs))
	for i := range runs {
		out[i] = ToSyncRunResponse(&runs[i])
	}
	return out
}

// SyncTriggeredResponse acknowledges a manual sync request.
type SyncTriggeredResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}
