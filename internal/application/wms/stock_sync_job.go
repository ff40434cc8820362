package wms

import (
	"context"

	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

// StockFeed fetches the full WMS stock list.
type StockFeed interface {
	FetchStockLevels(ctx context.Context) ([]wms.StockLevel, error)
}

// BulkSyncer applies a stock list.
type BulkSyncer interface {
	BulkSync(ctx context.Context, items []wms.StockLevel) *wms.SyncResult
}

// StockSyncJobConfig contains configuration for StockSyncJob
type StockSyncJobConfig struct {
	Feed     StockFeed
	Syncer   BulkSyncer
	Runs     wms.SyncRunRepository
	Recorder SyncRecorder
	Logger   *zap.Logger
}

// StockSyncJob pulls the stock feed and applies it, recording a SyncRun.
type StockSyncJob struct {
	feed     StockFeed
	syncer   BulkSyncer
	runs     wms.SyncRunRepository
	recorder SyncRecorder
	logger   *zap.Logger
}

// NewStockSyncJob creates a new StockSyncJob
func NewStockSyncJob(cfg StockSyncJobConfig) *StockSyncJob {
	return &StockSyncJob{
		feed:     cfg.Feed,
		syncer:   cfg.Syncer,
		runs:     cfg.Runs,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// Run performs one pull sync. Audit writes are best-effort; the returned
// run is a local record even when it could not be stored.
func (j *StockSyncJob) Run(ctx context.Context, source wms.SyncSource) (*wms.SyncRun, error) {
	run := wms.NewSyncRun(wms.SyncTypeStock, source)
	stored := true
	if err := j.runs.Create(ctx, run); err != nil {
		j.logger.Warn("Failed to record stock sync run", zap.Error(err))
		stored = false
	}

	items, err := j.feed.FetchStockLevels(ctx)
	if err != nil {
		_ = run.Fail(err.Error())
		j.finish(ctx, run, stored)
		return run, err
	}

	if len(items) == 0 {
		_ = run.Complete(0, 0, nil)
		j.finish(ctx, run, stored)
		return run, nil
	}

	result := j.syncer.BulkSync(ctx, items)
	_ = run.Complete(result.Processed, result.Failed, result.Errors)
	j.finish(ctx, run, stored)
	return run, nil
}

func (j *StockSyncJob) finish(ctx context.Context, run *wms.SyncRun, stored bool) {
	if j.recorder != nil {
		j.recorder.RecordSyncDuration(ctx, string(run.SyncType), string(run.Source), run.Duration())
	}
	if !stored {
		return
	}
	if err := j.runs.Update(ctx, run); err != nil {
		j.logger.Warn("Failed to update stock sync run",
			zap.String("sync_run_id", run.ID.String()),
			zap.Error(err),
		)
	}
}
