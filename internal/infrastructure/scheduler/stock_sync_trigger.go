package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tenantapp/backend/internal/domain/shared"
	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

// StockSyncLockKey is the fleet-wide lease held while a stock sync runs.
const StockSyncLockKey = "lock:wms_stock_sync"

// SyncJobRunner runs one stock sync.
type SyncJobRunner interface {
	Run(ctx context.Context, source wms.SyncSource) (*wms.SyncRun, error)
}

// StockSyncTriggerConfig holds configuration for the stock sync trigger
type StockSyncTriggerConfig struct {
	Enabled       bool
	Interval      time.Duration
	LockTTL       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultStockSyncTriggerConfig returns default stock sync trigger configuration
func DefaultStockSyncTriggerConfig() StockSyncTriggerConfig {
	return StockSyncTriggerConfig{
		Enabled:       true,
		Interval:      5 * time.Minute,
		LockTTL:       10 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
	}
}

// StockSyncTrigger fires the stock sync job on an interval. Runs never
// overlap inside a process, and the Redis lease keeps them single across
// the fleet.
type StockSyncTrigger struct {
	config StockSyncTriggerConfig
	job    SyncJobRunner
	locker shared.Locker
	logger *zap.Logger

	running atomic.Bool

	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewStockSyncTrigger creates a new stock sync trigger
func NewStockSyncTrigger(config StockSyncTriggerConfig, job SyncJobRunner, locker shared.Locker, logger *zap.Logger) *StockSyncTrigger {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	return &StockSyncTrigger{
		config:  config,
		job:     job,
		locker:  locker,
		logger:  logger.Named("stock_sync_trigger"),
		baseCtx: context.Background(),
	}
}

// Start starts the interval loop. The first tick fires immediately.
func (t *StockSyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	if t.config.Interval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", ErrInvalidConfig)
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.baseCtx = ctx
	t.cancel = cancel

	if t.config.Enabled {
		t.wg.Add(1)
		go t.runLoop(ctx)
	}

	t.logger.Info("Stock sync trigger started",
		zap.Bool("scheduled", t.config.Enabled),
		zap.Duration("interval", t.config.Interval),
		zap.Duration("lock_ttl", t.config.LockTTL),
	)
	return nil
}

// Stop cancels the loop and any run in flight, then waits for them.
func (t *StockSyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Stock sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsSyncRunning reports whether this process is running a sync.
func (t *StockSyncTrigger) IsSyncRunning() bool {
	return t.running.Load()
}

func (t *StockSyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *StockSyncTrigger) tick(ctx context.Context) {
	owner, err := t.claim(ctx)
	if err != nil {
		if errors.Is(err, wms.ErrSyncAlreadyRunning) {
			t.logger.Debug("Skipping scheduled stock sync", zap.Error(err))
		} else {
			t.logger.Warn("Failed to claim stock sync lease", zap.Error(err))
		}
		return
	}
	t.execute(ctx, owner, wms.SyncSourceScheduled)
}

// TriggerNow starts a manual run in the background. It fails fast with
// wms.ErrSyncAlreadyRunning when a run is active here or the lease is held.
func (t *StockSyncTrigger) TriggerNow(ctx context.Context) error {
	owner, err := t.claim(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	base := t.baseCtx
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		t.execute(base, owner, wms.SyncSourceManual)
	}()
	return nil
}

// claim sets the running flag and takes the lease, returning the owner token.
func (t *StockSyncTrigger) claim(ctx context.Context) (string, error) {
	if !t.running.CompareAndSwap(false, true) {
		return "", wms.ErrSyncAlreadyRunning
	}

	owner := uuid.NewString()
	ok, err := t.locker.Acquire(ctx, StockSyncLockKey, owner, t.config.LockTTL)
	if err != nil {
		t.running.Store(false)
		return "", fmt.Errorf("acquire %s: %w", StockSyncLockKey, err)
	}
	if !ok {
		t.running.Store(false)
		return "", wms.ErrSyncAlreadyRunning
	}
	return owner, nil
}

func (t *StockSyncTrigger) execute(ctx context.Context, owner string, source wms.SyncSource) {
	defer t.running.Store(false)
	defer t.release(owner)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := t.holdLease(ctx, cancel, owner)
	defer stop()

	for attempt := 1; attempt <= t.config.RetryAttempts; attempt++ {
		run, err := t.job.Run(ctx, source)
		if err == nil {
			fields := []zap.Field{zap.String("source", string(source)), zap.Int("attempt", attempt)}
			if run != nil {
				fields = append(fields,
					zap.String("sync_run_id", run.ID.String()),
					zap.Int("processed", run.RecordsProcessed),
					zap.Int("failed", run.RecordsFailed),
				)
			}
			t.logger.Info("Stock sync finished", fields...)
			return
		}

		if attempt == t.config.RetryAttempts {
			t.logger.Error("Stock sync failed after final attempt",
				zap.String("source", string(source)),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return
		}

		t.logger.Warn("Stock sync attempt failed, retrying",
			zap.String("source", string(source)),
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", t.config.RetryDelay),
			zap.Error(err),
		)

		timer := time.NewTimer(t.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// holdLease renews the lease every third of its TTL for as long as the run
// lasts. Losing the lease cancels the run so two nodes never sync at once.
func (t *StockSyncTrigger) holdLease(ctx context.Context, cancel context.CancelFunc, owner string) (stop func()) {
	interval := t.config.LockTTL / 3
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			ok, err := t.locker.Extend(ctx, StockSyncLockKey, owner, t.config.LockTTL)
			if err != nil {
				t.logger.Warn("Failed to extend stock sync lease", zap.Error(err))
				continue
			}
			if !ok {
				t.logger.Error("Stock sync lease lost, cancelling run", zap.String("owner", owner))
				cancel()
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (t *StockSyncTrigger) release(owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.locker.Release(ctx, StockSyncLockKey, owner); err != nil {
		t.logger.Warn("Failed to release stock sync lease", zap.Error(err))
	}
}
