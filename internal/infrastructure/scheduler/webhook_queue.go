package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenantapp/backend/internal/domain/wms"
	"go.uber.org/zap"
)

// JobStatus represents the status of a queued webhook job
type JobStatus string

const (
	JobStatusPending  JobStatus = "PENDING"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusRetrying JobStatus = "RETRYING"
	JobStatusSuccess  JobStatus = "SUCCESS"
	JobStatusFailed   JobStatus = "FAILED"
)

// WebhookJob is one webhook event moving through the queue.
type WebhookJob struct {
	ID          uuid.UUID  `json:"id"`
	EventType   string     `json:"event_type"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Error       string     `json:"error,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	event wms.WebhookEvent
}

// WebhookHandler consumes webhook events. A returned error schedules a retry.
type WebhookHandler interface {
	Handle(ctx context.Context, event wms.WebhookEvent) error
}

// OutcomeRecorder counts final job outcomes.
type OutcomeRecorder interface {
	RecordWebhookEvent(ctx context.Context, eventType, outcome string)
}

// WebhookQueueConfig holds webhook queue configuration
type WebhookQueueConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	JobTimeout  time.Duration
	HistorySize int
}

// DefaultWebhookQueueConfig returns default webhook queue configuration
func DefaultWebhookQueueConfig() WebhookQueueConfig {
	return WebhookQueueConfig{
		Workers:     4,
		QueueSize:   100,
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		JobTimeout:  2 * time.Minute,
		HistorySize: 100,
	}
}

// Validate checks the configuration
func (c WebhookQueueConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.MaxAttempts <= 0 || c.HistorySize <= 0 {
		return fmt.Errorf("%w: workers, queue size, attempts and history must be positive", ErrInvalidConfig)
	}
	if c.Backoff < 0 || c.JobTimeout <= 0 {
		return fmt.Errorf("%w: backoff must not be negative and job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// WebhookQueue runs webhook events on a bounded worker pool with fixed-backoff retries.
type WebhookQueue struct {
	config   WebhookQueueConfig
	handler  WebhookHandler
	recorder OutcomeRecorder
	logger   *zap.Logger

	jobs      chan *WebhookJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	timers    map[uuid.UUID]*time.Timer

	historyMu sync.RWMutex
	history   []*WebhookJob
	next      int
}

// WebhookQueueOption configures a WebhookQueue
type WebhookQueueOption func(*WebhookQueue)

// WithOutcomeRecorder sets the recorder for final job outcomes
func WithOutcomeRecorder(r OutcomeRecorder) WebhookQueueOption {
	return func(q *WebhookQueue) {
		q.recorder = r
	}
}

// NewWebhookQueue creates a new webhook queue
func NewWebhookQueue(config WebhookQueueConfig, handler WebhookHandler, logger *zap.Logger, opts ...WebhookQueueOption) (*WebhookQueue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	q := &WebhookQueue{
		config:  config,
		handler: handler,
		logger:  logger.Named("webhook_queue"),
		jobs:    make(chan *WebhookJob, config.QueueSize),
		timers:  make(map[uuid.UUID]*time.Timer),
		history: make([]*WebhookJob, 0, config.HistorySize),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Start starts the worker pool
func (q *WebhookQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return nil
	}
	q.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Webhook queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
		zap.Int("max_attempts", q.config.MaxAttempts),
		zap.Duration("backoff", q.config.Backoff),
	)
	return nil
}

// Stop stops accepting jobs, drops pending retries and lets workers drain
// what is already queued. Work still running when ctx expires is cancelled.
func (q *WebhookQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("Webhook queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("Webhook queue stop timed out")
		return ctx.Err()
	}
}

// Submit enqueues an event without blocking.
func (q *WebhookQueue) Submit(event wms.WebhookEvent) (*WebhookJob, error) {
	job := &WebhookJob{
		ID:          uuid.New(),
		EventType:   event.EventType,
		Status:      JobStatusPending,
		MaxAttempts: q.config.MaxAttempts,
		ReceivedAt:  time.Now(),
		event:       event,
	}

	submitted := *job
	if err := q.enqueue(job); err != nil {
		return nil, err
	}
	q.remember(job)

	q.logger.Debug("Webhook job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("event_type", job.EventType),
	)
	return &submitted, nil
}

func (q *WebhookQueue) enqueue(job *WebhookJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.isRunning {
		return ErrSchedulerNotRunning
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Recent returns up to limit jobs, newest first.
func (q *WebhookQueue) Recent(limit int) []WebhookJob {
	q.historyMu.RLock()
	defer q.historyMu.RUnlock()

	n := len(q.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]WebhookJob, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (q.next - 1 - i + n) % n
		out = append(out, *q.history[idx])
	}
	return out
}

func (q *WebhookQueue) remember(job *WebhookJob) {
	q.historyMu.Lock()
	defer q.historyMu.Unlock()
	if len(q.history) < q.config.HistorySize {
		q.history = append(q.history, job)
		q.next = len(q.history) % q.config.HistorySize
		return
	}
	q.history[q.next] = job
	q.next = (q.next + 1) % q.config.HistorySize
}

func (q *WebhookQueue) snapshot(job *WebhookJob) *WebhookJob {
	q.historyMu.RLock()
	defer q.historyMu.RUnlock()
	cp := *job
	return &cp
}

func (q *WebhookQueue) update(job *WebhookJob, fn func(j *WebhookJob)) {
	q.historyMu.Lock()
	defer q.historyMu.Unlock()
	fn(job)
}

func (q *WebhookQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.processJob(ctx, job, workerID)
		}
	}
}

func (q *WebhookQueue) processJob(ctx context.Context, job *WebhookJob, workerID int) {
	now := time.Now()
	q.update(job, func(j *WebhookJob) {
		j.Status = JobStatusRunning
		j.Attempts++
		j.StartedAt = &now
		j.Error = ""
	})

	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	err := q.handler.Handle(jobCtx, job.event)
	finished := time.Now()
	if err == nil {
		q.update(job, func(j *WebhookJob) {
			j.Status = JobStatusSuccess
			j.CompletedAt = &finished
		})
		q.record(ctx, job, "succeeded")
		q.logger.Debug("Webhook job completed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("event_type", job.EventType),
		)
		return
	}

	attempts := q.snapshot(job).Attempts
	if attempts < q.config.MaxAttempts {
		q.update(job, func(j *WebhookJob) {
			j.Status = JobStatusRetrying
			j.Error = err.Error()
		})
		q.logger.Warn("Webhook job failed, scheduling retry",
			zap.String("job_id", job.ID.String()),
			zap.String("event_type", job.EventType),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", q.config.MaxAttempts),
			zap.Duration("backoff", q.config.Backoff),
			zap.Error(err),
		)
		q.scheduleRetry(job)
		return
	}

	q.fail(ctx, job, err.Error())
}

func (q *WebhookQueue) scheduleRetry(job *WebhookJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.isRunning {
		return
	}
	q.timers[job.ID] = time.AfterFunc(q.config.Backoff, func() {
		q.mu.Lock()
		delete(q.timers, job.ID)
		q.mu.Unlock()

		if err := q.enqueue(job); err != nil {
			q.fail(context.Background(), job, fmt.Sprintf("re-enqueue failed: %v", err))
		}
	})
}

func (q *WebhookQueue) fail(ctx context.Context, job *WebhookJob, reason string) {
	finished := time.Now()
	q.update(job, func(j *WebhookJob) {
		j.Status = JobStatusFailed
		j.Error = reason
		j.CompletedAt = &finished
	})
	q.record(ctx, job, "dropped")
	snap := q.snapshot(job)
	q.logger.Error("Webhook job dropped after final attempt",
		zap.String("job_id", job.ID.String()),
		zap.String("event_type", job.EventType),
		zap.Int("attempts", snap.Attempts),
		zap.String("error", reason),
	)
}

func (q *WebhookQueue) record(ctx context.Context, job *WebhookJob, outcome string) {
	if q.recorder != nil {
		q.recorder.RecordWebhookEvent(ctx, job.EventType, outcome)
	}
}
