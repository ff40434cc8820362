package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics groups the counters emitted by the license gate, the WMS
// sync paths and the update orchestrator. A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	syncItems     *Counter
	syncDuration  *Histogram
	webhookEvents *Counter
	licenseChecks *Counter
	updateRuns    *Counter
}

// NewSyncMetrics registers the instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	var (
		m   SyncMetrics
		err error
	)
	if m.syncItems, err = NewCounter(meter, "wms_sync_items_total", "Stock and price items handled by WMS sync", "{item}"); err != nil {
		return nil, err
	}
	if m.syncDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "wms_sync_duration_seconds",
		Description: "Duration of WMS sync runs",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.webhookEvents, err = NewCounter(meter, "wms_webhook_events_total", "WMS webhook events by outcome", "{event}"); err != nil {
		return nil, err
	}
	if m.licenseChecks, err = NewCounter(meter, "license_checks_total", "License gate decisions", "{check}"); err != nil {
		return nil, err
	}
	if m.updateRuns, err = NewCounter(meter, "update_runs_total", "Self-update runs by outcome", "{run}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSyncItems adds processed, failed and skipped item counts.
func (m *SyncMetrics) RecordSyncItems(ctx context.Context, processed, failed, skipped int) {
	if m == nil {
		return
	}
	m.syncItems.Add(ctx, int64(processed), AttrResult.String("processed"))
	m.syncItems.Add(ctx, int64(failed), AttrResult.String("failed"))
	m.syncItems.Add(ctx, int64(skipped), AttrResult.String("skipped"))
}

// RecordSyncDuration records a finished sync run.
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, syncType, source string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.RecordDuration(ctx, d, AttrSyncType.String(syncType), AttrSource.String(source))
}

// RecordWebhookEvent counts a webhook delivery.
func (m *SyncMetrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// RecordLicenseCheck counts a gate decision and where it came from
// (cache, provider, grace, mirror).
func (m *SyncMetrics) RecordLicenseCheck(ctx context.Context, decision, source string) {
	if m == nil {
		return
	}
	m.licenseChecks.Inc(ctx, AttrDecision.String(decision), AttrSource.String(source))
}

// RecordUpdateRun counts a finished update attempt.
func (m *SyncMetrics) RecordUpdateRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.updateRuns.Inc(ctx, AttrOutcome.String(outcome))
}
