// Package license decides whether the application may serve requests,
// based on the remote license verdict with a cached offline grace period.
package license

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tenantapp/backend/internal/domain/license"
	"github.com/tenantapp/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Check sources reported to the recorder.
const (
	SourceCache    = "cache"
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

const keyNotConfiguredMessage = "license key not configured"

// Provider validates a license key remotely.
type Provider interface {
	Validate(ctx context.Context, licenseKey, domain string) (*license.Verdict, error)
}

// CheckRecorder counts gate decisions.
type CheckRecorder interface {
	RecordLicenseCheck(ctx context.Context, decision, source string)
}

// GateConfig contains configuration for Gate
type GateConfig struct {
	Provider Provider
	Cache    shared.Cache
	Mirror   license.MirrorRepository
	Recorder CheckRecorder
	Logger   *zap.Logger

	LicenseKey       string
	Domain           string
	CacheTTL         time.Duration
	NegativeCacheTTL time.Duration
	SnapshotTTL      time.Duration
	GracePeriod      time.Duration
	RenewURL         string
}

// Gate is the license state machine: VALID, GRACE_PERIOD or BLOCKED.
type Gate struct {
	provider Provider
	cache    shared.Cache
	mirror   license.MirrorRepository
	recorder CheckRecorder
	logger   *zap.Logger

	key         string
	keyHash     string
	domain      string
	cacheTTL    time.Duration
	negativeTTL time.Duration
	snapshotTTL time.Duration
	grace       time.Duration
	renewURL    string

	group singleflight.Group
	now   func() time.Time
}

// NewGate creates a new Gate
func NewGate(cfg GateConfig) *Gate {
	g := &Gate{
		provider:    cfg.Provider,
		cache:       cfg.Cache,
		mirror:      cfg.Mirror,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		key:         cfg.LicenseKey,
		keyHash:     license.KeyHash(cfg.LicenseKey),
		domain:      cfg.Domain,
		cacheTTL:    cfg.CacheTTL,
		negativeTTL: cfg.NegativeCacheTTL,
		snapshotTTL: cfg.SnapshotTTL,
		grace:       cfg.GracePeriod,
		renewURL:    cfg.RenewURL,
		now:         time.Now,
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.cacheTTL <= 0 {
		g.cacheTTL = time.Hour
	}
	if g.negativeTTL <= 0 {
		g.negativeTTL = 5 * time.Minute
	}
	if g.snapshotTTL <= 0 {
		g.snapshotTTL = 7 * 24 * time.Hour
	}
	if g.grace <= 0 {
		g.grace = 72 * time.Hour
	}
	return g
}

// RenewURL is where blocked users are sent.
func (g *Gate) RenewURL() string {
	return g.renewURL
}

// Check returns the current license status, from cache when possible.
func (g *Gate) Check(ctx context.Context) (*license.StatusRecord, error) {
	if rec, ok := g.cachedStatus(ctx); ok {
		g.record(ctx, rec, SourceCache)
		return rec, nil
	}

	v, err, _ := g.group.Do(g.keyHash, func() (interface{}, error) {
		return g.validate(ctx), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*license.StatusRecord), nil
}

// Refresh drops the cached status and asks the provider again.
func (g *Gate) Refresh(ctx context.Context) (*license.StatusRecord, error) {
	if err := g.cache.Delete(ctx, license.StatusKey(g.keyHash)); err != nil {
		g.logger.Warn("Failed to forget license status", zap.Error(err))
	}
	g.group.Forget(g.keyHash)
	return g.validate(ctx), nil
}

func (g *Gate) validate(ctx context.Context) *license.StatusRecord {
	now := g.now()

	if g.key == "" {
		rec := &license.StatusRecord{Status: license.StatusInvalid, Message: keyNotConfiguredMessage, CheckedAt: now}
		g.logger.Error("License key is not configured")
		g.storeStatus(ctx, rec, g.negativeTTL)
		g.record(ctx, rec, SourceProvider)
		return rec
	}

	verdict, err := g.provider.Validate(ctx, g.key, g.domain)
	if err != nil {
		return g.fallback(ctx, now, err)
	}

	if verdict.IsValid(now) {
		rec := &license.StatusRecord{
			Status:    license.StatusValid,
			ExpiresAt: verdict.ExpiresAt,
			Message:   verdict.Message,
			CheckedAt: now,
		}
		g.storeStatus(ctx, rec, g.cacheTTL)
		g.storeSnapshot(ctx, license.LastValid{ExpiresAt: verdict.ExpiresAt, ValidatedAt: now})
		g.upsertMirror(ctx, rec)
		g.record(ctx, rec, SourceProvider)
		return rec
	}

	// A rejection ends any grace: the snapshot is dropped and the mirror no
	// longer describes a valid check.
	rec := &license.StatusRecord{
		Status:    license.StatusExpired,
		ExpiresAt: verdict.ExpiresAt,
		Message:   verdict.Message,
		CheckedAt: now,
	}
	g.logger.Warn("License rejected by provider",
		zap.String("message", verdict.Message),
		zap.Timep("expires_at", verdict.ExpiresAt),
	)
	g.storeStatus(ctx, rec, g.negativeTTL)
	if err := g.cache.Delete(ctx, license.LastValidKey(g.keyHash)); err != nil {
		g.logger.Warn("Failed to drop license snapshot", zap.Error(err))
	}
	g.upsertMirror(ctx, rec)
	g.record(ctx, rec, SourceProvider)
	return rec
}

func (g *Gate) fallback(ctx context.Context, now time.Time, cause error) *license.StatusRecord {
	if !errors.Is(cause, license.ErrProviderUnreachable) {
		g.logger.Error("License validation failed", zap.Error(cause))
		rec := &license.StatusRecord{Status: license.StatusInvalid, Message: "license validation failed", CheckedAt: now}
		g.storeStatus(ctx, rec, g.negativeTTL)
		g.record(ctx, rec, SourceProvider)
		return rec
	}

	g.logger.Error("license server unreachable", zap.Error(cause))

	snapshot, ok := g.lastValid(ctx)
	if ok && snapshot.WithinGrace(now, g.grace) {
		graceUntil := snapshot.GraceUntil(g.grace)
		rec := &license.StatusRecord{
			Status:     license.StatusGracePeriod,
			ExpiresAt:  snapshot.ExpiresAt,
			GraceUntil: &graceUntil,
			Message:    "license server unreachable",
			CheckedAt:  now,
		}
		g.storeStatus(ctx, rec, min(g.negativeTTL, graceUntil.Sub(now)))
		g.record(ctx, rec, SourceFallback)
		return rec
	}

	rec := &license.StatusRecord{
		Status:    license.StatusInvalid,
		Message:   "license server unreachable and grace period exhausted",
		CheckedAt: now,
	}
	g.storeStatus(ctx, rec, g.negativeTTL)
	g.record(ctx, rec, SourceFallback)
	return rec
}

func (g *Gate) cachedStatus(ctx context.Context) (*license.StatusRecord, bool) {
	b, found, err := g.cache.Get(ctx, license.StatusKey(g.keyHash))
	if err != nil {
		g.logger.Warn("License status cache read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var rec license.StatusRecord
	if err := json.Unmarshal(b, &rec); err != nil || !rec.Status.IsValid() {
		g.logger.Warn("Discarding undecodable license status", zap.Error(err))
		return nil, false
	}
	return &rec, true
}

// lastValid reads the snapshot from the cache, then from the durable mirror.
func (g *Gate) lastValid(ctx context.Context) (license.LastValid, bool) {
	b, found, err := g.cache.Get(ctx, license.LastValidKey(g.keyHash))
	if err != nil {
		g.logger.Warn("License snapshot cache read failed", zap.Error(err))
	}
	if err == nil && found {
		var snap license.LastValid
		if err := json.Unmarshal(b, &snap); err == nil {
			return snap, true
		}
	}

	if g.mirror == nil {
		return license.LastValid{}, false
	}
	rec, err := g.mirror.FindByKeyHash(ctx, g.keyHash)
	if err != nil {
		g.logger.Warn("License mirror read failed", zap.Error(err))
		return license.LastValid{}, false
	}
	return rec.LastValid()
}

func (g *Gate) storeStatus(ctx context.Context, rec *license.StatusRecord, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	g.set(ctx, license.StatusKey(g.keyHash), rec, ttl)
}

func (g *Gate) storeSnapshot(ctx context.Context, snap license.LastValid) {
	g.set(ctx, license.LastValidKey(g.keyHash), snap, g.snapshotTTL)
}

func (g *Gate) set(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		g.logger.Warn("Failed to encode license cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := g.cache.Set(ctx, key, b, ttl); err != nil {
		g.logger.Warn("License cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (g *Gate) upsertMirror(ctx context.Context, rec *license.StatusRecord) {
	if g.mirror == nil {
		return
	}
	err := g.mirror.Upsert(ctx, &license.MirrorRecord{
		KeyHash:       g.keyHash,
		Status:        rec.Status,
		ExpiresAt:     rec.ExpiresAt,
		LastCheckedAt: rec.CheckedAt,
		GraceUntil:    rec.GraceUntil,
	})
	if err != nil {
		g.logger.Warn("License mirror write failed", zap.Error(err))
	}
}

func (g *Gate) record(ctx context.Context, rec *license.StatusRecord, source string) {
	if g.recorder != nil {
		g.recorder.RecordLicenseCheck(ctx, string(rec.Decision()), source)
	}
}
