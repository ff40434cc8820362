package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenantapp/backend/internal/domain/license"
	"go.uber.org/zap"
)

const testKey = "LIC-TEST-0001"

// MockProvider is a mock implementation of Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Validate(ctx context.Context, licenseKey, domain string) (*license.Verdict, error) {
	args := m.Called(ctx, licenseKey, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.Verdict), args.Error(1)
}

type cacheEntry struct {
	value []byte
	ttl   time.Duration
}

// fakeCache records the TTL of every write and can fail on demand.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	failGet bool
	failSet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cacheEntry)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("redis: connection refused")
	}
	e, ok := c.entries[key]
	return e.value, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("redis: connection refused")
	}
	c.entries[key] = cacheEntry{value: value, ttl: ttl}
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *fakeCache) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error               { return nil }

func (c *fakeCache) entry(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

type fakeMirror struct {
	mu      sync.Mutex
	records map[string]*license.MirrorRecord
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{records: make(map[string]*license.MirrorRecord)}
}

func (m *fakeMirror) Upsert(_ context.Context, r *license.MirrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.KeyHash] = &cp
	return nil
}

func (m *fakeMirror) FindByKeyHash(_ context.Context, keyHash string) (*license.MirrorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[keyHash]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

type recorded struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorded) RecordLicenseCheck(_ context.Context, decision, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, decision+"/"+source)
}

type fixture struct {
	gate     *Gate
	provider *MockProvider
	cache    *fakeCache
	mirror   *fakeMirror
	recorder *recorded
	now      time.Time
}

func newFixture(t *testing.T, withMirror bool) *fixture {
	t.Helper()
	f := &fixture{
		provider: &MockProvider{},
		cache:    newFakeCache(),
		recorder: &recorded{},
		now:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	cfg := GateConfig{
		Provider:         f.provider,
		Cache:            f.cache,
		Recorder:         f.recorder,
		Logger:           zap.NewNop(),
		LicenseKey:       testKey,
		Domain:           "shop.example.com",
		CacheTTL:         24 * time.Hour,
		NegativeCacheTTL: 5 * time.Minute,
		SnapshotTTL:      7 * 24 * time.Hour,
		GracePeriod:      72 * time.Hour,
		RenewURL:         "https://licenses.example.com/renew",
	}
	if withMirror {
		f.mirror = newFakeMirror()
		cfg.Mirror = f.mirror
	}
	f.gate = NewGate(cfg)
	f.gate.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) expireStatus() {
	_ = f.cache.Delete(context.Background(), license.StatusKey(license.KeyHash(testKey)))
}

func validVerdict(expires time.Time) *license.Verdict {
	return &license.Verdict{Valid: true, ExpiresAt: &expires}
}

func unreachable() error {
	return fmt.Errorf("%w: dial tcp: connection refused", license.ErrProviderUnreachable)
}

func TestGate_ValidIsCached(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	expires := f.now.Add(30 * 24 * time.Hour)
	f.provider.On("Validate", mock.Anything, testKey, "shop.example.com").Return(validVerdict(expires), nil).Once()

	rec, err := f.gate.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, license.DecisionValid, rec.Decision())
	assert.True(t, rec.ExpiresAt.Equal(expires))

	rec, err = f.gate.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, license.DecisionValid, rec.Decision())

	f.provider.AssertNumberOfCalls(t, "Validate", 1)
	assert.Equal(t, []string{"VALID/provider", "VALID/cache"}, f.recorder.entries)

	hash := license.KeyHash(testKey)
	status, ok := f.cache.entry(license.StatusKey(hash))
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, status.ttl)

	snap, ok := f.cache.entry(license.LastValidKey(hash))
	require.True(t, ok)
	assert.Equal(t, 7*24*time.Hour, snap.ttl)
	var lv license.LastValid
	require.NoError(t, json.Unmarshal(snap.value, &lv))
	assert.True(t, lv.ValidatedAt.Equal(f.now))
}

func TestGate_GraceWindow(t *testing.T) {
	validatedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		elapsed   time.Duration
		want      license.Decision
		wantTTL   time.Duration
		wantGrace bool
	}{
		{"shortly after last check", time.Hour, license.DecisionGrace, 5 * time.Minute, true},
		{"two minutes before the boundary", 72*time.Hour - 2*time.Minute, license.DecisionGrace, 2 * time.Minute, true},
		{"exactly at the boundary", 72 * time.Hour, license.DecisionBlocked, 5 * time.Minute, false},
		{"after the boundary", 80 * time.Hour, license.DecisionBlocked, 5 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			ctx := context.Background()
			f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(validVerdict(validatedAt.Add(365*24*time.Hour)), nil).Once()
			_, err := f.gate.Check(ctx)
			require.NoError(t, err)

			f.expireStatus()
			f.now = validatedAt.Add(tt.elapsed)
			f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(nil, unreachable()).Once()

			rec, err := f.gate.Check(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Decision())
			if tt.wantGrace {
				require.NotNil(t, rec.GraceUntil)
				assert.True(t, rec.GraceUntil.Equal(validatedAt.Add(72*time.Hour)))
			}

			status, ok := f.cache.entry(license.StatusKey(license.KeyHash(testKey)))
			require.True(t, ok)
			assert.Equal(t, tt.wantTTL, status.ttl)
		})
	}
}

func TestGate_UnreachableWithoutSnapshotBlocks(t *testing.T) {
	f := newFixture(t, false)
	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(nil, unreachable())

	rec, err := f.gate.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, license.StatusInvalid, rec.Status)
	assert.Equal(t, license.DecisionBlocked, rec.Decision())
	assert.Equal(t, []string{"BLOCKED/fallback"}, f.recorder.entries)
}

func TestGate_RejectionNeverGrants(t *testing.T) {
	tests := []struct {
		name    string
		verdict *license.Verdict
	}{
		{"explicit invalid", &license.Verdict{Valid: false, Message: "license revoked"}},
		{"valid flag with past expiry", validVerdict(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))},
		{"non-2xx answer", license.Invalid("license validation failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			ctx := context.Background()
			f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(validVerdict(f.now.Add(time.Hour*24*365)), nil).Once()
			_, err := f.gate.Check(ctx)
			require.NoError(t, err)

			f.expireStatus()
			f.now = f.now.Add(time.Minute)
			f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(tt.verdict, nil).Once()

			rec, err := f.gate.Refresh(ctx)
			require.NoError(t, err)
			assert.Equal(t, license.StatusExpired, rec.Status)
			assert.Equal(t, license.DecisionBlocked, rec.Decision())

			hash := license.KeyHash(testKey)
			status, ok := f.cache.entry(license.StatusKey(hash))
			require.True(t, ok)
			assert.Equal(t, 5*time.Minute, status.ttl)
			_, ok = f.cache.entry(license.LastValidKey(hash))
			assert.False(t, ok, "snapshot dropped on rejection")

			// Even a provider outage right after must not reopen grace.
			f.expireStatus()
			f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(nil, unreachable()).Once()
			rec, err = f.gate.Check(ctx)
			require.NoError(t, err)
			assert.Equal(t, license.DecisionBlocked, rec.Decision())
		})
	}
}

func TestGate_GraceFromMirror(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	hash := license.KeyHash(testKey)
	validatedAt := f.now.Add(-30 * time.Hour)
	require.NoError(t, f.mirror.Upsert(ctx, &license.MirrorRecord{
		KeyHash:       hash,
		Status:        license.StatusValid,
		LastCheckedAt: validatedAt,
	}))
	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(nil, unreachable()).Once()

	rec, err := f.gate.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, license.DecisionGrace, rec.Decision())
	assert.True(t, rec.GraceUntil.Equal(validatedAt.Add(72*time.Hour)))
}

func TestGate_MissAsksProviderEvenWithFreshMirror(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	hash := license.KeyHash(testKey)
	require.NoError(t, f.mirror.Upsert(ctx, &license.MirrorRecord{KeyHash: hash, Status: license.StatusValid, LastCheckedAt: f.now.Add(-time.Minute)}))
	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).
		Return(&license.Verdict{Valid: false, Message: "revoked"}, nil).Once()

	rec, err := f.gate.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, license.DecisionBlocked, rec.Decision())
	f.provider.AssertExpectations(t)

	m, err := f.mirror.FindByKeyHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, license.StatusExpired, m.Status)
}

func TestGate_DefaultCacheTTLIsOneHour(t *testing.T) {
	g := NewGate(GateConfig{Provider: &MockProvider{}, Cache: newFakeCache(), LicenseKey: testKey})
	assert.Equal(t, time.Hour, g.cacheTTL)
}

func TestGate_CacheFailuresDoNotFailClosed(t *testing.T) {
	f := newFixture(t, false)
	f.cache.failGet = true
	f.cache.failSet = true
	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(validVerdict(f.now.Add(time.Hour)), nil)

	rec, err := f.gate.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, license.DecisionValid, rec.Decision())
}

func TestGate_EmptyKeyBlocksWithoutCall(t *testing.T) {
	f := newFixture(t, false)
	f.gate.key = ""

	rec, err := f.gate.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, license.DecisionBlocked, rec.Decision())
	assert.Equal(t, keyNotConfiguredMessage, rec.Message)
	f.provider.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGate_UnexpectedErrorBlocks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(validVerdict(f.now.Add(time.Hour*24*365)), nil).Once()
	_, err := f.gate.Check(ctx)
	require.NoError(t, err)

	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Return(nil, errors.New("marshal failure")).Once()
	rec, err := f.gate.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, license.DecisionBlocked, rec.Decision(), "only unreachable errors qualify for grace")
}

func TestGate_ConcurrentMissesCollapse(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan struct{})
	var calls atomic.Int32
	f.provider.On("Validate", mock.Anything, testKey, mock.Anything).Run(func(mock.Arguments) {
		calls.Add(1)
		<-release
	}).Return(validVerdict(f.now.Add(time.Hour)), nil)

	var wg sync.WaitGroup
	results := make([]license.Decision, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := f.gate.Check(context.Background())
			if err == nil {
				results[i] = rec.Decision()
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, d := range results {
		assert.Equal(t, license.DecisionValid, d)
	}
}

func TestGate_RenewURL(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, "https://licenses.example.com/renew", f.gate.RenewURL())
}
