package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T) (*InMemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewInMemoryCache()
	c.now = clock.Now
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestInMemoryCache_GetSetExpiry(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "license:status")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "license:status", []byte(`{"status":"valid"}`), time.Hour))
	val, found, err := c.Get(ctx, "license:status")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"status":"valid"}`, string(val))

	clock.Advance(time.Hour)
	_, found, _ = c.Get(ctx, "license:status")
	assert.False(t, found, "entry expires exactly at ttl")
}

func TestInMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "maintenance", []byte("1"), 0))
	clock.Advance(365 * 24 * time.Hour)
	_, found, _ := c.Get(ctx, "maintenance")
	assert.True(t, found)
}

func TestInMemoryCache_ValuesAreCopied(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestInMemoryCache_DeletePrefix(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"products:list:1", "products:list:2", "product:A-1", "license:status"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), time.Minute))
	}

	n, err := c.DeletePrefix(ctx, "products:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Delete(ctx, "product:A-1", "missing"))
	assert.Equal(t, 1, c.Len())
}

func TestInMemoryCache_Lock(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	ok, err := c.Acquire(ctx, "lock:wms_stock_sync", "a", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.Acquire(ctx, "lock:wms_stock_sync", "b", 10*time.Minute)
	assert.False(t, ok, "held lease cannot be taken")

	require.NoError(t, c.Release(ctx, "lock:wms_stock_sync", "b"))
	ok, _ = c.Acquire(ctx, "lock:wms_stock_sync", "b", 10*time.Minute)
	assert.False(t, ok, "release by non-owner is ignored")

	clock.Advance(10 * time.Minute)
	ok, _ = c.Acquire(ctx, "lock:wms_stock_sync", "b", 10*time.Minute)
	assert.True(t, ok, "expired lease is free")

	require.NoError(t, c.Release(ctx, "lock:wms_stock_sync", "b"))
	ok, _ = c.Acquire(ctx, "lock:wms_stock_sync", "a", time.Minute)
	assert.True(t, ok)
}

func TestInMemoryCache_Extend(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	ok, err := c.Acquire(ctx, "lock:wms_stock_sync", "a", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(9 * time.Minute)
	ok, err = c.Extend(ctx, "lock:wms_stock_sync", "a", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.Extend(ctx, "lock:wms_stock_sync", "b", 10*time.Minute)
	assert.False(t, ok, "non-owner cannot extend")

	clock.Advance(9 * time.Minute)
	ok, _ = c.Acquire(ctx, "lock:wms_stock_sync", "b", time.Minute)
	assert.False(t, ok, "extended lease is still held")

	clock.Advance(2 * time.Minute)
	ok, _ = c.Extend(ctx, "lock:wms_stock_sync", "a", 10*time.Minute)
	assert.False(t, ok, "expired lease cannot be revived")
}

func TestInMemoryCache_ConcurrentAcquire(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.Acquire(ctx, "lock", "owner", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryCache_CleanupAndClose(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("1"), time.Hour))
	clock.Advance(time.Minute)
	c.cleanup()

	c.mu.RLock()
	_, shortPresent := c.entries["short"]
	c.mu.RUnlock()
	assert.False(t, shortPresent)
	assert.Equal(t, 1, c.Len())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
