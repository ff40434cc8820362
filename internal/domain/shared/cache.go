package shared

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-key TTL.
// Implementations must treat a missing key as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Locker hands out time-bounded leases. Only the owner that acquired a
// lease can release it; an expired lease may be taken by anyone.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
	// Extend resets the lease TTL while owner still holds it. False means
	// the lease expired or passed to someone else.
	Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}
