package license

import (
	"context"
	"time"
)

// MirrorRecord is the durable copy of the license state, keyed by the
// SHA-256 of the license key. The raw key is never persisted.
type MirrorRecord struct {
	KeyHash       string
	Status        Status
	ExpiresAt     *time.Time
	LastCheckedAt time.Time
	GraceUntil    *time.Time
}

// LastValid returns the snapshot implied by the record, if it describes a valid check.
func (m *MirrorRecord) LastValid() (LastValid, bool) {
	if m == nil || m.Status != StatusValid {
		return LastValid{}, false
	}
	return LastValid{ExpiresAt: m.ExpiresAt, ValidatedAt: m.LastCheckedAt}, true
}

// MirrorRepository persists the license state so grace survives cache loss.
type MirrorRepository interface {
	// Upsert inserts or replaces the record for record.KeyHash.
	Upsert(ctx context.Context, record *MirrorRecord) error
	FindByKeyHash(ctx context.Context, keyHash string) (*MirrorRecord, error)
}
