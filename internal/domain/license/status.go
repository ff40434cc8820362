// Package license models the remote license verdict and the gate decision derived from it.
package license

import (
	"errors"
	"time"

	"github.com/tenantapp/backend/internal/domain/shared"
)

// Status is the persisted license state.
type Status string

const (
	StatusValid       Status = "valid"
	StatusExpired     Status = "expired"
	StatusGracePeriod Status = "grace_period"
	StatusInvalid     Status = "invalid"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusValid, StatusExpired, StatusGracePeriod, StatusInvalid:
		return true
	}
	return false
}

// Decision is what the request gate does with a status.
type Decision string

const (
	DecisionValid   Decision = "VALID"
	DecisionGrace   Decision = "GRACE_PERIOD"
	DecisionBlocked Decision = "BLOCKED"
)

// Decision maps a status onto the gate decision. Unknown statuses block.
func (s Status) Decision() Decision {
	switch s {
	case StatusValid:
		return DecisionValid
	case StatusGracePeriod:
		return DecisionGrace
	default:
		return DecisionBlocked
	}
}

// Allows reports whether requests pass the gate.
func (d Decision) Allows() bool {
	return d == DecisionValid || d == DecisionGrace
}

// StatusRecord is the cached outcome of the last license check.
type StatusRecord struct {
	Status     Status     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	GraceUntil *time.Time `json:"grace_until,omitempty"`
	Message    string     `json:"message,omitempty"`
	CheckedAt  time.Time  `json:"checked_at"`
}

// Decision returns the gate decision for the record.
func (r *StatusRecord) Decision() Decision {
	if r == nil {
		return DecisionBlocked
	}
	return r.Status.Decision()
}

// LastValid is the snapshot of the most recent successful validation.
type LastValid struct {
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ValidatedAt time.Time  `json:"validated_at"`
}

// GraceUntil returns the instant the offline grace window closes.
func (l LastValid) GraceUntil(grace time.Duration) time.Time {
	return l.ValidatedAt.Add(grace)
}

// WithinGrace is true iff now is strictly before validatedAt+grace.
func (l LastValid) WithinGrace(now time.Time, grace time.Duration) bool {
	return now.Before(l.GraceUntil(grace))
}

var (
	// ErrProviderUnreachable marks transport failures talking to the license server.
	// Only this error makes the gate consider the grace period.
	ErrProviderUnreachable = errors.New("license provider unreachable")

	// ErrLicenseBlocked is returned to callers when the gate denies access.
	ErrLicenseBlocked = shared.ErrLicenseRequired
)
