package license

import "time"

// Verdict is the provider's answer for a license key.
type Verdict struct {
	Valid     bool
	ExpiresAt *time.Time
	Message   string
	Features  map[string]any
}

// IsValid reports whether the verdict grants access at now.
func (v *Verdict) IsValid(now time.Time) bool {
	if v == nil || !v.Valid {
		return false
	}
	return v.ExpiresAt == nil || v.ExpiresAt.After(now)
}

// Invalid builds a rejecting verdict with a message.
func Invalid(message string) *Verdict {
	return &Verdict{Valid: false, Message: message}
}
