package license

import (
	"crypto/sha256"
	"encoding/hex"
)

// Cache key prefixes. Keys embed the hash of the license key, so changing
// the configured key never serves a stale verdict.
const (
	StatusKeyPrefix    = "license_status:"
	LastValidKeyPrefix = "license_last_valid:"
)

// KeyHash returns the hex SHA-256 of a license key.
func KeyHash(licenseKey string) string {
	sum := sha256.Sum256([]byte(licenseKey))
	return hex.EncodeToString(sum[:])
}

// StatusKey is the cache key of the current status record.
func StatusKey(keyHash string) string {
	return StatusKeyPrefix + keyHash
}

// LastValidKey is the cache key of the last-valid snapshot.
func LastValidKey(keyHash string) string {
	return LastValidKeyPrefix + keyHash
}
