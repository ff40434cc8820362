package wms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-WMS-Signature"

// SignatureVerifier checks webhook signatures.
type SignatureVerifier struct {
	logger *zap.Logger
}

// NewSignatureVerifier creates a new SignatureVerifier.
func NewSignatureVerifier(logger *zap.Logger) *SignatureVerifier {
	return &SignatureVerifier{logger: logger}
}

// Sign returns the lower-case hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC of body under secret.
func (v *SignatureVerifier) Verify(body []byte, signature, secret string) bool {
	if secret == "" {
		v.logger.Error("webhook secret not configured")
		return false
	}
	if signature == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
