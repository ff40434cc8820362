package wms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSignatureVerifier_Verify(t *testing.T) {
	v := NewSignatureVerifier(zap.NewNop())
	body := []byte(`{"event_type":"stock_updated","data":{"items":[{"sku":"X1","quantity":7}]}}`)
	secret := "s3cret"
	sig := Sign(body, secret)

	t.Run("matching signature", func(t *testing.T) {
		assert.True(t, v.Verify(body, sig, secret))
	})

	t.Run("upper case hex accepted", func(t *testing.T) {
		assert.True(t, v.Verify(body, strings.ToUpper(sig), secret))
	})

	t.Run("missing signature", func(t *testing.T) {
		assert.False(t, v.Verify(body, "", secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, v.Verify(body, sig, "other"))
	})

	t.Run("every single byte body mutation fails", func(t *testing.T) {
		for i := range body {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 0x01
			assert.False(t, v.Verify(mutated, sig, secret), "byte %d", i)
		}
	})

	t.Run("every single char signature mutation fails", func(t *testing.T) {
		for i := range sig {
			b := []byte(sig)
			if b[i] == '0' {
				b[i] = '1'
			} else {
				b[i] = '0'
			}
			assert.False(t, v.Verify(body, string(b), secret), "char %d", i)
		}
	})

	t.Run("truncated signature", func(t *testing.T) {
		assert.False(t, v.Verify(body, sig[:len(sig)-2], secret))
	})
}

func TestSignatureVerifier_EmptySecret(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	v := NewSignatureVerifier(zap.New(core))

	body := []byte("{}")
	assert.False(t, v.Verify(body, Sign(body, ""), ""))

	entries := logs.FilterMessage("webhook secret not configured").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	}
}
