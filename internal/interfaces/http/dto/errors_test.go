package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidationRequired, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeInvalidSignature, http.StatusUnauthorized},
		{ErrCodeLicenseRequired, http.StatusPaymentRequired},
		{ErrCodeMaintenance, http.StatusServiceUnavailable},
		{ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{ErrCodeSyncInProgress, http.StatusConflict},
		{ErrCodeUpdateInProgress, http.StatusConflict},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"LICENSE_REQUIRED", ErrCodeLicenseRequired},
		{"SERVICE_UNAVAILABLE", ErrCodeServiceUnavailable},
		{"SYNC_IN_PROGRESS", ErrCodeSyncInProgress},
		{ErrCodeMaintenance, ErrCodeMaintenance},
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestLegacyCodesMapToKnownStatuses(t *testing.T) {
	for legacy, code := range LegacyErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "%s maps to %s which has no HTTP status", legacy, code)
	}
}

func TestErrorResponses(t *testing.T) {
	t.Run("with request id", func(t *testing.T) {
		resp := NewErrorResponseWithRequestID(ErrCodeMaintenance, "down", "req-1")
		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_MAINTENANCE","message":"down","request_id":"req-1"}}`, string(raw))
	})

	t.Run("with data", func(t *testing.T) {
		resp := NewErrorResponseWithData(ErrCodeLicenseRequired, "blocked", map[string]string{"status": "expired"})
		assert.False(t, resp.Success)
		assert.Equal(t, map[string]string{"status": "expired"}, resp.Data)
	})

	t.Run("validation", func(t *testing.T) {
		resp := NewValidationErrorResponse("bad", "req-2", []ValidationDetail{{Field: "event_type", Message: "This field is required"}})
		assert.Equal(t, ErrCodeValidationRequired, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "event_type", resp.Error.Details[0].Field)
	})
}

func TestLimitRequest_Resolve(t *testing.T) {
	assert.Equal(t, DefaultLimit, LimitRequest{}.Resolve())
	assert.Equal(t, 5, LimitRequest{Limit: 5}.Resolve())
}
