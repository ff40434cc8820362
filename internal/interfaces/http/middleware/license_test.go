package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantapp/backend/internal/domain/license"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubChecker struct {
	rec *license.StatusRecord
	err error
}

func (s stubChecker) Check(context.Context) (*license.StatusRecord, error) { return s.rec, s.err }
func (s stubChecker) RenewURL() string                                     { return "https://license.example.com/renew" }

func newLicenseRouter(checker LicenseChecker) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(LicenseGuard(checker, zap.NewNop()))
	router.GET("/guarded", func(c *gin.Context) {
		c.String(http.StatusOK, string(GetLicenseStatus(c).Status))
	})
	return router
}

func TestLicenseGuard(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	graceUntil := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

	t.Run("valid passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		newLicenseRouter(stubChecker{rec: &license.StatusRecord{Status: license.StatusValid}}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "valid", w.Body.String())
		assert.Empty(t, w.Header().Get(LicenseGraceHeader))
	})

	t.Run("grace passes with header", func(t *testing.T) {
		rec := &license.StatusRecord{Status: license.StatusGracePeriod, GraceUntil: &graceUntil}
		w := httptest.NewRecorder()
		newLicenseRouter(stubChecker{rec: rec}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2026-01-04T00:00:00Z", w.Header().Get(LicenseGraceHeader))
	})

	t.Run("every grace request logs a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		router := gin.New()
		router.Use(LicenseGuard(stubChecker{rec: &license.StatusRecord{Status: license.StatusGracePeriod, GraceUntil: &graceUntil}}, zap.New(core)))
		router.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		for range 2 {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/guarded", nil))
		}

		entries := logs.FilterMessage("License in grace period").All()
		require.Len(t, entries, 2)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		logged, ok := entries[0].ContextMap()["grace_until"].(time.Time)
		require.True(t, ok)
		assert.True(t, graceUntil.Equal(logged))
		assert.Equal(t, "/guarded", entries[0].ContextMap()["path"])
	})

	t.Run("valid logs nothing", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		router := gin.New()
		router.Use(LicenseGuard(stubChecker{rec: &license.StatusRecord{Status: license.StatusValid}}, zap.New(core)))
		router.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/guarded", nil))
		assert.Zero(t, logs.Len())
	})

	for _, status := range []license.Status{license.StatusExpired, license.StatusInvalid} {
		t.Run(string(status)+" is 402", func(t *testing.T) {
			rec := &license.StatusRecord{Status: status, ExpiresAt: &expires, Message: "License expired"}
			w := httptest.NewRecorder()
			newLicenseRouter(stubChecker{rec: rec}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

			assert.Equal(t, http.StatusPaymentRequired, w.Code)

			var resp struct {
				Success bool                `json:"success"`
				Data    LicenseRequiredData `json:"data"`
				Error   dto.ErrorInfo       `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, dto.ErrCodeLicenseRequired, resp.Error.Code)
			assert.Equal(t, status, resp.Data.Status)
			assert.Equal(t, "https://license.example.com/renew", resp.Data.RenewURL)
			require.NotNil(t, resp.Data.ExpiresAt)
			assert.True(t, expires.Equal(*resp.Data.ExpiresAt))
		})
	}

	t.Run("checker error is 503", func(t *testing.T) {
		w := httptest.NewRecorder()
		newLicenseRouter(stubChecker{err: errors.New("boom")}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeServiceUnavailable)
	})
}
