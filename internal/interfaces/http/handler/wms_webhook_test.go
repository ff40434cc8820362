package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appwms "github.com/tenantapp/backend/internal/application/wms"
	"github.com/tenantapp/backend/internal/domain/wms"
	"github.com/tenantapp/backend/internal/infrastructure/cache"
	"github.com/tenantapp/backend/internal/infrastructure/persistence"
	"github.com/tenantapp/backend/internal/infrastructure/persistence/models"
	"github.com/tenantapp/backend/internal/infrastructure/scheduler"
	wmsclient "github.com/tenantapp/backend/internal/infrastructure/wms"
	"github.com/tenantapp/backend/internal/interfaces/http/dto"
	"github.com/tenantapp/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "wms-shared-secret"

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(event wms.WebhookEvent) (*scheduler.WebhookJob, error) {
	args := m.Called(event)
	if job := args.Get(0); job != nil {
		return job.(*scheduler.WebhookJob), args.Error(1)
	}
	return nil, args.Error(1)
}

func newWebhookRouter(h *WmsWebhookHandler) *gin.Engine {
	middleware.SetupValidator()
	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/api/v1/wms/webhook", h.Receive)
	return router
}

func signedRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wms/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(wmsclient.SignatureHeader, wmsclient.Sign([]byte(body), secret))
	}
	return req
}

func TestWmsWebhookHandler_Receive(t *testing.T) {
	stockBody := `{"event_type":"stock_updated","data":{"items":[{"sku":"X1","quantity":7}]}}`

	tests := []struct {
		name      string
		req       func() *http.Request
		setupMock func(m *MockSubmitter)
		wantCode  int
		wantErr   string
	}{
		{
			name: "accepted",
			req:  func() *http.Request { return signedRequest(stockBody, testSecret) },
			setupMock: func(m *MockSubmitter) {
				m.On("Submit", mock.MatchedBy(func(e wms.WebhookEvent) bool {
					return e.EventType == "stock_updated"
				})).Return(&scheduler.WebhookJob{ID: uuid.New(), EventType: "stock_updated"}, nil)
			},
			wantCode: http.StatusAccepted,
		},
		{
			name:     "missing signature",
			req:      func() *http.Request { return signedRequest(stockBody, "") },
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeInvalidSignature,
		},
		{
			name:     "wrong secret",
			req:      func() *http.Request { return signedRequest(stockBody, "other-secret") },
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeInvalidSignature,
		},
		{
			name: "body changed after signing",
			req: func() *http.Request {
				tampered := strings.Replace(stockBody, "7", "700", 1)
				req := signedRequest(tampered, "")
				req.Header.Set(wmsclient.SignatureHeader, wmsclient.Sign([]byte(stockBody), testSecret))
				return req
			},
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeInvalidSignature,
		},
		{
			name:     "missing event type",
			req:      func() *http.Request { return signedRequest(`{"data":{}}`, testSecret) },
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeValidationRequired,
		},
		{
			name:     "malformed json",
			req:      func() *http.Request { return signedRequest(`{"event_type":`, testSecret) },
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeInvalidJSON,
		},
		{
			name:     "too large",
			req:      func() *http.Request { return signedRequest(`{"event_type":"x","data":"`+strings.Repeat("a", 2048)+`"}`, testSecret) },
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  dto.ErrCodePayloadTooLarge,
		},
		{
			name: "queue full",
			req:  func() *http.Request { return signedRequest(stockBody, testSecret) },
			setupMock: func(m *MockSubmitter) {
				m.On("Submit", mock.Anything).Return(nil, scheduler.ErrJobQueueFull)
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  dto.ErrCodeServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := new(MockSubmitter)
			if tt.setupMock != nil {
				tt.setupMock(submitter)
			}
			h := NewWmsWebhookHandler(WmsWebhookHandlerConfig{
				Verifier: wmsclient.NewSignatureVerifier(zap.NewNop()),
				Queue:    submitter,
				Secret:   testSecret,
				MaxBody:  1024,
				Logger:   zap.NewNop(),
			})

			w := httptest.NewRecorder()
			newWebhookRouter(h).ServeHTTP(w, tt.req())

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeResponse(t, w)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, resp.Error.Code)
				if tt.setupMock == nil {
					submitter.AssertNotCalled(t, "Submit", mock.Anything)
				}
				return
			}
			assert.True(t, resp.Success)
			data := resp.Data.(map[string]interface{})
			assert.Equal(t, true, data["received"])
			assert.Equal(t, "stock_updated", data["event_type"])
			submitter.AssertExpectations(t)
		})
	}
}

// TestWmsWebhook_EndToEnd drives a signed webhook through the queue and
// dispatcher into the product table.
func TestWmsWebhook_EndToEnd(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.ProductModel{}, &models.SyncRunModel{}))
	require.NoError(t, db.Create(&models.ProductModel{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		SKU:           "X1",
		Name:          "Product X1",
		StockQuantity: 1,
		IsActive:      true,
	}).Error)

	store := cache.NewInMemoryCache()
	t.Cleanup(func() { _ = store.Close() })

	logger := zap.NewNop()
	service := appwms.NewStockSyncService(appwms.StockSyncServiceConfig{
		Repo:   persistence.NewGormProductStockRepository(db),
		Cache:  store,
		Logger: logger,
	})
	dispatcher := appwms.NewWebhookDispatcher(appwms.WebhookDispatcherConfig{
		Stock:  service,
		Runs:   persistence.NewGormSyncRunRepository(db),
		Logger: logger,
	})
	queue, err := scheduler.NewWebhookQueue(scheduler.DefaultWebhookQueueConfig(), dispatcher, logger)
	require.NoError(t, err)
	require.NoError(t, queue.Start(context.Background()))
	t.Cleanup(func() { _ = queue.Stop(context.Background()) })

	h := NewWmsWebhookHandler(WmsWebhookHandlerConfig{
		Verifier: wmsclient.NewSignatureVerifier(logger),
		Queue:    queue,
		Secret:   testSecret,
		Logger:   logger,
	})

	body := []byte(`{"event_type":"stock_updated","data":{"items":[{"sku":"X1","quantity":7}]}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wms/webhook", bytes.NewReader(body))
	req.Header.Set(wmsclient.SignatureHeader, wmsclient.Sign(body, testSecret))
	w := httptest.NewRecorder()
	newWebhookRouter(h).ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		var p models.ProductModel
		if err := db.Where("sku = ?", "X1").First(&p).Error; err != nil {
			return false
		}
		return p.StockQuantity == 7 && p.StockSyncedAt != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		jobs := queue.Recent(1)
		return len(jobs) == 1 && jobs[0].Status == scheduler.JobStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
}
