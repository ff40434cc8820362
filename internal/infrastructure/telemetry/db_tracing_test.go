package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type tracedRow struct {
	ID  uint `gorm:"primaryKey"`
	SKU string
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	p := NewDBTracingPlugin(DBTracingConfig{}, zap.NewNop())
	assert.NoError(t, p.RegisterOtelGorm(db))
}

func TestDBTracingPlugin_AnnotatesSpans(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBName: "tenant"}, zap.NewNop())
	require.NoError(t, p.RegisterOtelGorm(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{SKU: "A-1"}).Error)
	span.End()

	assert.NotEmpty(t, recorder.Ended())
}
