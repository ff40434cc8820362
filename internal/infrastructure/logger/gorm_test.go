package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	sqlFn := func() (string, int64) { return "UPDATE products SET quantity = $1", 1 }

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		begin   time.Time
		err     error
		wantMsg string
	}{
		{"error is logged", gormlogger.Error, time.Now(), errors.New("conn reset"), "SQL Error"},
		{"record not found ignored", gormlogger.Error, time.Now(), gormlogger.ErrRecordNotFound, ""},
		{"slow query warns", gormlogger.Warn, time.Now().Add(-time.Second), nil, "Slow SQL"},
		{"info logs every query", gormlogger.Info, time.Now(), nil, "SQL Query"},
		{"silent logs nothing", gormlogger.Silent, time.Now(), errors.New("x"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gl := NewGormLogger(zap.New(core), tt.level, WithSlowThreshold(100*time.Millisecond))

			gl.Trace(context.Background(), tt.begin, sqlFn, tt.err)

			if tt.wantMsg == "" {
				assert.Zero(t, recorded.Len())
				return
			}
			assert.Equal(t, 1, recorded.FilterMessage(tt.wantMsg).Len())
		})
	}
}

func TestGormLogger_ParamsFilter(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Warn)
	_, params := gl.ParamsFilter(context.Background(), "SELECT 1 WHERE key = $1", "secret")
	assert.Nil(t, params)

	full := NewGormLogger(zap.NewNop(), gormlogger.Warn, WithFullSQL(true))
	_, params = full.ParamsFilter(context.Background(), "SELECT 1 WHERE key = $1", "secret")
	assert.Equal(t, []any{"secret"}, params)
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Warn)
	other := gl.LogMode(gormlogger.Info).(*GormLogger)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
	assert.Equal(t, gormlogger.Info, other.logLevel)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
