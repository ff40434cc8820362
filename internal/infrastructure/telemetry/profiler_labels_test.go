package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		ProfilingLabelRoute:  "/api/v1/wms/webhook",
		ProfilingLabelMethod: "POST",
		"request_id":         "abc",
		"empty":              "",
		"long":               strings.Repeat("x", MaxLabelValueLength+10),
	})

	assert.Equal(t, []string{
		"long", strings.Repeat("x", MaxLabelValueLength),
		ProfilingLabelMethod, "POST",
		ProfilingLabelRoute, "/api/v1/wms/webhook",
	}, pairs)
}

func TestWithProfilingLabels(t *testing.T) {
	t.Run("labels are visible inside fn", func(t *testing.T) {
		var got string
		WithProfilingLabels(context.Background(), map[string]string{ProfilingLabelOperation: "stock_sync"}, func(ctx context.Context) {
			got, _ = pprof.Label(ctx, ProfilingLabelOperation)
		})
		assert.Equal(t, "stock_sync", got)
	})

	t.Run("no labels still runs fn", func(t *testing.T) {
		called := false
		WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
		assert.True(t, called)
	})
}
