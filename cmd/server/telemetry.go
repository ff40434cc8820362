package main

import (
	"context"
	"errors"

	"github.com/tenantapp/backend/internal/infrastructure/config"
	"github.com/tenantapp/backend/internal/infrastructure/logger"
	"github.com/tenantapp/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// observability holds the telemetry providers owned by the process.
type observability struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	metrics  *telemetry.SyncMetrics
}

// setupTelemetry starts tracing, metrics, the OTLP log bridge and the
// profiler. It returns the application logger, teed into the log bridge when
// that is enabled.
func setupTelemetry(ctx context.Context, cfg *config.Config, bootLog *zap.Logger) (*observability, *zap.Logger, error) {
	tc := cfg.Telemetry
	serviceName := tc.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	obs := &observability{}
	var err error

	obs.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, bootLog)
	if err != nil {
		return nil, nil, err
	}

	obs.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       serviceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, bootLog)
	if err != nil {
		return nil, nil, err
	}

	obs.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       serviceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, bootLog)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(loggerConfig(cfg), telemetry.NewZapOTELCore(obs.logs, serviceName, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		return nil, nil, err
	}

	obs.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           tc.ProfilingEnabled,
		ServerAddress:     tc.PyroscopeAddress,
		ApplicationName:   serviceName,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	if tc.ProfilingEnabled && tc.Enabled {
		if err := obs.tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles not enabled", zap.Error(err))
		}
	}

	obs.metrics, err = telemetry.NewSyncMetrics(obs.meter.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return obs, log, nil
}

// shutdown flushes the providers. The profiler goes first so its last
// upload still has a working exporter.
func (o *observability) shutdown(ctx context.Context) error {
	var errs []error
	if err := o.profiler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := o.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := o.meter.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := o.logs.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func loggerConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}
