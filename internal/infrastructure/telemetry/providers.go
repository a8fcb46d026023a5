package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultExportInterval = 60 * time.Second
	shutdownTimeout       = 10 * time.Second
)

// Providers owns the trace, metric and log pipelines that share one OTLP
// collector. Each signal is switched on independently; a disabled signal
// leaves the global no-op provider in place.
type Providers struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider

	serviceName string
	log         *zap.Logger
}

// Setup builds the enabled pipelines from cfg and installs them globally.
// A failure part way through shuts down whatever was already started.
func Setup(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*Providers, error) {
	p := &Providers{serviceName: cfg.ServiceName, log: log}
	if !cfg.Enabled && !cfg.MetricsEnabled && !cfg.LogsEnabled {
		log.Info("Telemetry disabled")
		return p, nil
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		on   bool
		name string
		fn   func(context.Context, config.TelemetryConfig, *resource.Resource) error
	}{
		{cfg.Enabled, "traces", p.startTraces},
		{cfg.MetricsEnabled, "metrics", p.startMetrics},
		{cfg.LogsEnabled, "logs", p.startLogs},
	}
	for _, step := range steps {
		if !step.on {
			continue
		}
		if err := step.fn(ctx, cfg, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("telemetry %s: %w", step.name, err)
		}
	}

	log.Info("Telemetry initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Bool("traces", p.TracingEnabled()),
		zap.Bool("metrics", p.MetricsEnabled()),
		zap.Bool("logs", p.LogsEnabled()),
	)
	return p, nil
}

func (p *Providers) startTraces(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRatio)),
	)
	if cfg.ProfilingEnabled && cfg.SpanProfiles {
		// CPU samples taken inside a span carry its span_id label
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(p.traces))
	} else {
		otel.SetTracerProvider(p.traces)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Providers) startMetrics(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(defaultExportInterval))),
	)
	otel.SetMeterProvider(p.metrics)
	return nil
}

func (p *Providers) startLogs(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(p.logs)
	return nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func (p *Providers) TracingEnabled() bool { return p != nil && p.traces != nil }
func (p *Providers) MetricsEnabled() bool { return p != nil && p.metrics != nil }
func (p *Providers) LogsEnabled() bool    { return p != nil && p.logs != nil }

// Meter returns the engine meter. With metrics off it comes from the global
// no-op provider, so instruments can always be registered.
func (p *Providers) Meter() metric.Meter {
	if !p.MetricsEnabled() {
		return otel.GetMeterProvider().Meter(MeterName)
	}
	return p.metrics.Meter(MeterName)
}

// BridgeLogger tees base into the OTLP log pipeline for entries at or above
// level. base is returned unchanged when logs export is off.
func (p *Providers) BridgeLogger(base *zap.Logger, level zapcore.Level) *zap.Logger {
	if !p.LogsEnabled() {
		return base
	}
	core := newLevelFilterCore(newOTELCore(p.serviceName, p.logs), level)
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))
}

// Shutdown flushes and stops every started pipeline.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if p.metrics != nil {
		errs = append(errs, wrapShutdown("metrics", p.metrics.Shutdown(ctx)))
	}
	if p.traces != nil {
		errs = append(errs, wrapShutdown("traces", p.traces.Shutdown(ctx)))
	}
	if p.logs != nil {
		errs = append(errs, wrapShutdown("logs", p.logs.Shutdown(ctx)))
	}
	err := errors.Join(errs...)
	if err != nil {
		p.log.Error("Telemetry shutdown incomplete", zap.Error(err))
	}
	return err
}

func wrapShutdown(signal string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("shutdown %s: %w", signal, err)
}
