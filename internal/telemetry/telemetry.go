package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the providers and the instruments built on them. A nil
// *Telemetry, or one created from a disabled config, hands out nil
// instruments and a nil tracer, which every caller treats as "record nothing".
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry
	propagator     propagation.TextMapPropagator

	tracer trace.Tracer
	push   *PushMetrics
	sync   *SyncMetrics
	http   *httpMetrics

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds the providers selected by cfg. The caller must call Shutdown
// to flush pending spans and metrics.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	t := &Telemetry{
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.tracingEnabled() {
		t.tracerProvider, err = newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		t.tracer = t.tracerProvider.Tracer(InstrumentationName,
			trace.WithInstrumentationVersion(cfg.GetServiceVersion()))
	}

	if cfg.metricsEnabled() {
		t.meterProvider, t.registry, err = newMeterProvider(ctx, cfg, res)
		if err == nil {
			err = t.buildInstruments(t.meterProvider.Meter(InstrumentationName,
				metric.WithInstrumentationVersion(cfg.GetServiceVersion())))
		}
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
	}

	slog.Info("Telemetry initialized",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
		"tracing", t.tracer != nil,
		"metrics", t.push != nil)
	return t, nil
}

func (t *Telemetry) buildInstruments(meter metric.Meter) error {
	var err error
	if t.push, err = newPushMetrics(meter); err != nil {
		return fmt.Errorf("failed to create push metrics: %w", err)
	}
	if t.sync, err = newSyncMetrics(meter); err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}
	if t.http, err = newHTTPMetrics(meter); err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	return nil
}

// Tracer returns the flagsync tracer, nil when tracing is off
func (t *Telemetry) Tracer() trace.Tracer {
	if t == nil {
		return nil
	}
	return t.tracer
}

// PushMetrics returns the streaming instruments, nil when metrics are off
func (t *Telemetry) PushMetrics() *PushMetrics {
	if t == nil {
		return nil
	}
	return t.push
}

// SyncMetrics returns the fetch and mode instruments, nil when metrics are off
func (t *Telemetry) SyncMetrics() *SyncMetrics {
	if t == nil {
		return nil
	}
	return t.sync
}

// MetricsHandler serves the Prometheus registry, nil unless the Prometheus
// exporter is selected
func (t *Telemetry) MetricsHandler() http.Handler {
	if t == nil || t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the providers. Later calls return the result
// of the first one.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.shutdownOnce.Do(func() {
		var errs []error
		if t.tracerProvider != nil {
			if err := t.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shut down tracer provider: %w", err))
			}
		}
		if t.meterProvider != nil {
			if err := t.meterProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shut down meter provider: %w", err))
			}
		}
		t.shutdownErr = errors.Join(errs...)
		slog.Debug("Telemetry shut down", "error", t.shutdownErr)
	})
	return t.shutdownErr
}
