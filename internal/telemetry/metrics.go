package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the scope of every meter and tracer flagsync creates
const InstrumentationName = "github.com/stacklok/flagsync"

// Notification outcomes recorded by PushMetrics.RecordNotification
const (
	NotificationProcessed = "processed"
	NotificationStale     = "stale"
	NotificationMalformed = "malformed"
)

// Token request outcomes recorded by PushMetrics.RecordAuth
const (
	AuthSucceeded = "succeeded"
	AuthDisabled  = "disabled"
	AuthRetryable = "retryable_error"
	AuthRejected  = "rejected"
)

// PushMetrics counts what happens on the streaming side. A nil *PushMetrics
// records nothing.
type PushMetrics struct {
	notifications metric.Int64Counter
	connections   metric.Int64Counter
	reconnects    metric.Int64Counter
	errors        metric.Int64Counter
	auths         metric.Int64Counter
}

func newPushMetrics(meter metric.Meter) (*PushMetrics, error) {
	m := &PushMetrics{}
	var errs [5]error
	m.notifications, errs[0] = meter.Int64Counter("flagsync_push_notifications_total",
		metric.WithDescription("Stream notifications received, by type and outcome"),
		metric.WithUnit("{notification}"))
	m.connections, errs[1] = meter.Int64Counter("flagsync_push_connections_total",
		metric.WithDescription("Stream connection attempts"),
		metric.WithUnit("{connection}"))
	m.reconnects, errs[2] = meter.Int64Counter("flagsync_push_reconnects_total",
		metric.WithDescription("Reconnects scheduled after a stream failure"),
		metric.WithUnit("{reconnect}"))
	m.errors, errs[3] = meter.Int64Counter("flagsync_push_errors_total",
		metric.WithDescription("Error frames sent by the streaming server"),
		metric.WithUnit("{error}"))
	m.auths, errs[4] = meter.Int64Counter("flagsync_push_auth_total",
		metric.WithDescription("Streaming token requests, by outcome"),
		metric.WithUnit("{request}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordNotification counts one notification by type and outcome
func (m *PushMetrics) RecordNotification(ctx context.Context, notificationType, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", notificationType),
		attribute.String("outcome", outcome)))
}

// RecordConnection counts one connection attempt
func (m *PushMetrics) RecordConnection(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordReconnect counts one scheduled reconnect
func (m *PushMetrics) RecordReconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnects.Add(ctx, 1)
}

// RecordStreamingError counts one error frame
func (m *PushMetrics) RecordStreamingError(ctx context.Context, code int, retryable bool) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("code", code),
		attribute.Bool("retryable", retryable)))
}

// RecordAuth counts one streaming token request
func (m *PushMetrics) RecordAuth(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.auths.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// SyncMetrics covers fetches and mode changes. A nil *SyncMetrics records
// nothing.
type SyncMetrics struct {
	duration     metric.Float64Histogram
	transitions  metric.Int64Counter
	changeNumber metric.Int64Gauge
}

func newSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var errs [3]error
	m.duration, errs[0] = meter.Float64Histogram("flagsync_sync_duration_seconds",
		metric.WithDescription("Duration of split and segment fetches"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60))
	m.transitions, errs[1] = meter.Int64Counter("flagsync_mode_transitions_total",
		metric.WithDescription("Transitions between streaming and polling, by target mode"),
		metric.WithUnit("{transition}"))
	m.changeNumber, errs[2] = meter.Int64Gauge("flagsync_splits_change_number",
		metric.WithDescription("Change number of the local split cache"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSyncDuration records one fetch of the given kind
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, kind string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success)))
}

// RecordModeTransition counts a transition into mode
func (m *SyncMetrics) RecordModeTransition(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordChangeNumber records the change number of the local split cache
func (m *SyncMetrics) RecordChangeNumber(ctx context.Context, changeNumber int64) {
	if m == nil {
		return
	}
	m.changeNumber.Record(ctx, changeNumber)
}

// httpMetrics backs the operational API middleware
type httpMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var errs [3]error
	m.duration, errs[0] = meter.Float64Histogram("flagsync_http_request_duration_seconds",
		metric.WithDescription("Duration of operational API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5))
	m.requests, errs[1] = meter.Int64Counter("flagsync_http_requests_total",
		metric.WithDescription("Operational API requests"),
		metric.WithUnit("{request}"))
	m.inFlight, errs[2] = meter.Int64UpDownCounter("flagsync_http_active_requests",
		metric.WithDescription("Operational API requests in flight"),
		metric.WithUnit("{request}"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}
