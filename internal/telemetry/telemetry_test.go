package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "disabled", config: &Config{Metrics: &MetricsConfig{Enabled: true}}},
		{name: "enabled without sections", config: &Config{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), tt.config)
			require.NoError(t, err)
			assert.Nil(t, tel.Tracer())
			assert.Nil(t, tel.PushMetrics())
			assert.Nil(t, tel.SyncMetrics())
			assert.Nil(t, tel.MetricsHandler())

			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
			assert.NotNil(t, tel.HTTPMiddleware(next))
			require.NoError(t, tel.Shutdown(context.Background()))
		})
	}
}

func TestNilTelemetry(t *testing.T) {
	t.Parallel()

	var tel *Telemetry
	assert.Nil(t, tel.Tracer())
	assert.Nil(t, tel.PushMetrics())
	assert.Nil(t, tel.SyncMetrics())
	assert.Nil(t, tel.MetricsHandler())
	assert.NoError(t, tel.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	tel.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestNewInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: "statsd"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

func TestNewPrometheus(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), &Config{
		Enabled:        true,
		ServiceName:    "flagsync-test",
		ServiceVersion: "v1.4.0",
		Attributes:     map[string]string{"deployment.environment": "ci"},
		Metrics:        &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	require.NotNil(t, tel.PushMetrics())
	require.NotNil(t, tel.SyncMetrics())
	assert.Nil(t, tel.Tracer())

	ctx := context.Background()
	tel.PushMetrics().RecordAuth(ctx, AuthSucceeded)
	tel.SyncMetrics().RecordModeTransition(ctx, "STREAMING")

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flagsync_push_auth")
	assert.Contains(t, string(body), "flagsync_mode_transitions")
	assert.Contains(t, string(body), `service_name="flagsync-test"`)
	assert.Contains(t, string(body), `deployment_environment="ci"`)
}

func TestNewTracing(t *testing.T) {
	t.Parallel()

	// The OTLP exporter connects lazily, so nothing needs to listen here
	tel, err := New(context.Background(), &Config{
		Enabled:  true,
		Endpoint: "127.0.0.1:4318",
		Insecure: true,
		Tracing:  &TracingConfig{Enabled: true, Sampling: floatPtr(1)},
	})
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer())
	assert.Nil(t, tel.PushMetrics())
	assert.Nil(t, tel.MetricsHandler())

	require.NoError(t, tel.Shutdown(context.Background()))
	require.NoError(t, tel.Shutdown(context.Background()), "second shutdown returns the first result")
}
