package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestStartWithoutTracer(t *testing.T) {
	t.Parallel()

	ctx, span := Start(context.Background(), nil, SpanSyncAll)
	require.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	assert.NotPanics(t, func() { End(span, errors.New("ignored")) })
}

func TestStartEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvents int
	}{
		{name: "success", wantStatus: codes.Unset},
		{
			name:       "failure hides the error text in the status",
			err:        errors.New("GET https://sdk.example/api/splitChanges?since=5: 503"),
			wantStatus: codes.Error,
			wantEvents: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			ctx, span := Start(context.Background(), tp.Tracer("test"), SpanRefreshSegment,
				AttrSegmentName.String("beta-testers"), AttrTargetTill.Int64(42))
			assert.Equal(t, span.SpanContext(), trace.SpanContextFromContext(ctx))
			End(span, tt.err)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			got := spans[0]
			assert.Equal(t, SpanRefreshSegment, got.Name)
			assert.Equal(t, trace.SpanKindInternal, got.SpanKind)
			assert.Contains(t, got.Attributes, AttrSegmentName.String("beta-testers"))
			assert.Contains(t, got.Attributes, AttrTargetTill.Int64(42))
			assert.Equal(t, tt.wantStatus, got.Status.Code)
			assert.Len(t, got.Events, tt.wantEvents)
			if tt.err != nil {
				assert.Equal(t, "synchronization failed", got.Status.Description)
			}
		})
	}
}
