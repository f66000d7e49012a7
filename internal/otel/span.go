// Package otel names the spans and attributes emitted while synchronizing
// flags and segments.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names
const (
	SpanSyncAll        = "flagsync.sync_all"
	SpanRefreshSplits  = "flagsync.refresh_splits"
	SpanRefreshSegment = "flagsync.refresh_segment"
	SpanLocalKill      = "flagsync.local_kill"
)

// Attribute keys
const (
	AttrSyncKind      = attribute.Key("flagsync.sync.kind")
	AttrSplitName     = attribute.Key("flagsync.split.name")
	AttrSegmentName   = attribute.Key("flagsync.segment.name")
	AttrChangeNumber  = attribute.Key("flagsync.change_number")
	AttrTargetTill    = attribute.Key("flagsync.change_number.target")
	AttrFetchAttempts = attribute.Key("flagsync.fetch.attempts")
	AttrUpdatedSplits = attribute.Key("flagsync.splits.updated")
	AttrSegmentCount  = attribute.Key("flagsync.segments.count")
)

// Start opens an internal span. With a nil tracer the span already in ctx
// is returned, which is a no-op span unless the caller is traced.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

// End closes a span opened by Start. A non-nil err is attached as an event;
// the status description stays generic because fetch errors carry URLs.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synchronization failed")
	}
	span.End()
}
