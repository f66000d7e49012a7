package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// unknownRoute labels requests chi could not route, keeping label
	// cardinality bounded
	unknownRoute = "unknown_route"

	maxUserAgentLength = 256
)

// healthPaths are hit by orchestrators every few seconds; they are counted
// but never traced
var healthPaths = map[string]bool{
	"/health":    true,
	"/readiness": true,
	"/metrics":   true,
}

// HTTPMiddleware records request metrics and a server span for every request
// to the operational API. It is a pass-through when both are off.
func (t *Telemetry) HTTPMiddleware(next http.Handler) http.Handler {
	if t == nil || (t.http == nil && t.tracer == nil) {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// r.Context() may be cancelled once ServeHTTP returns
		ctx := r.Context()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		var span trace.Span
		if t.tracer != nil && !healthPaths[r.URL.Path] {
			ctx = t.propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
			ctx, span = t.tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(truncate(r.UserAgent(), maxUserAgentLength)),
				))
			r = r.WithContext(ctx)
		}
		if t.http != nil {
			t.http.inFlight.Add(ctx, 1)
		}

		next.ServeHTTP(ww, r)

		// chi fills in the pattern while routing, so it is read afterwards
		route := routePattern(r)
		code := ww.Status()

		if span != nil {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(code))
			if code >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(code))
			}
			span.End()
		}
		if t.http != nil {
			t.http.inFlight.Add(ctx, -1)
			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.String("status_code", strconv.Itoa(code)),
			)
			t.http.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			t.http.requests.Add(ctx, 1, attrs)
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unknownRoute
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
