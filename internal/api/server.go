// Package api provides the operational HTTP surface of flagsync: health
// checks, the synchronization status and read-only access to cached flags.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/storage"
)

// StatusProvider reports the synchronization state
//
//go:generate mockgen -destination=mocks/mock_providers.go -package=mocks -source=server.go StatusProvider,FlagReader
type StatusProvider interface {
	// Snapshot returns the current synchronization state
	Snapshot(ctx context.Context) (*status.Snapshot, error)

	// CheckReadiness returns an error until the initial sync has completed
	CheckReadiness(ctx context.Context) error
}

// FlagReader gives read access to the local flag cache
type FlagReader interface {
	SplitNames(ctx context.Context) ([]string, error)
	Split(ctx context.Context, name string) (*storage.Split, error)
	IsInSegment(ctx context.Context, name, key string) (bool, error)
}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h on /metrics. A nil handler is ignored.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates the HTTP router
func NewServer(provider StatusProvider, flags FlagReader, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", HealthRouter(provider))
	r.Mount("/splits", FlagRouter(flags))
	r.Get("/segments/{name}/keys/{key}", segmentMembershipHandler(flags))

	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
