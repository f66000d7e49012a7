package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	stdsync "sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/flagsync/internal/api"
	"github.com/stacklok/flagsync/internal/config"
	"github.com/stacklok/flagsync/internal/fetcher"
	"github.com/stacklok/flagsync/internal/httpclient"
	"github.com/stacklok/flagsync/internal/push"
	"github.com/stacklok/flagsync/internal/sse"
	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/storage"
	flagsync "github.com/stacklok/flagsync/internal/sync"
	"github.com/stacklok/flagsync/internal/synchronizer"
	"github.com/stacklok/flagsync/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// SyncAppOptions is a function that configures the application builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects everything needed to build a SyncApp. Component
// overrides are used by tests.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides
	storage           storage.Storage
	fetcher           fetcher.Fetcher
	authenticator     push.Authenticator
	statusPersistence status.SnapshotPersistence

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// nil disables spans and metrics
	telemetry *telemetry.Telemetry
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return cfg, nil
}

// NewSyncApp builds the application from its configuration
func NewSyncApp(ctx context.Context, opts ...SyncAppOptions) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storage == nil {
		cfg.storage, err = buildStorage(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			_ = cfg.storage.Close()
		}
	}()

	components, statusSvc, err := buildSyncComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, statusSvc, components.Storage)
	if err != nil {
		components.Synchronizer.Close()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	var once stdsync.Once
	cancelFunc := func() {
		once.Do(func() {
			if err := components.Storage.Close(); err != nil {
				slog.Warn("Failed to close storage", "error", err)
			}
		})
		cancel()
	}

	return &SyncApp{
		config:     cfg.config,
		components: components,
		status:     statusSvc,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorage injects the split store instead of building one from config
func WithStorage(s storage.Storage) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storage = s
		return nil
	}
}

// WithFetcher injects the split and segment fetcher
func WithFetcher(f fetcher.Fetcher) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.fetcher = f
		return nil
	}
}

// WithAuthenticator injects the streaming token source
func WithAuthenticator(a push.Authenticator) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.authenticator = a
		return nil
	}
}

// WithStatusPersistence overrides where status snapshots are written.
// By default the configured statusFile is used, if any.
func WithStatusPersistence(p status.SnapshotPersistence) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.statusPersistence = p
		return nil
	}
}

// WithTelemetry records spans and metrics through tel and serves its
// Prometheus registry on /metrics, if it has one
func WithTelemetry(tel *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.telemetry = tel
		return nil
	}
}

func buildStorage(c *config.Config) (storage.Storage, error) {
	storageCfg := storage.Config{Type: c.Storage.GetType()}
	if r := c.Storage.Redis; r != nil {
		password, err := r.GetPassword()
		if err != nil {
			return nil, err
		}
		storageCfg.Redis = storage.RedisConfig{
			Address:  r.Address,
			Password: password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		}
	}
	slog.Info("Using storage", "type", storageCfg.Type)
	return storage.New(storageCfg)
}

// buildSyncComponents wires the synchronizer, the push subsystem and the
// orchestrator. The orchestrator is created last and bound to the relay the
// push components report to.
func buildSyncComponents(b *syncAppConfig) (*AppComponents, *statusService, error) {
	slog.Info("Initializing sync components")
	c := b.config

	var client httpclient.Client
	if b.fetcher == nil || b.authenticator == nil {
		sdkKey, err := c.GetSDKKey()
		if err != nil {
			return nil, nil, err
		}
		client = httpclient.NewDefaultClient(c.GetHTTPTimeout(), httpclient.WithSDKKey(sdkKey))
	}

	if b.fetcher == nil {
		f, err := fetcher.New(client, c.GetSDKURL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create fetcher: %w", err)
		}
		b.fetcher = f
	}
	if b.authenticator == nil {
		b.authenticator = push.NewAuthenticator(client, c.GetAuthURL())
	}

	pushMetrics := b.telemetry.PushMetrics()
	syncMetrics := b.telemetry.SyncMetrics()

	synch := synchronizer.New(b.fetcher, b.storage,
		synchronizer.WithRefreshRates(c.GetFeaturesRefreshRate(), c.GetSegmentsRefreshRate()),
		synchronizer.WithSegmentConcurrency(c.GetSegmentConcurrency()),
		synchronizer.WithSyncMetrics(syncMetrics),
		synchronizer.WithTracer(b.telemetry.Tracer()),
	)

	relay := &managerRelay{}
	tracker := sse.NewStatusTracker(relay)
	keeper := sse.NewNotificationKeeper(relay)
	workers := sse.NewWorkers(synch, c.Push.QueueSize)
	processor := sse.NewNotificationProcessor(workers, keeper, b.storage, sse.WithProcessorMetrics(pushMetrics))
	eventSource := sse.NewEventSourceClient(
		c.GetStreamingURL(),
		sse.NewNotificationParser(),
		processor,
		tracker,
		sse.WithConnectTimeout(c.Push.GetConnectTimeout()),
		sse.WithReadTimeout(c.Push.GetReadTimeout()),
		sse.WithEventSourceMetrics(pushMetrics),
	)
	handler := sse.NewHandler(eventSource, tracker, keeper, workers,
		sse.WithReconnectBackoff(c.Push.GetReconnectBackoffBase(), 0),
		sse.WithHandlerMetrics(pushMetrics),
	)
	pushManager := push.NewManager(b.authenticator, handler, tracker, relay,
		push.WithAuthBackoff(c.Push.GetAuthRetryBackoffBase(), 0),
		push.WithMetrics(pushMetrics),
	)

	if b.statusPersistence == nil && c.StatusFile != "" {
		b.statusPersistence = status.NewFileSnapshotPersistence(c.StatusFile)
	}

	statusSvc := newStatusService(b.storage, pushManager, b.statusPersistence)

	manager := flagsync.New(c.IsStreamingEnabled(), synch, pushManager, handler,
		flagsync.WithSyncMetrics(syncMetrics),
		flagsync.WithTransitionObserver(statusSvc.onTransition),
	)
	relay.bind(manager)
	statusSvc.setModeSource(manager)

	slog.Info("Sync components initialized", "streaming_enabled", c.IsStreamingEnabled())

	return &AppComponents{
		SyncManager:   manager,
		Synchronizer:  synch,
		PushManager:   pushManager,
		StreamHandler: handler,
		StatusTracker: tracker,
		Storage:       b.storage,
	}, statusSvc, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *syncAppConfig, provider api.StatusProvider, flags api.FlagReader) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first so requests rejected by later middlewares are observed too
	middlewares := append([]func(http.Handler) http.Handler{b.telemetry.HTTPMiddleware}, b.middlewares...)

	router := api.NewServer(provider, flags,
		api.WithMiddlewares(middlewares...),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
