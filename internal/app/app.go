// Package app wires flagsync's components into a runnable application and
// manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/flagsync/internal/config"
)

// SyncApp encapsulates all components needed to keep the local flag cache in
// sync and to serve the operational API
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	status     *statusService
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts synchronization and the HTTP server. It blocks until the HTTP
// server stops or encounters an error.
func (app *SyncApp) Start() error {
	app.status.restore(app.ctx)

	// Returns once the initial mode is settled
	app.components.SyncManager.Start()
	if !app.config.IsStreamingEnabled() {
		// Polling waits a full refresh period before its first fetch
		app.components.Synchronizer.SyncAll()
	}
	slog.Info("Synchronization started", "mode", app.components.SyncManager.Mode())

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop stops synchronization and then gracefully shuts down the HTTP server.
// It is safe to call more than once.
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down flagsync")

	// Stops streaming and polling; the manager ignores events afterwards
	app.components.SyncManager.Shutdown()
	app.components.Synchronizer.Close()

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
