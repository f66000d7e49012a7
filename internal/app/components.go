package app

import (
	"github.com/stacklok/flagsync/internal/push"
	"github.com/stacklok/flagsync/internal/sse"
	"github.com/stacklok/flagsync/internal/storage"
	flagsync "github.com/stacklok/flagsync/internal/sync"
	"github.com/stacklok/flagsync/internal/synchronizer"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncManager switches between streaming and polling
	SyncManager *flagsync.Manager

	// Synchronizer fetches splits and segments
	Synchronizer *synchronizer.Synchronizer

	// PushManager owns streaming tokens and the stream lifetime
	PushManager *push.Manager

	// StreamHandler supervises the SSE connection and update workers
	StreamHandler *sse.Handler

	// StatusTracker reports the push connection status
	StatusTracker *sse.StatusTracker

	// Storage is the local split and segment cache
	Storage storage.Storage
}
