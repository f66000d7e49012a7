package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/storage"
	"github.com/stacklok/flagsync/internal/versions"
)

// errNotSynced is reported by readiness until splits were fetched once
var errNotSynced = errors.New("initial synchronization has not completed")

// ModeSource reports the mode the orchestrator settled in
type ModeSource interface {
	Mode() status.SyncMode
}

// PushStatusSource reports the push connection status and the expiry of
// the streaming token in use
type PushStatusSource interface {
	Status() status.PushStatus
	TokenExpiry() time.Time
}

// statusService assembles status snapshots for the API and persists one on
// every mode transition
type statusService struct {
	changes     storage.Storage
	pushStatus  PushStatusSource
	persistence status.SnapshotPersistence
	now         func() time.Time

	mu              stdsync.Mutex
	modes           ModeSource
	lastTransition  *time.Time
	transitionCount int
}

func newStatusService(
	changes storage.Storage,
	pushStatus PushStatusSource,
	persistence status.SnapshotPersistence,
) *statusService {
	return &statusService{
		changes:     changes,
		pushStatus:  pushStatus,
		persistence: persistence,
		now:         time.Now,
	}
}

func (s *statusService) setModeSource(modes ModeSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = modes
}

// Snapshot returns the current synchronization state
func (s *statusService) Snapshot(ctx context.Context) (*status.Snapshot, error) {
	cn, err := s.changes.SplitsChangeNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read splits change number: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := &status.Snapshot{
		Mode:               status.SyncModePolling,
		PushStatus:         s.pushStatus.Status(),
		SplitsChangeNumber: cn,
		LastTransition:     s.lastTransition,
		TransitionCount:    s.transitionCount,
		Version:            versions.GetVersionInfo().Version,
	}
	if s.modes != nil {
		snapshot.Mode = s.modes.Mode()
	}
	if expiry := s.pushStatus.TokenExpiry(); !expiry.IsZero() {
		snapshot.TokenExpiresAt = &expiry
	}
	return snapshot, nil
}

// CheckReadiness succeeds once splits have been fetched at least once
func (s *statusService) CheckReadiness(ctx context.Context) error {
	cn, err := s.changes.SplitsChangeNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read splits change number: %w", err)
	}
	if cn == storage.NoChangeNumber {
		return errNotSynced
	}
	return nil
}

// onTransition runs on the orchestrator goroutine after every handled
// event; only actual mode changes are recorded
func (s *statusService) onTransition(from, to status.SyncMode) {
	if from == to {
		return
	}

	s.mu.Lock()
	now := s.now()
	s.lastTransition = &now
	s.transitionCount++
	s.mu.Unlock()

	if s.persistence == nil {
		return
	}

	ctx := context.Background()
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		slog.Warn("Failed to build status snapshot", "error", err)
		return
	}
	snapshot.Mode = to
	if err := s.persistence.SaveSnapshot(ctx, snapshot); err != nil {
		slog.Warn("Failed to persist status snapshot", "from", from, "to", to, "error", err)
	}
}

// restore logs the snapshot left by the previous run
func (s *statusService) restore(ctx context.Context) {
	if s.persistence == nil {
		return
	}

	previous, err := s.persistence.LoadSnapshot(ctx)
	if err != nil {
		slog.Warn("Failed to load previous status snapshot", "error", err)
		return
	}
	if previous.Mode == "" {
		return
	}

	running := versions.GetVersionInfo().Version
	if previous.Version != "" && versions.IsNewerVersion(previous.Version, running) {
		slog.Warn("Status snapshot was written by a newer flagsync version",
			"snapshot_version", previous.Version,
			"running_version", running)
	}
	slog.Info("Previous run status",
		"mode", previous.Mode,
		"push_status", previous.PushStatus,
		"splits_change_number", previous.SplitsChangeNumber,
		"transitions", previous.TransitionCount)
}
