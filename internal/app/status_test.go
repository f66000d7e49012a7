package app

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/storage"
	"github.com/stacklok/flagsync/internal/versions"
)

type fixedPushStatus struct {
	status status.PushStatus
	expiry time.Time
}

func (f *fixedPushStatus) Status() status.PushStatus {
	return f.status
}

func (f *fixedPushStatus) TokenExpiry() time.Time {
	return f.expiry
}

type fixedMode struct {
	mode status.SyncMode
}

func (f *fixedMode) Mode() status.SyncMode {
	return f.mode
}

// recordingPersistence keeps saved snapshots in memory
type recordingPersistence struct {
	mu       stdsync.Mutex
	saved    []status.Snapshot
	previous *status.Snapshot
	loadErr  error
	saveErr  error
}

func (r *recordingPersistence) SaveSnapshot(_ context.Context, snapshot *status.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, *snapshot)
	return nil
}

func (r *recordingPersistence) LoadSnapshot(context.Context) (*status.Snapshot, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.previous == nil {
		return &status.Snapshot{}, nil
	}
	return r.previous, nil
}

func (r *recordingPersistence) snapshots() []status.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status.Snapshot(nil), r.saved...)
}

func TestStatusService_Snapshot(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	pushStatus := &fixedPushStatus{status: status.PushStatusConnected}
	svc := newStatusService(store, pushStatus, nil)

	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.SyncModePolling, snapshot.Mode, "mode defaults to polling before the manager exists")
	assert.Equal(t, status.PushStatusConnected, snapshot.PushStatus)
	assert.Equal(t, storage.NoChangeNumber, snapshot.SplitsChangeNumber)
	assert.Equal(t, versions.GetVersionInfo().Version, snapshot.Version)
	assert.Nil(t, snapshot.LastTransition)
	assert.Nil(t, snapshot.TokenExpiresAt, "no token before the first authentication")

	expiry := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	pushStatus.expiry = expiry
	svc.setModeSource(&fixedMode{status.SyncModeStreaming})
	require.NoError(t, store.UpdateSplits(context.Background(), nil, nil, 42))

	snapshot, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.SyncModeStreaming, snapshot.Mode)
	assert.Equal(t, int64(42), snapshot.SplitsChangeNumber)
	require.NotNil(t, snapshot.TokenExpiresAt)
	assert.Equal(t, expiry, *snapshot.TokenExpiresAt)
}

func TestStatusService_CheckReadiness(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	svc := newStatusService(store, &fixedPushStatus{status: status.PushStatusDisconnected}, nil)

	err := svc.CheckReadiness(context.Background())
	assert.ErrorIs(t, err, errNotSynced)

	require.NoError(t, store.UpdateSplits(context.Background(), nil, nil, 1))
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}

func TestStatusService_OnTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		transitions [][2]status.SyncMode
		wantCount   int
		wantSaved   []status.SyncMode
	}{
		{
			name:        "same mode is not recorded",
			transitions: [][2]status.SyncMode{{status.SyncModeStreaming, status.SyncModeStreaming}},
			wantCount:   0,
		},
		{
			name: "each change is persisted",
			transitions: [][2]status.SyncMode{
				{status.SyncModePolling, status.SyncModeStreaming},
				{status.SyncModeStreaming, status.SyncModeStreaming},
				{status.SyncModeStreaming, status.SyncModePolling},
			},
			wantCount: 2,
			wantSaved: []status.SyncMode{status.SyncModeStreaming, status.SyncModePolling},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			persistence := &recordingPersistence{}
			svc := newStatusService(storage.NewMemoryStorage(), &fixedPushStatus{status: status.PushStatusConnected}, persistence)
			fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			svc.now = func() time.Time { return fixed }

			for _, tr := range tt.transitions {
				svc.onTransition(tr[0], tr[1])
			}

			snapshot, err := svc.Snapshot(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, snapshot.TransitionCount)
			if tt.wantCount > 0 {
				require.NotNil(t, snapshot.LastTransition)
				assert.Equal(t, fixed, *snapshot.LastTransition)
			}

			saved := persistence.snapshots()
			require.Len(t, saved, len(tt.wantSaved))
			for i, mode := range tt.wantSaved {
				assert.Equal(t, mode, saved[i].Mode)
				assert.Equal(t, i+1, saved[i].TransitionCount)
			}
		})
	}
}

func TestStatusService_OnTransitionSaveError(t *testing.T) {
	t.Parallel()

	persistence := &recordingPersistence{saveErr: errors.New("disk full")}
	svc := newStatusService(storage.NewMemoryStorage(), &fixedPushStatus{status: status.PushStatusConnected}, persistence)

	svc.onTransition(status.SyncModePolling, status.SyncModeStreaming)

	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.TransitionCount, "a failed save does not lose the transition")
}

func TestStatusService_Restore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		persistence *recordingPersistence
	}{
		{name: "no previous run", persistence: &recordingPersistence{}},
		{name: "load error", persistence: &recordingPersistence{loadErr: errors.New("corrupt")}},
		{
			name: "snapshot from newer version",
			persistence: &recordingPersistence{previous: &status.Snapshot{
				Mode:       status.SyncModeStreaming,
				PushStatus: status.PushStatusConnected,
				Version:    "v99.0.0",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newStatusService(storage.NewMemoryStorage(), &fixedPushStatus{status: status.PushStatusConnected}, tt.persistence)
			svc.restore(context.Background())

			// Restoring only reports the previous run
			snapshot, err := svc.Snapshot(context.Background())
			require.NoError(t, err)
			assert.Zero(t, snapshot.TransitionCount)
			assert.Empty(t, tt.persistence.snapshots())
		})
	}

	// No persistence configured
	newStatusService(storage.NewMemoryStorage(), &fixedPushStatus{}, nil).restore(context.Background())
}
