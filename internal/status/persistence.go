// Package status holds the synchronization mode and push status types and
// persists snapshots of them for operators.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotPersistence defines the interface for snapshot persistence
type SnapshotPersistence interface {
	// SaveSnapshot writes the snapshot, replacing any previous one
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// LoadSnapshot reads the last saved snapshot.
	// Returns an empty Snapshot if nothing was saved yet.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// fileSnapshotPersistence implements SnapshotPersistence using a local file
type fileSnapshotPersistence struct {
	path string
}

// NewFileSnapshotPersistence creates a file-based snapshot persistence writing to path
func NewFileSnapshotPersistence(path string) SnapshotPersistence {
	return &fileSnapshotPersistence{
		path: path,
	}
}

// SaveSnapshot marshals the snapshot to JSON and atomically replaces the file
func (f *fileSnapshotPersistence) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary snapshot file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	return nil
}

// LoadSnapshot reads the snapshot file
func (f *fileSnapshotPersistence) LoadSnapshot(_ context.Context) (*Snapshot, error) {
	// #nosec G304 -- path comes from trusted configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
