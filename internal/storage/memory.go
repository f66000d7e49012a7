package storage

import (
	"context"
	"sort"
	"sync"
)

type memorySegment struct {
	keys map[string]struct{}
	till int64
}

// MemoryStorage keeps definitions in process memory
type MemoryStorage struct {
	mu       sync.RWMutex
	splits   map[string]Split
	till     int64
	segments map[string]*memorySegment
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		splits:   make(map[string]Split),
		till:     NoChangeNumber,
		segments: make(map[string]*memorySegment),
	}
}

// SplitsChangeNumber implements Storage
func (s *MemoryStorage) SplitsChangeNumber(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.till, nil
}

// UpdateSplits implements Storage
func (s *MemoryStorage) UpdateSplits(_ context.Context, active []Split, archived []string, till int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, split := range active {
		s.splits[split.Name] = split
	}
	for _, name := range archived {
		delete(s.splits, name)
	}
	s.till = till
	return nil
}

// Split implements Storage
func (s *MemoryStorage) Split(_ context.Context, name string) (*Split, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	split, ok := s.splits[name]
	if !ok {
		return nil, ErrSplitNotFound
	}
	return &split, nil
}

// SplitNames implements Storage
func (s *MemoryStorage) SplitNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.splits))
	for name := range s.splits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// KillSplit implements Storage
func (s *MemoryStorage) KillSplit(_ context.Context, name, defaultTreatment string, changeNumber int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	split, ok := s.splits[name]
	if !ok || split.ChangeNumber >= changeNumber {
		return nil
	}
	split.Killed = true
	split.DefaultTreatment = defaultTreatment
	split.ChangeNumber = changeNumber
	s.splits[name] = split
	return nil
}

// SegmentNames implements Storage
func (s *MemoryStorage) SegmentNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, split := range s.splits {
		for _, name := range split.Segments() {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SegmentChangeNumber implements Storage
func (s *MemoryStorage) SegmentChangeNumber(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segment, ok := s.segments[name]
	if !ok {
		return NoChangeNumber, nil
	}
	return segment.till, nil
}

// UpdateSegment implements Storage
func (s *MemoryStorage) UpdateSegment(_ context.Context, name string, added, removed []string, till int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	segment, ok := s.segments[name]
	if !ok {
		segment = &memorySegment{keys: make(map[string]struct{})}
		s.segments[name] = segment
	}
	for _, key := range added {
		segment.keys[key] = struct{}{}
	}
	for _, key := range removed {
		delete(segment.keys, key)
	}
	segment.till = till
	return nil
}

// IsInSegment implements Storage
func (s *MemoryStorage) IsInSegment(_ context.Context, name, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segment, ok := s.segments[name]
	if !ok {
		return false, nil
	}
	_, found := segment.keys[key]
	return found, nil
}

// Close implements Storage
func (*MemoryStorage) Close() error {
	return nil
}
