// Package storage keeps the local copy of flag and segment definitions,
// together with the change numbers they were fetched at.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

const (
	// TypeMemory keeps definitions in process memory
	TypeMemory = "memory"

	// TypeRedis keeps definitions in Redis so several processes can share them
	TypeRedis = "redis"

	// NoChangeNumber is reported for data that was never fetched
	NoChangeNumber int64 = -1

	// StatusActive marks a split that can be evaluated
	StatusActive = "ACTIVE"

	// StatusArchived marks a split that must be removed
	StatusArchived = "ARCHIVED"

	segmentNamesPath = "conditions.#.matcherGroup.matchers.#.userDefinedSegmentMatcherData.segmentName"
)

// ErrSplitNotFound is returned when a split is not stored
var ErrSplitNotFound = errors.New("split not found")

// Split is one feature flag definition. Definition holds the raw document as
// served by the backend.
type Split struct {
	Name             string          `json:"name"`
	TrafficTypeName  string          `json:"trafficTypeName,omitempty"`
	Status           string          `json:"status"`
	Killed           bool            `json:"killed"`
	DefaultTreatment string          `json:"defaultTreatment"`
	ChangeNumber     int64           `json:"changeNumber"`
	Definition       json.RawMessage `json:"definition,omitempty"`
}

// SplitFromJSON reads a split from its backend representation
func SplitFromJSON(raw []byte) (Split, error) {
	if !gjson.ValidBytes(raw) {
		return Split{}, errors.New("split definition is not valid JSON")
	}
	fields := gjson.GetManyBytes(raw, "name", "trafficTypeName", "status", "killed", "defaultTreatment", "changeNumber")
	if fields[0].String() == "" {
		return Split{}, errors.New("split definition has no name")
	}
	return Split{
		Name:             fields[0].String(),
		TrafficTypeName:  fields[1].String(),
		Status:           fields[2].String(),
		Killed:           fields[3].Bool(),
		DefaultTreatment: fields[4].String(),
		ChangeNumber:     fields[5].Int(),
		Definition:       append(json.RawMessage(nil), raw...),
	}, nil
}

// Segments returns the names of the segments the split's conditions refer to
func (s Split) Segments() []string {
	if len(s.Definition) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var walk func(r gjson.Result)
	walk = func(r gjson.Result) {
		if r.IsArray() {
			for _, item := range r.Array() {
				walk(item)
			}
			return
		}
		if name := r.String(); r.Type == gjson.String && name != "" {
			seen[name] = struct{}{}
		}
	}
	walk(gjson.GetBytes(s.Definition, segmentNamesPath))

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Storage is the local flag and segment store
type Storage interface {
	// SplitsChangeNumber returns the change number the splits were last
	// fetched at, or NoChangeNumber
	SplitsChangeNumber(ctx context.Context) (int64, error)

	// UpdateSplits stores active splits, removes archived ones and records till
	UpdateSplits(ctx context.Context, active []Split, archived []string, till int64) error

	// Split returns a stored split or ErrSplitNotFound
	Split(ctx context.Context, name string) (*Split, error)

	// SplitNames returns the names of every stored split, sorted
	SplitNames(ctx context.Context) ([]string, error)

	// KillSplit marks a split as killed with the given default treatment.
	// It is a no-op if the split is missing or already newer than changeNumber.
	KillSplit(ctx context.Context, name, defaultTreatment string, changeNumber int64) error

	// SegmentNames returns the segments referenced by stored splits, sorted
	SegmentNames(ctx context.Context) ([]string, error)

	// SegmentChangeNumber returns the change number a segment was last fetched
	// at, or NoChangeNumber
	SegmentChangeNumber(ctx context.Context, name string) (int64, error)

	// UpdateSegment adds and removes keys and records till
	UpdateSegment(ctx context.Context, name string, added, removed []string, till int64) error

	// IsInSegment reports whether key belongs to the segment
	IsInSegment(ctx context.Context, name, key string) (bool, error)

	// Close releases the store's resources
	Close() error
}

// Config selects and configures a storage backend
type Config struct {
	Type  string
	Redis RedisConfig
}

// New creates the storage backend selected by cfg
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryStorage(), nil
	case TypeRedis:
		return NewRedisStorage(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
