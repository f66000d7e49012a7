package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStorage
const DefaultRedisPrefix = "flagsync"

// RedisConfig configures the Redis backend
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisStorage keeps definitions in Redis.
//
// Keys:
//
//	{prefix}.split.{name}          JSON encoded Split
//	{prefix}.splits.till           splits change number
//	{prefix}.segment.{name}        set of keys
//	{prefix}.segment.{name}.till   segment change number
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to the Redis server in cfg
func NewRedisStorage(cfg RedisConfig) (*RedisStorage, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStorageWithClient(client, cfg.Prefix), nil
}

// NewRedisStorageWithClient wraps an existing client
func NewRedisStorageWithClient(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}
}

func (s *RedisStorage) splitKey(name string) string {
	return s.prefix + ".split." + name
}

func (s *RedisStorage) splitsTillKey() string {
	return s.prefix + ".splits.till"
}

func (s *RedisStorage) segmentKey(name string) string {
	return s.prefix + ".segment." + name
}

func (s *RedisStorage) segmentTillKey(name string) string {
	return s.prefix + ".segment." + name + ".till"
}

func (s *RedisStorage) changeNumber(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return NoChangeNumber, nil
	}
	if err != nil {
		return NoChangeNumber, fmt.Errorf("failed to read %s: %w", key, err)
	}
	cn, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return NoChangeNumber, fmt.Errorf("invalid change number in %s: %w", key, err)
	}
	return cn, nil
}

// SplitsChangeNumber implements Storage
func (s *RedisStorage) SplitsChangeNumber(ctx context.Context) (int64, error) {
	return s.changeNumber(ctx, s.splitsTillKey())
}

// UpdateSplits implements Storage
func (s *RedisStorage) UpdateSplits(ctx context.Context, active []Split, archived []string, till int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, split := range active {
			data, err := json.Marshal(split)
			if err != nil {
				return fmt.Errorf("failed to marshal split %s: %w", split.Name, err)
			}
			pipe.Set(ctx, s.splitKey(split.Name), data, 0)
		}
		for _, name := range archived {
			pipe.Del(ctx, s.splitKey(name))
		}
		pipe.Set(ctx, s.splitsTillKey(), till, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update splits: %w", err)
	}
	return nil
}

// Split implements Storage
func (s *RedisStorage) Split(ctx context.Context, name string) (*Split, error) {
	data, err := s.client.Get(ctx, s.splitKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSplitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read split %s: %w", name, err)
	}

	var split Split
	if err := json.Unmarshal(data, &split); err != nil {
		return nil, fmt.Errorf("failed to decode split %s: %w", name, err)
	}
	return &split, nil
}

func (s *RedisStorage) splits(ctx context.Context) ([]Split, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.splitKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read splits: %w", err)
	}
	splits := make([]Split, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Removed between SCAN and MGET
			continue
		}
		var split Split
		if err := json.Unmarshal([]byte(raw), &split); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}
		splits = append(splits, split)
	}
	return splits, nil
}

// SplitNames implements Storage
func (s *RedisStorage) SplitNames(ctx context.Context) ([]string, error) {
	splits, err := s.splits(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(splits))
	for _, split := range splits {
		names = append(names, split.Name)
	}
	sort.Strings(names)
	return names, nil
}

// KillSplit implements Storage
func (s *RedisStorage) KillSplit(ctx context.Context, name, defaultTreatment string, changeNumber int64) error {
	key := s.splitKey(name)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var split Split
		if err := json.Unmarshal(data, &split); err != nil {
			return err
		}
		if split.ChangeNumber >= changeNumber {
			return nil
		}
		split.Killed = true
		split.DefaultTreatment = defaultTreatment
		split.ChangeNumber = changeNumber
		updated, err := json.Marshal(split)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to kill split %s: %w", name, err)
	}
	return nil
}

// SegmentNames implements Storage
func (s *RedisStorage) SegmentNames(ctx context.Context) ([]string, error) {
	splits, err := s.splits(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, split := range splits {
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
func (s *RedisStorage) SegmentChangeNumber(ctx context.Context, name string) (int64, error) {
	return s.changeNumber(ctx, s.segmentTillKey(name))
}

// UpdateSegment implements Storage
func (s *RedisStorage) UpdateSegment(ctx context.Context, name string, added, removed []string, till int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(added) > 0 {
			pipe.SAdd(ctx, s.segmentKey(name), toArgs(added)...)
		}
		if len(removed) > 0 {
			pipe.SRem(ctx, s.segmentKey(name), toArgs(removed)...)
		}
		pipe.Set(ctx, s.segmentTillKey(name), till, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update segment %s: %w", name, err)
	}
	return nil
}

// IsInSegment implements Storage
func (s *RedisStorage) IsInSegment(ctx context.Context, name, key string) (bool, error) {
	found, err := s.client.SIsMember(ctx, s.segmentKey(name), key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check segment %s: %w", name, err)
	}
	return found, nil
}

// Close implements Storage
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
