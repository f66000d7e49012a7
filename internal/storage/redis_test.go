package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisPrefix = "flagsync-test"

// newTestRedis returns a storage backed by an in-process Redis server
func newTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	s, err := NewRedisStorage(RedisConfig{Address: server.Addr(), Prefix: testRedisPrefix})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, server
}

func TestRedisStorage(t *testing.T) {
	t.Parallel()

	runStorageTests(t, func(t *testing.T) Storage {
		s, _ := newTestRedis(t)
		return s
	})
}

func TestNewRedisStorage(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStorage(RedisConfig{})
	require.Error(t, err)

	s := NewRedisStorageWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer func() { _ = s.Close() }()
	assert.Equal(t, DefaultRedisPrefix, s.prefix)
}

func TestRedisStorage_KeyLayout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, server := newTestRedis(t)

	require.NoError(t, s.UpdateSplits(ctx, []Split{{Name: "flag", Status: StatusActive, ChangeNumber: 7}}, nil, 10))
	require.NoError(t, s.UpdateSegment(ctx, "beta_users", []string{"a", "b"}, nil, 3))

	till, err := server.Get(testRedisPrefix + ".splits.till")
	require.NoError(t, err)
	assert.Equal(t, "10", till)
	assert.True(t, server.Exists(testRedisPrefix+".split.flag"))

	members, err := server.Members(testRedisPrefix + ".segment.beta_users")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	segmentTill, err := server.Get(testRedisPrefix + ".segment.beta_users.till")
	require.NoError(t, err)
	assert.Equal(t, "3", segmentTill)

	// Change number keys are not listed as splits
	names, err := s.SplitNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"flag"}, names)
}

func TestRedisStorage_ListsManySplits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestRedis(t)

	// More than one SCAN page
	splits := make([]Split, 0, 250)
	for i := range 250 {
		splits = append(splits, Split{Name: fmt.Sprintf("flag-%03d", i), Status: StatusActive})
	}
	require.NoError(t, s.UpdateSplits(ctx, splits, nil, 1))

	names, err := s.SplitNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 250)
}

func TestRedisStorage_CorruptData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
		call  func(ctx context.Context, s *RedisStorage) error
	}{
		{
			name:  "change number",
			key:   testRedisPrefix + ".splits.till",
			value: "not-a-number",
			call: func(ctx context.Context, s *RedisStorage) error {
				_, err := s.SplitsChangeNumber(ctx)
				return err
			},
		},
		{
			name:  "split read",
			key:   testRedisPrefix + ".split.flag",
			value: "{",
			call: func(ctx context.Context, s *RedisStorage) error {
				_, err := s.Split(ctx, "flag")
				return err
			},
		},
		{
			name:  "split listing",
			key:   testRedisPrefix + ".split.flag",
			value: "{",
			call: func(ctx context.Context, s *RedisStorage) error {
				_, err := s.SplitNames(ctx)
				return err
			},
		},
		{
			name:  "kill",
			key:   testRedisPrefix + ".split.flag",
			value: "{",
			call: func(ctx context.Context, s *RedisStorage) error {
				return s.KillSplit(ctx, "flag", "off", 10)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, server := newTestRedis(t)
			require.NoError(t, server.Set(tt.key, tt.value))
			assert.Error(t, tt.call(context.Background(), s))
		})
	}
}

func TestRedisStorage_ServerUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, server := newTestRedis(t)
	server.Close()

	_, err := s.SplitsChangeNumber(ctx)
	assert.Error(t, err)
	assert.Error(t, s.UpdateSplits(ctx, []Split{{Name: "flag"}}, nil, 1))
	assert.Error(t, s.UpdateSegment(ctx, "beta_users", []string{"a"}, nil, 1))
	assert.Error(t, s.KillSplit(ctx, "flag", "off", 1))

	_, err = s.IsInSegment(ctx, "beta_users", "a")
	assert.Error(t, err)
}
