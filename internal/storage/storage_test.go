package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSplitJSON = `{
	"name": "checkout_flow",
	"trafficTypeName": "user",
	"status": "ACTIVE",
	"killed": false,
	"defaultTreatment": "off",
	"changeNumber": 1585948850110,
	"conditions": [
		{"matcherGroup": {"matchers": [
			{"matcherType": "IN_SEGMENT", "userDefinedSegmentMatcherData": {"segmentName": "beta_users"}},
			{"matcherType": "ALL_KEYS"}
		]}},
		{"matcherGroup": {"matchers": [
			{"matcherType": "IN_SEGMENT", "userDefinedSegmentMatcherData": {"segmentName": "employees"}},
			{"matcherType": "IN_SEGMENT", "userDefinedSegmentMatcherData": {"segmentName": "beta_users"}}
		]}}
	]
}`

func TestSplitFromJSON(t *testing.T) {
	t.Parallel()

	split, err := SplitFromJSON([]byte(testSplitJSON))
	require.NoError(t, err)
	assert.Equal(t, "checkout_flow", split.Name)
	assert.Equal(t, "user", split.TrafficTypeName)
	assert.Equal(t, StatusActive, split.Status)
	assert.False(t, split.Killed)
	assert.Equal(t, "off", split.DefaultTreatment)
	assert.Equal(t, int64(1585948850110), split.ChangeNumber)
	assert.Equal(t, []string{"beta_users", "employees"}, split.Segments())
}

func TestSplitFromJSON_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"name":`},
		{name: "no name", raw: `{"status":"ACTIVE"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := SplitFromJSON([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestSplit_SegmentsWithoutConditions(t *testing.T) {
	t.Parallel()

	split, err := SplitFromJSON([]byte(`{"name":"plain","status":"ACTIVE"}`))
	require.NoError(t, err)
	assert.Empty(t, split.Segments())
	assert.Empty(t, Split{Name: "no-definition"}.Segments())
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}},
		{name: "memory", cfg: Config{Type: TypeMemory}},
		{name: "redis without address", cfg: Config{Type: TypeRedis}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

// runStorageTests checks the behaviour every backend must share
func runStorageTests(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStorage(t)

		cn, err := s.SplitsChangeNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, NoChangeNumber, cn)

		cn, err = s.SegmentChangeNumber(ctx, "beta_users")
		require.NoError(t, err)
		assert.Equal(t, NoChangeNumber, cn)

		_, err = s.Split(ctx, "missing")
		assert.ErrorIs(t, err, ErrSplitNotFound)

		found, err := s.IsInSegment(ctx, "beta_users", "key")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("update splits", func(t *testing.T) {
		s := newStorage(t)

		checkout, err := SplitFromJSON([]byte(testSplitJSON))
		require.NoError(t, err)
		other := Split{Name: "other", Status: StatusActive, ChangeNumber: 5}
		require.NoError(t, s.UpdateSplits(ctx, []Split{checkout, other}, nil, 10))

		names, err := s.SplitNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"checkout_flow", "other"}, names)

		segments, err := s.SegmentNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"beta_users", "employees"}, segments)

		require.NoError(t, s.UpdateSplits(ctx, nil, []string{"other"}, 20))
		names, err = s.SplitNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"checkout_flow"}, names)

		cn, err := s.SplitsChangeNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(20), cn)
	})

	t.Run("kill split", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.UpdateSplits(ctx, []Split{{Name: "flag", Status: StatusActive, DefaultTreatment: "on", ChangeNumber: 100}}, nil, 100))

		// Older kills are ignored
		require.NoError(t, s.KillSplit(ctx, "flag", "off", 90))
		split, err := s.Split(ctx, "flag")
		require.NoError(t, err)
		assert.False(t, split.Killed)

		require.NoError(t, s.KillSplit(ctx, "flag", "off", 110))
		split, err = s.Split(ctx, "flag")
		require.NoError(t, err)
		assert.True(t, split.Killed)
		assert.Equal(t, "off", split.DefaultTreatment)
		assert.Equal(t, int64(110), split.ChangeNumber)

		// Unknown splits are not created
		require.NoError(t, s.KillSplit(ctx, "missing", "off", 110))
		_, err = s.Split(ctx, "missing")
		assert.ErrorIs(t, err, ErrSplitNotFound)
	})

	t.Run("update segment", func(t *testing.T) {
		s := newStorage(t)

		require.NoError(t, s.UpdateSegment(ctx, "beta_users", []string{"a", "b"}, nil, 1))
		require.NoError(t, s.UpdateSegment(ctx, "beta_users", []string{"c"}, []string{"a"}, 2))

		for key, want := range map[string]bool{"a": false, "b": true, "c": true} {
			found, err := s.IsInSegment(ctx, "beta_users", key)
			require.NoError(t, err)
			assert.Equal(t, want, found, key)
		}

		cn, err := s.SegmentChangeNumber(ctx, "beta_users")
		require.NoError(t, err)
		assert.Equal(t, int64(2), cn)
	})
}
