package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		newVersion string
		oldVersion string
		expected   bool
	}{
		{name: "newer minor", newVersion: "1.2.0", oldVersion: "1.1.0", expected: true},
		{name: "older patch", newVersion: "1.0.1", oldVersion: "1.0.2", expected: false},
		{name: "equal", newVersion: "1.0.0", oldVersion: "1.0.0", expected: false},
		{name: "release after prerelease", newVersion: "1.0.0", oldVersion: "1.0.0-rc.1", expected: true},
		{name: "v prefix", newVersion: "v2.0.0", oldVersion: "v1.9.9", expected: true},
		{name: "development builds", newVersion: "build-bbbbbbbb", oldVersion: "build-aaaaaaaa", expected: true},
		{name: "release against development build", newVersion: "1.0.0", oldVersion: "build-aaaaaaaa", expected: false},
		{name: "empty old version", newVersion: "1.0.0", oldVersion: "", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsNewerVersion(tt.newVersion, tt.oldVersion))
		})
	}
}

func TestIsRelease(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRelease("1.4.0"))
	assert.True(t, IsRelease("v1.4.0"))
	assert.False(t, IsRelease("1.4.0-rc.2"))
	assert.False(t, IsRelease("build-1a2b3c4d"))
}
