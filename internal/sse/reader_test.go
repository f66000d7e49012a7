package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []frame
	}{
		{
			name:     "single message without event name",
			input:    "id: 1\ndata: {\"a\":1}\n\n",
			expected: []frame{{Event: eventMessage, ID: "1", Data: `{"a":1}`}},
		},
		{
			name:  "named events and comments",
			input: ":keepalive\n\nevent: error\ndata: {\"code\":40142}\n\nevent: message\ndata:x\n\n",
			expected: []frame{
				{Event: eventError, Data: `{"code":40142}`},
				{Event: eventMessage, Data: "x"},
			},
		},
		{
			name:     "multi line data is joined",
			input:    "data: a\ndata: b\n\n",
			expected: []frame{{Event: eventMessage, Data: "a\nb"}},
		},
		{
			name:     "unterminated frame is not emitted",
			input:    "data: a\n\ndata: partial\n",
			expected: []frame{{Event: eventMessage, Data: "a"}},
		},
		{
			name:  "frames without data are skipped",
			input: "event: message\n\nid: 7\n\n",
		},
		{
			name:     "crlf line endings",
			input:    "data: a\r\n\r\n",
			expected: []frame{{Event: eventMessage, Data: "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got []frame
			err := readFrames(strings.NewReader(tt.input), func() {}, func(f frame) bool {
				got = append(got, f)
				return true
			})
			assert.True(t, errors.Is(err, io.EOF))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReadFrames_StopsWhenEmitDeclines(t *testing.T) {
	t.Parallel()

	var count int
	err := readFrames(strings.NewReader("data: a\n\ndata: b\n\n"), func() {}, func(frame) bool {
		count++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReadFrames_ReportsActivity(t *testing.T) {
	t.Parallel()

	var lines int
	_ = readFrames(strings.NewReader(":ka\n:ka\ndata: a\n\n"), func() { lines++ }, func(frame) bool { return true })
	assert.Equal(t, 4, lines)
}

func TestReadFrames_ReaderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	err := readFrames(io.MultiReader(strings.NewReader("data: a\n"), &failingReader{err: boom}),
		func() {}, func(frame) bool { return true })
	assert.ErrorIs(t, err, boom)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestReadFrames_SkipsOversizedFrames(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", MaxFrameSize+1)
	tests := []struct {
		name     string
		input    string
		expected []frame
	}{
		{
			name:     "oversized data line",
			input:    "id: 1\ndata: " + huge + "\n\nid: 2\ndata: small\n\n",
			expected: []frame{{Event: eventMessage, ID: "2", Data: "small"}},
		},
		{
			name:     "oversized line drops the lines around it",
			input:    "event: error\ndata: a\n" + huge + "\ndata: b\n\ndata: c\n\n",
			expected: []frame{{Event: eventMessage, Data: "c"}},
		},
		{
			name:     "line at the limit is kept",
			input:    "data:" + strings.Repeat("y", MaxFrameSize-5) + "\r\n\r\n",
			expected: []frame{{Event: eventMessage, Data: strings.Repeat("y", MaxFrameSize-5)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got []frame
			err := readFrames(strings.NewReader(tt.input), func() {}, func(f frame) bool {
				got = append(got, f)
				return true
			})
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, tt.expected, got)
		})
	}
}
