package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Frame field prefixes
const (
	fieldEvent   = "event"
	fieldData    = "data"
	fieldID      = "id"
	fieldComment = ":"
)

const (
	eventMessage = "message"
	eventError   = "error"

	// MaxFrameSize is the largest line accepted from the stream, in bytes
	MaxFrameSize = 1 << 20
)

// frame is one dispatched server-sent event
type frame struct {
	Event string
	ID    string
	Data  string
}

// readFrames scans r and calls emit for every complete frame, in arrival
// order. onActivity is called for every line read, comments included, so
// callers can implement an idle timeout. A frame holding a line longer than
// MaxFrameSize is dropped whole and reading goes on with the next frame.
// Reading stops when emit returns false or r fails; a clean end of stream
// returns io.EOF.
func readFrames(r io.Reader, onActivity func(), emit func(frame) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		current  frame
		data     []string
		buf      []byte
		skipping bool
	)
	for {
		line, oversized, err := readLine(br, buf[:0])
		if err != nil {
			return err
		}
		buf = line
		onActivity()

		if oversized {
			slog.Warn("Dropping oversized frame", "limit_bytes", MaxFrameSize)
			skipping = true
			current = frame{}
			data = data[:0]
			continue
		}

		if len(line) == 0 {
			if len(data) > 0 && !skipping {
				current.Data = strings.Join(data, "\n")
				if current.Event == "" {
					current.Event = eventMessage
				}
				if !emit(current) {
					return nil
				}
			}
			skipping = false
			current = frame{}
			data = data[:0]
			continue
		}
		if skipping || bytes.HasPrefix(line, []byte(fieldComment)) {
			continue
		}

		name, value, _ := strings.Cut(string(line), ":")
		value = strings.TrimPrefix(value, " ")
		switch name {
		case fieldEvent:
			current.Event = value
		case fieldData:
			data = append(data, value)
		case fieldID:
			current.ID = value
		}
	}
}

// readLine reads one line into buf without its line ending. A line longer
// than MaxFrameSize is consumed but not kept, and reported as oversized.
// A last line without a newline is returned before io.EOF.
func readLine(br *bufio.Reader, buf []byte) ([]byte, bool, error) {
	oversized := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > MaxFrameSize+2 {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(buf) > 0 || oversized):
			// returned now, the next call reports io.EOF
		case err != nil:
			return nil, false, err
		}
		break
	}

	buf = bytes.TrimSuffix(buf, []byte("\n"))
	buf = bytes.TrimSuffix(buf, []byte("\r"))
	if len(buf) > MaxFrameSize {
		return buf[:0], true, nil
	}
	return buf, oversized, nil
}
