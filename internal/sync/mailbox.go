package sync

import (
	stdsync "sync"

	"github.com/stacklok/flagsync/internal/sse"
)

type eventKind int

const (
	eventStart eventKind = iota
	eventShutdown
	eventStreamingAvailable
	eventStreamingDisabled
	eventStreamingShutdown
	eventConnected
	eventDisconnect
	eventErrorNotification
	eventFlush
)

func (k eventKind) String() string {
	switch k {
	case eventStart:
		return "start"
	case eventShutdown:
		return "shutdown"
	case eventStreamingAvailable:
		return "streaming_available"
	case eventStreamingDisabled:
		return "streaming_disabled"
	case eventStreamingShutdown:
		return "streaming_shutdown"
	case eventConnected:
		return "connected"
	case eventDisconnect:
		return "disconnect"
	case eventErrorNotification:
		return "error_notification"
	case eventFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// event is one input to the orchestrator state machine. done, when set, is
// closed once the event has been handled.
type event struct {
	kind  eventKind
	cause sse.ErrorNotification
	done  chan struct{}
}

// mailbox is an unbounded FIFO queue. Senders never block, so feedback can
// be posted from the stream's goroutines while the orchestrator is busy
// calling into the same components.
type mailbox struct {
	mu     stdsync.Mutex
	queue  []event
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// put appends ev and reports whether it was accepted. When last is true the
// mailbox is closed after ev, atomically.
func (b *mailbox) put(ev event, last bool) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	b.closed = last
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// next blocks until an event is available
func (b *mailbox) next() event {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = event{}
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev
		}
		b.mu.Unlock()
		<-b.notify
	}
}
