package sse

import (
	"log/slog"
	"sync"

	"github.com/stacklok/flagsync/internal/status"
)

// FeedbackListener receives connection health changes reported by the tracker
//
//go:generate mockgen -destination=mocks/mock_feedback_listener.go -package=mocks -source=tracker.go FeedbackListener
type FeedbackListener interface {
	// OnConnected is called once per connection when the stream becomes healthy
	OnConnected()

	// OnDisconnect is called when the stream is lost or could not be opened
	OnDisconnect()

	// OnErrorNotification is called when the server sends a non-retryable error frame
	OnErrorNotification(ErrorNotification)
}

// StatusTracker owns the push status and turns status reports into feedback.
// Each connection attempt starts with CONNECTING; after that CONNECTED is
// reported at most once and only the first terminal status is acted upon.
type StatusTracker struct {
	mu         sync.Mutex
	status     status.PushStatus
	terminated bool
	listener   FeedbackListener
	reconnect  chan struct{}
}

// NewStatusTracker creates a tracker reporting to listener
func NewStatusTracker(listener FeedbackListener) *StatusTracker {
	return &StatusTracker{
		status:     status.PushStatusDisconnected,
		terminated: true,
		listener:   listener,
		reconnect:  make(chan struct{}, 1),
	}
}

// Status returns the current push status
func (t *StatusTracker) Status() status.PushStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// ReconnectRequests delivers a value whenever the tracker decides the stream
// should be reopened with the same credentials. Requests are coalesced.
func (t *StatusTracker) ReconnectRequests() <-chan struct{} {
	return t.reconnect
}

// Reset returns the tracker to the disconnected state and discards any
// pending reconnect request. No feedback is emitted.
func (t *StatusTracker) Reset() {
	t.mu.Lock()
	t.status = status.PushStatusDisconnected
	t.terminated = true
	t.mu.Unlock()

	select {
	case <-t.reconnect:
	default:
	}
}

// HandleSseStatus applies a status reported by the event source client
func (t *StatusTracker) HandleSseStatus(s status.PushStatus) {
	t.mu.Lock()

	var (
		feedback         func()
		requestReconnect bool
	)
	switch s {
	case status.PushStatusConnecting:
		t.status = s
		t.terminated = false
	case status.PushStatusConnected:
		if t.terminated || t.status == status.PushStatusConnected {
			t.mu.Unlock()
			return
		}
		t.status = s
		feedback = t.listener.OnConnected
	case status.PushStatusRetryableError:
		if !t.terminate(s) {
			t.mu.Unlock()
			return
		}
		requestReconnect = true
	case status.PushStatusNonRetryableError:
		if !t.terminate(s) {
			t.mu.Unlock()
			return
		}
		feedback = t.listener.OnDisconnect
	case status.PushStatusDisconnected:
		if !t.terminate(s) {
			t.mu.Unlock()
			return
		}
		feedback = t.listener.OnDisconnect
		requestReconnect = true
	default:
		t.mu.Unlock()
		slog.Warn("Ignoring unknown push status", "push_status", s)
		return
	}
	t.mu.Unlock()

	slog.Debug("Push status changed", "push_status", s)
	t.dispatch(feedback, requestReconnect)
}

// HandleIncomingAblyError classifies an error frame sent by the server.
// Retryable errors only reopen the stream; anything else is surfaced to the
// listener so it can rebuild the push subsystem from scratch.
func (t *StatusTracker) HandleIncomingAblyError(e ErrorNotification) {
	if e.IsRetryable() {
		slog.Warn("Retryable streaming error received",
			"code", e.Code, "status_code", e.StatusCode, "message", e.Message)
		t.HandleSseStatus(status.PushStatusRetryableError)
		return
	}

	t.mu.Lock()
	if !t.terminate(status.PushStatusNonRetryableError) {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	slog.Error("Non retryable streaming error received",
		"code", e.Code, "status_code", e.StatusCode, "message", e.Message, "href", e.Href)
	t.listener.OnErrorNotification(e)
}

// terminate records a terminal status for the current attempt and reports
// whether it is the first one. Callers hold t.mu.
func (t *StatusTracker) terminate(s status.PushStatus) bool {
	if t.terminated {
		return false
	}
	t.status = s
	t.terminated = true
	return true
}

func (t *StatusTracker) dispatch(feedback func(), requestReconnect bool) {
	if requestReconnect {
		select {
		case t.reconnect <- struct{}{}:
		default:
		}
	}
	if feedback != nil {
		feedback()
	}
}
