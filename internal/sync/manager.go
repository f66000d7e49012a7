package sync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/stacklok/flagsync/internal/sse"
	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks -source=manager.go Synchronizer,PushManager,SSEHandler

// Synchronizer fetches flag data from the backend
type Synchronizer interface {
	// SyncAll runs a full resync. It may be called repeatedly and must not block
	// on the fetch itself.
	SyncAll()

	// StartPeriodicFetching starts polling. Idempotent.
	StartPeriodicFetching()

	// StopPeriodicFetching stops polling. Idempotent.
	StopPeriodicFetching()
}

// PushManager owns the push subsystem lifetime
type PushManager interface {
	Start()
	Stop()
}

// SSEHandler controls the workers applying streamed updates
type SSEHandler interface {
	StartWorkers()
	StopWorkers()
}

// TransitionObserver is called after every event that settles the manager in
// a mode. from and to may be equal.
type TransitionObserver func(from, to status.SyncMode)

// Option configures the sync manager
type Option func(*Manager)

// WithSyncMetrics records mode transitions on m
func WithSyncMetrics(m *telemetry.SyncMetrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithTransitionObserver registers fn to be told about mode transitions.
// fn runs on the manager goroutine and must not call back into the manager
// synchronously.
func WithTransitionObserver(fn TransitionObserver) Option {
	return func(mgr *Manager) {
		mgr.observer = fn
	}
}

// Manager switches the SDK between streaming and polling. Every input is
// queued and handled in order by a single goroutine, so transitions never
// interleave.
type Manager struct {
	streamingEnabled bool
	synchronizer     Synchronizer
	push             PushManager
	sse              SSEHandler
	metrics          *telemetry.SyncMetrics
	observer         TransitionObserver

	inbox *mailbox
	mode  atomic.Value
	done  chan struct{}

	// Owned by the run goroutine
	started    bool
	pushActive bool
}

// New creates a sync manager and starts its event loop. Nothing is fetched
// until Start is called.
func New(
	streamingEnabled bool,
	synchronizer Synchronizer,
	push PushManager,
	handler SSEHandler,
	opts ...Option,
) *Manager {
	m := &Manager{
		streamingEnabled: streamingEnabled,
		synchronizer:     synchronizer,
		push:             push,
		sse:              handler,
		inbox:            newMailbox(),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.mode.Store(status.SyncModePolling)

	go m.run()
	return m
}

// Start brings up synchronization in the configured mode and returns once
// the transition has been applied. Only the first call has an effect.
func (m *Manager) Start() {
	m.call(eventStart, false)
}

// Shutdown stops polling and the push subsystem and returns once they are
// stopped. Events submitted afterwards are ignored.
func (m *Manager) Shutdown() {
	m.call(eventShutdown, true)
	<-m.done
}

// Mode returns the mode the manager last settled in
func (m *Manager) Mode() status.SyncMode {
	return m.mode.Load().(status.SyncMode)
}

// OnConnected is called when the stream is open and healthy
func (m *Manager) OnConnected() {
	m.post(event{kind: eventConnected})
}

// OnDisconnect is called when the stream is lost
func (m *Manager) OnDisconnect() {
	m.post(event{kind: eventDisconnect})
}

// OnErrorNotification is called when the stream reports an error that cannot
// be recovered by reconnecting
func (m *Manager) OnErrorNotification(cause sse.ErrorNotification) {
	m.post(event{kind: eventErrorNotification, cause: cause})
}

// OnStreamingAvailable is called when publishers are back on the control channels
func (m *Manager) OnStreamingAvailable() {
	m.post(event{kind: eventStreamingAvailable})
}

// OnStreamingDisabled is called when streaming is paused or no token could be
// obtained
func (m *Manager) OnStreamingDisabled() {
	m.post(event{kind: eventStreamingDisabled})
}

// OnStreamingShutdown is called when the server tells the SDK to stop
// streaming for good
func (m *Manager) OnStreamingShutdown() {
	m.post(event{kind: eventStreamingShutdown})
}

// flush returns once every event posted before it has been handled
func (m *Manager) flush() {
	m.call(eventFlush, false)
}

func (m *Manager) post(ev event) {
	if !m.inbox.put(ev, false) {
		slog.Debug("Sync manager is shut down, dropping event", "event", ev.kind.String())
	}
}

func (m *Manager) call(kind eventKind, last bool) {
	ev := event{kind: kind, done: make(chan struct{})}
	if !m.inbox.put(ev, last) {
		return
	}
	<-ev.done
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		ev := m.inbox.next()
		m.handle(ev)
		if ev.done != nil {
			close(ev.done)
		}
		if ev.kind == eventShutdown {
			return
		}
	}
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case eventFlush:
		return
	case eventStart:
		if m.started {
			slog.Debug("Sync manager already started")
			return
		}
		m.started = true
		if m.streamingEnabled {
			m.startStreaming()
			m.settle(ev, status.SyncModeStreaming)
			return
		}
		m.synchronizer.StartPeriodicFetching()
		m.settle(ev, status.SyncModePolling)
		return
	case eventShutdown:
		slog.Info("Shutting down sync manager")
		m.synchronizer.StopPeriodicFetching()
		m.push.Stop()
		m.pushActive = false
		return
	}

	// Everything below is push feedback, which is stale once push is off
	if !m.pushActive {
		slog.Debug("Ignoring push event while push is inactive", "event", ev.kind.String())
		return
	}

	switch ev.kind {
	case eventStreamingAvailable:
		m.synchronizer.StopPeriodicFetching()
		m.synchronizer.SyncAll()
		m.sse.StartWorkers()
		m.settle(ev, status.SyncModeStreaming)
	case eventStreamingDisabled:
		m.sse.StopWorkers()
		m.synchronizer.StartPeriodicFetching()
		m.settle(ev, status.SyncModePolling)
	case eventStreamingShutdown:
		m.push.Stop()
		m.pushActive = false
		m.sse.StopWorkers()
		m.synchronizer.StartPeriodicFetching()
		m.settle(ev, status.SyncModePolling)
	case eventErrorNotification:
		slog.Warn("Restarting push after error notification",
			"code", ev.cause.Code, "status_code", ev.cause.StatusCode, "message", ev.cause.Message)
		m.push.Stop()
		if m.Mode() == status.SyncModePolling {
			m.synchronizer.StopPeriodicFetching()
		}
		m.startStreaming()
		m.settle(ev, status.SyncModeStreaming)
	case eventConnected:
		m.synchronizer.StopPeriodicFetching()
		m.synchronizer.SyncAll()
		m.settle(ev, status.SyncModeStreaming)
	case eventDisconnect:
		m.synchronizer.StartPeriodicFetching()
		m.settle(ev, status.SyncModePolling)
	}
}

func (m *Manager) startStreaming() {
	m.synchronizer.SyncAll()
	m.push.Start()
	m.pushActive = true
}

func (m *Manager) settle(ev event, to status.SyncMode) {
	from := m.Mode()
	m.mode.Store(to)
	if from != to {
		slog.Info("Sync mode changed", "from", from, "to", to, "event", ev.kind.String())
		m.metrics.RecordModeTransition(context.Background(), string(to))
	}
	if m.observer != nil {
		m.observer(from, to)
	}
}
