package app

import (
	"github.com/stacklok/flagsync/internal/sse"
	flagsync "github.com/stacklok/flagsync/internal/sync"
)

// managerRelay forwards push feedback to the sync manager. The manager needs
// the push components at construction and they need a listener, so the relay
// is handed out first and bound once the manager exists. It must be bound
// before the manager is started.
type managerRelay struct {
	manager *flagsync.Manager
}

func (r *managerRelay) bind(m *flagsync.Manager) {
	r.manager = m
}

func (r *managerRelay) OnConnected() {
	r.manager.OnConnected()
}

func (r *managerRelay) OnDisconnect() {
	r.manager.OnDisconnect()
}

func (r *managerRelay) OnErrorNotification(n sse.ErrorNotification) {
	r.manager.OnErrorNotification(n)
}

func (r *managerRelay) OnStreamingAvailable() {
	r.manager.OnStreamingAvailable()
}

func (r *managerRelay) OnStreamingDisabled() {
	r.manager.OnStreamingDisabled()
}

func (r *managerRelay) OnStreamingShutdown() {
	r.manager.OnStreamingShutdown()
}
