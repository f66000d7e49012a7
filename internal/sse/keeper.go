package sse

import (
	"log/slog"
	"strings"
	"sync"
)

const (
	controlPrimary   = "control_pri"
	controlSecondary = "control_sec"
)

// KeeperListener receives streaming availability changes derived from
// CONTROL and OCCUPANCY notifications
//
//go:generate mockgen -destination=mocks/mock_keeper_listener.go -package=mocks -source=keeper.go KeeperListener
type KeeperListener interface {
	// OnStreamingAvailable is called when the stream can be relied upon again
	OnStreamingAvailable()

	// OnStreamingDisabled is called when the stream is temporarily unusable
	OnStreamingDisabled()

	// OnStreamingShutdown is called when the server asks clients to stop streaming
	OnStreamingShutdown()
}

// NotificationKeeper tracks publisher occupancy on the control channels and
// the last control directive. It signals its listener only when the
// availability of the stream actually changes.
type NotificationKeeper struct {
	mu        sync.Mutex
	listener  KeeperListener
	primary   int
	secondary int
	paused    bool
	active    bool
	shutdown  bool
}

// NewNotificationKeeper creates a keeper that reports to listener
func NewNotificationKeeper(listener KeeperListener) *NotificationKeeper {
	k := &NotificationKeeper{listener: listener}
	k.Reset()
	return k
}

// Reset restores the state expected right after a new connection is opened:
// the primary control channel is assumed to have a publisher until the
// server says otherwise.
func (k *NotificationKeeper) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.primary = 1
	k.secondary = 0
	k.paused = false
	k.active = true
	k.shutdown = false
}

// HandleControl applies a CONTROL directive
func (k *NotificationKeeper) HandleControl(n ControlNotification) {
	k.mu.Lock()
	if k.shutdown {
		k.mu.Unlock()
		return
	}

	var signal func()
	switch n.ControlType {
	case ControlStreamingPaused:
		k.paused = true
		if k.active {
			k.active = false
			signal = k.listener.OnStreamingDisabled
		}
	case ControlStreamingResumed:
		k.paused = false
		if !k.active && k.publishers() > 0 {
			k.active = true
			signal = k.listener.OnStreamingAvailable
		}
	case ControlStreamingDisabled:
		k.shutdown = true
		k.active = false
		signal = k.listener.OnStreamingShutdown
	}
	k.mu.Unlock()

	slog.Debug("Handled control notification", "control_type", n.ControlType)
	if signal != nil {
		signal()
	}
}

// HandleOccupancy records the publisher count of one control channel
func (k *NotificationKeeper) HandleOccupancy(n OccupancyNotification) {
	channel := n.Channel()

	k.mu.Lock()
	if k.shutdown {
		k.mu.Unlock()
		return
	}

	switch {
	case strings.HasSuffix(channel, controlPrimary):
		k.primary = n.Publishers
	case strings.HasSuffix(channel, controlSecondary):
		k.secondary = n.Publishers
	default:
		k.mu.Unlock()
		slog.Debug("Ignoring occupancy for unknown channel", "channel", channel)
		return
	}

	var signal func()
	switch {
	case k.publishers() == 0 && k.active:
		k.active = false
		signal = k.listener.OnStreamingDisabled
	case k.publishers() > 0 && !k.active && !k.paused:
		k.active = true
		signal = k.listener.OnStreamingAvailable
	}
	k.mu.Unlock()

	slog.Debug("Handled occupancy notification", "channel", channel, "publishers", n.Publishers)
	if signal != nil {
		signal()
	}
}

// Active reports whether the keeper currently considers the stream usable
func (k *NotificationKeeper) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

func (k *NotificationKeeper) publishers() int {
	return k.primary + k.secondary
}
