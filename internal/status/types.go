package status

import "time"

// SyncMode identifies which fetch strategy the orchestrator has active
type SyncMode string

const (
	// SyncModeStreaming means updates are delivered over the push stream
	SyncModeStreaming SyncMode = "STREAMING"

	// SyncModePolling means updates are fetched periodically
	SyncModePolling SyncMode = "POLLING"
)

// PushStatus represents the health of the push (SSE) connection
type PushStatus string

const (
	// PushStatusConnecting means a connection attempt is in flight
	PushStatusConnecting PushStatus = "CONNECTING"

	// PushStatusConnected means the stream is open and healthy
	PushStatusConnected PushStatus = "CONNECTED"

	// PushStatusRetryableError means the stream failed with a transient error
	// and will be reopened without leaving streaming mode
	PushStatusRetryableError PushStatus = "RETRYABLE_ERROR"

	// PushStatusNonRetryableError means the stream failed in a way that
	// cannot be fixed by reconnecting with the same credentials
	PushStatusNonRetryableError PushStatus = "NONRETRYABLE_ERROR"

	// PushStatusDisconnected means the stream was lost or closed
	PushStatusDisconnected PushStatus = "DISCONNECTED"
)

// IsError reports whether the status is one of the error states
func (s PushStatus) IsError() bool {
	return s == PushStatusRetryableError || s == PushStatusNonRetryableError
}

// Snapshot is a point-in-time view of the synchronization state
type Snapshot struct {
	// Mode is the fetch mode the orchestrator last settled in
	Mode SyncMode `json:"mode" yaml:"mode"`

	// PushStatus is the last status reported by the push status tracker
	PushStatus PushStatus `json:"pushStatus" yaml:"pushStatus"`

	// SplitsChangeNumber is the change number of the local split cache
	SplitsChangeNumber int64 `json:"splitsChangeNumber" yaml:"splitsChangeNumber"`

	// LastTransition is the time of the last mode transition
	LastTransition *time.Time `json:"lastTransition,omitempty" yaml:"lastTransition,omitempty"`

	// TokenExpiresAt is the expiry of the streaming token in use, if any
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty" yaml:"tokenExpiresAt,omitempty"`

	// TransitionCount is the number of mode transitions since start
	TransitionCount int `json:"transitionCount" yaml:"transitionCount"`

	// Version is the flagsync version that produced the snapshot
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}
