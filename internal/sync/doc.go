// Package sync decides how flag data reaches the SDK: over the push stream or
// by periodic polling.
//
// # Modes
//
// The Manager is always in one of two modes:
//
//   - STREAMING: the push stream is open and updates are applied as they arrive
//   - POLLING: periodic fetching keeps the local cache fresh
//
// The initial mode is chosen once, at Start, from the streaming flag in the
// configuration. Afterwards the mode only changes in response to push events.
//
// # Events
//
// Push events come from two sources. The status tracker reports connection
// feedback (OnConnected, OnDisconnect, OnErrorNotification) and the
// notification keeper reports control signals (OnStreamingAvailable,
// OnStreamingDisabled, OnStreamingShutdown). The push manager also reports
// OnStreamingDisabled when it cannot obtain a token.
//
// Every event is queued in an unbounded mailbox and handled by one goroutine,
// so transitions are serialized and callers never block on each other.
// Start and Shutdown wait for their own event to be handled; the callbacks
// return immediately.
//
// # Transition Rules
//
// Entering STREAMING always runs a full resync first, because updates may
// have been missed while the stream was down. Entering POLLING always
// ensures periodic fetching is running. Polling is stopped whenever the
// manager settles in STREAMING, so the two are never active together.
//
// An error notification tears the push subsystem down and brings it up again
// from scratch, including a fresh token and a full resync.
//
// Push events received while the push subsystem is off (streaming disabled
// in configuration, or after a streaming shutdown) are ignored.
package sync
