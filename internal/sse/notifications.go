package sse

import "fmt"

// NotificationType is the discriminator carried in the `type` field of a
// notification's data envelope
type NotificationType string

const (
	// TypeSplitUpdate signals that a flag definition changed
	TypeSplitUpdate NotificationType = "SPLIT_UPDATE"

	// TypeSplitKill signals that a flag was killed and must serve its default treatment
	TypeSplitKill NotificationType = "SPLIT_KILL"

	// TypeSegmentUpdate signals that a segment's membership changed
	TypeSegmentUpdate NotificationType = "SEGMENT_UPDATE"

	// TypeControl carries streaming control directives
	TypeControl NotificationType = "CONTROL"

	// TypeOccupancy carries publisher counts for the control channels
	TypeOccupancy NotificationType = "OCCUPANCY"

	// TypeError is used for error frames sent by the streaming server
	TypeError NotificationType = "ERROR"
)

// ControlType is the directive carried by a CONTROL notification
type ControlType string

const (
	// ControlStreamingPaused asks clients to stop relying on the stream temporarily
	ControlStreamingPaused ControlType = "STREAMING_PAUSED"

	// ControlStreamingResumed lifts a previous pause
	ControlStreamingResumed ControlType = "STREAMING_RESUMED"

	// ControlStreamingDisabled asks clients to shut streaming down for good
	ControlStreamingDisabled ControlType = "STREAMING_DISABLED"
)

// Notification is a typed message decoded from one stream frame.
// Notifications are values and are never modified after parsing.
type Notification interface {
	// Type returns the notification discriminator
	Type() NotificationType

	// Channel returns the channel the notification was published on
	Channel() string
}

// Envelope holds the fields shared by every message notification
type Envelope struct {
	ID        string
	ClientID  string
	Timestamp int64
	Encoding  string
	Chan      string
}

// Channel returns the channel the notification was published on
func (e Envelope) Channel() string {
	return e.Chan
}

// FlagUpdate announces a new flag change number
type FlagUpdate struct {
	Envelope
	ChangeNumber int64
}

// Type implements Notification
func (FlagUpdate) Type() NotificationType { return TypeSplitUpdate }

func (n FlagUpdate) String() string {
	return fmt.Sprintf("%s{changeNumber=%d}", TypeSplitUpdate, n.ChangeNumber)
}

// FlagKill announces that a flag was killed at the given change number
type FlagKill struct {
	Envelope
	ChangeNumber     int64
	SplitName        string
	DefaultTreatment string
}

// Type implements Notification
func (FlagKill) Type() NotificationType { return TypeSplitKill }

// SegmentUpdate announces a new change number for one segment
type SegmentUpdate struct {
	Envelope
	ChangeNumber int64
	SegmentName  string
}

// Type implements Notification
func (SegmentUpdate) Type() NotificationType { return TypeSegmentUpdate }

// ControlNotification carries a streaming control directive
type ControlNotification struct {
	Envelope
	ControlType ControlType
}

// Type implements Notification
func (ControlNotification) Type() NotificationType { return TypeControl }

// OccupancyNotification reports how many publishers are attached to a control channel
type OccupancyNotification struct {
	Envelope
	Publishers int
}

// Type implements Notification
func (OccupancyNotification) Type() NotificationType { return TypeOccupancy }

// ErrorNotification is an error frame sent by the streaming server.
// Href is a documentation link and is only logged.
type ErrorNotification struct {
	Message    string
	Code       int
	StatusCode int
	Href       string
}

// Type implements Notification
func (ErrorNotification) Type() NotificationType { return TypeError }

// Channel implements Notification; error frames are not bound to a channel
func (ErrorNotification) Channel() string { return "" }

func (e ErrorNotification) Error() string {
	return fmt.Sprintf("streaming error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsRetryable reports whether the error can be recovered by reopening the
// stream with the same credentials. Codes 50000-59999 are transient server
// side failures. Token errors (40140-40149) and every other code require new
// credentials or a protocol change and are not retryable.
func (e ErrorNotification) IsRetryable() bool {
	return e.Code >= 50000 && e.Code <= 59999
}
