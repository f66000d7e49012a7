package sse

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

const occupancyEventName = "[meta]occupancy"

// ErrMalformedFrame is wrapped by every parse failure
var ErrMalformedFrame = errors.New("malformed frame")

// ParseError describes why a frame could not be decoded
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedFrame, e.Reason)
}

func (*ParseError) Unwrap() error {
	return ErrMalformedFrame
}

func parseErrorf(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// NotificationParser decodes raw frame payloads into notifications
type NotificationParser interface {
	// ParseMessage decodes the payload of a `message` event
	ParseMessage(payload string) (Notification, error)

	// ParseError decodes the payload of an `error` event
	ParseError(payload string) (ErrorNotification, error)
}

type notificationParser struct{}

// NewNotificationParser returns the default parser. It holds no state.
func NewNotificationParser() NotificationParser {
	return notificationParser{}
}

// ParseMessage decodes `{id, clientId, timestamp, encoding, channel, data, name?}`
// where data is itself a JSON document encoded as a string
func (notificationParser) ParseMessage(payload string) (Notification, error) {
	if !gjson.Valid(payload) {
		return nil, parseErrorf("payload is not valid JSON")
	}

	outer := gjson.GetMany(payload, "id", "clientId", "timestamp", "encoding", "channel", "data", "name")
	envelope := Envelope{
		ID:        outer[0].String(),
		ClientID:  outer[1].String(),
		Timestamp: outer[2].Int(),
		Encoding:  outer[3].String(),
		Chan:      outer[4].String(),
	}

	data := outer[5]
	if data.Type != gjson.String {
		return nil, parseErrorf("missing data field")
	}
	if !gjson.Valid(data.Str) {
		return nil, parseErrorf("data field is not valid JSON")
	}

	if outer[6].Str == occupancyEventName {
		return parseOccupancy(envelope, data.Str)
	}

	notificationType := NotificationType(gjson.Get(data.Str, "type").String())
	switch notificationType {
	case TypeSplitUpdate:
		cn, err := requireInt(data.Str, "changeNumber")
		if err != nil {
			return nil, err
		}
		return FlagUpdate{Envelope: envelope, ChangeNumber: cn}, nil
	case TypeSplitKill:
		cn, err := requireInt(data.Str, "changeNumber")
		if err != nil {
			return nil, err
		}
		name, err := requireString(data.Str, "splitName")
		if err != nil {
			return nil, err
		}
		treatment, err := requireString(data.Str, "defaultTreatment")
		if err != nil {
			return nil, err
		}
		return FlagKill{Envelope: envelope, ChangeNumber: cn, SplitName: name, DefaultTreatment: treatment}, nil
	case TypeSegmentUpdate:
		cn, err := requireInt(data.Str, "changeNumber")
		if err != nil {
			return nil, err
		}
		name, err := requireString(data.Str, "segmentName")
		if err != nil {
			return nil, err
		}
		return SegmentUpdate{Envelope: envelope, ChangeNumber: cn, SegmentName: name}, nil
	case TypeControl:
		controlType, err := requireString(data.Str, "controlType")
		if err != nil {
			return nil, err
		}
		switch ControlType(controlType) {
		case ControlStreamingPaused, ControlStreamingResumed, ControlStreamingDisabled:
			return ControlNotification{Envelope: envelope, ControlType: ControlType(controlType)}, nil
		default:
			return nil, parseErrorf("unknown control type %q", controlType)
		}
	case "":
		return nil, parseErrorf("missing notification type")
	default:
		return nil, parseErrorf("unknown notification type %q", notificationType)
	}
}

// ParseError decodes `{message, code, statusCode, href}`
func (notificationParser) ParseError(payload string) (ErrorNotification, error) {
	if !gjson.Valid(payload) {
		return ErrorNotification{}, parseErrorf("error payload is not valid JSON")
	}

	code, err := requireInt(payload, "code")
	if err != nil {
		return ErrorNotification{}, err
	}

	fields := gjson.GetMany(payload, "message", "statusCode", "href")
	return ErrorNotification{
		Message:    fields[0].String(),
		Code:       int(code),
		StatusCode: int(fields[1].Int()),
		Href:       fields[2].String(),
	}, nil
}

func parseOccupancy(envelope Envelope, data string) (Notification, error) {
	publishers, err := requireInt(data, "metrics.publishers")
	if err != nil {
		return nil, err
	}
	return OccupancyNotification{Envelope: envelope, Publishers: int(publishers)}, nil
}

func requireInt(json, path string) (int64, error) {
	value := gjson.Get(json, path)
	if value.Type != gjson.Number {
		return 0, parseErrorf("missing or non numeric field %q", path)
	}
	return value.Int(), nil
}

func requireString(json, path string) (string, error) {
	value := gjson.Get(json, path)
	if value.Type != gjson.String || value.Str == "" {
		return "", parseErrorf("missing field %q", path)
	}
	return value.Str, nil
}
