package sse

import (
	"context"
	"log/slog"
	"time"

	"github.com/stacklok/flagsync/internal/telemetry"
)

const changeNumberLookupTimeout = 2 * time.Second

// ChangeNumbers exposes the change numbers of the local cache
type ChangeNumbers interface {
	// SplitsChangeNumber returns the change number of the split cache
	SplitsChangeNumber(ctx context.Context) (int64, error)

	// SegmentChangeNumber returns the change number of one segment
	SegmentChangeNumber(ctx context.Context, name string) (int64, error)
}

// UpdateQueue accepts actionable updates for asynchronous processing.
// Implementations must not block.
type UpdateQueue interface {
	AddSplitUpdate(changeNumber int64)
	AddSplitKill(kill FlagKill)
	AddSegmentUpdate(name string, changeNumber int64)
}

// NotificationProcessor dispatches parsed notifications to local actions
type NotificationProcessor interface {
	// Process handles one notification. It must return quickly.
	Process(n Notification)
}

type notificationProcessor struct {
	queue   UpdateQueue
	keeper  *NotificationKeeper
	changes ChangeNumbers
	metrics *telemetry.PushMetrics
}

// ProcessorOption configures the notification processor
type ProcessorOption func(*notificationProcessor)

// WithProcessorMetrics records processed notifications
func WithProcessorMetrics(metrics *telemetry.PushMetrics) ProcessorOption {
	return func(p *notificationProcessor) {
		p.metrics = metrics
	}
}

// NewNotificationProcessor creates a processor that queues actionable
// updates and hands control traffic to keeper
func NewNotificationProcessor(
	queue UpdateQueue,
	keeper *NotificationKeeper,
	changes ChangeNumbers,
	opts ...ProcessorOption,
) NotificationProcessor {
	p := &notificationProcessor{
		queue:   queue,
		keeper:  keeper,
		changes: changes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process routes a notification. Updates whose change number is not newer
// than the local cache are dropped; control and occupancy notifications only
// update the keeper.
func (p *notificationProcessor) Process(n Notification) {
	ctx := context.Background()
	outcome := telemetry.NotificationProcessed

	switch v := n.(type) {
	case FlagUpdate:
		if p.splitsAhead(v.ChangeNumber) {
			p.queue.AddSplitUpdate(v.ChangeNumber)
		} else {
			outcome = telemetry.NotificationStale
		}
	case FlagKill:
		if p.splitsAhead(v.ChangeNumber) {
			p.queue.AddSplitKill(v)
		} else {
			outcome = telemetry.NotificationStale
		}
	case SegmentUpdate:
		if p.segmentAhead(v.SegmentName, v.ChangeNumber) {
			p.queue.AddSegmentUpdate(v.SegmentName, v.ChangeNumber)
		} else {
			outcome = telemetry.NotificationStale
		}
	case ControlNotification:
		p.keeper.HandleControl(v)
	case OccupancyNotification:
		p.keeper.HandleOccupancy(v)
	default:
		slog.Warn("Ignoring unsupported notification", "type", n.Type(), "channel", n.Channel())
		return
	}

	if outcome == telemetry.NotificationStale {
		slog.Debug("Dropping stale notification", "type", n.Type(), "channel", n.Channel())
	}
	p.metrics.RecordNotification(ctx, string(n.Type()), outcome)
}

func (p *notificationProcessor) splitsAhead(changeNumber int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), changeNumberLookupTimeout)
	defer cancel()

	current, err := p.changes.SplitsChangeNumber(ctx)
	if err != nil {
		slog.Warn("Failed to read splits change number, queueing update", "error", err)
		return true
	}
	return changeNumber > current
}

func (p *notificationProcessor) segmentAhead(name string, changeNumber int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), changeNumberLookupTimeout)
	defer cancel()

	current, err := p.changes.SegmentChangeNumber(ctx, name)
	if err != nil {
		slog.Warn("Failed to read segment change number, queueing update", "segment", name, "error", err)
		return true
	}
	return changeNumber > current
}
