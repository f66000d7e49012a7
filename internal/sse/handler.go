package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/flagsync/internal/telemetry"
)

const (
	// DefaultReconnectBackoffBase is the first delay before reopening a failed stream
	DefaultReconnectBackoffBase = time.Second

	// DefaultReconnectBackoffMax caps the delay between reconnect attempts
	DefaultReconnectBackoffMax = 30 * time.Minute
)

// HandlerOption configures the SSE handler
type HandlerOption func(*Handler)

// WithReconnectBackoff sets the base and maximum reconnect delays
func WithReconnectBackoff(base, maxDelay time.Duration) HandlerOption {
	return func(h *Handler) {
		if base > 0 {
			h.backoffBase = base
		}
		if maxDelay > 0 {
			h.backoffMax = maxDelay
		}
	}
}

// WithHandlerMetrics records scheduled reconnects
func WithHandlerMetrics(metrics *telemetry.PushMetrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// Handler supervises the event source client and the update workers.
// While started, a supervisor goroutine reopens the stream with exponential
// backoff whenever the status tracker asks for a reconnect.
type Handler struct {
	client  EventSourceClient
	tracker *StatusTracker
	keeper  *NotificationKeeper
	workers *Workers
	metrics *telemetry.PushMetrics

	backoffBase time.Duration
	backoffMax  time.Duration

	mu       sync.Mutex
	token    string
	channels string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHandler creates a stopped handler. keeper may be nil.
func NewHandler(
	client EventSourceClient,
	tracker *StatusTracker,
	keeper *NotificationKeeper,
	workers *Workers,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		client:      client,
		tracker:     tracker,
		keeper:      keeper,
		workers:     workers,
		backoffBase: DefaultReconnectBackoffBase,
		backoffMax:  DefaultReconnectBackoffMax,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start opens the stream with the given credentials and starts the
// supervisor. It returns whether the stream was established; on success the
// update workers are started too.
func (h *Handler) Start(token, channels string) bool {
	h.mu.Lock()
	h.token = token
	h.channels = channels
	if h.cancel == nil {
		h.ctx, h.cancel = context.WithCancel(context.Background())
		h.done = make(chan struct{})
		go h.supervise(h.ctx, h.done)
	}
	ctx := h.ctx
	h.mu.Unlock()

	return h.connect(ctx)
}

// Stop closes the stream, stops the supervisor and the workers and resets
// the push status. It is safe to call when not started.
func (h *Handler) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.ctx = nil
	h.cancel = nil
	h.done = nil
	h.mu.Unlock()

	if cancel != nil {
		// Cancelling aborts any attempt in flight, including one still
		// waiting for the client, before it can report CONNECTED
		cancel()
		<-done
	}
	h.client.Stop()
	h.workers.Stop()
	h.tracker.Reset()
}

// StartWorkers starts the update workers
func (h *Handler) StartWorkers() {
	h.workers.Start()
}

// StopWorkers stops the update workers, keeping the stream open
func (h *Handler) StopWorkers() {
	h.workers.Stop()
}

func (h *Handler) connect(ctx context.Context) bool {
	h.mu.Lock()
	token, channels := h.token, h.channels
	h.mu.Unlock()

	if h.keeper != nil {
		h.keeper.Reset()
	}
	if !h.client.Start(ctx, channels, token) {
		return false
	}
	h.workers.Start()
	return true
}

func (h *Handler) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.backoffBase
	b.MaxInterval = h.backoffMax

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.tracker.ReconnectRequests():
		}

		for {
			delay := b.NextBackOff()
			if delay == backoff.Stop {
				delay = h.backoffMax
			}
			h.metrics.RecordReconnect(ctx)
			slog.Info("Reconnecting stream", "delay", delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if h.connect(ctx) {
				b.Reset()
				break
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}
