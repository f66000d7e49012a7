package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/flagsync/internal/httpclient"
	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/telemetry"
)

const (
	// DefaultConnectTimeout bounds the time Start waits for the stream to open
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout closes a stream that sent nothing, keepalives
	// included, for this long
	DefaultReadTimeout = 70 * time.Second

	// ProtocolVersion is sent as the `v` query parameter
	ProtocolVersion = "1.1"

	streamPath = "event-stream"
)

// EventSourceClient owns at most one streaming connection at a time
type EventSourceClient interface {
	// Start closes any open connection and opens a new one subscribed to
	// channels. It returns whether the stream was established. Cancelling
	// ctx aborts the attempt and closes the stream without any status being
	// reported.
	Start(ctx context.Context, channels, token string) bool

	// Stop closes the open connection, if any. No notification is delivered
	// once Stop returns.
	Stop()
}

// EventSourceOption configures the event source client
type EventSourceOption func(*eventSourceClient)

// WithConnectTimeout overrides DefaultConnectTimeout
func WithConnectTimeout(timeout time.Duration) EventSourceOption {
	return func(c *eventSourceClient) {
		if timeout > 0 {
			c.connectTimeout = timeout
		}
	}
}

// WithReadTimeout overrides DefaultReadTimeout
func WithReadTimeout(timeout time.Duration) EventSourceOption {
	return func(c *eventSourceClient) {
		if timeout > 0 {
			c.readTimeout = timeout
		}
	}
}

// WithHTTPClient sets the HTTP client used to open streams. It must not set
// a request timeout since streams are long-lived.
func WithHTTPClient(client *http.Client) EventSourceOption {
	return func(c *eventSourceClient) {
		c.httpClient = client
	}
}

// WithEventSourceMetrics records connection attempts and error frames
func WithEventSourceMetrics(metrics *telemetry.PushMetrics) EventSourceOption {
	return func(c *eventSourceClient) {
		c.metrics = metrics
	}
}

type eventSourceClient struct {
	streamingURL   string
	httpClient     *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration

	parser    NotificationParser
	processor NotificationProcessor
	tracker   *StatusTracker
	metrics   *telemetry.PushMetrics

	// startMu serializes Start calls; Stop only takes mu so it can abort
	// an attempt in progress
	startMu sync.Mutex
	mu      sync.Mutex
	conn    *streamConnection
}

// NewEventSourceClient creates a client opening streams under streamingURL
func NewEventSourceClient(
	streamingURL string,
	parser NotificationParser,
	processor NotificationProcessor,
	tracker *StatusTracker,
	opts ...EventSourceOption,
) EventSourceClient {
	c := &eventSourceClient{
		streamingURL:   streamingURL,
		httpClient:     &http.Client{},
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		parser:         parser,
		processor:      processor,
		tracker:        tracker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// streamConnection is one physical attempt to open the stream. It is never
// reused: every Start creates a new one after the previous one is released.
type streamConnection struct {
	id      string
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
	logger  *slog.Logger
}

// abandoned reports whether the connection was closed on purpose, by Stop
// or by cancelling the context given to Start
func (s *streamConnection) abandoned() bool {
	return s.stopped.Load() || s.parent.Err() != nil
}

func newStreamConnection(parent context.Context) *streamConnection {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &streamConnection{
		id:     id,
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: slog.With("connection_id", id),
	}
}

func (c *eventSourceClient) Start(ctx context.Context, channels, token string) bool {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.Stop()
	if ctx.Err() != nil {
		return false
	}
	c.tracker.HandleSseStatus(status.PushStatusConnecting)

	conn := newStreamConnection(ctx)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	conn.logger.Info("Opening stream", "url", c.streamingURL)
	resp, err := c.connect(conn, channels, token)

	// The outcome is reported under mu so a concurrent Stop either
	// happens-before the report, and suppresses it, or waits for it
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn || ctx.Err() != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		if c.conn == conn {
			c.conn = nil
		}
		conn.cancel()
		close(conn.done)
		conn.logger.Info("Stream connection aborted")
		return false
	}
	if err != nil {
		c.conn = nil
		c.metrics.RecordConnection(conn.ctx, false)
		conn.cancel()
		close(conn.done)
		conn.logger.Error("Failed to open stream", "error", err)
		c.tracker.HandleSseStatus(status.PushStatusNonRetryableError)
		return false
	}

	c.metrics.RecordConnection(conn.ctx, true)
	conn.logger.Info("Stream connected")
	c.tracker.HandleSseStatus(status.PushStatusConnected)

	go c.read(conn, resp.Body)
	return true
}

func (c *eventSourceClient) Stop() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.stopped.Store(true)
	conn.cancel()
	<-conn.done
	conn.logger.Info("Stream stopped")
}

func (c *eventSourceClient) connect(conn *streamConnection, channels, token string) (*http.Response, error) {
	streamURL, err := buildStreamURL(c.streamingURL, channels, token)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(conn.ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", httpclient.UserAgent)

	timer := time.AfterFunc(c.connectTimeout, conn.cancel)
	resp, err := c.httpClient.Do(req)
	timedOut := !timer.Stop()
	if err != nil {
		if timedOut {
			return nil, fmt.Errorf("stream not established within %s", c.connectTimeout)
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if timedOut {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream not established within %s", c.connectTimeout)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		// The query carries the access token, so only the base URL is reported
		return nil, httpclient.NewHTTPError(resp.StatusCode, c.streamingURL, resp.Status)
	}
	return resp, nil
}

// buildStreamURL returns {base}/event-stream?channels=..&accessToken=..&v=1.1
func buildStreamURL(base, channels, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid streaming URL: %w", err)
	}
	u = u.JoinPath(streamPath)

	q := u.Query()
	q.Set("channels", channels)
	q.Set("accessToken", token)
	q.Set("v", ProtocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *eventSourceClient) read(conn *streamConnection, body io.ReadCloser) {
	defer close(conn.done)
	defer func() {
		_ = body.Close()
	}()

	idle := time.AfterFunc(c.readTimeout, conn.cancel)
	defer idle.Stop()

	err := readFrames(body,
		func() { idle.Reset(c.readTimeout) },
		func(f frame) bool {
			if conn.abandoned() {
				return false
			}
			c.dispatch(conn, f)
			return true
		},
	)

	if conn.abandoned() {
		return
	}
	if errors.Is(err, io.EOF) {
		conn.logger.Warn("Stream closed by server")
	} else {
		conn.logger.Warn("Stream read failed", "error", err)
	}
	c.tracker.HandleSseStatus(status.PushStatusDisconnected)
}

func (c *eventSourceClient) dispatch(conn *streamConnection, f frame) {
	switch f.Event {
	case eventMessage:
		n, err := c.parser.ParseMessage(f.Data)
		if err != nil {
			conn.logger.Warn("Dropping malformed frame", "event_id", f.ID, "error", err)
			c.metrics.RecordNotification(conn.ctx, "UNKNOWN", telemetry.NotificationMalformed)
			return
		}
		conn.logger.Debug("Frame received", "type", n.Type(), "channel", n.Channel())
		c.processor.Process(n)
	case eventError:
		e, err := c.parser.ParseError(f.Data)
		if err != nil {
			conn.logger.Warn("Dropping malformed error frame", "error", err)
			c.metrics.RecordNotification(conn.ctx, string(TypeError), telemetry.NotificationMalformed)
			return
		}
		c.metrics.RecordStreamingError(conn.ctx, e.Code, e.IsRetryable())
		c.tracker.HandleIncomingAblyError(e)
	default:
		conn.logger.Debug("Ignoring frame", "event", f.Event)
	}
}
