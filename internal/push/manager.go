// Package push owns the lifetime of the push subsystem: it obtains streaming
// tokens, opens the stream through the SSE handler and replaces the token
// before it expires.
package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/telemetry"
)

const (
	// DefaultAuthBackoffBase is the first delay before retrying a failed token request
	DefaultAuthBackoffBase = time.Second

	// DefaultAuthBackoffMax caps the delay between token requests
	DefaultAuthBackoffMax = 30 * time.Minute
)

// StreamHandler opens and closes the stream
type StreamHandler interface {
	Start(token, channels string) bool
	Stop()
}

// StatusSource exposes the push status
type StatusSource interface {
	Status() status.PushStatus
}

// Listener is told when streaming cannot be used because no token could be
// obtained
type Listener interface {
	OnStreamingDisabled()
}

// Option configures the push manager
type Option func(*Manager)

// WithAuthBackoff sets the base and maximum delays between token requests
// and between failed connection attempts
func WithAuthBackoff(base, maxDelay time.Duration) Option {
	return func(m *Manager) {
		if base > 0 {
			m.backoffBase = base
		}
		if maxDelay > 0 {
			m.backoffMax = maxDelay
		}
	}
}

// WithClock overrides the time source used to schedule token refreshes
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMetrics records token request outcomes
func WithMetrics(metrics *telemetry.PushMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager brings the push subsystem up and down
type Manager struct {
	auth     Authenticator
	handler  StreamHandler
	statuses StatusSource
	listener Listener
	metrics  *telemetry.PushMetrics

	backoffBase time.Duration
	backoffMax  time.Duration
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	token  *Token
}

// NewManager creates a stopped push manager
func NewManager(
	auth Authenticator,
	handler StreamHandler,
	statuses StatusSource,
	listener Listener,
	opts ...Option,
) *Manager {
	m := &Manager{
		auth:        auth,
		handler:     handler,
		statuses:    statuses,
		listener:    listener,
		backoffBase: DefaultAuthBackoffBase,
		backoffMax:  DefaultAuthBackoffMax,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the connection loop and returns immediately. Calling Start
// while started is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	slog.Info("Push manager started")
}

// Stop cancels pending token requests and refreshes and closes the stream.
// Calling Stop when not started is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.token = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	// Abort a connection attempt in progress, then close whatever the loop
	// opened before it noticed the cancellation
	m.handler.Stop()
	<-done
	m.handler.Stop()
	slog.Info("Push manager stopped")
}

// Status returns the current push status
func (m *Manager) Status() status.PushStatus {
	return m.statuses.Status()
}

// TokenExpiry returns the expiry of the token in use, or the zero time
func (m *Manager) TokenExpiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return time.Time{}
	}
	return m.token.ExpiresAt
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.backoffBase
	b.MaxInterval = m.backoffMax

	var reported bool
	for {
		token, err := m.auth.Authenticate(ctx)
		if ctx.Err() != nil {
			return
		}
		m.metrics.RecordAuth(ctx, authOutcome(err))
		if err != nil {
			var authErr *AuthError
			retryable := !errors.As(err, &authErr) || authErr.Retryable
			slog.Error("Failed to obtain streaming token", "error", err, "retryable", retryable)

			if !reported {
				m.listener.OnStreamingDisabled()
				reported = true
			}
			if !retryable || !m.wait(ctx, m.nextDelay(b)) {
				return
			}
			continue
		}

		m.setToken(token)
		if !m.handler.Start(token.Raw, token.ChannelList()) {
			if !m.wait(ctx, m.nextDelay(b)) {
				return
			}
			continue
		}
		b.Reset()
		reported = false

		delay := token.RefreshDelay(m.now())
		slog.Info("Streaming token scheduled for refresh",
			"expires_at", token.ExpiresAt, "refresh_in", delay)
		if !m.wait(ctx, delay) {
			return
		}

		slog.Info("Refreshing streaming token")
		m.handler.Stop()
	}
}

func authOutcome(err error) string {
	var authErr *AuthError
	switch {
	case err == nil:
		return telemetry.AuthSucceeded
	case errors.Is(err, ErrStreamingDisabled):
		return telemetry.AuthDisabled
	case errors.As(err, &authErr) && !authErr.Retryable:
		return telemetry.AuthRejected
	default:
		return telemetry.AuthRetryable
	}
}

func (m *Manager) setToken(token *Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *Manager) nextDelay(b *backoff.ExponentialBackOff) time.Duration {
	delay := b.NextBackOff()
	if delay == backoff.Stop {
		return m.backoffMax
	}
	return delay
}

// wait sleeps for d and reports whether ctx is still alive
func (*Manager) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
