package sse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/flagsync/internal/status"
)

type recordingProcessor struct {
	mu            sync.Mutex
	notifications []Notification
}

func (p *recordingProcessor) Process(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
}

func (p *recordingProcessor) received() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.notifications...)
}

type recordingFeedback struct {
	connected    atomic.Int32
	disconnected atomic.Int32
	errors       atomic.Int32
}

func (f *recordingFeedback) OnConnected()                          { f.connected.Add(1) }
func (f *recordingFeedback) OnDisconnect()                         { f.disconnected.Add(1) }
func (f *recordingFeedback) OnErrorNotification(ErrorNotification) { f.errors.Add(1) }

// streamServer serves an event stream that writes the given frames and then
// stays open until release is closed or the client goes away
type streamServer struct {
	*httptest.Server
	open    atomic.Int32
	lastURL atomic.Value
	release chan struct{}
}

func newStreamServer(t *testing.T, frames ...string) *streamServer {
	t.Helper()

	s := &streamServer{release: make(chan struct{})}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastURL.Store(r.URL.String())
		s.open.Add(1)
		defer s.open.Add(-1)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for _, f := range frames {
			_, _ = fmt.Fprint(w, f)
			flusher.Flush()
		}

		select {
		case <-s.release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func messageFrame(payload string) string {
	return "event: message\ndata: " + payload + "\n\n"
}

func newTestClient(baseURL string, opts ...EventSourceOption) (EventSourceClient, *recordingProcessor, *recordingFeedback, *StatusTracker) {
	processor := &recordingProcessor{}
	feedback := &recordingFeedback{}
	tracker := NewStatusTracker(feedback)
	opts = append([]EventSourceOption{WithConnectTimeout(time.Second)}, opts...)
	client := NewEventSourceClient(baseURL, NewNotificationParser(), processor, tracker, opts...)
	return client, processor, feedback, tracker
}

func TestBuildStreamURL(t *testing.T) {
	t.Parallel()

	raw, err := buildStreamURL("https://streaming.example.com/sse",
		"xxxx_xxxx_splits,[?occupancy=metrics.publishers]control_pri", "token-test")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/sse/event-stream", u.Path)
	assert.Equal(t, "xxxx_xxxx_splits,[?occupancy=metrics.publishers]control_pri", u.Query().Get("channels"))
	assert.Equal(t, "token-test", u.Query().Get("accessToken"))
	assert.Equal(t, "1.1", u.Query().Get("v"))

	_, err = buildStreamURL("://bad", "c", "t")
	assert.Error(t, err)
}

func TestEventSource_StartDeliversFrames(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t,
		":keepalive\n\n",
		messageFrame(splitUpdateFrame),
		messageFrame(`{"id":"broken"`),
		messageFrame(`{"channel":"xxxx_xxxx_segments","data":"{\"type\":\"SEGMENT_UPDATE\",\"changeNumber\":5,\"segmentName\":\"beta\"}"}`),
	)
	client, processor, feedback, tracker := newTestClient(server.URL)
	defer client.Stop()

	require.True(t, client.Start(context.Background(), "channel-test", "token-test"))
	assert.Equal(t, status.PushStatusConnected, tracker.Status())
	assert.Equal(t, int32(1), feedback.connected.Load())

	// The malformed frame is dropped and the next one still arrives
	require.Eventually(t, func() bool { return len(processor.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	received := processor.received()
	assert.Equal(t, FlagUpdate{
		Envelope: Envelope{
			ID:        "22",
			ClientID:  "22",
			Timestamp: 1592590436082,
			Encoding:  "json",
			Chan:      "xxxx_xxxx_splits",
		},
		ChangeNumber: 1585948850111,
	}, received[0])
	assert.Equal(t, TypeSegmentUpdate, received[1].Type())

	u, err := url.Parse(server.lastURL.Load().(string))
	require.NoError(t, err)
	assert.Equal(t, "/event-stream", u.Path)
	assert.Equal(t, "channel-test", u.Query().Get("channels"))
	assert.Equal(t, "token-test", u.Query().Get("accessToken"))
	assert.Equal(t, int32(0), feedback.disconnected.Load())
}

func TestEventSource_StartFailures(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client, _, feedback, tracker := newTestClient(server.URL)
		assert.False(t, client.Start(context.Background(), "channel-test", "token-test"))
		assert.Equal(t, status.PushStatusNonRetryableError, tracker.Status())
		assert.Equal(t, int32(1), feedback.disconnected.Load())
		assert.Equal(t, int32(0), feedback.connected.Load())
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL
		server.Close()

		client, _, feedback, tracker := newTestClient(baseURL)
		assert.False(t, client.Start(context.Background(), "channel-test", "token-test"))
		assert.Equal(t, status.PushStatusNonRetryableError, tracker.Status())
		assert.Equal(t, int32(1), feedback.disconnected.Load())
	})

	t.Run("connect timeout", func(t *testing.T) {
		t.Parallel()

		hold := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(hold)

		client, _, feedback, _ := newTestClient(server.URL, WithConnectTimeout(100*time.Millisecond))

		started := time.Now()
		assert.False(t, client.Start(context.Background(), "channel-test", "token-test"))
		assert.Less(t, time.Since(started), 2*time.Second)
		assert.Equal(t, int32(1), feedback.disconnected.Load())
	})
}

func TestEventSource_ErrorFrame(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t,
		"event: error\ndata: {\"message\":\"Token expired\",\"code\":40142,\"statusCode\":401,\"href\":\"https://help.io/error/40142\"}\n\n",
	)
	client, _, feedback, tracker := newTestClient(server.URL)
	defer client.Stop()

	require.True(t, client.Start(context.Background(), "channel-test", "token-test"))
	require.Eventually(t, func() bool { return feedback.errors.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, status.PushStatusNonRetryableError, tracker.Status())
}

func TestEventSource_ServerClosesStream(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t)
	client, _, feedback, tracker := newTestClient(server.URL)
	defer client.Stop()

	require.True(t, client.Start(context.Background(), "channel-test", "token-test"))
	close(server.release)

	require.Eventually(t, func() bool { return feedback.disconnected.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, status.PushStatusDisconnected, tracker.Status())
	select {
	case <-tracker.ReconnectRequests():
	default:
		t.Fatal("expected a reconnect request")
	}
}

func TestEventSource_ReadTimeout(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t)
	client, _, feedback, _ := newTestClient(server.URL, WithReadTimeout(150*time.Millisecond))
	defer client.Stop()

	require.True(t, client.Start(context.Background(), "channel-test", "token-test"))
	require.Eventually(t, func() bool { return feedback.disconnected.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventSource_StopIsFinal(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t, messageFrame(splitUpdateFrame))
	client, processor, feedback, _ := newTestClient(server.URL)

	require.True(t, client.Start(context.Background(), "channel-test", "token-test"))
	require.Eventually(t, func() bool { return len(processor.received()) == 1 }, 2*time.Second, 10*time.Millisecond)

	client.Stop()
	client.Stop()

	require.Eventually(t, func() bool { return server.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, processor.received(), 1)
	assert.Equal(t, int32(0), feedback.disconnected.Load())
}

func TestEventSource_RestartReplacesConnection(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t)
	client, _, feedback, _ := newTestClient(server.URL)
	defer client.Stop()

	require.True(t, client.Start(context.Background(), "channel-test", "token-1"))
	require.True(t, client.Start(context.Background(), "channel-test", "token-2"))

	require.Eventually(t, func() bool { return server.open.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), feedback.connected.Load())
	assert.Equal(t, int32(0), feedback.disconnected.Load())

	u, err := url.Parse(server.lastURL.Load().(string))
	require.NoError(t, err)
	assert.Equal(t, "token-2", u.Query().Get("accessToken"))
}

// cancelAfterRoundTrip cancels the attempt once the response headers are in,
// before the client gets to report the outcome
type cancelAfterRoundTrip struct {
	cancel context.CancelFunc
}

func (c cancelAfterRoundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := http.DefaultTransport.RoundTrip(req)
	c.cancel()
	return resp, err
}

func TestEventSource_CancelledStartReportsNothing(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()

		server := newStreamServer(t)
		client, _, feedback, tracker := newTestClient(server.URL)
		defer client.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.False(t, client.Start(ctx, "channel-test", "token-test"))
		assert.Equal(t, status.PushStatusDisconnected, tracker.Status())
		assert.Equal(t, int32(0), feedback.connected.Load())
		assert.Equal(t, int32(0), server.open.Load())
	})

	t.Run("cancelled while connecting", func(t *testing.T) {
		t.Parallel()

		hold := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(hold)

		client, _, feedback, tracker := newTestClient(server.URL)
		defer client.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		assert.False(t, client.Start(ctx, "channel-test", "token-test"))
		assert.Equal(t, status.PushStatusConnecting, tracker.Status())
		assert.Equal(t, int32(0), feedback.connected.Load())
		assert.Equal(t, int32(0), feedback.disconnected.Load())
	})

	t.Run("cancelled after the response arrives", func(t *testing.T) {
		t.Parallel()

		server := newStreamServer(t, messageFrame(splitUpdateFrame))
		ctx, cancel := context.WithCancel(context.Background())
		client, processor, feedback, tracker := newTestClient(server.URL,
			WithHTTPClient(&http.Client{Transport: cancelAfterRoundTrip{cancel: cancel}}))
		defer client.Stop()

		assert.False(t, client.Start(ctx, "channel-test", "token-test"))
		assert.NotEqual(t, status.PushStatusConnected, tracker.Status())
		assert.Equal(t, int32(0), feedback.connected.Load())
		assert.Equal(t, int32(0), feedback.disconnected.Load())

		require.Eventually(t, func() bool { return server.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
		assert.Empty(t, processor.received())
	})
}

func TestEventSource_CancelAfterConnectIsQuiet(t *testing.T) {
	t.Parallel()

	server := newStreamServer(t)
	client, _, feedback, tracker := newTestClient(server.URL)
	defer client.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, client.Start(ctx, "channel-test", "token-test"))
	cancel()

	require.Eventually(t, func() bool { return server.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, status.PushStatusConnected, tracker.Status())
	assert.Equal(t, int32(0), feedback.disconnected.Load())
	select {
	case <-tracker.ReconnectRequests():
		t.Fatal("a cancelled stream must not ask to reconnect")
	default:
	}
}
