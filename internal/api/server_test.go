package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/flagsync/internal/api"
	"github.com/stacklok/flagsync/internal/api/mocks"
	"github.com/stacklok/flagsync/internal/status"
	"github.com/stacklok/flagsync/internal/storage"
)

func newTestServer(t *testing.T, opts ...api.ServerOption) (http.Handler, *mocks.MockStatusProvider, *mocks.MockFlagReader) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockStatusProvider(ctrl)
	flags := mocks.NewMockFlagReader(ctrl)
	return api.NewServer(provider, flags, opts...), provider, flags
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rr := serve(t, server, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readinessErr   error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "initial sync done",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ready"}`,
		},
		{
			name:           "initial sync pending",
			readinessErr:   errors.New("initial synchronization has not completed"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"error":"initial synchronization has not completed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, provider, _ := newTestServer(t)
			provider.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readinessErr)

			rr := serve(t, server, "/readiness")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns snapshot", func(t *testing.T) {
		t.Parallel()

		server, provider, _ := newTestServer(t)
		provider.EXPECT().Snapshot(gomock.Any()).Return(&status.Snapshot{
			Mode:               status.SyncModeStreaming,
			PushStatus:         status.PushStatusConnected,
			SplitsChangeNumber: 1700,
			TransitionCount:    2,
		}, nil)

		rr := serve(t, server, "/status")
		require.Equal(t, http.StatusOK, rr.Code)

		var got status.Snapshot
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, status.SyncModeStreaming, got.Mode)
		assert.Equal(t, status.PushStatusConnected, got.PushStatus)
		assert.Equal(t, int64(1700), got.SplitsChangeNumber)
		assert.Equal(t, 2, got.TransitionCount)
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()

		server, provider, _ := newTestServer(t)
		provider.EXPECT().Snapshot(gomock.Any()).Return(nil, errors.New("redis unavailable"))

		rr := serve(t, server, "/status")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "redis unavailable")
	})
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rr := serve(t, server, "/version")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body["version"])
	assert.NotEmpty(t, body["go_version"])
}

func TestSplitEndpoints(t *testing.T) {
	t.Parallel()

	split := &storage.Split{
		Name:             "checkout_flow",
		Status:           storage.StatusActive,
		DefaultTreatment: "off",
		ChangeNumber:     42,
		Definition:       json.RawMessage(`{"name":"checkout_flow"}`),
	}

	tests := []struct {
		name           string
		path           string
		setup          func(f *mocks.MockFlagReader)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "list splits",
			path: "/splits",
			setup: func(f *mocks.MockFlagReader) {
				f.EXPECT().SplitNames(gomock.Any()).Return([]string{"a", "b"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"splits":["a","b"],"count":2}`,
		},
		{
			name: "list empty cache",
			path: "/splits",
			setup: func(f *mocks.MockFlagReader) {
				f.EXPECT().SplitNames(gomock.Any()).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"splits":[],"count":0}`,
		},
		{
			name: "get split",
			path: "/splits/checkout_flow",
			setup: func(f *mocks.MockFlagReader) {
				f.EXPECT().Split(gomock.Any(), "checkout_flow").Return(split, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"name":"checkout_flow","status":"ACTIVE","killed":false,"defaultTreatment":"off",` +
				`"changeNumber":42,"definition":{"name":"checkout_flow"}}`,
		},
		{
			name: "split not found",
			path: "/splits/missing",
			setup: func(f *mocks.MockFlagReader) {
				f.EXPECT().Split(gomock.Any(), "missing").Return(nil, storage.ErrSplitNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"split not found"}`,
		},
		{
			name:           "invalid split name",
			path:           "/splits/a%20b",
			setup:          func(*mocks.MockFlagReader) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"name cannot contain whitespace"}`,
		},
		{
			name: "segment membership",
			path: "/segments/beta_users/keys/user-1",
			setup: func(f *mocks.MockFlagReader) {
				f.EXPECT().IsInSegment(gomock.Any(), "beta_users", "user-1").Return(true, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"segment":"beta_users","key":"user-1","member":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, _, flags := newTestServer(t)
			tt.setup(flags)

			rr := serve(t, server, tt.path)
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("not mounted without handler", func(t *testing.T) {
		t.Parallel()
		server, _, _ := newTestServer(t)
		assert.Equal(t, http.StatusNotFound, serve(t, server, "/metrics").Code)
	})

	t.Run("serves configured handler", func(t *testing.T) {
		t.Parallel()
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("flagsync_mode_transitions_total 1\n"))
		})
		server, _, _ := newTestServer(t, api.WithMetricsHandler(metrics))

		rr := serve(t, server, "/metrics")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "flagsync_mode_transitions_total")
	})
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	server, _, _ := newTestServer(t, api.WithMiddlewares(mw, api.LoggingMiddleware))
	assert.Equal(t, http.StatusOK, serve(t, server, "/health").Code)
	assert.True(t, called)
}
