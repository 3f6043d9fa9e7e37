package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/monitoring"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
	"github.com/fredcamaral/bulletin/internal/domain/services"
	"github.com/fredcamaral/bulletin/internal/test/builders"
	"github.com/fredcamaral/bulletin/internal/test/fakes"
	"github.com/fredcamaral/bulletin/internal/test/mocks"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// getTestServerConfig returns a test server configuration
func getTestServerConfig() *entities.ServerConfig {
	return &entities.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     5,
		WriteTimeout:    5,
		ShutdownTimeout: 2,
		Environment:     "production",
		CORSOrigins: []string{
			"http://localhost:3000",
			"https://kiosk.school.example",
		},
	}
}

type staticSnapshots []entities.ProviderSnapshot

func (s staticSnapshots) Snapshots() []entities.ProviderSnapshot { return s }

type stubHealth struct{ err error }

func (h stubHealth) Ping(context.Context) error { return h.err }

type testEnv struct {
	server    *Server
	scheduler *services.RotationScheduler
	store     *mocks.RecordStore
	clock     *fakes.Clock
	metrics   *monitoring.Metrics
	snapshots staticSnapshots
	health    *stubHealth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := fakes.NewClock(testNow)
	scheduler := services.NewRotationScheduler(5*time.Second, clock, nil, nil)
	t.Cleanup(scheduler.Dispose)

	display, err := renderer.NewDisplayRenderer()
	require.NoError(t, err)

	env := &testEnv{
		scheduler: scheduler,
		store:     new(mocks.RecordStore),
		clock:     clock,
		metrics:   monitoring.NewMetrics(),
		health:    &stubHealth{},
		snapshots: staticSnapshots{
			builders.NewSnapshotBuilder("banner").WithStatic(2).At(testNow).Build(),
			builders.NewSnapshotBuilder("birthdays").WithError(errors.New("connection refused")).At(testNow).Build(),
		},
	}

	env.server = NewServer(getTestServerConfig(), Dependencies{
		Presenter: scheduler,
		Providers: env.snapshots,
		Store:     env.store,
		Slides:    renderer.NewMarkdownRenderer(),
		Display:   display,
		Metrics:   env.metrics,
		Health:    env.health,
		Clock:     clock,
	})

	return env
}

// fill installs n banner slides and returns the rotation
func (e *testEnv) fill(n int) entities.Rotation {
	rotation := services.MergeSnapshots([]entities.ProviderSnapshot{
		builders.NewSnapshotBuilder("banner").WithStatic(n).Build(),
	})
	e.scheduler.OnSnapshotChange(rotation)
	return rotation
}

// do sends a request through the full middleware chain
func (e *testEnv) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestServerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	server := env.server
	ctx := context.Background()

	assert.False(t, server.IsRunning())
	assert.Empty(t, server.Addr())
	assert.Error(t, server.NotifyClients(reloadEvent()))

	require.NoError(t, server.Start(ctx, 0, "127.0.0.1"))
	assert.True(t, server.IsRunning())
	require.NotEmpty(t, server.Addr())

	err := server.Start(ctx, 0, "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, server.NotifyClients(reloadEvent()))

	require.NoError(t, server.Stop(ctx))
	assert.False(t, server.IsRunning())

	err = server.Stop(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServerStopAfterSchedulerDisposed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.server.Start(ctx, 0, "127.0.0.1"))
	env.scheduler.Dispose()

	done := make(chan error, 1)
	go func() { done <- env.server.Stop(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after scheduler dispose")
	}
}

func TestServerStartListenError(t *testing.T) {
	env := newTestEnv(t)

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = taken.Close() }()
	port := taken.Addr().(*net.TCPAddr).Port

	err = env.server.Start(context.Background(), port, "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
	assert.False(t, env.server.IsRunning())
}

func TestServerRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.store.On("ActiveAnnouncements", mock.Anything).Return([]entities.Announcement{}, nil)
	env.store.On("ListNotices", mock.Anything, mock.Anything, mock.Anything).Return([]entities.Notice{}, nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/rotation", http.StatusOK},
		{http.MethodGet, "/api/rotation/current", http.StatusNoContent},
		{http.MethodPost, "/api/rotation/next", http.StatusOK},
		{http.MethodPost, "/api/rotation/prev", http.StatusOK},
		{http.MethodGet, "/api/notices", http.StatusOK},
		{http.MethodGet, "/api/announcements", http.StatusOK},
		{http.MethodGet, "/api/providers", http.StatusOK},
		{http.MethodGet, "/api/rotation/next", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/rotation", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/notices/abc", http.StatusNotFound},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(tt.method, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestServerSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/healthz", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
}

func TestServerCORS(t *testing.T) {
	env := newTestEnv(t)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rotation", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rotation", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServerRecordsRequestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.fill(2)

	env.do(http.MethodGet, "/api/rotation", nil)
	env.do(http.MethodGet, "/api/notices/abc", nil)

	body := env.do(http.MethodGet, "/metrics", nil).Body.String()
	assert.Contains(t, body, `route="/api/rotation"`)
	assert.Contains(t, body, `route="unmatched"`)
	assert.NotContains(t, body, `route="/api/notices/abc"`)
}

func TestNewServerRequiresConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewServer(nil, Dependencies{})
	})
}

func reloadEvent() ports.UpdateEvent {
	return ports.UpdateEvent{Type: ports.EventTypeBannerReload, Timestamp: testNow}
}
