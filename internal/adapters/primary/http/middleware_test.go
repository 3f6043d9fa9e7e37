package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type requestRecorder struct {
	requests []recordedRequest
}

func (r *requestRecorder) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	r.requests = append(r.requests, recordedRequest{method: method, route: route, status: status})
}

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestLoggingMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	logger, buf := newBufferLogger()
	recorder := &requestRecorder{}
	wrapped := createLoggingMiddleware(handler, logger, recorder, func(*http.Request) string {
		return "/api/teapot"
	})

	req := httptest.NewRequest(http.MethodGet, "/api/teapot", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	require.Len(t, recorder.requests, 1)
	assert.Equal(t, recordedRequest{method: http.MethodGet, route: "/api/teapot", status: http.StatusTeapot}, recorder.requests[0])

	assert.Contains(t, buf.String(), `"msg":"HTTP request"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"bytes":15`)
}

func TestLoggingMiddlewareWithoutObserver(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	logger, _ := newBufferLogger()
	wrapped := createLoggingMiddleware(handler, logger, nil, func(*http.Request) string { return "/" })

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("normal operation", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("normal response"))
		})

		logger, _ := newBufferLogger()
		wrapped := createRecoveryMiddleware(handler, logger)

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "normal response", w.Body.String())
	})

	t.Run("panic recovery", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("slide index out of range")
		})

		logger, buf := newBufferLogger()
		wrapped := createRecoveryMiddleware(handler, logger)

		w := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "slide index")
		assert.Contains(t, buf.String(), "slide index out of range")
	})
}

func TestRateLimiter(t *testing.T) {
	now := testNow
	rl := newRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.isAllowed("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.isAllowed("10.0.0.1"))
	assert.True(t, rl.isAllowed("10.0.0.2"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.isAllowed("10.0.0.1"), "window should have slid")

	now = now.Add(10 * time.Minute)
	rl.prune()
	rl.mu.Lock()
	assert.Empty(t, rl.clients)
	rl.mu.Unlock()
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return testNow }

	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/rotation", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/rotation", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote address", remoteAddr: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "remote address without port", remoteAddr: "192.0.2.10", want: "192.0.2.10"},
		{name: "forwarded list uses first hop", remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "invalid forwarded falls back to real ip", remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "203.0.113.8"}, want: "203.0.113.8"},
		{name: "invalid headers fall back to remote", remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Real-IP": "nope"}, want: "10.0.0.1"},
		{name: "ipv6 remote address", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
