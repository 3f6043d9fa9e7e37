package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

func TestMetrics_Rotation(t *testing.T) {
	m := NewMetrics()

	m.ObserveTick()
	m.ObserveTick()
	m.ObserveNavigation("advance")
	m.ObserveNavigation("jump")
	m.ObserveNavigation("advance")
	m.ObserveRotationLength(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.navigations.WithLabelValues("advance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.navigations.WithLabelValues("jump")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.rotationLength))

	m.ObserveRotationLength(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rotationLength))
}

func TestMetrics_Snapshots(t *testing.T) {
	m := NewMetrics()

	m.ObserveSnapshot("notices", 3, false)
	m.ObserveSnapshot("notices", 0, true)
	m.ObserveSnapshot("banner", 2, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues("notices", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues("notices", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.providerSlides.WithLabelValues("notices")), "failed snapshot contributes nothing")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerSlides.WithLabelValues("banner")))
}

func TestMetrics_HTTPAndWebSocket(t *testing.T) {
	m := NewMetrics()

	m.ObserveHTTPRequest(http.MethodGet, "/api/rotation", http.StatusOK, 15*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/rotation", http.StatusOK, 5*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/rotation/jump", http.StatusBadRequest, time.Millisecond)
	m.WebSocketConnected()
	m.WebSocketConnected()
	m.WebSocketDisconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/rotation", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/rotation/jump", "400")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpDuration), "one series per method and route")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsConnections))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveTick()
	m.ObserveSnapshot("birthdays", 1, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "bulletin_rotation_ticks_total 1")
	assert.Contains(t, body, `bulletin_provider_snapshots_total{provider="birthdays",result="ok"} 1`)
	assert.Contains(t, body, "go_goroutines")
	assert.True(t, strings.Contains(body, "# HELP bulletin_rotation_length"))
}

func TestMetrics_RenderCache(t *testing.T) {
	m := NewMetrics()
	stats := entities.CacheStats{Hits: 4, Misses: 1, Bytes: 2048}
	m.RegisterRenderCache(func() entities.CacheStats { return stats })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "bulletin_render_cache_hits_total 4")
	assert.Contains(t, body, "bulletin_render_cache_bytes 2048")

	stats.Evictions = 3
	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "bulletin_render_cache_evictions_total 3", "read at scrape time")
}
