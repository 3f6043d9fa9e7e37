package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

const namespace = "bulletin"

// Metrics records rotation, provider, HTTP and websocket activity on its own registry
type Metrics struct {
	registry *prometheus.Registry

	ticks          prometheus.Counter
	navigations    *prometheus.CounterVec
	rotationLength prometheus.Gauge
	snapshots      *prometheus.CounterVec
	providerSlides *prometheus.GaugeVec

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	wsConnections prometheus.Gauge
}

// NewMetrics creates and registers all collectors, including the Go runtime and process
// collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "ticks_total",
			Help:      "Automatic slide advances.",
		}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "navigations_total",
			Help:      "Manual navigation commands by action.",
		}, []string{"action"}),
		rotationLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "length",
			Help:      "Slides in the current rotation.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "snapshots_total",
			Help:      "Snapshots received by provider and result.",
		}, []string{"provider", "result"}),
		providerSlides: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "slides",
			Help:      "Slides contributed by each provider's latest snapshot.",
		}, []string{"provider"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.navigations,
		m.rotationLength,
		m.snapshots,
		m.providerSlides,
		m.httpRequests,
		m.httpDuration,
		m.wsConnections,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTick counts an automatic advance
func (m *Metrics) ObserveTick() {
	m.ticks.Inc()
}

// ObserveNavigation counts a manual navigation command
func (m *Metrics) ObserveNavigation(action string) {
	m.navigations.WithLabelValues(action).Inc()
}

// ObserveRotationLength records the current rotation length
func (m *Metrics) ObserveRotationLength(length int) {
	m.rotationLength.Set(float64(length))
}

// ObserveSnapshot records a provider snapshot
func (m *Metrics) ObserveSnapshot(providerID string, slides int, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.snapshots.WithLabelValues(providerID, result).Inc()
	m.providerSlides.WithLabelValues(providerID).Set(float64(slides))
}

// ObserveHTTPRequest records a served request. route is the matched route template,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// WebSocketConnected counts an opened websocket
func (m *Metrics) WebSocketConnected() {
	m.wsConnections.Inc()
}

// WebSocketDisconnected counts a closed websocket
func (m *Metrics) WebSocketDisconnected() {
	m.wsConnections.Dec()
}

// RegisterRenderCache exposes a render cache's counters, read at scrape time
func (m *Metrics) RegisterRenderCache(stats func() entities.CacheStats) {
	subsystem := "render_cache"
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hits_total",
			Help:      "Slide renders served from cache.",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "misses_total",
			Help:      "Slide renders that ran the markdown pipeline.",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evictions_total",
			Help:      "Cached renders dropped to stay under the size limit.",
		}, func() float64 { return float64(stats().Evictions) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes",
			Help:      "Rendered HTML currently cached.",
		}, func() float64 { return float64(stats().Bytes) }),
	)
}

var _ ports.RotationMetrics = (*Metrics)(nil)
