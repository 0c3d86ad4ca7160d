package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tongue/fotbroms/pkg/dom"
	"github.com/tongue/fotbroms/pkg/uploadarea"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "fotbroms").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "fotbroms",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for the upload server and
// widgets.
//
// Metrics collected:
//   - fotbroms_http_requests_total: Counter of requests by route, method and status
//   - fotbroms_http_request_duration_seconds: Histogram of request duration
//   - fotbroms_uploads_total: Counter of upload requests by result and status
//   - fotbroms_upload_bytes_total: Counter of stored bytes
//   - fotbroms_widget_events_total: Counter of widget events by name
//   - fotbroms_live_subscribers: Gauge of connected live-feed clients
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploadsTotal    *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	widgetEvents    *prometheus.CounterVec
	liveSubscribers prometheus.Gauge
}

// NewMetrics creates and registers the collectors. Registering twice on the
// same registry panics, so create one Metrics per registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests handled",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route", "method"}),

		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "uploads_total",
			Help:        "Total number of upload requests by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result", "status"}),

		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "upload_bytes_total",
			Help:        "Total number of bytes stored",
			ConstLabels: config.ConstLabels,
		}),

		widgetEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "widget_events_total",
			Help:        "Total number of upload-area events dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		liveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_subscribers",
			Help:        "Number of connected live-feed clients",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Handler is HTTP middleware recording request count and duration. Under
// a chi router the route label is the matched pattern, which keeps label
// cardinality bounded.
//
//	r := chi.NewRouter()
//	r.Use(metrics.Handler)
//	r.Handle("/metrics", promhttp.Handler())
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(statusOf(ww))).Inc()
	})
}

// RecordStored records a stored upload of size bytes.
func (m *Metrics) RecordStored(size int64) {
	m.uploadsTotal.WithLabelValues("stored", strconv.Itoa(http.StatusOK)).Inc()
	if size > 0 {
		m.uploadBytes.Add(float64(size))
	}
}

// RecordRejected records an upload answered with status.
func (m *Metrics) RecordRejected(status int) {
	m.uploadsTotal.WithLabelValues("rejected", strconv.Itoa(status)).Inc()
}

// SetLiveSubscribers sets the number of live-feed clients.
func (m *Metrics) SetLiveSubscribers(n int) {
	m.liveSubscribers.Set(float64(n))
}

// InstrumentWidget counts every upload-area event dispatched on el until
// the returned function is called.
func (m *Metrics) InstrumentWidget(el *dom.Element) (stop func()) {
	removes := make([]func(), 0, len(uploadarea.EventNames))
	for _, name := range uploadarea.EventNames {
		counter := m.widgetEvents.WithLabelValues(name)
		removes = append(removes, el.AddEventListener(name, func(*dom.Event) {
			counter.Inc()
		}))
	}
	return func() {
		for _, remove := range removes {
			remove()
		}
	}
}

// routePattern returns the chi route pattern of a served request, or
// "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
