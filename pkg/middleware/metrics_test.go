package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tongue/fotbroms/pkg/dom"
	"github.com/tongue/fotbroms/pkg/uploadarea"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func newTestMetrics() *Metrics {
	return NewMetrics(WithRegistry(prometheus.NewRegistry()))
}

func TestMetricsHandler_RecordsRouteMethodAndStatus(t *testing.T) {
	m := newTestMetrics()
	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/uploads/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Put("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("uploads/x.png"))
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil),
		httptest.NewRequest(http.MethodGet, "/uploads/b.png", nil),
		httptest.NewRequest(http.MethodPut, "/", nil),
		httptest.NewRequest(http.MethodGet, "/nope", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	tests := []struct {
		route, method, status string
		want                  float64
	}{
		{"/uploads/*", "GET", "201", 2},
		{"/", "PUT", "200", 1},
		{"unmatched", "GET", "404", 1},
	}
	for _, tt := range tests {
		got := metricCounterValue(t, m.requestsTotal.WithLabelValues(tt.route, tt.method, tt.status))
		if got != tt.want {
			t.Errorf("requests{%s,%s,%s} = %v, want %v", tt.route, tt.method, tt.status, got, tt.want)
		}
	}
	if n := metricHistogramCount(t, m.requestDuration.WithLabelValues("/uploads/*", "GET")); n != 2 {
		t.Fatalf("duration samples = %d, want 2", n)
	}
}

func TestMetrics_UploadCounters(t *testing.T) {
	m := newTestMetrics()

	m.RecordStored(100)
	m.RecordStored(50)
	m.RecordStored(0)
	m.RecordRejected(http.StatusUnsupportedMediaType)

	if got := metricCounterValue(t, m.uploadsTotal.WithLabelValues("stored", "200")); got != 3 {
		t.Fatalf("stored = %v, want 3", got)
	}
	if got := metricCounterValue(t, m.uploadsTotal.WithLabelValues("rejected", "415")); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.uploadBytes); got != 150 {
		t.Fatalf("bytes = %v, want 150", got)
	}
}

func TestMetrics_LiveSubscribers(t *testing.T) {
	m := newTestMetrics()
	m.SetLiveSubscribers(3)
	m.SetLiveSubscribers(2)

	if got := metricGaugeValue(t, m.liveSubscribers); got != 2 {
		t.Fatalf("live subscribers = %v, want 2", got)
	}
}

func TestMetrics_InstrumentWidget(t *testing.T) {
	m := newTestMetrics()
	el := dom.NewElement("upload-area")

	stop := m.InstrumentWidget(el)
	el.Dispatch(dom.NewCustomEvent(uploadarea.EventFileAccepted, nil))
	el.Dispatch(dom.NewCustomEvent(uploadarea.EventFileProgress, 50))
	el.Dispatch(dom.NewCustomEvent(uploadarea.EventFileProgress, 100))
	el.Dispatch(dom.NewCustomEvent("unrelated", nil))
	stop()
	el.Dispatch(dom.NewCustomEvent(uploadarea.EventFileAccepted, nil))

	if got := metricCounterValue(t, m.widgetEvents.WithLabelValues(uploadarea.EventFileAccepted)); got != 1 {
		t.Fatalf("fileaccepted = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.widgetEvents.WithLabelValues(uploadarea.EventFileProgress)); got != 2 {
		t.Fatalf("fileprogress = %v, want 2", got)
	}
	for _, name := range uploadarea.EventNames {
		if n := el.ListenerCount(name); n != 0 {
			t.Fatalf("%s listeners = %d after stop", name, n)
		}
	}
}

func TestNewMetrics_Options(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithNamespace("test"),
		WithSubsystem("srv"),
		WithConstLabels(prometheus.Labels{"instance": "a"}),
		WithBuckets([]float64{0.1, 1}),
	)
	m.RecordStored(1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_srv_uploads_total" {
			found = true
			if got := f.GetMetric()[0].GetLabel()[0]; got.GetName() != "instance" || got.GetValue() != "a" {
				t.Fatalf("const label = %v", got)
			}
		}
	}
	if !found {
		t.Fatal("test_srv_uploads_total not registered")
	}
}
