// Package middleware provides the observability layer of the upload server.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware and upload/widget counters
//   - Structured request logging
//
// All three are plain func(http.Handler) http.Handler and compose with chi:
//
//	metrics := middleware.NewMetrics()
//
//	r := chi.NewRouter()
//	r.Use(chimw.RequestID)
//	r.Use(middleware.Logging(logger))
//	r.Use(middleware.OpenTelemetry())
//	r.Use(metrics.Handler)
//	r.Handle("/metrics", promhttp.Handler())
//
// # Widget Metrics
//
// Metrics.InstrumentWidget listens on an upload-area element and counts the
// events it dispatches, so long-running hosts such as the watch command can
// expose them:
//
//	stop := metrics.InstrumentWidget(widget.Element())
//	defer stop()
//
// # Trace Propagation
//
// The widget's HTTP transport injects the active trace context into each
// PUT, and OpenTelemetry extracts it, so a client upload span and the
// server request span share one trace.
package middleware
