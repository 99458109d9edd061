// Package metrics holds the Prometheus collectors of the model registry and
// the server that exposes them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the collector registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	ModelsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "model_registry_models",
		Help: "Number of model records per lifecycle status.",
	}, []string{"status"})

	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_registry_uploads_total",
		Help: "Artifact uploads by storage backend and result.",
	}, []string{"backend", "result"})

	UploadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_registry_upload_duration_seconds",
		Help:    "Time spent transferring artifacts to the storage backend.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"backend"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_registry_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "code"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "model_registry_build_info",
		Help: "Constant 1, labelled with the service name.",
	}, []string{"service"})
)

func init() {
	Registry.MustRegister(
		ModelsByStatus,
		UploadsTotal,
		UploadDuration,
		HTTPRequestsTotal,
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Upload results
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultCanceled = "canceled"
)

// RecordUpload counts one finished upload and observes its duration.
func RecordUpload(backend, result string, duration time.Duration) {
	UploadsTotal.WithLabelValues(backend, result).Inc()
	UploadDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetModelCounts replaces the per-status gauge values. Statuses missing from
// counts keep their previous value, so callers pass every known status.
func SetModelCounts(counts map[string]int) {
	for status, n := range counts {
		ModelsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// MetricsServer serves the package Registry.
type MetricsServer struct {
	srv *http.Server
}

// New returns a metrics server for service listening on addr.
func New(service string, addr string) (*MetricsServer, error) {
	buildInfo.WithLabelValues(service).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the /metrics handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
