package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	uploadFiles     *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	detaches        *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	reconcileOrphan prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	uploadFiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carlot_upload_files_total",
		Help: "Uploaded files by outcome",
	}, []string{"outcome"})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carlot_upload_bytes_total",
		Help: "Bytes committed to the object store by uploads",
	})

	detaches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carlot_detach_total",
		Help: "Detach operations by outcome",
	}, []string{"outcome"})

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carlot_fetch_total",
		Help: "Object fetches by outcome",
	}, []string{"outcome"})

	reconcileOrphan := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "carlot_reconcile_orphans",
		Help: "Orphaned objects found by the last reconciliation sweep",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carlot_http_request_duration_seconds",
		Help:    "HTTP request duration by method and status class",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	reg.MustRegister(uploadFiles, uploadBytes, detaches, fetches, reconcileOrphan, requestDuration)

	return &Metrics{
		registry:        reg,
		uploadFiles:     uploadFiles,
		uploadBytes:     uploadBytes,
		detaches:        detaches,
		fetches:         fetches,
		reconcileOrphan: reconcileOrphan,
		requestDuration: requestDuration,
	}
}

func (m *Metrics) RecordUploadFile(outcome string, bytes int64) {
	m.uploadFiles.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) RecordDetach(outcome string) {
	m.detaches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordFetch(outcome string) {
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordReconcileOrphans(count int) {
	m.reconcileOrphan.Set(float64(count))
}

func (m *Metrics) RecordRequest(method, statusClass string, seconds float64) {
	m.requestDuration.WithLabelValues(method, statusClass).Observe(seconds)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
