// Package metrics exposes Prometheus collectors for export runs. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaultbridge"

// Metrics groups the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	documents      *prometheus.CounterVec
	links          *prometheus.CounterVec
	backlinks      *prometheus.CounterVec
	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	sideEffects    *prometheus.CounterVec
}

// New registers every collector plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents seen by the scanner, by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Outbound links normalized or dropped, by dataset.",
		}, []string{"dataset", "outcome"}),
		backlinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backlinks_total",
			Help:      "Inbound entries attached by the backlink resolver.",
		}, []string{"dataset"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export runs by dataset and status.",
		}, []string{"dataset", "status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Wall time of an export run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dataset"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Image downloads and script runs by kind and status.",
		}, []string{"kind", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documents, m.links, m.backlinks, m.exports, m.exportDuration, m.sideEffects,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) DocumentScanned(dataset string) { m.document(dataset, "scanned") }
func (m *Metrics) DocumentSkipped(dataset string) { m.document(dataset, "skipped") }
func (m *Metrics) DocumentRejected(dataset string) { m.document(dataset, "rejected") }

func (m *Metrics) document(dataset, outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(dataset, outcome).Inc()
}

// Links records n normalized and dropped outbound links.
func (m *Metrics) Links(dataset string, normalized, dropped int) {
	if m == nil {
		return
	}
	m.links.WithLabelValues(dataset, "normalized").Add(float64(normalized))
	m.links.WithLabelValues(dataset, "dropped").Add(float64(dropped))
}

func (m *Metrics) Backlinks(dataset string, n int) {
	if m == nil {
		return
	}
	m.backlinks.WithLabelValues(dataset).Add(float64(n))
}

// Export records the outcome of one run. status is "ok" or "error".
func (m *Metrics) Export(dataset, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(dataset, status).Inc()
	m.exportDuration.WithLabelValues(dataset).Observe(took.Seconds())
}

// SideEffect records a download or script run.
func (m *Metrics) SideEffect(kind, status string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(kind, status).Inc()
}
