package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the collectors.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
	OutcomeTooLarge = "too_large"
	OutcomeTooDeep  = "too_deep"
	OutcomeDropped  = "dropped"
	OutcomeSkipped  = "skipped"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	transforms *prometheus.CounterVec
	duration   prometheus.Histogram
	documents  prometheus.Counter
	uploads    *prometheus.CounterVec
	forwards   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflat_transforms_total",
			Help: "Transform requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formflat_transform_duration_seconds",
			Help:    "Time spent normalizing one request body.",
			Buckets: prometheus.DefBuckets,
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formflat_documents_total",
			Help: "Documents normalized, counting each element of an array body.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflat_uploads_total",
			Help: "File descriptor uploads by backend and outcome.",
		}, []string{"backend", "outcome"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflat_forwards_total",
			Help: "Result forwards by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.transforms, m.duration, m.documents, m.uploads, m.forwards,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTransform(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.transforms.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) AddDocuments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documents.Add(float64(n))
}

func (m *Metrics) Upload(backend, outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) Forward(outcome string) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(outcome).Inc()
}
