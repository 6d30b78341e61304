package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the counters the bracket manager exports on /metrics.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	UploadBytes      prometheus.Counter
	Saves            prometheus.Counter
	SharedLoads      *prometheus.CounterVec
	QuotaRejections  *prometheus.CounterVec
	BracketMutations *prometheus.CounterVec
	PersistFailures  prometheus.Counter
}

// New registers every collector on reg. A nil *Metrics is valid and records nothing.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "uploads_total",
			Help:      "Files uploaded, by outcome.",
		}, []string{"outcome"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "upload_bytes_total",
			Help:      "Bytes accepted by the upload endpoint.",
		}),
		Saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "saves_total",
			Help:      "Brackets saved for sharing.",
		}),
		SharedLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "shared_loads_total",
			Help:      "Shared bracket lookups, by outcome.",
		}, []string{"outcome"}),
		QuotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "quota_rejections_total",
			Help:      "Requests refused because the monthly quota was used up.",
		}, []string{"counter"}),
		BracketMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "mutations_total",
			Help:      "Workspace bracket operations applied, by operation.",
		}, []string{"operation"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bracket",
			Name:      "persist_failures_total",
			Help:      "Workspace snapshot writes that failed.",
		}),
	}
	reg.MustRegister(
		m.Uploads,
		m.UploadBytes,
		m.Saves,
		m.SharedLoads,
		m.QuotaRejections,
		m.BracketMutations,
		m.PersistFailures,
	)
	return m
}

// NewRegistry returns a registry with the process and Go runtime collectors already attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (m *Metrics) Upload(outcome string, size int64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	if outcome == "ok" && size > 0 {
		m.UploadBytes.Add(float64(size))
	}
}

func (m *Metrics) Save() {
	if m == nil {
		return
	}
	m.Saves.Inc()
}

func (m *Metrics) SharedLoad(outcome string) {
	if m == nil {
		return
	}
	m.SharedLoads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuotaRejected(counter string) {
	if m == nil {
		return
	}
	m.QuotaRejections.WithLabelValues(counter).Inc()
}

func (m *Metrics) Mutation(operation string) {
	if m == nil {
		return
	}
	m.BracketMutations.WithLabelValues(operation).Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}
