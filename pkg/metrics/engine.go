package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records reconciliation, audit and quota activity.
type EngineMetrics struct {
	importDuration *prometheus.HistogramVec
	importRows     *prometheus.CounterVec
	auditEntries   *prometheus.CounterVec
	quotaRejected  *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	importDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "import_duration_seconds",
		Help:    "Duration of inventory import batches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Import row outcomes by reconciliation decision.",
	}, []string{"mode", "outcome"})
	auditEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_entries_total",
		Help: "Audit entries written, by action.",
	}, []string{"action"})
	quotaRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejections_total",
		Help: "Mutations rejected by the daily quota, by role.",
	}, []string{"role"})
	reg.MustRegister(importDuration, importRows, auditEntries, quotaRejected)
	return &EngineMetrics{
		importDuration: importDuration,
		importRows:     importRows,
		auditEntries:   auditEntries,
		quotaRejected:  quotaRejected,
	}
}

// ObserveImport records the duration of one import batch.
func (m *EngineMetrics) ObserveImport(mode string, duration time.Duration) {
	if m == nil || m.importDuration == nil {
		return
	}
	m.importDuration.WithLabelValues(normalizeLabel(mode)).Observe(duration.Seconds())
}

// AddImportRows adds to the per-outcome row counter for one batch.
func (m *EngineMetrics) AddImportRows(mode, outcome string, n int) {
	if m == nil || m.importRows == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Add(float64(n))
}

// IncAuditEntry counts one written audit entry.
func (m *EngineMetrics) IncAuditEntry(action string) {
	if m == nil || m.auditEntries == nil {
		return
	}
	m.auditEntries.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncQuotaRejection counts one quota rejection.
func (m *EngineMetrics) IncQuotaRejection(role string) {
	if m == nil || m.quotaRejected == nil {
		return
	}
	m.quotaRejected.WithLabelValues(normalizeLabel(role)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
