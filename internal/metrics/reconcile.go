package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	reconcileResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "reconcile",
			Name:      "resolutions_total",
			Help:      "Total number of agreement resolutions by kind and rollup status",
		},
		[]string{"kind", "status"}, // kind: single, recurring, batch
	)

	reconcileInstallmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "reconcile",
			Name:      "installments_total",
			Help:      "Total number of resolved installments by status",
		},
		[]string{"status"},
	)

	reconcileErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "reconcile",
			Name:      "errors_total",
			Help:      "Total number of failed reconciliations by stage",
		},
		[]string{"stage"},
	)

	chainSnapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schedpay",
			Subsystem: "chain",
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of a full contract snapshot read",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	chainSnapshotErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "chain",
			Name:      "snapshot_read_errors_total",
			Help:      "Total number of contract reads that degraded to missing data",
		},
		[]string{"chain", "field"},
	)
)

// ReconcileMetrics collects reconciliation outcomes.
type ReconcileMetrics interface {
	RecordResolution(kind, status string, installments []string)
	RecordError(stage string)
}

// ChainMetrics collects snapshot read health.
type ChainMetrics interface {
	RecordSnapshotRead(chain string, duration float64)
	RecordSnapshotReadError(chain, field string)
}

type PrometheusReconcileMetrics struct{}

func NewReconcileMetrics() *PrometheusReconcileMetrics {
	return &PrometheusReconcileMetrics{}
}

func (m *PrometheusReconcileMetrics) RecordResolution(kind, status string, installments []string) {
	reconcileResolutionsTotal.WithLabelValues(kind, status).Inc()
	for _, st := range installments {
		reconcileInstallmentsTotal.WithLabelValues(st).Inc()
	}
}

func (m *PrometheusReconcileMetrics) RecordError(stage string) {
	reconcileErrorsTotal.WithLabelValues(stage).Inc()
}

type PrometheusChainMetrics struct{}

func NewChainMetrics() *PrometheusChainMetrics {
	return &PrometheusChainMetrics{}
}

func (m *PrometheusChainMetrics) RecordSnapshotRead(chain string, duration float64) {
	chainSnapshotDuration.WithLabelValues(chain).Observe(duration)
}

func (m *PrometheusChainMetrics) RecordSnapshotReadError(chain, field string) {
	chainSnapshotErrors.WithLabelValues(chain, field).Inc()
}

// NilReconcileMetrics is a no-op implementation for when metrics are disabled
type NilReconcileMetrics struct{}

func NewNilReconcileMetrics() ReconcileMetrics {
	return &NilReconcileMetrics{}
}

func (n *NilReconcileMetrics) RecordResolution(string, string, []string) {}
func (n *NilReconcileMetrics) RecordError(string)                        {}

// NilChainMetrics is a no-op implementation for when metrics are disabled
type NilChainMetrics struct{}

func NewNilChainMetrics() ChainMetrics {
	return &NilChainMetrics{}
}

func (n *NilChainMetrics) RecordSnapshotRead(string, float64)       {}
func (n *NilChainMetrics) RecordSnapshotReadError(string, string) {}
