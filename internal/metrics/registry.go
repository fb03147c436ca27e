package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Service names for metrics registration
const (
	ServiceReconcile = "reconcile"
	ServiceChain     = "chain"
	ServiceWorker    = "worker"
	ServiceHTTP      = "http"
)

// RegisterMetrics registers metrics for the specified services with a custom registry
func RegisterMetrics(services []string, registry *prometheus.Registry, logger *logrus.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", registry, logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", registry, logger)

	for _, service := range services {
		switch service {
		case ServiceReconcile:
			registerIfNotExists(reconcileResolutionsTotal, "reconcile_resolutions_total", registry, logger)
			registerIfNotExists(reconcileInstallmentsTotal, "reconcile_installments_total", registry, logger)
			registerIfNotExists(reconcileErrorsTotal, "reconcile_errors_total", registry, logger)
		case ServiceChain:
			registerIfNotExists(chainSnapshotDuration, "chain_snapshot_duration", registry, logger)
			registerIfNotExists(chainSnapshotErrors, "chain_snapshot_read_errors", registry, logger)
		case ServiceWorker:
			registerIfNotExists(workerTasksTotal, "worker_tasks_total", registry, logger)
			registerIfNotExists(workerTaskDuration, "worker_task_duration", registry, logger)
			registerIfNotExists(workerTasksEnqueued, "worker_tasks_enqueued", registry, logger)
			registerIfNotExists(workerStatusTransitions, "worker_status_transitions", registry, logger)
			registerIfNotExists(workerLastTaskTimestamp, "worker_last_task_timestamp", registry, logger)
		case ServiceHTTP:
			registerIfNotExists(httpRequestsTotal, "http_requests_total", registry, logger)
			registerIfNotExists(httpRequestDuration, "http_request_duration", registry, logger)
		default:
			logger.Warnf("Unknown service type for metrics registration: %s", service)
		}
	}
}

func registerIfNotExists(collector prometheus.Collector, name string, registry *prometheus.Registry, logger *logrus.Logger) {
	if err := registry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegErr) {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}
