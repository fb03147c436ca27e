package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	workerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Total number of processed tasks by type and outcome",
		},
		[]string{"task_type", "outcome"},
	)

	workerTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schedpay",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Duration of task processing",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"task_type"},
	)

	workerTasksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "worker",
			Name:      "tasks_enqueued_total",
			Help:      "Total number of tasks enqueued by the scheduler",
		},
		[]string{"task_type"},
	)

	workerStatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedpay",
			Subsystem: "worker",
			Name:      "status_transitions_total",
			Help:      "Total number of persisted agreement status changes",
		},
		[]string{"from", "to"},
	)

	workerLastTaskTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "schedpay",
			Subsystem: "worker",
			Name:      "last_task_timestamp",
			Help:      "Timestamp of when worker last processed a task",
		},
	)
)

// WorkerMetrics provides methods to update worker-related metrics
type WorkerMetrics struct{}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{}
}

func (wm *WorkerMetrics) RecordEnqueued(taskType string) {
	if wm == nil {
		return
	}
	workerTasksEnqueued.WithLabelValues(taskType).Inc()
}

func (wm *WorkerMetrics) RecordTransition(from, to string) {
	if wm == nil {
		return
	}
	workerStatusTransitions.WithLabelValues(from, to).Inc()
}

func (wm *WorkerMetrics) recordTask(taskType, outcome string, duration float64) {
	workerTasksTotal.WithLabelValues(taskType, outcome).Inc()
	workerTaskDuration.WithLabelValues(taskType).Observe(duration)
	workerLastTaskTimestamp.SetToCurrentTime()
}

// WithWorkerMetrics wraps a task handler with worker metrics collection
func WithWorkerMetrics(handler asynq.HandlerFunc, taskType string, wm *WorkerMetrics) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		if wm == nil {
			return handler.ProcessTask(ctx, task)
		}

		start := time.Now()
		err := handler.ProcessTask(ctx, task)
		wm.recordTask(taskType, outcome(err), time.Since(start).Seconds())
		return err
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, asynq.SkipRetry):
		return "skipped"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failed"
	}
}
