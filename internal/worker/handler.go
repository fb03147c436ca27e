package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/internal/service"
	"github.com/vultisig/schedpay/internal/tasks"
)

// Refresher is implemented by *service.Reconciler.
type Refresher interface {
	Refresh(ctx context.Context, id uuid.UUID) (service.Transition, error)
}

type Handler struct {
	logger     *logrus.Logger
	reconciler Refresher
	wm         *metrics.WorkerMetrics
	// isNotFound recognises a deleted agreement so the task is not retried.
	isNotFound func(error) bool
}

func NewHandler(logger *logrus.Logger, reconciler Refresher, wm *metrics.WorkerMetrics, notFound error) *Handler {
	return &Handler{
		logger:     logger.WithField("pkg", "worker.Handler").Logger,
		reconciler: reconciler,
		wm:         wm,
		isNotFound: func(err error) bool { return notFound != nil && errors.Is(err, notFound) },
	}
}

func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(tasks.TypeReconcileAgreement, metrics.WithWorkerMetrics(h.HandleReconcile, tasks.TypeReconcileAgreement, h.wm))
}

func (h *Handler) HandleReconcile(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseReconcilePayload(t)
	if err != nil {
		return fmt.Errorf("tasks.ParseReconcilePayload: %v: %w", err, asynq.SkipRetry)
	}

	tr, err := h.reconciler.Refresh(ctx, p.AgreementID)
	if err != nil {
		if h.isNotFound(err) {
			h.logger.WithField("agreement_id", p.AgreementID).Warn("agreement vanished before reconcile")
			return fmt.Errorf("reconcile %s: %v: %w", p.AgreementID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("h.reconciler.Refresh: %w", err)
	}

	if tr.Changed {
		h.wm.RecordTransition(string(tr.From), string(tr.To))
		h.logger.WithFields(logrus.Fields{
			"agreement_id": p.AgreementID,
			"from":         tr.From,
			"to":           tr.To,
		}).Info("agreement status advanced")
	}
	return nil
}
