package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const QueueName = "schedpay"

const TypeReconcileAgreement = "reconcile:agreement"

type ReconcilePayload struct {
	AgreementID uuid.UUID `json:"agreement_id"`
}

// NewReconcileTask builds one recompute task per agreement. The task id makes a
// second enqueue of the same agreement a no-op while the first is still queued.
func NewReconcileTask(id uuid.UUID, queue string) (*asynq.Task, []asynq.Option, error) {
	buf, err := json.Marshal(ReconcilePayload{AgreementID: id})
	if err != nil {
		return nil, nil, fmt.Errorf("json.Marshal: %w", err)
	}
	if queue == "" {
		queue = QueueName
	}
	return asynq.NewTask(TypeReconcileAgreement, buf), []asynq.Option{
		asynq.TaskID(TypeReconcileAgreement + ":" + id.String()),
		asynq.MaxRetry(3),
		asynq.Timeout(2 * time.Minute),
		asynq.Queue(queue),
	}, nil
}

func ParseReconcilePayload(t *asynq.Task) (ReconcilePayload, error) {
	var p ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ReconcilePayload{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if p.AgreementID == uuid.Nil {
		return ReconcilePayload{}, fmt.Errorf("empty agreement_id")
	}
	return p, nil
}
