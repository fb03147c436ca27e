package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/internal/tasks"
)

// Enqueuer is implemented by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// OpenAgreements streams the ids that still need reconciling.
type OpenAgreements interface {
	GetOpenAgreements(ctx context.Context) <-chan storage.RowsStream[uuid.UUID]
}

type Scheduler struct {
	logger *logrus.Logger

	client Enqueuer
	queue  string
	repo   OpenAgreements
	wm     *metrics.WorkerMetrics

	pollInterval     time.Duration
	iterationTimeout time.Duration
	concurrency      int
}

func NewScheduler(
	logger *logrus.Logger,
	client Enqueuer,
	queue string,
	repo OpenAgreements,
	pollInterval,
	iterationTimeout time.Duration,
	concurrency int,
	wm *metrics.WorkerMetrics,
) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if iterationTimeout <= 0 {
		iterationTimeout = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Scheduler{
		logger:           logger.WithField("pkg", "worker.Scheduler").Logger,
		client:           client,
		queue:            queue,
		repo:             repo,
		wm:               wm,
		pollInterval:     pollInterval,
		iterationTimeout: iterationTimeout,
		concurrency:      concurrency,
	}
}

// Start enqueues immediately and then every poll interval until ctx is done.
func (s *Scheduler) Start(aliveCtx context.Context) error {
	if _, err := s.Enqueue(aliveCtx); err != nil {
		s.logger.Errorf("processing error, continue loop: %v", err)
	}

	for {
		select {
		case <-aliveCtx.Done():
			s.logger.Infof("context done & no processing: stop scheduler")
			return nil
		case <-time.After(s.pollInterval):
			if _, err := s.Enqueue(aliveCtx); err != nil {
				s.logger.Errorf("processing error, continue loop: %v", err)
			}
		}
	}
}

// Enqueue runs one scheduling pass and returns how many tasks were accepted.
// Agreements already queued are skipped silently.
func (s *Scheduler) Enqueue(c context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(c, s.iterationTimeout)
	defer cancel()

	var (
		eg    errgroup.Group
		count atomic.Int64
	)
	eg.SetLimit(s.concurrency)

	for item := range s.repo.GetOpenAgreements(ctx) {
		if item.Err != nil {
			_ = eg.Wait()
			return int(count.Load()), fmt.Errorf("failed to get open agreements: %w", item.Err)
		}

		id := item.Row
		eg.Go(func() error {
			task, opts, er := tasks.NewReconcileTask(id, s.queue)
			if er != nil {
				return fmt.Errorf("tasks.NewReconcileTask: %w", er)
			}
			_, er = s.client.EnqueueContext(ctx, task, opts...)
			if errors.Is(er, asynq.ErrTaskIDConflict) || errors.Is(er, asynq.ErrDuplicateTask) {
				return nil
			}
			if er != nil {
				return fmt.Errorf("failed to enqueue %s: %w", id, er)
			}
			s.wm.RecordEnqueued(tasks.TypeReconcileAgreement)
			count.Add(1)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return int(count.Load()), fmt.Errorf("failed to process agreements: %w", err)
	}
	s.logger.WithField("enqueued", count.Load()).Debug("scheduler tick")
	return int(count.Load()), nil
}
