package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/schedpay/config"
	"github.com/vultisig/schedpay/internal/cache"
	"github.com/vultisig/schedpay/internal/chain"
	"github.com/vultisig/schedpay/internal/graceful"
	"github.com/vultisig/schedpay/internal/health"
	"github.com/vultisig/schedpay/internal/logging"
	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/internal/service"
	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/internal/storage/postgres"
	"github.com/vultisig/schedpay/internal/worker"
	"github.com/vultisig/schedpay/reconcile"
)

func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := config.ReadWorkerConfig()
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(cfg.LogFormat)

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{
		metrics.ServiceWorker,
		metrics.ServiceReconcile,
		metrics.ServiceChain,
	}, logger)

	redisConnOpt, err := cfg.Redis.AsynqOpt()
	if err != nil {
		panic(err)
	}

	store, err := postgres.NewStore(ctx, logger, cfg.Database.DSN)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize database: %v", err))
	}
	defer store.Close()

	redisStorage, err := storage.NewRedisStorage(ctx, cfg.Redis)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize redis: %v", err))
	}
	defer func() {
		_ = redisStorage.Close()
	}()

	readers, err := chain.NewReaders(ctx, logger, cfg.Rpc, metrics.NewChainMetrics())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize chain readers: %v", err))
	}

	reconciler := service.NewReconciler(
		logger,
		store,
		readers,
		cache.NewSnapshotCache(logger, redisStorage, cfg.Reconcile.SnapshotCacheTTL),
		reconcile.NewEngine(cfg.Reconcile.Cadence),
		metrics.NewReconcileMetrics(),
	)

	workerMetrics := metrics.NewWorkerMetrics()

	client := asynq.NewClient(redisConnOpt)
	defer func() {
		if er := client.Close(); er != nil {
			logger.Errorf("fail to close asynq client: %v", er)
		}
	}()

	scheduler := worker.NewScheduler(
		logger,
		client,
		cfg.Worker.Queue,
		store,
		cfg.Worker.Interval,
		cfg.Worker.IterationTimeout,
		cfg.Worker.Concurrency,
		workerMetrics,
	)

	srv := asynq.NewServer(
		redisConnOpt,
		asynq.Config{
			Logger:      logger,
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				cfg.Worker.Queue: 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	worker.NewHandler(logger, reconciler, workerMetrics, postgres.ErrNotFound).Register(mux)

	go graceful.HandleSignals(stop)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return scheduler.Start(egCtx)
	})
	eg.Go(func() error {
		return health.New(cfg.Worker.HealthPort, map[string]health.Check{
			"postgres": store.Pool().Ping,
			"redis": func(c context.Context) error {
				return redisStorage.Client().Ping(c).Err()
			},
		}).Start(egCtx, logger)
	})
	eg.Go(func() error {
		if er := srv.Start(mux); er != nil {
			return fmt.Errorf("srv.Start: %w", er)
		}
		<-egCtx.Done()
		srv.Shutdown()
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Errorf("worker stopped with error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if er := metricsServer.Stop(shutdownCtx); er != nil {
		logger.Errorf("failed to shutdown metrics server: %v", er)
	}
}
