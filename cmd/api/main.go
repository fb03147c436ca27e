package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vultisig/schedpay/config"
	"github.com/vultisig/schedpay/internal/api"
	"github.com/vultisig/schedpay/internal/cache"
	"github.com/vultisig/schedpay/internal/chain"
	"github.com/vultisig/schedpay/internal/graceful"
	"github.com/vultisig/schedpay/internal/logging"
	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/internal/service"
	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/internal/storage/postgres"
	"github.com/vultisig/schedpay/reconcile"
)

func main() {
	ctx := context.Background()

	cfg, err := config.ReadAPIConfig()
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(cfg.LogFormat)

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{
		metrics.ServiceHTTP,
		metrics.ServiceReconcile,
		metrics.ServiceChain,
	}, logger)

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

	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, logger, reconciler, postgres.ErrNotFound)

	go graceful.HandleSignals(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if er := server.Shutdown(shutdownCtx); er != nil {
			logger.Errorf("failed to shutdown api server: %v", er)
		}
		if er := metricsServer.Stop(shutdownCtx); er != nil {
			logger.Errorf("failed to shutdown metrics server: %v", er)
		}
	})

	if err := server.StartServer(); err != nil {
		panic(err)
	}
}
