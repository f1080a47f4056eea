package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/api"
	"github.com/gatherly/pushpipe/internal/breaker"
	"github.com/gatherly/pushpipe/internal/config"
	"github.com/gatherly/pushpipe/internal/db"
	"github.com/gatherly/pushpipe/internal/dispatch"
	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/handler"
	"github.com/gatherly/pushpipe/internal/idempotency"
	"github.com/gatherly/pushpipe/internal/metrics"
	"github.com/gatherly/pushpipe/internal/notify"
	"github.com/gatherly/pushpipe/internal/provider"
	"github.com/gatherly/pushpipe/internal/queue"
	"github.com/gatherly/pushpipe/internal/receipt"
	"github.com/gatherly/pushpipe/internal/region"
	"github.com/gatherly/pushpipe/internal/store"
	"github.com/gatherly/pushpipe/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- regional databases ----
	ctx := context.Background()
	stores := store.NewRegistry(cfg.DefaultPartition)
	for _, p := range cfg.Partitions {
		pool, err := db.Connect(ctx, p.DSN, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal("failed to connect to partition database",
				zap.String("partition", string(p.ID)), zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(p.DSN); err != nil {
			logger.Fatal("failed to run migrations",
				zap.String("partition", string(p.ID)), zap.Error(err))
		}
		stores.Add(p.ID, store.NewPgPartition(pool))
	}
	logger.Info("partitions ready", zap.Int("count", len(cfg.Partitions)))

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := region.NewRouter(stores, logger)

	processedBy, err := os.Hostname()
	if err != nil || processedBy == "" {
		processedBy = uuid.NewString()
	}
	lock := idempotency.NewLock(stores, processedBy, cfg.LockTTL)

	prov := provider.NewExpoProvider(cfg.ProviderBaseURL, cfg.ProviderTimeout)

	reconciler := receipt.New(prov, stores, cfg.ReceiptDelay, logger)
	reconciler.OnRevoked = m.TokensRevoked.Inc

	dispatcher := dispatch.New(prov, reconciler, cfg.ChunkSize, cfg.ChunkDelay, cfg.ProviderRate, logger)

	q := queue.NewService(stores, dispatcher, queue.Options{
		DedupWindow: cfg.DedupWindow,
		StaleAfter:  cfg.StaleAfter,
		MaxAttempts: cfg.MaxAttempts,
		DrainBatch:  cfg.DrainBatch,
	}, m.QueueHooks(), logger)

	brk := breaker.New(cfg.BreakerWindow, cfg.BreakerMaxSize)

	sender := notify.NewSender(stores, router, brk, dispatcher, logger)
	sender.OnSuppressed = func(typ domain.JobType) {
		m.BreakerSuppressed.WithLabelValues(string(typ)).Inc()
	}

	changeMux := handler.NewMux()
	changeMux.Register(domain.CollectionLikes, handler.NewMatchHandler(stores, lock, q, logger))
	changeMux.Register(domain.CollectionMessages, handler.NewMessageHandler(stores, lock, q, logger))

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(workerCtx)
		}()
	}
	run(reconciler.Run)
	run(worker.NewDrainer(stores, q, logger).Run)
	run(worker.NewSweeper(stores, q, cfg.SweepInterval, cfg.SweepBudget, logger).Run)

	// ---- HTTP server ----
	mux := api.NewRouter(api.Deps{
		Stores:       stores,
		Router:       router,
		ChangeMux:    changeMux,
		Sender:       sender,
		Breaker:      brk,
		Registry:     reg,
		LegacySecret: cfg.LegacySecret,
		Logger:       logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all workers to stop processing new work.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish.
	wg.Wait()

	logger.Info("server stopped cleanly")
}
