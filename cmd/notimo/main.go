package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"notimo/internal/amqp"
	"notimo/internal/backend"
	"notimo/internal/cache"
	"notimo/internal/cli"
	apphttp "notimo/internal/http"
	"notimo/internal/ledger"
	"notimo/internal/log"
	"notimo/internal/services"
	"notimo/internal/worker"
)

const (
	initialRefreshTimeout = 30 * time.Second
	cacheCleanupInterval  = 5 * time.Minute
)

func main() {
	cfg, logger := cli.MustLoadConfig()
	logger.Info("Starting notimo", cli.Describe(cfg)...)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without ledger events", log.FieldError, err)
		} else {
			publisher = client
			defer client.Close()
		}
	}

	include := ledger.AnyStatus
	if cfg.GateValidated() {
		include = ledger.ValidatedOnly
	}
	svc := services.NewTransactionService(res.Backend, publisher, services.Config{
		Options:   ledger.Options{Location: backendCfg.Location, Include: include},
		CacheSize: cfg.ViewCacheSize,
		CacheTTL:  cfg.ViewCacheTTL,
		Logger:    logger.WithComponent(log.ComponentService),
	})
	defer svc.Close()

	rctx, rcancel := context.WithTimeout(ctx, initialRefreshTimeout)
	if err := svc.RefreshAll(rctx); err != nil {
		logger.Warn("Initial refresh failed, serving empty views until the next run", log.FieldError, err)
	}
	rcancel()

	caches := cache.NewManager(logger)
	for _, c := range svc.CacheCleaners() {
		caches.Register(c)
	}
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	refresher := worker.NewRefresher(svc, worker.RefresherConfig{
		Schedule: cfg.RefreshSchedule,
		Timeout:  cfg.RefreshTimeout,
	}, logger.WithComponent(log.ComponentWorker))
	if err := refresher.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start refresher", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:   logger.WithComponent(log.ComponentHTTP),
		Location: backendCfg.Location,
		Ready:    res.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := cli.ShutdownContext(cfg.ShutdownTimeout)
		defer scancel()

		if err := refresher.Stop(sctx); err != nil {
			logger.Warn("Refresher did not stop cleanly", log.FieldError, err)
		}
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		return
	}
	runs, failures := refresher.Stats()
	logger.Info("Server stopped gracefully", "refresh_runs", runs, "refresh_failures", failures)
}
