package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"safepiggy/internal/amqp"
	"safepiggy/internal/cache"
	"safepiggy/internal/cli"
	"safepiggy/internal/config"
	"safepiggy/internal/core"
	apphttp "safepiggy/internal/http"
	"safepiggy/internal/log"
	"safepiggy/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	res := cli.InitStore(context.Background(), logger, cfg)

	statsCache := cache.NewLRUCache[core.MonthlyStats](12, cfg.StatsCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(10 * time.Minute)

	opts := []services.Option{
		services.WithStatsCache(statsCache),
		services.WithStatsTimeout(cfg.RequestTimeout),
	}
	if cfg.ExportQueueEnabled() {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The ledger still works without the export queue.
			logger.Error("Failed to connect to AMQP, spreadsheet export disabled", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(publisher))
			logger.Info("Export queue connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	svc := services.NewExpenseService(res.Store, opts...)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RequestTimeout:     cfg.RequestTimeout,
		CORSAllowedOrigin:  cfg.CORSAllowedOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, svc, logger)
	if err != nil {
		logger.Error("Failed to configure HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
		m := srv.Metrics()
		logger.Info("Request totals",
			"requests", m.TotalRequests,
			"rate_limited", m.RateLimitHits,
			"suspicious", m.SuspiciousRequests)
		cs := statsCache.Stats()
		logger.Info("Stats cache totals",
			"hits", cs.Hits,
			"misses", cs.Misses,
			"evictions", cs.Evictions)
	})

	logger.Info("Starting safepiggy server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"export_queue", cfg.ExportQueueEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
