package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"safepiggy/internal/amqp"
	"safepiggy/internal/cli"
	"safepiggy/internal/config"
	"safepiggy/internal/log"
	gsheet "safepiggy/internal/sheets/google"
	"safepiggy/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting export worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateExportWorker)

	res := cli.InitStore(context.Background(), logger, cfg)

	writer, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exporter := worker.NewExportWorker(res.Store, writer, cfg.GoogleSheetName)

	var consumer *amqp.Client
	if cfg.ExportQueueEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP_URL not set, only scheduled exports will run")
	}

	var scheduler *worker.Scheduler
	if cfg.ExportSchedule != "" {
		scheduler, err = worker.NewScheduler(cfg.ExportSchedule, exporter, cfg.ExportTimeout)
		if err != nil {
			logger.Error("Invalid export schedule", "error", err)
			os.Exit(1)
		}
	}

	if consumer == nil && scheduler == nil {
		logger.Error("Nothing to do: configure AMQP_URL or EXPORT_SCHEDULE")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			handler := func(ctx context.Context, msg *amqp.ExportRequestMessage) error {
				hctx, cancel := context.WithTimeout(ctx, cfg.ExportTimeout)
				defer cancel()
				return exporter.HandleExportRequest(hctx, msg)
			}
			return consumer.ConsumeExportRequests(gctx, handler)
		})
	}
	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Export worker stopped")
}
