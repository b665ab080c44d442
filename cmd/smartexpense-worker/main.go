package main

import (
	"context"
	"errors"
	"os"

	"smartexpense/internal/amqp"
	"smartexpense/internal/cli"
	applog "smartexpense/internal/log"
	"smartexpense/internal/sheets"
	gsheet "smartexpense/internal/sheets/google"
	"smartexpense/internal/worker"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.Cleanup(logger, "backend", result.Cleanup)

	var mirror sheets.Mirror
	if cfg.Sheets.SpreadsheetID != "" {
		client, err := gsheet.NewClient(ctx, cfg.Sheets)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer cli.Cleanup(logger, "amqp", amqpClient.Close)

	reporter := worker.NewMonthlyReporter(result.Store, mirror)
	scheduler := cron.New()
	if _, err := reporter.Schedule(ctx, scheduler, cfg.ReportSchedule, cfg.ReportTimeout); err != nil {
		logger.Error("Failed to schedule monthly report", "error", err, "schedule", cfg.ReportSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Monthly report scheduled", "schedule", cfg.ReportSchedule)

	events := worker.NewEventWorker(mirror)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, events.Handle)
	})

	logger.Info("Worker started", "queue", cfg.AMQPQueue)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
	}

	logger.Info("Shutting down worker...")
	<-scheduler.Stop().Done()
	logger.Info("Worker shutdown complete")
}
