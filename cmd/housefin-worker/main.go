package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"housefin/internal/amqp"
	"housefin/internal/cli"
	applog "housefin/internal/log"
	"housefin/internal/sheets"
	gsheet "housefin/internal/sheets/google"
	"housefin/internal/sheets/memory"
	"housefin/internal/worker"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "mirror into an in-memory sheet instead of Google Sheets")
	backfill := flag.String("backfill-home", "", "mirror every contribution of the named home, then exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.IsProduction()).WithComponent(applog.ComponentWorker)

	if !*dryRun {
		if err := cfg.ValidateWorker(); err != nil {
			logger.Error("Worker configuration validation failed", applog.FieldError, err.Error(), applog.FieldErrorType, applog.ErrorTypeConfiguration)
			os.Exit(1)
		}
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()
	res := cli.InitStore(startupCtx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Store close failed", applog.FieldError, err.Error())
		}
	}()

	var writer sheets.ContributionWriter
	if *dryRun {
		writer = memory.New()
		logger.Info("Dry run: rows are kept in memory")
	} else {
		client, err := gsheet.NewFromConfig(context.Background(), cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	syncWorker := worker.NewSyncWorker(res.Store, writer, logger)

	if *backfill != "" {
		n, err := syncWorker.BackfillHome(context.Background(), *backfill)
		if err != nil {
			logger.Error("Backfill failed", applog.FieldError, err.Error(), applog.FieldHomeName, *backfill, "mirrored", n)
			os.Exit(1)
		}
		logger.Info("Backfill done", applog.FieldHomeName, *backfill, "mirrored", n)
		return
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume contribution events", applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	consumer.SetLogger(logger)
	defer consumer.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		st := syncWorker.Stats()
		logger.Info("Worker stopping", "mirrored", st.Mirrored, "skipped", st.Skipped, "failed", st.Failed)
	})

	logger.Info("Starting housefin-worker", "queue", cfg.AMQPQueue)
	if err := syncWorker.Run(ctx, consumer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
