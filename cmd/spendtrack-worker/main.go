package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spendtrack/internal/amqp"
	"spendtrack/internal/config"
	"spendtrack/internal/log"
	"spendtrack/internal/sheets"
	gsheet "spendtrack/internal/sheets/google"
	mem "spendtrack/internal/sheets/memory"
	"spendtrack/internal/storage"
	"spendtrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.New(log.Config{Component: log.ComponentWorker}).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting spendtrack-worker")

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Export target: Google Sheets when configured, otherwise an in-memory
	// store so the rest of the pipeline still runs in local setups.
	var writer sheets.ExpenseWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Warn("Google Sheets disabled - exporting to in-memory store")
	}

	syncWorker := worker.NewSyncWorker(repo, writer, cfg.SyncBatchSize)

	// Catch up on anything created while the worker was down.
	if err := syncWorker.ProcessPendingExpenses(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			if err := amqpClient.ConsumeExpenseEvents(ctx, syncWorker.HandleExpenseEvent); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	} else {
		logger.Warn("AMQP disabled - relying on periodic scans only")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := syncWorker.ProcessPendingExpenses(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
