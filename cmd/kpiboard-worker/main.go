package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kpiboard/internal/amqp"
	"kpiboard/internal/cli"
	"kpiboard/internal/sheets"
	gsheet "kpiboard/internal/sheets/google"
	smemory "kpiboard/internal/sheets/memory"
	"kpiboard/internal/storage"
	"kpiboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting kpiboard-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	calendar := cli.FiscalCalendar(logger, cfg)

	// The worker mirrors what the server stored, so it reads the same database.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var mirror sheets.DocumentMirror
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			BudgetSheet:        cfg.GoogleBudgetSheet,
			DashboardSheet:     cfg.GoogleDashboardSheet,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mirror = smemory.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
	}

	syncWorker := worker.NewSyncWorker(repo, mirror, calendar)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup sync")
	if err := syncWorker.SyncAll(ctx); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}

	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			if err := amqpClient.Consume(ctx, syncWorker.HandleDocumentReplaced); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic sync only")
	}

	// Periodic full sync catches messages lost while the worker was down.
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.SyncAll(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
