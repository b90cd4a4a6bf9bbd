package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensegroups/internal/amqp"
	"expensegroups/internal/cli"
	"expensegroups/internal/config"
	"expensegroups/internal/sheets"
	gsheet "expensegroups/internal/sheets/google"
	memsheet "expensegroups/internal/sheets/memory"
	"expensegroups/internal/storage"
	"expensegroups/internal/store"
	"expensegroups/internal/worker"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "log exported rows instead of writing to Google Sheets")
	startupSync := flag.Bool("full-sync", true, "export every stored expense at startup (sqlite backend only)")
	syncInterval := flag.Duration("sync-interval", 0, "repeat the full sync at this interval; 0 disables it")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	if !*dryRun {
		if err := cfg.ValidateExport(); err != nil {
			logger.Error("Export configuration validation failed", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	logger.Info("Starting expenses-worker", "dry_run", *dryRun)

	exporter, err := newExporter(ctx, cfg, *dryRun, logger)
	if err != nil {
		logger.Error("Failed to initialize exporter", "error", err)
		os.Exit(1)
	}

	// Events carry the full record, so the store is only needed to resolve
	// late events and to run full syncs. The memory backend lives inside
	// the web process and cannot be shared.
	var expenses store.ExpenseStore
	if cfg.DataBackend == "sqlite" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		expenses = repo
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewExportWorker(exporter, expenses, logger)

	if expenses != nil && *startupSync {
		logger.Info("Performing startup sync")
		if err := w.FullSync(ctx); err != nil {
			logger.Error("Startup sync failed", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeExpenseEvents(gctx, w.HandleEvent)
	})
	if expenses != nil && *syncInterval > 0 {
		g.Go(func() error {
			return periodicSync(gctx, w, *syncInterval, logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func newExporter(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (sheets.Exporter, error) {
	if dryRun {
		return memsheet.New(logger), nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}, logger)
}

func periodicSync(ctx context.Context, w *worker.ExportWorker, every time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.FullSync(ctx); err != nil {
				logger.Error("Periodic sync failed", "error", err)
			}
		}
	}
}
