package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sobres/internal/amqp"
	"sobres/internal/cli"
	"sobres/internal/config"
	"sobres/internal/log"
	"sobres/internal/ports/rest"
	"sobres/internal/storage"
	"sobres/internal/worker"
)

// taxonomyInterval is how often the upstream category tree is mirrored.
const taxonomyInterval = 6 * time.Hour

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()

	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)

	logger.Info("Starting sobres-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	upstream, err := rest.New(rest.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.APITimeout,
		Retries: uint64(max(cfg.APIRetries, 0)),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("Failed to initialize upstream client", log.FieldError, err, "api_url", cfg.APIURL)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	procCfg := worker.DefaultSyncProcessorConfig()
	procCfg.PollInterval = cfg.SyncInterval
	procCfg.BatchSize = cfg.SyncBatchSize
	processor := worker.NewSyncProcessor(repo, upstream, procCfg, logger)
	syncWorker := worker.NewSyncWorker(processor, upstream, repo, logger)

	// Rows left in processing by a crash go back to pending before the loop starts.
	if err := repo.ResetStaleProcessing(ctx); err != nil {
		logger.Warn("Failed to reset stale sync items", log.FieldError, err)
	}
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	go syncWorker.RunTaxonomySync(ctx, taxonomyInterval)

	// Notifications only shorten the wait; the processor polls the queue either way.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on queue polling", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			go func() {
				if err := amqpClient.ConsumeWithRetry(ctx, syncWorker.HandleLedgerChange); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", log.FieldError, err)
				}
			}()
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	if stats, err := processor.Stats(ctx); err == nil {
		logger.Info("Sync queue state", "pending", stats.Pending, "failed", stats.Failed)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Sync processor did not stop cleanly", log.FieldError, err)
	}
	cancel()
	logger.Info("Worker shutdown complete")
}
