package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sobres/internal/backend"
	"sobres/internal/cache"
	"sobres/internal/cli"
	"sobres/internal/config"
	"sobres/internal/controller"
	apphttp "sobres/internal/http"
	"sobres/internal/log"
	"sobres/internal/prefs"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()

	logger := cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		logger.Error("Failed to load preferences", log.FieldError, err, "path", cfg.PrefsPath)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	ctrl := controller.New(result.Ledger, controller.Options{
		ListTTL: cfg.PollInterval,
		Logger:  logger,
		Caches:  caches,
	})
	go controller.NewPoller(ctrl.Budget(), cfg.PollInterval, logger).Run(ctx)

	srv, err := apphttp.NewServer(":"+cfg.Port, ctrl, store, apphttp.Options{
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		Ready: func(ctx context.Context) error {
			_, err := result.Ledger.ListGroups(ctx)
			return err
		},
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		// Let assignments already accepted reach the backend.
		if err := ctrl.Budget().Wait(shutdownCtx); err != nil {
			logger.Warn("Pending assignments not flushed", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting sobres server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend, "prefs", store.Path())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped
	logger.Info("Server stopped gracefully")
}
