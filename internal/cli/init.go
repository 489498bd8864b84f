// Package cli holds the start-up steps shared by the sobres binaries and the
// terminal styling used by sobresctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"sobres/internal/backend"
	"sobres/internal/config"
	"sobres/internal/controller"
	"sobres/internal/log"
	"sobres/internal/prefs"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the logger described by cfg and makes it the default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Session is a controller over the configured backend plus the user's
// preferences, for one-shot commands.
type Session struct {
	Controller *controller.Controller
	Prefs      *prefs.Store
	backend    *backend.BackendResult
}

// OpenSession connects to the backend named by cfg.
func OpenSession(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Session, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		_ = result.Close()
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return &Session{
		Controller: controller.New(result.Ledger, controller.Options{Logger: logger}),
		Prefs:      store,
		backend:    result,
	}, nil
}

// Close waits for queued assignments to be written, then releases the backend.
func (s *Session) Close(ctx context.Context) error {
	waitErr := s.Controller.Budget().Wait(ctx)
	closeErr := s.backend.Close()
	if waitErr != nil {
		return waitErr
	}
	return closeErr
}
