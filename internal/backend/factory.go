package backend

import (
	"context"
	"fmt"

	"sobres/internal/amqp"
	"sobres/internal/config"
	"sobres/internal/ledger"
	"sobres/internal/log"
	"sobres/internal/ports/memory"
	"sobres/internal/ports/rest"
	"sobres/internal/services"
	"sobres/internal/storage"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("DATA_BACKEND %q: want one of %s", appConfig.DataBackend, typeNames())
	}
	return Config{
		Type:          backendType,
		APIURL:        appConfig.APIURL,
		APITimeout:    appConfig.APITimeout,
		APIRetries:    appConfig.APIRetries,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
		DataDirectory: appConfig.DataDir,
		CarryPolicy:   appConfig.CarryPolicy,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case RESTBackend:
		if c.APIURL == "" {
			return fmt.Errorf("API URL is required for rest backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	}
	return nil
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RESTBackend:
		return f.createRESTBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(config Config) (*BackendResult, error) {
	retries := config.APIRetries
	if retries < 0 {
		retries = 0
	}
	client, err := rest.New(rest.Config{
		BaseURL: config.APIURL,
		Timeout: config.APITimeout,
		Retries: uint64(retries),
		Logger:  f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST client: %w", err)
	}

	f.logger.Info("Initialized REST backend", "api_url", config.APIURL, "retries", retries)
	return &BackendResult{Ledger: client}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	opts := services.Options{
		Carry:  ledger.CarryPolicy(config.CarryPolicy),
		Logger: f.logger,
	}

	// AMQP is optional; without it the worker still finds changes by polling the queue.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			opts.Publisher = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", opts.Publisher != nil)

	res := &BackendResult{Ledger: services.NewLedgerService(repo, opts)}
	res.onClose(repo.Close)
	if amqpClient != nil {
		res.onClose(func() error {
			if err := amqpClient.Close(); err != nil {
				f.logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
			return nil
		})
	}
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Ledger: services.NewLedgerService(store, services.Options{
			Carry:  ledger.CarryPolicy(config.CarryPolicy),
			Logger: f.logger,
		}),
	}, nil
}
