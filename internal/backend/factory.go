package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kpiboard/internal/amqp"
	"kpiboard/internal/persistence/memory"
	"kpiboard/internal/services"
	"kpiboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// dial is swapped in tests
	dial func(url, exchange, queue string) (services.Publisher, func() error, error)
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "backend"),
		dial:   dialAMQP,
	}
}

func dialAMQP(url, exchange, queue string) (services.Publisher, func() error, error) {
	client, err := amqp.NewClient(url, exchange, queue)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// CreateBackend implements Factory.CreateBackend. A sqlite backend that
// cannot be opened degrades to memory instead of failing startup.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config)
		if err != nil {
			f.logger.WarnContext(ctx, "SQLite backend unavailable, degrading to in-memory documents",
				"db_path", config.SQLiteDBPath,
				"error", err)
			result = f.createMemoryBackend(ctx)
		}
	case MemoryBackend:
		result = f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	f.attachPublisher(ctx, config, result)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", repo.SchemaVersion())

	return &BackendResult{
		Repository: repo,
		Durable:    true,
		Type:       SQLiteBackend,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) *BackendResult {
	f.logger.InfoContext(ctx, "Initialized memory backend")
	return &BackendResult{
		Repository: memory.New(),
		Durable:    false,
		Type:       MemoryBackend,
	}
}

// attachPublisher connects to AMQP when configured. A broker that is down at
// startup only disables notifications.
func (f *DefaultFactory) attachPublisher(ctx context.Context, config Config, result *BackendResult) {
	if config.AMQPURL == "" {
		return
	}
	pub, closeFn, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications", "error", err)
		return
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Publisher = pub
	prev := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if closeFn != nil {
			errs = append(errs, closeFn())
		}
		if prev != nil {
			errs = append(errs, prev())
		}
		return errors.Join(errs...)
	}
}
