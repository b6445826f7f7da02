package backend

import (
	"context"
	"fmt"
	"log/slog"

	"housefin/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.Open(ctx, storage.Options{
		Driver:          config.Type.Driver(),
		DSN:             config.DSN,
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}

	attrs := []any{"backend", config.Type.String(), "max_open_conns", config.MaxOpenConns}
	if config.Type == SQLiteBackend {
		attrs = append(attrs, "db_path", config.DSN)
	}
	f.logger.Info("Initialized storage backend", attrs...)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}
