// Package app wires the configured storage, publishers and notifiers into a
// sales service.
package app

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"salesdata/internal/config"
	"salesdata/internal/notify"
	"salesdata/internal/publish"
	"salesdata/internal/sales"
)

// App holds the service and the resources it needs closed.
type App struct {
	Service *sales.Service
	Storage *sales.FileStorage

	logger  *zap.Logger
	closers []func() error
}

// New builds the service described by cfg. When withPublishers is false no
// publishers or broker connections are set up.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, withPublishers bool) (*App, error) {
	a := &App{Storage: sales.NewFileStorage(cfg.Generator.OutputDir), logger: logger}

	opts := []sales.Option{sales.WithLimits(cfg.GeneratorLimits())}
	if withPublishers {
		publishers, notifiers, err := a.extensions(ctx, cfg, logger)
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		opts = append(opts, sales.WithPublishers(publishers...), sales.WithNotifiers(notifiers...))
	}

	a.Service = sales.NewService(a.Storage, logger, opts...)
	return a, nil
}

func (a *App) extensions(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]sales.Publisher, []sales.Notifier, error) {
	var publishers []sales.Publisher
	if cfg.Postgres.URL != "" {
		pool, err := publish.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		publishers = append(publishers, publish.NewPostgresPublisher(pool, logger))
	}
	if cfg.S3.Bucket != "" {
		client, err := publish.NewS3Client(cfg.S3.Region)
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, publish.NewS3Publisher(client, cfg.S3.Bucket, cfg.S3.Prefix, logger))
	}

	var notifiers []sales.Notifier
	if cfg.RabbitMQ.URL != "" {
		n, err := notify.DialRabbitMQ(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, n.Close)
		notifiers = append(notifiers, n)
	} else {
		notifiers = append(notifiers, notify.NewLogNotifier(logger))
	}
	return publishers, notifiers, nil
}

// LoadOrGenerate loads the stored dataset, generating one with opts when the
// output directory holds none or holds files from more than one run.
func (a *App) LoadOrGenerate(ctx context.Context, opts sales.Options) (*sales.Dataset, error) {
	ds, err := a.Service.Load(ctx)
	switch {
	case errors.Is(err, sales.ErrDatasetNotFound):
	case errors.Is(err, sales.ErrInconsistentDataset):
		a.logger.Warn("stored dataset is inconsistent, regenerating", zap.Error(err))
	default:
		return ds, err
	}
	return a.Service.Generate(ctx, opts)
}

// Close releases broker and database connections.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
