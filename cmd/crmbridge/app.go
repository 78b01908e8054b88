package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/crmbridge/internal/config"
	"github.com/example/crmbridge/internal/crm"
	"github.com/example/crmbridge/internal/espo"
	"github.com/example/crmbridge/internal/logging"
	"github.com/example/crmbridge/internal/maintenance"
	"github.com/example/crmbridge/internal/metrics"
	"github.com/example/crmbridge/internal/persistence/sqlite"
)

type rootOptions struct {
	envFile *string
}

// app holds the wired components shared by every command.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	storage *sqlite.Storage
	metrics *metrics.Metrics
	adapter *crm.Adapter
	sweeper *maintenance.Sweeper
}

// newApp loads configuration, opens and migrates the store and wires the
// adapter. The caller must call close.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	var files []string
	if opts.envFile != nil && *opts.envFile != "" {
		files = append(files, *opts.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	ctx := cmd.Context()
	storage, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open storage", "error", err, "path", cfg.DBPath)
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		logger.Error("failed to apply migrations", "error", err)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	m := metrics.New()
	remote := espo.NewClient(cfg.EspoAPIURL, cfg.EspoAPIKey,
		espo.WithTimeout(cfg.EspoTimeout),
		espo.WithLogger(logger),
	)
	adapter := crm.New(remote, storage, crm.Options{
		OrgEmailDomain: cfg.OrgEmailDomain,
		SearchTTL:      cfg.SearchCacheTTL,
		PageSize:       cfg.SyncPageSize,
		Logger:         logger,
		Observer:       m,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		storage: storage,
		metrics: m,
		adapter: adapter,
		sweeper: maintenance.NewSweeper(storage, cfg.SweepInterval, logger, m),
	}, nil
}

func (a *app) close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd, opts)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), cmd, a)
	}
}
