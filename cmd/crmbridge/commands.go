package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httptransport "github.com/example/crmbridge/internal/http"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var skipSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load CRM contacts and serve the health and admin API",
		RunE: withApp(opts, func(ctx context.Context, _ *cobra.Command, a *app) error {
			if !skipSync {
				go a.adapter.Initialize(ctx)
			}
			go a.sweeper.Run(ctx)

			health := httptransport.NewHealthHandler(a.storage, Version, nil, a.logger)
			router := httptransport.NewRouter(httptransport.RouterConfig{
				Health:     health,
				Admin:      httptransport.NewAdminHandler(a.adapter, a.sweeper, a.logger),
				Members:    httptransport.NewMemberHandler(a.adapter, a.logger),
				Metrics:    a.metrics.Handler(),
				Instrument: a.metrics.Middleware,
				Middleware: []func(http.Handler) http.Handler{
					httptransport.RequestLogger(a.logger),
					httptransport.Recoverer(a.logger),
				},
			})

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("failed to shutdown server", "error", err)
				}
			}()

			a.logger.Info("crmbridge API listening", "addr", server.Addr, "version", Version)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("server encountered error", "error", err)
				return err
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "do not load CRM contacts at startup")
	return cmd
}

func syncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Load every member and candidate contact from the CRM",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			loaded, err := a.adapter.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync contacts: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d contacts\n", loaded)
			return nil
		}),
	}
}

func lookupCmd(opts *rootOptions) *cobra.Command {
	var platformID, email string

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find a member by platform user id or email",
		Example: `  crmbridge lookup --platform-id 123456789
  crmbridge lookup --email someone@508.dev`,
		PreRunE: func(*cobra.Command, []string) error {
			if (platformID == "") == (email == "") {
				return errors.New("specify exactly one of --platform-id or --email")
			}
			return nil
		},
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			lookup := a.adapter.FindMemberByEmail
			key := email
			if platformID != "" {
				lookup = a.adapter.FindMemberByPlatformID
				key = platformID
			}
			record, err := lookup(ctx, key)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", key, err)
			}
			return printJSON(cmd, record)
		}),
	}
	cmd.Flags().StringVar(&platformID, "platform-id", "", "chat platform user id")
	cmd.Flags().StringVar(&email, "email", "", "primary or alternate email")
	return cmd
}

func statsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store and cache statistics",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			stats, err := a.adapter.GetCacheStats(ctx)
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}
			return printJSON(cmd, stats)
		}),
	}
}

func sweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache entries",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			removed, err := a.sweeper.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache entries\n", removed)
			return nil
		}),
	}
}

func clearCacheCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Clear the CRM cache partition (members and contact records are kept)",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			cleared, err := a.adapter.ClearCache(ctx)
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries\n", cleared)
			return nil
		}),
	}
}

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			status, err := a.storage.MigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %s (%d applied, %d pending)\n",
				status.CurrentVersion, len(status.AppliedMigrations), status.PendingCount)
			return nil
		}),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
