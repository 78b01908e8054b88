package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "crmbridge",
		Short:         "Local mirror of EspoCRM members with cache-aside lookups",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to read in addition to the environment (default .env)")

	opts := &rootOptions{envFile: &envFile}
	rootCmd.AddCommand(
		serveCmd(opts),
		syncCmd(opts),
		lookupCmd(opts),
		statsCmd(opts),
		sweepCmd(opts),
		clearCacheCmd(opts),
		migrateCmd(opts),
	)
	return rootCmd
}
