package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/config"
	"github.com/ayusman/holistic/internal/logging"
	"github.com/ayusman/holistic/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfgPath string
	dbPath  string

	// cfg, logger and db are set up by the root command for every subcommand.
	cfg    *config.Config
	logger *zap.Logger
	db     *store.Store
)

var rootCmd = &cobra.Command{
	Use:           "holistic",
	Short:         "Holistic pose, face and hand landmark pipeline",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.Path = dbPath
		}

		logger, err = logging.New(cfg.Server.Mode)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		db, err = store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
		if logger != nil {
			logging.Sync(logger)
		}
	},
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "session database path (overrides store.path)")
}
