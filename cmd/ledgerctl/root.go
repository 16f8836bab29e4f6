package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xxz807/finscale/accounting/internal/app"
	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/logger"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the double-entry ledger, subledgers and settlement",
	Long: `ledgerctl runs and maintains the accounting core.

Configuration comes from the file given with --config (optional), a .env
file and LEDGER_* environment variables, e.g. LEDGER_DATABASE_DSN.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the YAML config file")
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config, builds the logger and wires the application.
// The caller closes the returned app.
func bootstrap(cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Server.Mode)
	if err != nil {
		return nil, err
	}
	return open(cfg, logger.Component(log, cmd.Name()))
}

// open wires the application; on failure the logger is flushed here since
// no app exists to close it.
func open(cfg *config.Config, log *zap.Logger) (*app.App, error) {
	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("bootstrap failed", zap.Error(err))
		_ = log.Sync()
		return nil, err
	}
	a.Log.Debug("bootstrapped", zap.String("driver", cfg.Database.Driver))
	return a, nil
}
