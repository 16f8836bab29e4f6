package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xxz807/finscale/accounting/internal/app"
	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2. infra
	appLogger, err := logger.NewLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer appLogger.Sync() //nolint:errcheck

	// 3. wiring
	a, err := app.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Migrate(ctx); err != nil {
		appLogger.Fatal("migration failed", zap.Error(err))
	}

	// 4. server
	srv := a.Server()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Fatal("server startup failed", zap.Error(err))
		}
	case <-ctx.Done():
		appLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
