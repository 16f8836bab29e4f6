// Package app wires repositories, services and HTTP handlers of all modules
// into one process. Both cmd/api and cmd/ledgerctl start from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerrepo "github.com/xxz807/finscale/accounting/internal/ledger/adapter/repo"
	ledgerapi "github.com/xxz807/finscale/accounting/internal/ledger/api"
	ledger "github.com/xxz807/finscale/accounting/internal/ledger/domain"
	ledgersvc "github.com/xxz807/finscale/accounting/internal/ledger/service"
	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/database"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
	"github.com/xxz807/finscale/accounting/internal/platform/keylock"
	"github.com/xxz807/finscale/accounting/internal/platform/logger"
	"github.com/xxz807/finscale/accounting/internal/platform/server"
	settlerepo "github.com/xxz807/finscale/accounting/internal/settlement/adapter/repo"
	settleapi "github.com/xxz807/finscale/accounting/internal/settlement/api"
	settlement "github.com/xxz807/finscale/accounting/internal/settlement/domain"
	settlesvc "github.com/xxz807/finscale/accounting/internal/settlement/service"
	subrepo "github.com/xxz807/finscale/accounting/internal/subledger/adapter/repo"
	subapi "github.com/xxz807/finscale/accounting/internal/subledger/api"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
	subsvc "github.com/xxz807/finscale/accounting/internal/subledger/service"
)

// Models lists every table of every module.
func Models() []any {
	var models []any
	models = append(models, ledger.Models()...)
	models = append(models, subledger.Models()...)
	models = append(models, settlement.Models()...)
	return models
}

type App struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *gorm.DB

	Accounts    *ledgersvc.AccountService
	Ledger      *ledgersvc.LedgerService
	Reports     *ledgersvc.ReportService
	Subledger   *subsvc.Service
	Outstanding *settlesvc.OutstandingService
	Allocator   *settlesvc.Allocator
}

// New opens the database and builds all services.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a, err := Wire(cfg, log, db)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return a, nil
}

// Wire builds the services on an existing connection.
func Wire(cfg *config.Config, log *zap.Logger, db *gorm.DB) (*App, error) {
	// 1. shared infra
	ids, err := idgen.New(cfg.Ledger.NodeID)
	if err != nil {
		return nil, err
	}
	locks := keylock.New()

	// 2. repositories and services (Wiring)
	// -- Ledger Module --
	accountRepo := ledgerrepo.NewAccountRepo(db)
	voucherRepo := ledgerrepo.NewVoucherRepo(db)
	ledgerLog := logger.Component(log, "ledger")

	// -- Subledger Module --
	parties := subsvc.NewService(db, subrepo.NewPartyRepo(db), logger.Component(log, "subledger"))

	// -- Settlement Module --
	settleRepo := settlerepo.NewSettlementRepo(db)
	settleLog := logger.Component(log, "settlement")

	// 3. assemble
	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Accounts:    ledgersvc.NewAccountService(db, accountRepo, ledgerLog),
		Ledger:      ledgersvc.NewLedgerService(db, accountRepo, voucherRepo, ids, ledgerLog),
		Reports:     ledgersvc.NewReportService(db, accountRepo, voucherRepo, ledgerLog),
		Subledger:   parties,
		Outstanding: settlesvc.NewOutstandingService(db, settleRepo, parties, settleLog),
		Allocator:   settlesvc.NewAllocator(db, settleRepo, parties, locks, ids, cfg.Settlement, settleLog),
	}, nil
}

func (a *App) Migrate(ctx context.Context) error {
	if err := database.Migrate(ctx, a.DB, Models()...); err != nil {
		return err
	}
	a.Log.Info("schema migrated", zap.Int("tables", len(Models())))
	return nil
}

// Server builds the HTTP gateway with every module's routes.
func (a *App) Server() *server.Server {
	// handlers are injected into the gateway; each registers its own routes
	return server.NewServer(
		a.Log,
		a.Config.Server.Port,
		a.Config.Server.Mode,
		a.Ping,
		ledgerapi.NewLedgerHandler(a.Accounts, a.Ledger, a.Reports),
		subapi.NewSubledgerHandler(a.Subledger),
		settleapi.NewSettlementHandler(a.Outstanding, a.Allocator),
	)
}

func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Verify runs every integrity check: ledger trial balance and balance sheet
// for the window, and subledger reconciliation for both party kinds. All
// failures are joined.
func (a *App) Verify(ctx context.Context, w ledger.Window) error {
	var errs []error
	if err := a.Reports.CheckIntegrity(ctx, w.Start, w.End); err != nil {
		errs = append(errs, fmt.Errorf("ledger: %w", err))
	}
	for _, kind := range []subledger.Kind{subledger.Customer, subledger.Supplier} {
		if _, err := a.Subledger.VerifyAll(ctx, kind); err != nil {
			errs = append(errs, fmt.Errorf("subledger %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes the logger and closes the database.
func (a *App) Close() error {
	_ = a.Log.Sync()
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
