package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/adapter/repo"
	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/database"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
)

type testEnv struct {
	db       *gorm.DB
	accounts *AccountService
	ledger   *LedgerService
	reports  *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, database.Migrate(context.Background(), db, domain.Models()...))

	ids, err := idgen.New(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	accountRepo := repo.NewAccountRepo(db)
	voucherRepo := repo.NewVoucherRepo(db)
	return &testEnv{
		db:       db,
		accounts: NewAccountService(db, accountRepo, log),
		ledger:   NewLedgerService(db, accountRepo, voucherRepo, ids, log),
		reports:  NewReportService(db, accountRepo, voucherRepo, log),
	}
}

func (e *testEnv) account(t *testing.T, code, name string, typ domain.AccountType, parent *domain.Account) *domain.Account {
	t.Helper()
	req := CreateAccountRequest{Code: code, Name: name, Type: typ}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	a, err := e.accounts.Create(context.Background(), req)
	require.NoError(t, err)
	return a
}

func (e *testEnv) post(t *testing.T, date string, typ domain.VoucherType, entries ...PostingEntry) *domain.Voucher {
	t.Helper()
	v, err := e.ledger.PostVoucher(context.Background(), PostingRequest{
		Date:    day(date),
		Type:    typ,
		Entries: entries,
	})
	require.NoError(t, err)
	return v
}

func dr(a *domain.Account, amount string) PostingEntry {
	return PostingEntry{AccountID: a.ID, Debit: dec(amount)}
}

func cr(a *domain.Account, amount string) PostingEntry {
	return PostingEntry{AccountID: a.ID, Credit: dec(amount)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
