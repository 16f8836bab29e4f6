package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/money"
)

func TestReportsRejectBadWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start, end := day("2024-02-01"), day("2024-01-01")

	_, err := env.reports.TrialBalance(ctx, start, end)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = env.reports.HierarchicalTrialBalance(ctx, start, end, false)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = env.reports.ProfitAndLoss(ctx, start, end)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = env.reports.BalanceSheet(ctx, start, end)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = env.reports.Daybook(ctx, time.Time{}, end)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestStatementsFromPostedVouchers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assets := env.account(t, "1000", "Assets", domain.Asset, nil)
	cash := env.account(t, "1100", "Cash", domain.Asset, assets)
	ar := env.account(t, "1200", "Accounts Receivable", domain.Asset, assets)
	payable := env.account(t, "2000", "Accounts Payable", domain.Liability, nil)
	capital := env.account(t, "3000", "Owner Capital", domain.Equity, nil)
	sales := env.account(t, "4000", "Sales", domain.Revenue, nil)
	cogs := env.account(t, "5000", "Cost of Goods Sold", domain.Expense, nil)
	env.account(t, "5900", "Misc", domain.Expense, nil)

	env.post(t, "2024-01-02", domain.VoucherJournal, dr(cash, "5000"), cr(capital, "5000"))
	env.post(t, "2024-01-05", domain.VoucherPurchase, dr(cogs, "1200.50"), cr(payable, "1200.50"))
	env.post(t, "2024-01-10", domain.VoucherSale, dr(ar, "2000"), cr(sales, "2000"))
	env.post(t, "2024-01-20", domain.VoucherReceipt, dr(cash, "800"), cr(ar, "800"))

	start, end := day("2024-01-01"), day("2024-01-31")

	rows, err := env.reports.HierarchicalTrialBalance(ctx, start, end, false)
	require.NoError(t, err)
	require.Len(t, rows, 5) // Misc has no activity
	top := rows[0]
	assert.Equal(t, domain.RowParent, top.Kind)
	assert.True(t, top.TotalDebitIncludingSubs.Equal(dec("7800")))
	assert.True(t, top.TotalCreditIncludingSubs.Equal(dec("800")))
	require.Len(t, top.SubAccounts, 2)
	assert.Equal(t, "Cash", top.SubAccounts[0].AccountName)
	require.NotNil(t, top.SubAccounts[0].ParentAccountID)
	assert.Equal(t, assets.ID, *top.SubAccounts[0].ParentAccountID)

	pl, err := env.reports.ProfitAndLoss(ctx, start, end)
	require.NoError(t, err)
	assert.True(t, pl.NetProfit.Equal(dec("799.50")))
	last := pl.Rows[len(pl.Rows)-1]
	assert.Equal(t, domain.RowTotal, last.Kind)

	bs, err := env.reports.BalanceSheet(ctx, start, end)
	require.NoError(t, err)
	assert.True(t, bs.IsBalanced)
	assert.True(t, bs.TotalAssets.Equal(dec("7000")))
	assert.True(t, bs.TotalLiabilities.Add(bs.TotalEquity).Equal(dec("7000")))

	book, err := env.reports.Daybook(ctx, day("2024-01-05"), day("2024-01-10"))
	require.NoError(t, err)
	require.Len(t, book.Entries, 4)
	assert.Equal(t, "5000", book.Entries[0].AccountCode)
	assert.Equal(t, domain.VoucherSale, book.Entries[3].VoucherType)
	assert.True(t, book.Summary.TotalDebits.Equal(dec("3200.50")))
	assert.True(t, book.Summary.IsBalanced)

	require.NoError(t, env.reports.CheckIntegrity(ctx, start, end))
}

func TestBalanceSheetIntegrityViolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	capital := env.account(t, "3000", "Capital", domain.Equity, nil)
	env.post(t, "2024-01-02", domain.VoucherJournal, dr(cash, "100"), cr(capital, "100"))

	// a stray entry written behind the service's back
	require.NoError(t, env.db.Create(&domain.VoucherEntry{VoucherID: 1, AccountID: cash.ID, Debit: money.New(dec("1"))}).Error)

	bs, err := env.reports.BalanceSheet(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NotNil(t, bs)
	var violation *apperr.IntegrityViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "balance_sheet", violation.Check)
	assert.True(t, bs.Difference.Equal(dec("1")))

	err = env.reports.CheckIntegrity(ctx, day("2024-01-01"), day("2024-01-31"))
	assert.True(t, errors.Is(err, apperr.ErrIntegrityViolation))
}
