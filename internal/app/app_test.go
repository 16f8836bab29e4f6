package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	ledger "github.com/xxz807/finscale/accounting/internal/ledger/domain"
	ledgersvc "github.com/xxz807/finscale/accounting/internal/ledger/service"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/database"
	settlement "github.com/xxz807/finscale/accounting/internal/settlement/domain"
	settlesvc "github.com/xxz807/finscale/accounting/internal/settlement/service"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	a, err := Wire(cfg, zaptest.NewLogger(t), db)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

func TestSaleToSettlementStaysConsistent(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	ar, err := a.Accounts.Create(ctx, ledgersvc.CreateAccountRequest{Code: "1200", Name: "Accounts Receivable", Type: ledger.Asset})
	require.NoError(t, err)
	cash, err := a.Accounts.Create(ctx, ledgersvc.CreateAccountRequest{Code: "1000", Name: "Cash", Type: ledger.Asset})
	require.NoError(t, err)
	sales, err := a.Accounts.Create(ctx, ledgersvc.CreateAccountRequest{Code: "4000", Name: "Sales", Type: ledger.Revenue})
	require.NoError(t, err)

	_, err = a.Ledger.PostVoucher(ctx, ledgersvc.PostingRequest{
		Date: day, Type: ledger.VoucherSale, ReferenceType: "SALE", ReferenceID: "S-1",
		Entries: []ledgersvc.PostingEntry{
			{AccountID: ar.ID, Debit: decimal.NewFromInt(1000)},
			{AccountID: sales.ID, Credit: decimal.NewFromInt(1000)},
		},
	})
	require.NoError(t, err)
	_, err = a.Outstanding.CreateObligation(ctx, settlesvc.CreateObligationRequest{
		Type: settlement.InvoiceReceivable, Amount: decimal.NewFromInt(1000), Date: day,
		DueDate: day.AddDate(0, 0, 30), ReferenceType: "SALE", ReferenceID: "S-1", ContactKey: "0700000001",
	})
	require.NoError(t, err)

	_, err = a.Ledger.PostVoucher(ctx, ledgersvc.PostingRequest{
		Date: day, Type: ledger.VoucherReceipt,
		Entries: []ledgersvc.PostingEntry{
			{AccountCode: cash.AccountCode, Debit: decimal.NewFromInt(400)},
			{AccountCode: ar.AccountCode, Credit: decimal.NewFromInt(400)},
		},
	})
	require.NoError(t, err)
	p, err := a.Allocator.RecordPayment(ctx, settlesvc.RecordPaymentRequest{
		Direction: settlement.Receivable, ContactKey: "0700000001", Date: day, Amount: decimal.NewFromInt(400),
	})
	require.NoError(t, err)
	_, err = a.Allocator.Allocate(ctx, settlement.SourcePayment, p.ID)
	require.NoError(t, err)

	w, err := ledger.NewWindow(day.AddDate(0, 0, -9), day.AddDate(0, 0, 21))
	require.NoError(t, err)
	require.NoError(t, a.Verify(ctx, w))

	// subledger balance agrees with the AR account
	bal, err := a.Subledger.Balance(ctx, subledger.Customer, "0700000001")
	require.NoError(t, err)
	tb, err := a.Reports.TrialBalance(ctx, w.Start, w.End)
	require.NoError(t, err)
	for _, r := range tb.Rows {
		if r.AccountID == ar.ID {
			assert.True(t, r.TotalDebit.Sub(r.TotalCredit).Equal(bal))
		}
	}

	require.NoError(t, a.DB.Model(&subledger.PartyLedger{}).
		Where("contact_key = ?", "0700000001").
		Update("current_balance", decimal.NewFromInt(1)).Error)
	err = a.Verify(ctx, w)
	assert.True(t, errors.Is(err, apperr.ErrIntegrityViolation))
}

func TestServerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newTestApp(t)

	w := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, a.Close())
	w = httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestModelsCoverEveryModule(t *testing.T) {
	assert.Len(t, Models(), len(ledger.Models())+len(subledger.Models())+len(settlement.Models()))
}
