package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/adapter/repo"
	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
)

func TestSaleVoucherTrialBalance(t *testing.T) {
	env := newTestEnv(t)
	ar := env.account(t, "1200", "Accounts Receivable", domain.Asset, nil)
	sales := env.account(t, "4000", "Sales", domain.Revenue, nil)

	v := env.post(t, "2024-01-10", domain.VoucherSale, dr(ar, "1000"), cr(sales, "1000"))
	assert.NotZero(t, v.ID)
	assert.Contains(t, v.Number, "JV-")

	tb, err := env.reports.TrialBalance(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	require.Len(t, tb.Rows, 2)
	assert.Equal(t, "Accounts Receivable", tb.Rows[0].AccountName)
	assert.True(t, tb.Rows[0].TotalDebit.Equal(dec("1000")))
	assert.True(t, tb.Rows[0].TotalCredit.IsZero())
	assert.Equal(t, "Sales", tb.Rows[1].AccountName)
	assert.True(t, tb.Rows[1].TotalDebit.IsZero())
	assert.True(t, tb.Rows[1].TotalCredit.Equal(dec("1000")))
	assert.True(t, tb.IsBalanced)

	outside, err := env.reports.TrialBalance(context.Background(), day("2024-02-01"), day("2024-02-29"))
	require.NoError(t, err)
	assert.Empty(t, outside.Rows)
}

func TestPostVoucherRejectsUnbalanced(t *testing.T) {
	env := newTestEnv(t)
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	sales := env.account(t, "4000", "Sales", domain.Revenue, nil)

	_, err := env.ledger.PostVoucher(context.Background(), PostingRequest{
		Date:    day("2024-01-10"),
		Type:    domain.VoucherSale,
		Entries: []PostingEntry{dr(cash, "100.01"), cr(sales, "100")},
	})

	var unbalanced *apperr.UnbalancedVoucherError
	require.ErrorAs(t, err, &unbalanced)
	assert.True(t, errors.Is(err, apperr.ErrUnbalanced))
	assert.True(t, unbalanced.Difference().Equal(dec("0.01")))

	var count int64
	require.NoError(t, env.db.Model(&domain.Voucher{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostVoucherValidation(t *testing.T) {
	env := newTestEnv(t)
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	sales := env.account(t, "4000", "Sales", domain.Revenue, nil)
	old := env.account(t, "4900", "Old Sales", domain.Revenue, nil)
	_, err := env.accounts.Deactivate(context.Background(), old.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     PostingRequest
		wantErr error
	}{
		{
			name:    "missing date",
			req:     PostingRequest{Type: domain.VoucherSale, Entries: []PostingEntry{dr(cash, "1"), cr(sales, "1")}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "unknown type",
			req:     PostingRequest{Date: day("2024-01-01"), Type: "GIFT", Entries: []PostingEntry{dr(cash, "1"), cr(sales, "1")}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "no entries",
			req:     PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherJournal},
			wantErr: apperr.ErrValidation,
		},
		{
			name: "negative amount",
			req: PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherJournal, Entries: []PostingEntry{
				{AccountID: cash.ID, Debit: dec("-5")}, {AccountID: sales.ID, Credit: dec("-5")},
			}},
			wantErr: apperr.ErrValidation,
		},
		{
			name: "both sides set",
			req: PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherJournal, Entries: []PostingEntry{
				{AccountID: cash.ID, Debit: dec("5"), Credit: dec("5")},
			}},
			wantErr: apperr.ErrValidation,
		},
		{
			name: "zero line",
			req: PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherJournal, Entries: []PostingEntry{
				{AccountID: cash.ID},
			}},
			wantErr: apperr.ErrValidation,
		},
		{
			name: "unknown account id",
			req: PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherJournal, Entries: []PostingEntry{
				dr(cash, "5"), {AccountID: 9999, Credit: dec("5")},
			}},
			wantErr: apperr.ErrUnknownAccount,
		},
		{
			name: "unknown account code",
			req: PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherJournal, Entries: []PostingEntry{
				dr(cash, "5"), {AccountCode: "NOPE", Credit: dec("5")},
			}},
			wantErr: apperr.ErrUnknownAccount,
		},
		{
			name:    "inactive account",
			req:     PostingRequest{Date: day("2024-01-01"), Type: domain.VoucherSale, Entries: []PostingEntry{dr(cash, "5"), cr(old, "5")}},
			wantErr: apperr.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.PostVoucher(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&domain.VoucherEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostVoucherByCodeAndDuplicateReference(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "1000", "Cash", domain.Asset, nil)
	env.account(t, "4000", "Sales", domain.Revenue, nil)

	req := PostingRequest{
		Date:          day("2024-03-02"),
		Type:          domain.VoucherSale,
		ReferenceType: "ORDER",
		ReferenceID:   "SO-1001",
		Metadata:      map[string]any{"channel": "pos"},
		Entries: []PostingEntry{
			{AccountCode: "1000", Debit: dec("49.90")},
			{AccountCode: "4000", Credit: dec("49.90")},
		},
	}
	v, err := env.ledger.PostVoucher(context.Background(), req)
	require.NoError(t, err)

	got, err := env.ledger.GetVoucher(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.True(t, got.Entries[0].Debit.Equal(dec("49.90")))
	assert.Equal(t, domain.Debit, got.Entries[0].Direction())
	assert.Equal(t, "pos", got.Metadata["channel"])

	_, err = env.ledger.PostVoucher(context.Background(), req)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = env.ledger.GetVoucher(context.Background(), 424242)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestReverseVoucher(t *testing.T) {
	env := newTestEnv(t)
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	rent := env.account(t, "5000", "Rent", domain.Expense, nil)

	v := env.post(t, "2024-05-01", domain.VoucherPayment, dr(rent, "750"), cr(cash, "750"))

	rev, err := env.ledger.ReverseVoucher(context.Background(), v.ID, day("2024-05-03"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.VoucherReversal, rev.Type)
	require.NotNil(t, rev.ReversesVoucherID)
	assert.Equal(t, v.ID, *rev.ReversesVoucherID)
	assert.Equal(t, "Reversal of "+v.Number, rev.Narration)

	tb, err := env.reports.TrialBalance(context.Background(), day("2024-05-01"), day("2024-05-31"))
	require.NoError(t, err)
	for _, row := range tb.Rows {
		assert.True(t, row.TotalDebit.Equal(row.TotalCredit), row.AccountName)
	}

	_, err = env.ledger.ReverseVoucher(context.Background(), v.ID, day("2024-05-04"), "again")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = env.ledger.ReverseVoucher(context.Background(), rev.ID, day("2024-05-04"), "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	listed, err := env.ledger.ListVouchers(context.Background(), day("2024-05-01"), day("2024-05-31"))
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestConcurrentPostingsStayBalanced(t *testing.T) {
	env := newTestEnv(t)
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	sales := env.account(t, "4000", "Sales", domain.Revenue, nil)
	fees := env.account(t, "5100", "Card Fees", domain.Expense, nil)

	var g errgroup.Group
	for i := 0; i < 25; i++ {
		i := i
		g.Go(func() error {
			gross := dec(fmt.Sprintf("%d.33", 10+i))
			fee := dec("0.17")
			_, err := env.ledger.PostVoucher(context.Background(), PostingRequest{
				Date: day("2024-06-15"),
				Type: domain.VoucherSale,
				Entries: []PostingEntry{
					{AccountID: cash.ID, Debit: gross.Sub(fee)},
					{AccountID: fees.ID, Debit: fee},
					{AccountID: sales.ID, Credit: gross},
				},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	tb, err := env.reports.TrialBalance(context.Background(), day("2024-06-01"), day("2024-06-30"))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))

	book, err := env.reports.Daybook(context.Background(), day("2024-06-01"), day("2024-06-30"))
	require.NoError(t, err)
	assert.Equal(t, 75, book.Summary.TotalEntries)
	assert.True(t, book.Summary.IsBalanced)
}

// postingReadsOnly fails any account lookup made outside the posting
// transaction and counts the in-transaction reads.
type postingReadsOnly struct {
	domain.AccountRepository
	reads int
}

func (r *postingReadsOnly) FindByCode(context.Context, string) (*domain.Account, error) {
	return nil, errors.New("account looked up outside the posting transaction")
}

func (r *postingReadsOnly) FindForPosting(ctx context.Context, db *gorm.DB, ids []int64, codes []string) ([]domain.Account, error) {
	r.reads++
	return r.AccountRepository.FindForPosting(ctx, db, ids, codes)
}

func TestPostVoucherReadsAccountsOnce(t *testing.T) {
	env := newTestEnv(t)
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	env.account(t, "4000", "Sales", domain.Revenue, nil)
	fees := env.account(t, "6100", "Card Fees", domain.Expense, nil)

	accounts := &postingReadsOnly{AccountRepository: repo.NewAccountRepo(env.db)}
	ids, err := idgen.New(9)
	require.NoError(t, err)
	ledger := NewLedgerService(env.db, accounts, repo.NewVoucherRepo(env.db), ids, zaptest.NewLogger(t))

	v, err := ledger.PostVoucher(context.Background(), PostingRequest{
		Date: day("2024-03-02"),
		Type: domain.VoucherSale,
		Entries: []PostingEntry{
			{AccountID: cash.ID, Debit: dec("97.5")},
			{AccountID: fees.ID, Debit: dec("2.5")},
			{AccountCode: "4000", Credit: dec("100")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, accounts.reads)
	assert.NotZero(t, v.Entries[2].AccountID)

	_, err = ledger.PostVoucher(context.Background(), PostingRequest{
		Date:    day("2024-03-02"),
		Type:    domain.VoucherJournal,
		Entries: []PostingEntry{dr(cash, "1"), {AccountCode: "9999", Credit: dec("1")}},
	})
	assert.True(t, errors.Is(err, apperr.ErrUnknownAccount), "got %v", err)
	assert.Equal(t, 2, accounts.reads)
}

func TestPostVoucherKeepsFullPrecision(t *testing.T) {
	env := newTestEnv(t)
	cash := env.account(t, "1000", "Cash", domain.Asset, nil)
	sales := env.account(t, "4000", "Sales", domain.Revenue, nil)
	other := env.account(t, "4900", "Other Income", domain.Revenue, nil)

	v := env.post(t, "2024-01-10", domain.VoucherSale,
		dr(cash, "1234567890123.4567"),
		cr(sales, "1234567890123.4500"),
		cr(other, "0.0067"),
	)

	got, err := env.ledger.GetVoucher(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "1234567890123.4567", got.Entries[0].Debit.String())
	assert.Equal(t, "1234567890123.45", got.Entries[1].Credit.String())
	assert.Equal(t, "0.0067", got.Entries[2].Credit.String())

	tb, err := env.reports.TrialBalance(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.TotalDebit.Equal(dec("1234567890123.4567")), "debit %s", tb.TotalDebit)
	assert.NoError(t, env.reports.CheckIntegrity(context.Background(), day("2024-01-01"), day("2024-01-31")))
}
