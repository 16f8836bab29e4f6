package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewWindow(t *testing.T) {
	w, err := NewWindow(day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(day("2024-02-01")))

	_, err = NewWindow(day("2024-02-01"), day("2024-01-01"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = NewWindow(time.Time{}, day("2024-01-01"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestBuildTrialBalance(t *testing.T) {
	tree := NewAccountTree(sampleChart())
	totals := SumByAccount([]EntryLine{
		{AccountID: 4, Debit: d("1000")},
		{AccountID: 5, Credit: d("1000")},
	})

	tb := BuildTrialBalance(Window{}, tree, totals)

	require.Len(t, tb.Rows, 2)
	assert.Equal(t, "Accounts Receivable", tb.Rows[0].AccountName)
	assert.True(t, tb.Rows[0].TotalDebit.Equal(d("1000")))
	assert.True(t, tb.Rows[0].TotalCredit.IsZero())
	assert.Equal(t, "Sales", tb.Rows[1].AccountName)
	assert.True(t, tb.Rows[1].TotalCredit.Equal(d("1000")))
	assert.True(t, tb.IsBalanced)
}

func TestHierarchicalRollup(t *testing.T) {
	tree := NewAccountTree(sampleChart())
	totals := map[int64]AccountTotals{
		2: {Debit: d("5")},
		3: {Debit: d("100"), Credit: d("40")},
		4: {Debit: d("250.75")},
		5: {Credit: d("355.75")},
	}

	rows := BuildHierarchicalTrialBalance(tree, totals, false)

	// Assets and Sales survive; zero roots are dropped.
	require.Len(t, rows, 2)
	assets := rows[0]
	assert.Equal(t, RowParent, assets.Kind)
	assert.True(t, assets.IsParentAccount())
	assert.True(t, assets.TotalDebit.IsZero())
	assert.True(t, assets.TotalDebitIncludingSubs.Equal(d("355.75")))
	assert.True(t, assets.TotalCreditIncludingSubs.Equal(d("40")))

	require.Len(t, assets.SubAccounts, 1)
	current := assets.SubAccounts[0]
	assert.Equal(t, 1, current.Level)
	assert.True(t, current.TotalDebit.Equal(d("5")))
	assert.True(t, current.TotalDebitIncludingSubs.Equal(d("355.75")))
	require.Len(t, current.SubAccounts, 2)
	assert.Equal(t, RowLeaf, current.SubAccounts[0].Kind)
	assert.Equal(t, 2, current.SubAccounts[0].Level)

	// every parent equals own plus the recursive sum of its descendants
	for _, r := range FlattenHierarchy(rows) {
		want := totals[r.AccountID].Debit
		for _, id := range tree.Descendants(r.AccountID) {
			want = want.Add(totals[id].Debit)
		}
		assert.True(t, want.Equal(r.TotalDebitIncludingSubs), r.AccountCode)
	}

	all := BuildHierarchicalTrialBalance(tree, totals, true)
	assert.Len(t, all, 5)
}

func TestBuildProfitAndLoss(t *testing.T) {
	chart := append(sampleChart(),
		Account{ID: 9, AccountCode: "4100", Name: "Service Income", Type: Revenue},
		Account{ID: 10, AccountCode: "5100", Name: "Wages", Type: Expense},
	)
	tree := NewAccountTree(chart)
	totals := map[int64]AccountTotals{
		9:  {Credit: d("200")},
		5:  {Credit: d("1000"), Debit: d("50")},
		6:  {Debit: d("300")},
		10: {Debit: d("100")},
		4:  {Debit: d("999")}, // balance sheet account, ignored
	}

	pl := BuildProfitAndLoss(Window{}, tree, totals)

	var kinds []RowKind
	var names []string
	for _, r := range pl.Rows {
		kinds = append(kinds, r.Kind)
		names = append(names, r.AccountName)
	}
	assert.Equal(t, []RowKind{RowAccount, RowAccount, RowSubtotal, RowAccount, RowAccount, RowSubtotal, RowTotal}, kinds)
	assert.Equal(t, []string{"Sales", "Service Income", "Total Revenue", "Rent", "Wages", "Total Expenses", "Net Profit"}, names)
	assert.True(t, pl.TotalRevenue.Equal(d("1150")))
	assert.True(t, pl.TotalExpenses.Equal(d("400")))
	assert.True(t, pl.NetProfit.Equal(d("750")))
	assert.True(t, pl.Rows[6].IsTotal())
	assert.True(t, pl.Rows[2].IsSubtotal())
}

func TestBuildBalanceSheet(t *testing.T) {
	tree := NewAccountTree(sampleChart())
	// capital 500 in cash, sale 1000 on credit, rent 300 paid in cash, payable 200 for rent
	totals := SumByAccount([]EntryLine{
		{AccountID: 3, Debit: d("500")}, {AccountID: 7, Credit: d("500")},
		{AccountID: 4, Debit: d("1000")}, {AccountID: 5, Credit: d("1000")},
		{AccountID: 6, Debit: d("300")}, {AccountID: 3, Credit: d("100")}, {AccountID: 8, Credit: d("200")},
	})

	bs := BuildBalanceSheet(Window{}, tree, totals)

	assert.True(t, bs.TotalAssets.Equal(d("1400")))
	assert.True(t, bs.TotalLiabilities.Equal(d("200")))
	assert.True(t, bs.CurrentEarnings.Equal(d("700")))
	assert.True(t, bs.TotalEquity.Equal(d("1200")))
	assert.True(t, bs.IsBalanced)
	require.Len(t, bs.Equity, 2)
	assert.Equal(t, CurrentEarningsName, bs.Equity[1].AccountName)
	assert.Nil(t, bs.Equity[1].AccountID)

	broken := BuildBalanceSheet(Window{}, tree, map[int64]AccountTotals{3: {Debit: d("10")}})
	assert.False(t, broken.IsBalanced)
	assert.True(t, broken.Difference.Equal(d("10")))
}

func TestBuildDaybookOrdering(t *testing.T) {
	tree := NewAccountTree(sampleChart())
	t1 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	lines := []EntryLine{
		{EntryID: 4, VoucherID: 2, VoucherDate: day("2024-01-10"), PostedAt: t2, AccountID: 5, Credit: d("10"), VoucherType: VoucherSale, VoucherNumber: "JV-2"},
		{EntryID: 1, VoucherID: 1, VoucherDate: day("2024-01-11"), PostedAt: t1, AccountID: 3, Debit: d("5"), VoucherType: VoucherJournal, Narration: "float"},
		{EntryID: 3, VoucherID: 2, VoucherDate: day("2024-01-10"), PostedAt: t2, AccountID: 4, Debit: d("10"), VoucherType: VoucherSale, ReferenceType: "ORDER", ReferenceID: "SO-7"},
	}

	book := BuildDaybook(tree, lines)

	require.Len(t, book, 3)
	assert.Equal(t, "1120", book[0].AccountCode)
	assert.Equal(t, "ORDER", book[0].TransactionType)
	assert.Equal(t, "SO-7", book[0].ReferenceNumber)
	assert.Equal(t, "4000", book[1].AccountCode)
	assert.Equal(t, "JV-2", book[1].ReferenceNumber)
	assert.Equal(t, "1110", book[2].AccountCode)
	assert.Equal(t, "float", book[2].Particulars)

	sum := SummarizeDaybook(Window{}, book)
	assert.Equal(t, 3, sum.TotalEntries)
	assert.True(t, sum.Balance.Equal(d("5")))
	assert.False(t, sum.IsBalanced)
}
