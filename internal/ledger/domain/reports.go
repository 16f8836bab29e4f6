package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

// CurrentEarningsName labels the synthetic equity line on the balance sheet.
const CurrentEarningsName = "Current Period Earnings"

// Window is an inclusive date range.
type Window struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// NewWindow normalizes both bounds to dates and rejects empty or inverted ranges.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() {
		return Window{}, apperr.Invalid("start_date", "is required")
	}
	if end.IsZero() {
		return Window{}, apperr.Invalid("end_date", "is required")
	}
	w := Window{Start: DateOf(start), End: DateOf(end)}
	if w.Start.After(w.End) {
		return Window{}, apperr.Invalid("start_date", "%s is after end date %s",
			w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	return w, nil
}

func (w Window) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// AccountTotals is the debit and credit activity of one account.
type AccountTotals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (t AccountTotals) Add(o AccountTotals) AccountTotals {
	return AccountTotals{Debit: t.Debit.Add(o.Debit), Credit: t.Credit.Add(o.Credit)}
}

func (t AccountTotals) IsZero() bool {
	return t.Debit.IsZero() && t.Credit.IsZero()
}

// Net is the balance on the account type's normal side.
func (t AccountTotals) Net(typ AccountType) decimal.Decimal {
	if typ.NormalBalance() == Debit {
		return t.Debit.Sub(t.Credit)
	}
	return t.Credit.Sub(t.Debit)
}

// SumByAccount groups entry lines by account.
func SumByAccount(lines []EntryLine) map[int64]AccountTotals {
	out := make(map[int64]AccountTotals)
	for _, l := range lines {
		out[l.AccountID] = out[l.AccountID].Add(AccountTotals{Debit: l.Debit, Credit: l.Credit})
	}
	return out
}

// --- trial balance

type TrialBalanceRow struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType AccountType     `json:"account_type"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

type TrialBalance struct {
	Window
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	IsBalanced  bool              `json:"is_balanced"`
}

// BuildTrialBalance lists every account with activity, ordered by code.
func BuildTrialBalance(w Window, tree *AccountTree, totals map[int64]AccountTotals) TrialBalance {
	tb := TrialBalance{Window: w, Rows: []TrialBalanceRow{}}
	for id, t := range totals {
		row := TrialBalanceRow{AccountID: id, TotalDebit: t.Debit, TotalCredit: t.Credit}
		if a, ok := tree.Get(id); ok {
			row.AccountCode, row.AccountName, row.AccountType = a.AccountCode, a.Name, a.Type
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(t.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(t.Credit)
	}
	sort.Slice(tb.Rows, func(i, j int) bool {
		if tb.Rows[i].AccountCode != tb.Rows[j].AccountCode {
			return tb.Rows[i].AccountCode < tb.Rows[j].AccountCode
		}
		return tb.Rows[i].AccountID < tb.Rows[j].AccountID
	})
	tb.IsBalanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}

// --- hierarchical trial balance

type HierarchicalTrialBalanceRow struct {
	AccountID   int64       `json:"account_id"`
	AccountName string      `json:"account_name"`
	AccountCode string      `json:"account_code"`
	AccountType AccountType `json:"account_type"`
	// Own activity of the account.
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	// Own activity plus every descendant's.
	TotalDebitIncludingSubs  decimal.Decimal               `json:"total_debit_including_subs"`
	TotalCreditIncludingSubs decimal.Decimal               `json:"total_credit_including_subs"`
	Kind                     RowKind                       `json:"kind"`
	Level                    int                           `json:"level"`
	ParentAccountID          *int64                        `json:"parent_account_id,omitempty"`
	SubAccounts              []HierarchicalTrialBalanceRow `json:"sub_accounts,omitempty"`
}

func (r HierarchicalTrialBalanceRow) IsParentAccount() bool {
	return r.Kind == RowParent
}

// BuildHierarchicalTrialBalance nests rows under their parents. Subtrees with
// no activity are dropped unless includeZero is set.
func BuildHierarchicalTrialBalance(tree *AccountTree, totals map[int64]AccountTotals, includeZero bool) []HierarchicalTrialBalanceRow {
	var build func(id int64, level int) (HierarchicalTrialBalanceRow, bool)
	build = func(id int64, level int) (HierarchicalTrialBalanceRow, bool) {
		a, _ := tree.Get(id)
		own := totals[id]
		row := HierarchicalTrialBalanceRow{
			AccountID:       a.ID,
			AccountName:     a.Name,
			AccountCode:     a.AccountCode,
			AccountType:     a.Type,
			TotalDebit:      own.Debit,
			TotalCredit:     own.Credit,
			Kind:            RowLeaf,
			Level:           level,
			ParentAccountID: a.ParentID,
		}
		sum := own
		if tree.IsParent(id) {
			row.Kind = RowParent
		}
		for _, c := range tree.Children(id) {
			child, keep := build(c, level+1)
			sum = sum.Add(AccountTotals{Debit: child.TotalDebitIncludingSubs, Credit: child.TotalCreditIncludingSubs})
			if keep {
				row.SubAccounts = append(row.SubAccounts, child)
			}
		}
		row.TotalDebitIncludingSubs = sum.Debit
		row.TotalCreditIncludingSubs = sum.Credit
		return row, includeZero || !sum.IsZero()
	}

	rows := []HierarchicalTrialBalanceRow{}
	for _, r := range tree.Roots() {
		if row, keep := build(r, 0); keep {
			rows = append(rows, row)
		}
	}
	return rows
}

// FlattenHierarchy lists nested rows in display order (parent first).
func FlattenHierarchy(rows []HierarchicalTrialBalanceRow) []HierarchicalTrialBalanceRow {
	var out []HierarchicalTrialBalanceRow
	for _, r := range rows {
		subs := r.SubAccounts
		r.SubAccounts = nil
		out = append(out, r)
		out = append(out, FlattenHierarchy(subs)...)
	}
	return out
}

// --- profit & loss

type PnLRow struct {
	AccountID     *int64          `json:"account_id,omitempty"`
	AccountName   string          `json:"account_name"`
	AccountCode   string          `json:"account_code,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	AccountType   AccountType     `json:"account_type,omitempty"`
	Level         int             `json:"level"`
	Kind          RowKind         `json:"kind"`
	ParentAccount string          `json:"parent_account,omitempty"`
}

func (r PnLRow) IsTotal() bool    { return r.Kind == RowTotal }
func (r PnLRow) IsSubtotal() bool { return r.Kind == RowSubtotal }

type ProfitAndLoss struct {
	Window
	Rows          []PnLRow        `json:"rows"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// BuildProfitAndLoss emits revenue accounts, a revenue subtotal, expense
// accounts, an expense subtotal and the net profit total. Accounts within a
// section are ordered by code.
func BuildProfitAndLoss(w Window, tree *AccountTree, totals map[int64]AccountTotals) ProfitAndLoss {
	pl := ProfitAndLoss{Window: w}
	section := func(typ AccountType, label string) decimal.Decimal {
		accounts := accountsOfType(tree, totals, typ)
		var sum decimal.Decimal
		for _, a := range accounts {
			net := totals[a.ID].Net(typ)
			sum = sum.Add(net)
			id := a.ID
			row := PnLRow{
				AccountID:   &id,
				AccountName: a.Name,
				AccountCode: a.AccountCode,
				Amount:      net,
				AccountType: typ,
				Level:       tree.Depth(a.ID),
				Kind:        RowAccount,
			}
			if a.ParentID != nil {
				if p, ok := tree.Get(*a.ParentID); ok {
					row.ParentAccount = p.Name
				}
			}
			pl.Rows = append(pl.Rows, row)
		}
		pl.Rows = append(pl.Rows, PnLRow{AccountName: label, Amount: sum, AccountType: typ, Kind: RowSubtotal})
		return sum
	}

	pl.TotalRevenue = section(Revenue, "Total Revenue")
	pl.TotalExpenses = section(Expense, "Total Expenses")
	pl.NetProfit = pl.TotalRevenue.Sub(pl.TotalExpenses)
	pl.Rows = append(pl.Rows, PnLRow{AccountName: "Net Profit", Amount: pl.NetProfit, Kind: RowTotal})
	return pl
}

func accountsOfType(tree *AccountTree, totals map[int64]AccountTotals, typ AccountType) []*Account {
	var out []*Account
	for id := range totals {
		if a, ok := tree.Get(id); ok && a.Type == typ {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountCode < out[j].AccountCode })
	return out
}

// --- balance sheet

type BalanceSheetLine struct {
	// AccountID is nil for the synthetic earnings line.
	AccountID   *int64          `json:"account_id,omitempty"`
	AccountCode string          `json:"account_code,omitempty"`
	AccountName string          `json:"account_name"`
	AccountType AccountType     `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
}

// BalanceSheet presents assets as debit-credit and liabilities/equity as
// credit-debit, so a healthy ledger has TotalAssets == TotalLiabilities+TotalEquity.
type BalanceSheet struct {
	Window
	Assets           []BalanceSheetLine `json:"assets"`
	Liabilities      []BalanceSheetLine `json:"liabilities"`
	Equity           []BalanceSheetLine `json:"equity"`
	TotalAssets      decimal.Decimal    `json:"total_assets"`
	TotalLiabilities decimal.Decimal    `json:"total_liabilities"`
	TotalEquity      decimal.Decimal    `json:"total_equity"`
	CurrentEarnings  decimal.Decimal    `json:"current_earnings"`
	Difference       decimal.Decimal    `json:"difference"`
	IsBalanced       bool               `json:"is_balanced"`
}

func BuildBalanceSheet(w Window, tree *AccountTree, totals map[int64]AccountTotals) BalanceSheet {
	bs := BalanceSheet{Window: w, Assets: []BalanceSheetLine{}, Liabilities: []BalanceSheetLine{}, Equity: []BalanceSheetLine{}}
	lines := func(typ AccountType) ([]BalanceSheetLine, decimal.Decimal) {
		out := []BalanceSheetLine{}
		var sum decimal.Decimal
		for _, a := range accountsOfType(tree, totals, typ) {
			bal := totals[a.ID].Net(typ)
			id := a.ID
			out = append(out, BalanceSheetLine{
				AccountID:   &id,
				AccountCode: a.AccountCode,
				AccountName: a.Name,
				AccountType: typ,
				Balance:     bal,
			})
			sum = sum.Add(bal)
		}
		return out, sum
	}

	bs.Assets, bs.TotalAssets = lines(Asset)
	bs.Liabilities, bs.TotalLiabilities = lines(Liability)
	bs.Equity, bs.TotalEquity = lines(Equity)

	for _, typ := range []AccountType{Revenue, Expense} {
		for _, a := range accountsOfType(tree, totals, typ) {
			net := totals[a.ID].Net(Revenue)
			bs.CurrentEarnings = bs.CurrentEarnings.Add(net)
		}
	}
	if !bs.CurrentEarnings.IsZero() {
		bs.Equity = append(bs.Equity, BalanceSheetLine{
			AccountName: CurrentEarningsName,
			AccountType: Equity,
			Balance:     bs.CurrentEarnings,
		})
		bs.TotalEquity = bs.TotalEquity.Add(bs.CurrentEarnings)
	}

	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilities.Add(bs.TotalEquity))
	bs.IsBalanced = bs.Difference.IsZero()
	return bs
}

// --- daybook

type DaybookEntry struct {
	Date            time.Time       `json:"date"`
	Time            time.Time       `json:"time"`
	TransactionType string          `json:"transaction_type"`
	TransactionID   int64           `json:"transaction_id"`
	ReferenceNumber string          `json:"reference_number"`
	AccountName     string          `json:"account_name"`
	AccountCode     string          `json:"account_code"`
	Particulars     string          `json:"particulars"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	VoucherType     VoucherType     `json:"voucher_type"`
	Narration       string          `json:"narration"`
}

type DaybookSummary struct {
	TotalEntries int             `json:"total_entries"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Balance      decimal.Decimal `json:"balance"`
	IsBalanced   bool            `json:"is_balanced"`
}

// BuildDaybook orders lines by (voucher date, posted time, voucher id, entry id).
func BuildDaybook(tree *AccountTree, lines []EntryLine) []DaybookEntry {
	sorted := make([]EntryLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case !a.VoucherDate.Equal(b.VoucherDate):
			return a.VoucherDate.Before(b.VoucherDate)
		case !a.PostedAt.Equal(b.PostedAt):
			return a.PostedAt.Before(b.PostedAt)
		case a.VoucherID != b.VoucherID:
			return a.VoucherID < b.VoucherID
		}
		return a.EntryID < b.EntryID
	})

	out := make([]DaybookEntry, 0, len(sorted))
	for _, l := range sorted {
		e := DaybookEntry{
			Date:            l.VoucherDate,
			Time:            l.PostedAt,
			TransactionType: string(l.VoucherType),
			TransactionID:   l.VoucherID,
			ReferenceNumber: l.VoucherNumber,
			Particulars:     l.Description,
			DebitAmount:     l.Debit,
			CreditAmount:    l.Credit,
			VoucherType:     l.VoucherType,
			Narration:       l.Narration,
		}
		if l.ReferenceType != "" {
			e.TransactionType = l.ReferenceType
		}
		if l.ReferenceID != "" {
			e.ReferenceNumber = l.ReferenceID
		}
		if e.Particulars == "" {
			e.Particulars = l.Narration
		}
		if a, ok := tree.Get(l.AccountID); ok {
			e.AccountName, e.AccountCode = a.Name, a.AccountCode
		}
		out = append(out, e)
	}
	return out
}

func SummarizeDaybook(w Window, entries []DaybookEntry) DaybookSummary {
	s := DaybookSummary{TotalEntries: len(entries), StartDate: w.Start, EndDate: w.End}
	for _, e := range entries {
		s.TotalDebits = s.TotalDebits.Add(e.DebitAmount)
		s.TotalCredits = s.TotalCredits.Add(e.CreditAmount)
	}
	s.Balance = s.TotalDebits.Sub(s.TotalCredits)
	s.IsBalanced = s.Balance.IsZero()
	return s
}

// Daybook pairs the listing with its summary, both from the same read.
type Daybook struct {
	Entries []DaybookEntry `json:"entries"`
	Summary DaybookSummary `json:"summary"`
}
