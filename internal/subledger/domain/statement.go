package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type StatementLine struct {
	Entry
	Balance decimal.Decimal `json:"balance"`
}

// Statement is a party's activity over a window with balances recomputed in
// entry-date order.
type Statement struct {
	Party          PartyLedger     `json:"party"`
	Start          time.Time       `json:"start_date"`
	End            time.Time       `json:"end_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Lines          []StatementLine `json:"lines"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// BuildStatement folds all of a party's entries; those dated before start go
// into the opening balance, those after end are ignored.
func BuildStatement(p PartyLedger, entries []Entry, start, end time.Time) Statement {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EntryDate.Equal(sorted[j].EntryDate) {
			return sorted[i].EntryDate.Before(sorted[j].EntryDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	st := Statement{Party: p, Start: start, End: end, Lines: []StatementLine{}}
	bal := decimal.Zero
	for _, e := range sorted {
		if e.EntryDate.Before(start) {
			bal = bal.Add(p.Kind.SignedDelta(e.Debit.Decimal, e.Credit.Decimal))
			continue
		}
		if e.EntryDate.After(end) {
			break
		}
		if len(st.Lines) == 0 {
			st.OpeningBalance = bal
		}
		bal = bal.Add(p.Kind.SignedDelta(e.Debit.Decimal, e.Credit.Decimal))
		st.Lines = append(st.Lines, StatementLine{Entry: e, Balance: bal})
	}
	if len(st.Lines) == 0 {
		st.OpeningBalance = bal
	}
	st.ClosingBalance = bal
	return st
}

// Reconciliation compares a party's cached balance with its entries.
type Reconciliation struct {
	LedgerID   int64           `json:"ledger_id"`
	Kind       Kind            `json:"kind"`
	ContactKey string          `json:"contact_key"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Entries    int             `json:"entries"`
}

func (r Reconciliation) OK() bool {
	return r.Stored.Equal(r.Computed)
}

func Reconcile(p PartyLedger, entries []Entry) Reconciliation {
	return Reconciliation{
		LedgerID:   p.ID,
		Kind:       p.Kind,
		ContactKey: p.ContactKey,
		Stored:     p.CurrentBalance.Decimal,
		Computed:   Recompute(p.Kind, entries),
		Entries:    len(entries),
	}
}
