package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xxz807/finscale/accounting/internal/platform/money"
)

func TestRecomputeIsOrderIndependent(t *testing.T) {
	var entries []Entry
	for i := 0; i < 40; i++ {
		e := Entry{ID: int64(i + 1), EntryDate: time.Date(2024, 1, 1+i%28, 0, 0, 0, 0, time.UTC)}
		amt := decimal.New(int64(i*37+11), -2)
		if i%4 == 0 {
			e.Credit = money.New(amt)
		} else {
			e.Debit = money.New(amt)
		}
		entries = append(entries, e)
	}
	want := Recompute(Customer, entries)

	r := rand.New(rand.NewSource(7))
	for n := 0; n < 10; n++ {
		r.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
		assert.True(t, want.Equal(Recompute(Customer, entries)))
	}
	assert.True(t, want.Neg().Equal(Recompute(Supplier, entries)))
}

func TestBuildStatementEmptyWindow(t *testing.T) {
	p := PartyLedger{Kind: Supplier, ContactKey: "S"}
	entries := []Entry{
		{ID: 1, EntryDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Credit: money.New(decimal.NewFromInt(80))},
		{ID: 2, EntryDate: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), Debit: money.New(decimal.NewFromInt(30))},
	}
	st := BuildStatement(p, entries,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))

	assert.Empty(t, st.Lines)
	assert.True(t, st.OpeningBalance.Equal(decimal.NewFromInt(50)))
	assert.True(t, st.ClosingBalance.Equal(decimal.NewFromInt(50)))
}

func TestOverLimit(t *testing.T) {
	p := PartyLedger{CurrentBalance: money.New(decimal.NewFromInt(100))}
	assert.False(t, p.OverLimit())
	p.CreditLimit = money.NewNull(decimal.NewFromInt(100))
	assert.False(t, p.OverLimit())
	p.CurrentBalance = money.RequireFromString("100.01")
	assert.True(t, p.OverLimit())
}
