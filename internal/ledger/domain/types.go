package domain

import (
	"fmt"
	"strings"
)

// AccountType is the accounting category of an account (1-5).
type AccountType int16

const (
	Asset     AccountType = 1
	Liability AccountType = 2
	Equity    AccountType = 3
	Revenue   AccountType = 4
	Expense   AccountType = 5
)

var accountTypeNames = map[AccountType]string{
	Asset:     "ASSET",
	Liability: "LIABILITY",
	Equity:    "EQUITY",
	Revenue:   "REVENUE",
	Expense:   "EXPENSE",
}

func (t AccountType) String() string {
	if s, ok := accountTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("AccountType(%d)", int16(t))
}

// IsValid reports whether t is one of the five categories.
func (t AccountType) IsValid() bool {
	_, ok := accountTypeNames[t]
	return ok
}

// NormalBalance is the side on which the account grows.
// Assets and expenses grow with debits; liabilities, equity and revenue with credits.
func (t AccountType) NormalBalance() Direction {
	if t == Asset || t == Expense {
		return Debit
	}
	return Credit
}

// IsProfitAndLoss reports whether the type belongs on the income statement.
func (t AccountType) IsProfitAndLoss() bool {
	return t == Revenue || t == Expense
}

// MarshalText renders the name; the zero value (synthetic report rows) is empty.
func (t AccountType) MarshalText() ([]byte, error) {
	if t == 0 {
		return []byte{}, nil
	}
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid account type %d", int16(t))
	}
	return []byte(t.String()), nil
}

func (t *AccountType) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = 0
		return nil
	}
	parsed, err := ParseAccountType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseAccountType accepts the upper- or lower-case category name.
func ParseAccountType(s string) (AccountType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "INCOME" {
		return Revenue, nil
	}
	for t, n := range accountTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown account type %q", s)
}

// Direction is the debit/credit side (D/C).
type Direction string

const (
	Debit  Direction = "D"
	Credit Direction = "C"
)

// IsValid checks the direction.
func (d Direction) IsValid() bool {
	return d == Debit || d == Credit
}

// VoucherType classifies the business transaction behind a voucher.
type VoucherType string

const (
	VoucherSale       VoucherType = "SALE"
	VoucherPurchase   VoucherType = "PURCHASE"
	VoucherPayment    VoucherType = "PAYMENT"
	VoucherReceipt    VoucherType = "RECEIPT"
	VoucherJournal    VoucherType = "JOURNAL"
	VoucherCreditNote VoucherType = "CREDIT_NOTE"
	VoucherDebitNote  VoucherType = "DEBIT_NOTE"
	VoucherReversal   VoucherType = "REVERSAL"
)

func (t VoucherType) IsValid() bool {
	switch t {
	case VoucherSale, VoucherPurchase, VoucherPayment, VoucherReceipt,
		VoucherJournal, VoucherCreditNote, VoucherDebitNote, VoucherReversal:
		return true
	}
	return false
}

// RowKind discriminates report rows. Each report uses a subset:
// hierarchical trial balance uses Parent/Leaf, P&L uses Account/Subtotal/Total.
type RowKind string

const (
	RowLeaf     RowKind = "LEAF"
	RowParent   RowKind = "PARENT"
	RowAccount  RowKind = "ACCOUNT"
	RowSubtotal RowKind = "SUBTOTAL"
	RowTotal    RowKind = "TOTAL"
)
